package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment - Üretim karşılığında üyeye yapılan ödeme.
type Payment struct {
	ID           uint       `gorm:"primaryKey"`
	ProductionID uint       `gorm:"index;not null"`
	Production   Production `gorm:"foreignKey:ProductionID"`
	AmountPaid   decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PaymentTransaction - Ödemenin yükümlülük özetine karşı dağıtım kaydı.
// RemainingToPay, ödeme anındaki vadesi gelmiş tutardan ödenen tutarın
// düşülmesiyle oluşan anlık görüntüdür; sonraki özetlerde previousRemaining
// olarak toplanır.
type PaymentTransaction struct {
	ID             uint    `gorm:"primaryKey"`
	PaymentID      uint    `gorm:"uniqueIndex;not null"`
	Payment        Payment `gorm:"foreignKey:PaymentID"`
	UserID         uint    `gorm:"index;not null"`
	SeasonID       uint    `gorm:"index;not null"`
	Amount         decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	RemainingToPay decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	CreatedAt      time.Time
}
