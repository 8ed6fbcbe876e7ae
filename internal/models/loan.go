package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type LoanStatus string

const (
	LoanStatusPending LoanStatus = "pending" // ödenmemiş
	LoanStatusRepaid  LoanStatus = "repaid"  // kapatıldı
)

// Loan - Alımın peşin ödenmeyen kısmından doğan borç.
// AmountOwed anapara tutarıdır; faiz tahsilat anında kalan anapara üzerinden hesaplanır.
type Loan struct {
	ID         uint     `gorm:"primaryKey"`
	PurchaseID uint     `gorm:"uniqueIndex;not null"` // borcu doğuran alım
	Purchase   Purchase `gorm:"foreignKey:PurchaseID"`
	UserID     uint     `gorm:"index;not null"`
	User       User     `gorm:"foreignKey:UserID"`
	ProductID  uint     `gorm:"index;not null"`
	Product    Product  `gorm:"foreignKey:ProductID"`
	SeasonID   uint     `gorm:"index;not null"`
	Season     Season   `gorm:"foreignKey:SeasonID"`
	Quantity   decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	AmountOwed decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	Interest   decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0"` // yüzde
	Status     LoanStatus      `gorm:"size:10;not null;index"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// LoanTransaction - Borca uygulanan tahsilat kaydı (append-only).
type LoanTransaction struct {
	ID              uint `gorm:"primaryKey"`
	LoanID          uint `gorm:"index;not null"`
	Loan            Loan `gorm:"foreignKey:LoanID"`
	Amount          decimal.Decimal `gorm:"type:decimal(20,2);not null"` // uygulanan tutar
	RemainingToPay  decimal.Decimal `gorm:"type:decimal(20,2);not null"` // işlem sonrası kalan
	CreatedAt       time.Time
}
