package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Production - Üyenin sezon içinde teslim ettiği mahsul.
// TotalPrice, üyeye yapılacak ödemelerin hesaplandığı brüt tutardır.
type Production struct {
	ID         uint    `gorm:"primaryKey"`
	UserID     uint    `gorm:"index;not null"`
	User       User    `gorm:"foreignKey:UserID"`
	ProductID  uint    `gorm:"index;not null"`
	Product    Product `gorm:"foreignKey:ProductID"`
	SeasonID   uint    `gorm:"index;not null"`
	Season     Season  `gorm:"foreignKey:SeasonID"`
	Quantity   decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	UnitPrice  decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	TotalPrice decimal.Decimal `gorm:"type:decimal(20,2);not null"` // Quantity * UnitPrice
	Date       time.Time       `gorm:"index;not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
