package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Fee - Üyeye tahakkuk eden aidat/kesinti.
// Kalan tutar = AmountOwed - AmountPaid, her zaman >= 0.
type Fee struct {
	ID         uint   `gorm:"primaryKey"`
	UserID     uint   `gorm:"index;not null"`
	User       User   `gorm:"foreignKey:UserID"`
	Name       string `gorm:"size:100;not null"` // aidat adı (örn: "2025 yıllık aidat")
	AmountOwed decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	AmountPaid decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
