package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PurchaseStatus string

const (
	PurchaseStatusPaid PurchaseStatus = "paid" // tamamı peşin ödendi
	PurchaseStatusLoan PurchaseStatus = "loan" // kalan tutar borca döndü
)

// Purchase - Üyenin kooperatiften yaptığı alım.
// AmountRemaining = TotalPrice - AmountPaid olmak zorunda; 0'dan büyükse
// alıma bağlı bir Loan kaydı vardır.
type Purchase struct {
	ID              uint    `gorm:"primaryKey"`
	UserID          uint    `gorm:"index;not null"`
	User            User    `gorm:"foreignKey:UserID"`
	ProductID       uint    `gorm:"index;not null"`
	Product         Product `gorm:"foreignKey:ProductID"`
	SeasonID        uint    `gorm:"index;not null"`
	Season          Season  `gorm:"foreignKey:SeasonID"`
	Quantity        decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	UnitPrice       decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	TotalPrice      decimal.Decimal `gorm:"type:decimal(20,2);not null"` // Quantity * UnitPrice
	AmountPaid      decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	AmountRemaining decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	Status          PurchaseStatus  `gorm:"size:10;not null;index"`
	Interest        decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0"` // yüzde, yalnızca borçlu alımda anlamlı
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
