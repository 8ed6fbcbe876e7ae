package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Stock - (ürün, sezon) başına kasa ve envanter kovası.
// Cash hiçbir zaman negatif olamaz; tüm düşüşler koşullu update ile yapılır.
type Stock struct {
	ID         uint    `gorm:"primaryKey"`
	ProductID  uint    `gorm:"uniqueIndex:idx_stocks_product_season;not null"`
	Product    Product `gorm:"foreignKey:ProductID"`
	SeasonID   uint    `gorm:"uniqueIndex:idx_stocks_product_season;not null"`
	Season     Season  `gorm:"foreignKey:SeasonID"`
	Cash       decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0"` // kullanılabilir nakit
	Quantity   decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0"` // envanter miktarı
	TotalPrice decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0"` // envanter değeri
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
