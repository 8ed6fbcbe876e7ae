package models

import "time"

// Product - Kooperatif ürün kataloğu (gübre, tohum, mahsul vs.)
type Product struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"size:100;not null"`
	Unit      string `gorm:"size:20;not null"` // kg / ton / adet / litre
	CreatedAt time.Time
	UpdatedAt time.Time
}
