package stock

import (
	"errors"
	"fmt"

	"kooperatif-backend/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	// ErrStockNotFound - (ürün, sezon) için stok kaydı yok
	ErrStockNotFound = errors.New("stok kaydı bulunamadı")
	// ErrNonPositiveAmount - tutar 0 veya negatif
	ErrNonPositiveAmount = errors.New("tutar 0'dan büyük olmalı")
)

// InsufficientFundsError - Kasadan istenen tutar çekilemedi.
// Available, hata anındaki güncel bakiyedir; istemci limiti buradan gösterir.
type InsufficientFundsError struct {
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("yetersiz kasa bakiyesi: istenen %s, mevcut %s", e.Requested.StringFixed(2), e.Available.StringFixed(2))
}

// GetOrCreate - (ürün, sezon) kovasını bulur, yoksa sıfır bakiyeyle açar.
// Kova ilk alım/üretim kaydında tembel oluşturulur; asla "ilk bulunan stok" kullanılmaz.
func GetOrCreate(tx *gorm.DB, productID, seasonID uint) (*models.Stock, error) {
	var s models.Stock
	err := tx.First(&s, "product_id = ? AND season_id = ?", productID, seasonID).Error
	if err == nil {
		return &s, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	s = models.Stock{
		ProductID:  productID,
		SeasonID:   seasonID,
		Cash:       decimal.Zero,
		Quantity:   decimal.Zero,
		TotalPrice: decimal.Zero,
	}
	if err := tx.Create(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// Get - Kovayı okur, yoksa ErrStockNotFound döner.
func Get(tx *gorm.DB, productID, seasonID uint) (*models.Stock, error) {
	var s models.Stock
	if err := tx.First(&s, "product_id = ? AND season_id = ?", productID, seasonID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStockNotFound
		}
		return nil, err
	}
	return &s, nil
}

// Credit - Kovaya nakit girişi. Tutar > 0 olmak zorunda; kova yoksa açılır.
func Credit(tx *gorm.DB, productID, seasonID uint, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrNonPositiveAmount
	}

	s, err := GetOrCreate(tx, productID, seasonID)
	if err != nil {
		return err
	}

	return tx.Model(&models.Stock{}).
		Where("id = ?", s.ID).
		Update("cash", gorm.Expr("cash + ?", amount)).Error
}

// Debit - Kovadan nakit çıkışı. Yeterlilik kontrolü ve düşüş tek koşullu
// update ile yapılır; iki eşzamanlı debit bayat bakiye üzerinden geçemez.
// Satır etkilenmediyse InsufficientFundsError döner ve hiçbir yazma olmaz.
func Debit(tx *gorm.DB, productID, seasonID uint, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrNonPositiveAmount
	}

	var s models.Stock
	if err := tx.First(&s, "product_id = ? AND season_id = ?", productID, seasonID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrStockNotFound
		}
		return err
	}

	res := tx.Model(&models.Stock{}).
		Where("id = ? AND cash >= ?", s.ID, amount).
		Update("cash", gorm.Expr("cash - ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// Güncel bakiyeyi tekrar oku, hatada bayat değer gösterme
		if err := tx.First(&s, "id = ?", s.ID).Error; err != nil {
			return err
		}
		return &InsufficientFundsError{Requested: amount, Available: s.Cash}
	}
	return nil
}

// AddInventory - Envanter miktarını ve değerini işaretli delta ile günceller.
// Üretim girişinde pozitif, alım/silme akışlarında negatif delta gelir.
func AddInventory(tx *gorm.DB, productID, seasonID uint, qtyDelta, priceDelta decimal.Decimal) error {
	s, err := GetOrCreate(tx, productID, seasonID)
	if err != nil {
		return err
	}

	return tx.Model(&models.Stock{}).
		Where("id = ?", s.ID).
		Updates(map[string]interface{}{
			"quantity":    gorm.Expr("quantity + ?", qtyDelta),
			"total_price": gorm.Expr("total_price + ?", priceDelta),
		}).Error
}
