package purchase

import (
	"errors"
	"fmt"
	"time"

	"kooperatif-backend/internal/audit"
	"kooperatif-backend/internal/auth"
	"kooperatif-backend/internal/database"
	"kooperatif-backend/internal/models"
	"kooperatif-backend/internal/stock"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// -------------------------
// Request/Response Types
// -------------------------

type CreatePurchaseRequest struct {
	UserID     uint     `json:"user_id"`
	ProductID  uint     `json:"product_id"`
	SeasonID   uint     `json:"season_id"`
	Quantity   float64  `json:"quantity"`
	UnitPrice  float64  `json:"unit_price"`
	AmountPaid float64  `json:"amount_paid"`
	Interest   *float64 `json:"interest"` // yalnızca borç kalacaksa zorunlu
}

type UpdatePurchaseRequest struct {
	Quantity   *float64 `json:"quantity"`
	UnitPrice  *float64 `json:"unit_price"`
	AmountPaid *float64 `json:"amount_paid"`
	Interest   *float64 `json:"interest"`
}

type PurchaseResponse struct {
	ID              uint    `json:"id"`
	UserID          uint    `json:"user_id"`
	UserName        string  `json:"user_name"`
	ProductID       uint    `json:"product_id"`
	ProductName     string  `json:"product_name"`
	SeasonID        uint    `json:"season_id"`
	SeasonName      string  `json:"season_name"`
	Quantity        float64 `json:"quantity"`
	UnitPrice       float64 `json:"unit_price"`
	TotalPrice      float64 `json:"total_price"`
	AmountPaid      float64 `json:"amount_paid"`
	AmountRemaining float64 `json:"amount_remaining"`
	Status          string  `json:"status"`
	Interest        float64 `json:"interest"`
	CreatedAt       string  `json:"created_at"`
}

func toResponse(p models.Purchase) PurchaseResponse {
	return PurchaseResponse{
		ID:              p.ID,
		UserID:          p.UserID,
		UserName:        p.User.Name,
		ProductID:       p.ProductID,
		ProductName:     p.Product.Name,
		SeasonID:        p.SeasonID,
		SeasonName:      p.Season.Name,
		Quantity:        p.Quantity.InexactFloat64(),
		UnitPrice:       p.UnitPrice.InexactFloat64(),
		TotalPrice:      p.TotalPrice.InexactFloat64(),
		AmountPaid:      p.AmountPaid.InexactFloat64(),
		AmountRemaining: p.AmountRemaining.InexactFloat64(),
		Status:          string(p.Status),
		Interest:        p.Interest.InexactFloat64(),
		CreatedAt:       p.CreatedAt.Format(time.RFC3339),
	}
}

// -------------------------
// Yardımcı Fonksiyonlar
// -------------------------

func getUserInfo(c *fiber.Ctx) (uint, string, error) {
	userIDVal := c.Locals(auth.CtxUserIDKey)
	userID, ok := userIDVal.(uint)
	if !ok {
		return 0, "", fiber.NewError(fiber.StatusForbidden, "Kullanıcı bilgisi alınamadı")
	}

	var user models.User
	if err := database.DB.First(&user, "id = ?", userID).Error; err != nil {
		return 0, "", fiber.NewError(fiber.StatusInternalServerError, "Kullanıcı bulunamadı")
	}

	return userID, user.Name, nil
}

// Ledger hatalarını HTTP hatalarına çevir
func ledgerErrToFiber(err error) error {
	var insuf *stock.InsufficientFundsError
	if errors.As(err, &insuf) {
		return fiber.NewError(fiber.StatusUnprocessableEntity, insuf.Error())
	}
	if errors.Is(err, stock.ErrStockNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "Stok kaydı bulunamadı")
	}
	if errors.Is(err, stock.ErrNonPositiveAmount) {
		return fiber.NewError(fiber.StatusBadRequest, "Tutar 0'dan büyük olmalı")
	}
	return fiber.NewError(fiber.StatusInternalServerError, "İşlem kaydedilemedi")
}

// Alımın kasaya yazılan nakit karşılığı: peşinse toplam, borçluysa ödenen kısım.
func cashCredited(p models.Purchase) decimal.Decimal {
	if p.Status == models.PurchaseStatusPaid {
		return p.TotalPrice
	}
	return p.AmountPaid
}

// -------------------------
// Purchase Handlers
// -------------------------

// POST /api/purchases
func CreatePurchaseHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreatePurchaseRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		if body.UserID == 0 || body.ProductID == 0 || body.SeasonID == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "user_id, product_id ve season_id zorunlu")
		}
		if body.Quantity <= 0 || body.UnitPrice <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "quantity ve unit_price 0'dan büyük olmalı")
		}
		if body.AmountPaid < 0 {
			return fiber.NewError(fiber.StatusBadRequest, "amount_paid negatif olamaz")
		}

		// İlişkili kayıtlar var mı?
		var member models.User
		if err := database.DB.First(&member, "id = ?", body.UserID).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Üye bulunamadı")
		}
		var product models.Product
		if err := database.DB.First(&product, "id = ?", body.ProductID).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Ürün bulunamadı")
		}
		var season models.Season
		if err := database.DB.First(&season, "id = ?", body.SeasonID).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Sezon bulunamadı")
		}

		quantity := decimal.NewFromFloat(body.Quantity).Round(2)
		unitPrice := decimal.NewFromFloat(body.UnitPrice).Round(2)
		totalPrice := quantity.Mul(unitPrice).Round(2)
		amountPaid := decimal.NewFromFloat(body.AmountPaid).Round(2)
		amountRemaining := totalPrice.Sub(amountPaid)

		if amountRemaining.IsNegative() {
			return fiber.NewError(fiber.StatusBadRequest, "amount_paid toplam tutarı aşamaz")
		}

		status := models.PurchaseStatusPaid
		interest := decimal.Zero
		if amountRemaining.IsPositive() {
			status = models.PurchaseStatusLoan
			if body.Interest == nil {
				return fiber.NewError(fiber.StatusBadRequest, "Borç kalan alımda interest zorunlu")
			}
			if *body.Interest < 0 {
				return fiber.NewError(fiber.StatusBadRequest, "interest negatif olamaz")
			}
			interest = decimal.NewFromFloat(*body.Interest).Round(2)
		}

		purchase := models.Purchase{
			UserID:          body.UserID,
			ProductID:       body.ProductID,
			SeasonID:        body.SeasonID,
			Quantity:        quantity,
			UnitPrice:       unitPrice,
			TotalPrice:      totalPrice,
			AmountPaid:      amountPaid,
			AmountRemaining: amountRemaining,
			Status:          status,
			Interest:        interest,
		}

		// Alım + kasa girişi + borç kaydı tek transaction'da
		err := database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&purchase).Error; err != nil {
				return err
			}

			credit := cashCredited(purchase)
			if credit.IsPositive() {
				if err := stock.Credit(tx, purchase.ProductID, purchase.SeasonID, credit); err != nil {
					return err
				}
			} else {
				// Hiç nakit girmese bile kova açılmalı
				if _, err := stock.GetOrCreate(tx, purchase.ProductID, purchase.SeasonID); err != nil {
					return err
				}
			}

			// Satılan miktar envanterden düşülür
			if err := stock.AddInventory(tx, purchase.ProductID, purchase.SeasonID, quantity.Neg(), totalPrice.Neg()); err != nil {
				return err
			}

			if purchase.Status == models.PurchaseStatusLoan {
				loan := models.Loan{
					PurchaseID: purchase.ID,
					UserID:     purchase.UserID,
					ProductID:  purchase.ProductID,
					SeasonID:   purchase.SeasonID,
					Quantity:   purchase.Quantity,
					AmountOwed: purchase.AmountRemaining,
					Interest:   purchase.Interest,
					Status:     models.LoanStatusPending,
				}
				if err := tx.Create(&loan).Error; err != nil {
					return err
				}
			}

			return nil
		})
		if err != nil {
			return ledgerErrToFiber(err)
		}

		// Audit log yaz
		userID, userName, uerr := getUserInfo(c)
		if uerr == nil {
			afterData := map[string]interface{}{
				"id":               purchase.ID,
				"user_id":          purchase.UserID,
				"product_id":       purchase.ProductID,
				"season_id":        purchase.SeasonID,
				"quantity":         purchase.Quantity.InexactFloat64(),
				"unit_price":       purchase.UnitPrice.InexactFloat64(),
				"total_price":      purchase.TotalPrice.InexactFloat64(),
				"amount_paid":      purchase.AmountPaid.InexactFloat64(),
				"amount_remaining": purchase.AmountRemaining.InexactFloat64(),
				"status":           string(purchase.Status),
			}
			if logErr := audit.WriteLog(audit.LogOptions{
				UserID:      userID,
				UserName:    userName,
				EntityType:  "purchase",
				EntityID:    purchase.ID,
				Action:      models.AuditActionCreate,
				Description: fmt.Sprintf("Alım eklendi: %s - %s - %s TL", member.Name, product.Name, purchase.TotalPrice.StringFixed(2)),
				Before:      nil,
				After:       afterData,
			}); logErr != nil {
				fmt.Printf("Audit log yazılamadı: %v\n", logErr)
			}
		}

		purchase.User = member
		purchase.Product = product
		purchase.Season = season
		return c.Status(fiber.StatusCreated).JSON(toResponse(purchase))
	}
}

// GET /api/purchases?user_id=...&season_id=...&product_id=...
func ListPurchasesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := database.DB.Model(&models.Purchase{}).
			Preload("User").
			Preload("Product").
			Preload("Season")

		for param, col := range map[string]string{
			"user_id":    "user_id",
			"season_id":  "season_id",
			"product_id": "product_id",
		} {
			val := c.Query(param)
			if val == "" {
				continue
			}
			var id uint
			if _, err := fmt.Sscan(val, &id); err != nil || id == 0 {
				return fiber.NewError(fiber.StatusBadRequest, param+" geçersiz")
			}
			dbq = dbq.Where(col+" = ?", id)
		}

		var rows []models.Purchase
		if err := dbq.Order("created_at desc, id desc").Find(&rows).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Alımlar listelenemedi")
		}

		resp := make([]PurchaseResponse, 0, len(rows))
		for _, r := range rows {
			resp = append(resp, toResponse(r))
		}

		return c.JSON(resp)
	}
}

// PUT /api/purchases/:id
// Toplamlar sıfırdan hesaplanır; kasaya yalnızca işaretli fark uygulanır,
// yeni mutlak değerler asla tekrar yazılmaz (çifte alacak kaydını önler).
func UpdatePurchaseHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")

		var purchase models.Purchase
		if err := database.DB.Preload("User").Preload("Product").Preload("Season").
			First(&purchase, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Alım bulunamadı")
		}

		var body UpdatePurchaseRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		// Borca tahsilat uygulandıysa alım artık değiştirilemez
		var loan models.Loan
		loanExists := true
		if err := database.DB.First(&loan, "purchase_id = ?", purchase.ID).Error; err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return fiber.NewError(fiber.StatusInternalServerError, "Borç kaydı okunamadı")
			}
			loanExists = false
		}
		if loanExists {
			if loan.Status == models.LoanStatusRepaid {
				return fiber.NewError(fiber.StatusConflict, "Borcu kapatılmış alım güncellenemez")
			}
			var txCount int64
			database.DB.Model(&models.LoanTransaction{}).Where("loan_id = ?", loan.ID).Count(&txCount)
			if txCount > 0 {
				return fiber.NewError(fiber.StatusConflict, "Tahsilat uygulanmış alım güncellenemez")
			}
		}

		beforeData := map[string]interface{}{
			"quantity":         purchase.Quantity.InexactFloat64(),
			"unit_price":       purchase.UnitPrice.InexactFloat64(),
			"amount_paid":      purchase.AmountPaid.InexactFloat64(),
			"amount_remaining": purchase.AmountRemaining.InexactFloat64(),
			"status":           string(purchase.Status),
		}

		// Yeni değerler (gelmeyenler mevcut değerden devam eder)
		newQuantity := purchase.Quantity
		newUnitPrice := purchase.UnitPrice
		newAmountPaid := purchase.AmountPaid
		newInterest := purchase.Interest

		if body.Quantity != nil {
			if *body.Quantity <= 0 {
				return fiber.NewError(fiber.StatusBadRequest, "quantity 0'dan büyük olmalı")
			}
			newQuantity = decimal.NewFromFloat(*body.Quantity).Round(2)
		}
		if body.UnitPrice != nil {
			if *body.UnitPrice <= 0 {
				return fiber.NewError(fiber.StatusBadRequest, "unit_price 0'dan büyük olmalı")
			}
			newUnitPrice = decimal.NewFromFloat(*body.UnitPrice).Round(2)
		}
		if body.AmountPaid != nil {
			if *body.AmountPaid < 0 {
				return fiber.NewError(fiber.StatusBadRequest, "amount_paid negatif olamaz")
			}
			newAmountPaid = decimal.NewFromFloat(*body.AmountPaid).Round(2)
		}
		if body.Interest != nil {
			if *body.Interest < 0 {
				return fiber.NewError(fiber.StatusBadRequest, "interest negatif olamaz")
			}
			newInterest = decimal.NewFromFloat(*body.Interest).Round(2)
		}

		newTotal := newQuantity.Mul(newUnitPrice).Round(2)
		newRemaining := newTotal.Sub(newAmountPaid)
		if newRemaining.IsNegative() {
			return fiber.NewError(fiber.StatusBadRequest, "amount_paid toplam tutarı aşamaz")
		}

		newStatus := models.PurchaseStatusPaid
		if newRemaining.IsPositive() {
			newStatus = models.PurchaseStatusLoan
			if newInterest.IsZero() && body.Interest == nil && purchase.Status == models.PurchaseStatusPaid {
				return fiber.NewError(fiber.StatusBadRequest, "Borç kalan alımda interest zorunlu")
			}
		}

		oldCredit := cashCredited(purchase)
		oldQuantity := purchase.Quantity
		oldTotal := purchase.TotalPrice

		err := database.DB.Transaction(func(tx *gorm.DB) error {
			// Kasa farkı: pozitifse ek giriş, negatifse koşullu düşüş
			newCredit := newTotal
			if newStatus == models.PurchaseStatusLoan {
				newCredit = newAmountPaid
			}
			diff := newCredit.Sub(oldCredit)
			if diff.IsPositive() {
				if err := stock.Credit(tx, purchase.ProductID, purchase.SeasonID, diff); err != nil {
					return err
				}
			} else if diff.IsNegative() {
				if err := stock.Debit(tx, purchase.ProductID, purchase.SeasonID, diff.Neg()); err != nil {
					return err
				}
			}

			// Envanter farkı (satış miktarı değişti)
			qtyDelta := oldQuantity.Sub(newQuantity)
			priceDelta := oldTotal.Sub(newTotal)
			if !qtyDelta.IsZero() || !priceDelta.IsZero() {
				if err := stock.AddInventory(tx, purchase.ProductID, purchase.SeasonID, qtyDelta, priceDelta); err != nil {
					return err
				}
			}

			// Borç kaydını uzlaştır
			if newRemaining.IsPositive() {
				if loanExists {
					loan.Quantity = newQuantity
					loan.AmountOwed = newRemaining
					loan.Interest = newInterest
					if err := tx.Save(&loan).Error; err != nil {
						return err
					}
				} else {
					newLoan := models.Loan{
						PurchaseID: purchase.ID,
						UserID:     purchase.UserID,
						ProductID:  purchase.ProductID,
						SeasonID:   purchase.SeasonID,
						Quantity:   newQuantity,
						AmountOwed: newRemaining,
						Interest:   newInterest,
						Status:     models.LoanStatusPending,
					}
					if err := tx.Create(&newLoan).Error; err != nil {
						return err
					}
				}
			} else if loanExists {
				if err := tx.Delete(&loan).Error; err != nil {
					return err
				}
			}

			purchase.Quantity = newQuantity
			purchase.UnitPrice = newUnitPrice
			purchase.TotalPrice = newTotal
			purchase.AmountPaid = newAmountPaid
			purchase.AmountRemaining = newRemaining
			purchase.Status = newStatus
			purchase.Interest = newInterest
			return tx.Save(&purchase).Error
		})
		if err != nil {
			return ledgerErrToFiber(err)
		}

		// Audit log
		userID, userName, uerr := getUserInfo(c)
		if uerr == nil {
			afterData := map[string]interface{}{
				"quantity":         purchase.Quantity.InexactFloat64(),
				"unit_price":       purchase.UnitPrice.InexactFloat64(),
				"amount_paid":      purchase.AmountPaid.InexactFloat64(),
				"amount_remaining": purchase.AmountRemaining.InexactFloat64(),
				"status":           string(purchase.Status),
			}
			if logErr := audit.WriteLog(audit.LogOptions{
				UserID:      userID,
				UserName:    userName,
				EntityType:  "purchase",
				EntityID:    purchase.ID,
				Action:      models.AuditActionUpdate,
				Description: fmt.Sprintf("Alım güncellendi: %s TL", purchase.TotalPrice.StringFixed(2)),
				Before:      beforeData,
				After:       afterData,
			}); logErr != nil {
				fmt.Printf("Audit log yazılamadı: %v\n", logErr)
			}
		}

		return c.JSON(toResponse(purchase))
	}
}

// DELETE /api/purchases/:id
// Tahsilat uygulanmış borcu olan alım silinemez; önce o nakit akışının
// geri alınması gerekir.
func DeletePurchaseHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")

		var purchase models.Purchase
		if err := database.DB.Preload("User").Preload("Product").
			First(&purchase, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Alım bulunamadı")
		}

		var loan models.Loan
		loanExists := true
		if err := database.DB.First(&loan, "purchase_id = ?", purchase.ID).Error; err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return fiber.NewError(fiber.StatusInternalServerError, "Borç kaydı okunamadı")
			}
			loanExists = false
		}
		if loanExists {
			if loan.Status == models.LoanStatusRepaid {
				return fiber.NewError(fiber.StatusConflict, "Borcu kapatılmış alım silinemez")
			}
			var txCount int64
			database.DB.Model(&models.LoanTransaction{}).Where("loan_id = ?", loan.ID).Count(&txCount)
			if txCount > 0 {
				return fiber.NewError(fiber.StatusConflict, "Tahsilat uygulanmış alım silinemez")
			}
		}

		beforeData := map[string]interface{}{
			"id":          purchase.ID,
			"user_id":     purchase.UserID,
			"product_id":  purchase.ProductID,
			"season_id":   purchase.SeasonID,
			"total_price": purchase.TotalPrice.InexactFloat64(),
			"amount_paid": purchase.AmountPaid.InexactFloat64(),
			"status":      string(purchase.Status),
		}

		err := database.DB.Transaction(func(tx *gorm.DB) error {
			// Orijinal kasa girişini geri al
			credit := cashCredited(purchase)
			if credit.IsPositive() {
				if err := stock.Debit(tx, purchase.ProductID, purchase.SeasonID, credit); err != nil {
					return err
				}
			}

			// Envanter iade edilir
			if err := stock.AddInventory(tx, purchase.ProductID, purchase.SeasonID, purchase.Quantity, purchase.TotalPrice); err != nil {
				return err
			}

			if loanExists {
				if err := tx.Delete(&loan).Error; err != nil {
					return err
				}
			}

			return tx.Delete(&purchase).Error
		})
		if err != nil {
			return ledgerErrToFiber(err)
		}

		// Audit log
		userID, userName, uerr := getUserInfo(c)
		if uerr == nil {
			if logErr := audit.WriteLog(audit.LogOptions{
				UserID:      userID,
				UserName:    userName,
				EntityType:  "purchase",
				EntityID:    purchase.ID,
				Action:      models.AuditActionDelete,
				Description: fmt.Sprintf("Alım silindi: %s - %s TL", purchase.Product.Name, purchase.TotalPrice.StringFixed(2)),
				Before:      beforeData,
				After:       nil,
			}); logErr != nil {
				fmt.Printf("Audit log yazılamadı: %v\n", logErr)
			}
		}

		return c.SendStatus(fiber.StatusNoContent)
	}
}
