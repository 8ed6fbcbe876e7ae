package settlement

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

type CreatePaymentRequest struct {
	ProductionID uint    `json:"production_id"`
	AmountPaid   float64 `json:"amount_paid"`
}

type UpdatePaymentRequest struct {
	AmountPaid float64 `json:"amount_paid"`
}

type PaymentResponse struct {
	ID             uint    `json:"id"`
	ProductionID   uint    `json:"production_id"`
	UserID         uint    `json:"user_id"`
	SeasonID       uint    `json:"season_id"`
	AmountPaid     float64 `json:"amount_paid"`
	RemainingToPay float64 `json:"remaining_to_pay"`
	CreatedAt      string  `json:"created_at"`
}

type SummaryResponse struct {
	UserID            uint    `json:"user_id"`
	SeasonID          uint    `json:"season_id"`
	ProductionID      uint    `json:"production_id"`
	ProductionTotal   float64 `json:"production_total"`
	FeesDue           float64 `json:"fees_due"`
	LoansDue          float64 `json:"loans_due"`
	PreviousRemaining float64 `json:"previous_remaining"`
	AmountDue         float64 `json:"amount_due"` // negatif olabilir, yuvarlanmaz
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

// -------------------------
// Summary Handler
// -------------------------

// GET /api/payments/summary?user_id=...&season_id=...&production_id=...
func GetPaymentSummaryHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var uid, sid, pid uint
		if _, err := fmt.Sscan(c.Query("user_id"), &uid); err != nil || uid == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "user_id geçersiz")
		}
		if _, err := fmt.Sscan(c.Query("season_id"), &sid); err != nil || sid == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "season_id geçersiz")
		}
		if _, err := fmt.Sscan(c.Query("production_id"), &pid); err != nil || pid == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "production_id geçersiz")
		}

		summary, err := BuildSummary(database.DB, uid, sid, pid)
		if err != nil {
			if errors.Is(err, ErrProductionNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "Üretim kaydı bulunamadı")
			}
			if errors.Is(err, ErrProductionMismatch) {
				return fiber.NewError(fiber.StatusBadRequest, "Üretim kaydı verilen üye/sezon ile eşleşmiyor")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "Özet hesaplanamadı")
		}

		return c.JSON(SummaryResponse{
			UserID:            summary.UserID,
			SeasonID:          summary.SeasonID,
			ProductionID:      summary.ProductionID,
			ProductionTotal:   summary.ProductionTotal.InexactFloat64(),
			FeesDue:           summary.FeesDue.InexactFloat64(),
			LoansDue:          summary.LoansDue.InexactFloat64(),
			PreviousRemaining: summary.PreviousRemaining.InexactFloat64(),
			AmountDue:         summary.AmountDue.InexactFloat64(),
		})
	}
}

// -------------------------
// Payment Handlers
// -------------------------

// POST /api/payments
// Özet bu istek için yeniden hesaplanır; kasa yeterliliği yine de yazma
// anında koşullu debit ile doğrulanır (özet bayat olabilir).
func CreatePaymentHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreatePaymentRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		if body.ProductionID == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "production_id zorunlu")
		}
		if body.AmountPaid <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "amount_paid 0'dan büyük olmalı")
		}

		var production models.Production
		if err := database.DB.First(&production, "id = ?", body.ProductionID).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Üretim kaydı bulunamadı")
		}

		amountPaid := decimal.NewFromFloat(body.AmountPaid).Round(2)

		summary, err := BuildSummary(database.DB, production.UserID, production.SeasonID, production.ID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Özet hesaplanamadı")
		}
		if amountPaid.GreaterThan(summary.AmountDue) {
			return fiber.NewError(fiber.StatusBadRequest,
				fmt.Sprintf("amount_paid vadesi gelen tutarı aşıyor: vadesi gelen %s", summary.AmountDue.StringFixed(2)))
		}

		payment := models.Payment{
			ProductionID: production.ID,
			AmountPaid:   amountPaid,
		}
		remaining := summary.AmountDue.Sub(amountPaid)

		err = database.DB.Transaction(func(tx *gorm.DB) error {
			// Kasa düşüşü ve ödeme kaydı ya birlikte geçer ya birlikte döner
			if err := stock.Debit(tx, production.ProductID, production.SeasonID, amountPaid); err != nil {
				return err
			}

			if err := tx.Create(&payment).Error; err != nil {
				return err
			}

			ptx := models.PaymentTransaction{
				PaymentID:      payment.ID,
				UserID:         production.UserID,
				SeasonID:       production.SeasonID,
				Amount:         amountPaid,
				RemainingToPay: remaining,
			}
			return tx.Create(&ptx).Error
		})
		if err != nil {
			return ledgerErrToFiber(err)
		}

		// Audit log
		userID, userName, uerr := getUserInfo(c)
		if uerr == nil {
			afterData := map[string]interface{}{
				"id":            payment.ID,
				"production_id": payment.ProductionID,
				"amount_paid":   payment.AmountPaid.InexactFloat64(),
				"remaining":     remaining.InexactFloat64(),
			}
			if logErr := audit.WriteLog(audit.LogOptions{
				UserID:      userID,
				UserName:    userName,
				EntityType:  "payment",
				EntityID:    payment.ID,
				Action:      models.AuditActionCreate,
				Description: fmt.Sprintf("Ödeme yapıldı: %s TL", payment.AmountPaid.StringFixed(2)),
				Before:      nil,
				After:       afterData,
			}); logErr != nil {
				fmt.Printf("Audit log yazılamadı: %v\n", logErr)
			}
		}

		return c.Status(fiber.StatusCreated).JSON(PaymentResponse{
			ID:             payment.ID,
			ProductionID:   payment.ProductionID,
			UserID:         production.UserID,
			SeasonID:       production.SeasonID,
			AmountPaid:     payment.AmountPaid.InexactFloat64(),
			RemainingToPay: remaining.InexactFloat64(),
			CreatedAt:      payment.CreatedAt.Format(time.RFC3339),
		})
	}
}

// GET /api/payments?production_id=...&user_id=...
func ListPaymentsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := database.DB.Model(&models.Payment{}).Preload("Production")

		productionIDStr := c.Query("production_id")
		if productionIDStr != "" {
			var pid uint
			if _, err := fmt.Sscan(productionIDStr, &pid); err != nil || pid == 0 {
				return fiber.NewError(fiber.StatusBadRequest, "production_id geçersiz")
			}
			dbq = dbq.Where("production_id = ?", pid)
		}

		userIDStr := c.Query("user_id")
		if userIDStr != "" {
			var uid uint
			if _, err := fmt.Sscan(userIDStr, &uid); err != nil || uid == 0 {
				return fiber.NewError(fiber.StatusBadRequest, "user_id geçersiz")
			}
			dbq = dbq.Where("production_id IN (?)",
				database.DB.Model(&models.Production{}).Select("id").Where("user_id = ?", uid))
		}

		var rows []models.Payment
		if err := dbq.Order("created_at desc, id desc").Find(&rows).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Ödemeler listelenemedi")
		}

		resp := make([]PaymentResponse, 0, len(rows))
		for _, r := range rows {
			var ptx models.PaymentTransaction
			remaining := 0.0
			if err := database.DB.First(&ptx, "payment_id = ?", r.ID).Error; err == nil {
				remaining = ptx.RemainingToPay.InexactFloat64()
			}
			resp = append(resp, PaymentResponse{
				ID:             r.ID,
				ProductionID:   r.ProductionID,
				UserID:         r.Production.UserID,
				SeasonID:       r.Production.SeasonID,
				AmountPaid:     r.AmountPaid.InexactFloat64(),
				RemainingToPay: remaining,
				CreatedAt:      r.CreatedAt.Format(time.RFC3339),
			})
		}

		return c.JSON(resp)
	}
}

// PUT /api/payments/:id
// Yeni mutlak tutar kasaya yazılmaz; yalnızca eski tutarla fark uzlaştırılır.
func UpdatePaymentHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")

		var payment models.Payment
		if err := database.DB.Preload("Production").First(&payment, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Ödeme bulunamadı")
		}

		var ptx models.PaymentTransaction
		if err := database.DB.First(&ptx, "payment_id = ?", payment.ID).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Ödeme dağıtım kaydı okunamadı")
		}

		var body UpdatePaymentRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}
		if body.AmountPaid <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "amount_paid 0'dan büyük olmalı")
		}

		newAmount := decimal.NewFromFloat(body.AmountPaid).Round(2)
		oldAmount := payment.AmountPaid

		// Ödeme anındaki vadesi gelen tutar anlık görüntüsü korunur
		dueSnapshot := ptx.Amount.Add(ptx.RemainingToPay)
		if newAmount.GreaterThan(dueSnapshot) {
			return fiber.NewError(fiber.StatusBadRequest,
				fmt.Sprintf("amount_paid vadesi gelen tutarı aşıyor: vadesi gelen %s", dueSnapshot.StringFixed(2)))
		}

		beforeData := map[string]interface{}{
			"amount_paid": oldAmount.InexactFloat64(),
		}

		diff := newAmount.Sub(oldAmount)

		err := database.DB.Transaction(func(tx *gorm.DB) error {
			if diff.IsPositive() {
				if err := stock.Debit(tx, payment.Production.ProductID, payment.Production.SeasonID, diff); err != nil {
					return err
				}
			} else if diff.IsNegative() {
				if err := stock.Credit(tx, payment.Production.ProductID, payment.Production.SeasonID, diff.Neg()); err != nil {
					return err
				}
			}

			payment.AmountPaid = newAmount
			if err := tx.Save(&payment).Error; err != nil {
				return err
			}

			ptx.Amount = newAmount
			ptx.RemainingToPay = dueSnapshot.Sub(newAmount)
			return tx.Save(&ptx).Error
		})
		if err != nil {
			return ledgerErrToFiber(err)
		}

		// Audit log
		userID, userName, uerr := getUserInfo(c)
		if uerr == nil {
			afterData := map[string]interface{}{
				"amount_paid": payment.AmountPaid.InexactFloat64(),
			}
			if logErr := audit.WriteLog(audit.LogOptions{
				UserID:      userID,
				UserName:    userName,
				EntityType:  "payment",
				EntityID:    payment.ID,
				Action:      models.AuditActionUpdate,
				Description: fmt.Sprintf("Ödeme güncellendi: %s TL -> %s TL", oldAmount.StringFixed(2), newAmount.StringFixed(2)),
				Before:      beforeData,
				After:       afterData,
			}); logErr != nil {
				fmt.Printf("Audit log yazılamadı: %v\n", logErr)
			}
		}

		return c.JSON(PaymentResponse{
			ID:             payment.ID,
			ProductionID:   payment.ProductionID,
			UserID:         payment.Production.UserID,
			SeasonID:       payment.Production.SeasonID,
			AmountPaid:     payment.AmountPaid.InexactFloat64(),
			RemainingToPay: ptx.RemainingToPay.InexactFloat64(),
			CreatedAt:      payment.CreatedAt.Format(time.RFC3339),
		})
	}
}

// DELETE /api/payments/:id
// Tutarın tamamı kasaya iade edilir, ödeme ve dağıtım kaydı birlikte silinir.
func DeletePaymentHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")

		var payment models.Payment
		if err := database.DB.Preload("Production").First(&payment, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Ödeme bulunamadı")
		}

		beforeData := map[string]interface{}{
			"id":            payment.ID,
			"production_id": payment.ProductionID,
			"amount_paid":   payment.AmountPaid.InexactFloat64(),
		}

		err := database.DB.Transaction(func(tx *gorm.DB) error {
			if err := stock.Credit(tx, payment.Production.ProductID, payment.Production.SeasonID, payment.AmountPaid); err != nil {
				return err
			}

			if err := tx.Where("payment_id = ?", payment.ID).Delete(&models.PaymentTransaction{}).Error; err != nil {
				return err
			}

			return tx.Delete(&payment).Error
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
				EntityType:  "payment",
				EntityID:    payment.ID,
				Action:      models.AuditActionDelete,
				Description: fmt.Sprintf("Ödeme silindi: %s TL iade edildi", payment.AmountPaid.StringFixed(2)),
				Before:      beforeData,
				After:       nil,
			}); logErr != nil {
				fmt.Printf("Audit log yazılamadı: %v\n", logErr)
			}
		}

		return c.SendStatus(fiber.StatusNoContent)
	}
}
