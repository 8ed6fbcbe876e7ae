package fee

import (
	"fmt"
	"strings"
	"time"

	"kooperatif-backend/internal/audit"
	"kooperatif-backend/internal/auth"
	"kooperatif-backend/internal/database"
	"kooperatif-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

// -------------------------
// Request/Response Types
// -------------------------

type CreateFeeRequest struct {
	UserID     uint    `json:"user_id"`
	Name       string  `json:"name"`
	AmountOwed float64 `json:"amount_owed"`
}

type UpdateFeeRequest struct {
	Name       *string  `json:"name"`
	AmountOwed *float64 `json:"amount_owed"`
}

type PayFeeRequest struct {
	Amount float64 `json:"amount"`
}

type FeeResponse struct {
	ID              uint    `json:"id"`
	UserID          uint    `json:"user_id"`
	UserName        string  `json:"user_name"`
	Name            string  `json:"name"`
	AmountOwed      float64 `json:"amount_owed"`
	AmountPaid      float64 `json:"amount_paid"`
	RemainingAmount float64 `json:"remaining_amount"`
	CreatedAt       string  `json:"created_at"`
}

func toResponse(f models.Fee) FeeResponse {
	return FeeResponse{
		ID:              f.ID,
		UserID:          f.UserID,
		UserName:        f.User.Name,
		Name:            f.Name,
		AmountOwed:      f.AmountOwed.InexactFloat64(),
		AmountPaid:      f.AmountPaid.InexactFloat64(),
		RemainingAmount: f.AmountOwed.Sub(f.AmountPaid).InexactFloat64(),
		CreatedAt:       f.CreatedAt.Format(time.RFC3339),
	}
}

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

// -------------------------
// Fee Handlers
// -------------------------

// POST /api/fees
func CreateFeeHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateFeeRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		if body.UserID == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "user_id zorunlu")
		}
		if strings.TrimSpace(body.Name) == "" {
			return fiber.NewError(fiber.StatusBadRequest, "name boş olamaz")
		}
		if body.AmountOwed <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "amount_owed 0'dan büyük olmalı")
		}

		var member models.User
		if err := database.DB.First(&member, "id = ?", body.UserID).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Üye bulunamadı")
		}

		fee := models.Fee{
			UserID:     body.UserID,
			Name:       strings.TrimSpace(body.Name),
			AmountOwed: decimal.NewFromFloat(body.AmountOwed).Round(2),
			AmountPaid: decimal.Zero,
		}

		if err := database.DB.Create(&fee).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Aidat kaydedilemedi")
		}

		// Audit log
		userID, userName, uerr := getUserInfo(c)
		if uerr == nil {
			afterData := map[string]interface{}{
				"id":          fee.ID,
				"user_id":     fee.UserID,
				"name":        fee.Name,
				"amount_owed": fee.AmountOwed.InexactFloat64(),
			}
			if logErr := audit.WriteLog(audit.LogOptions{
				UserID:      userID,
				UserName:    userName,
				EntityType:  "fee",
				EntityID:    fee.ID,
				Action:      models.AuditActionCreate,
				Description: fmt.Sprintf("Aidat eklendi: %s - %s - %s TL", member.Name, fee.Name, fee.AmountOwed.StringFixed(2)),
				Before:      nil,
				After:       afterData,
			}); logErr != nil {
				fmt.Printf("Audit log yazılamadı: %v\n", logErr)
			}
		}

		fee.User = member
		return c.Status(fiber.StatusCreated).JSON(toResponse(fee))
	}
}

// GET /api/fees?user_id=...
func ListFeesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := database.DB.Model(&models.Fee{}).Preload("User")

		userIDStr := c.Query("user_id")
		if userIDStr != "" {
			var uid uint
			if _, err := fmt.Sscan(userIDStr, &uid); err != nil || uid == 0 {
				return fiber.NewError(fiber.StatusBadRequest, "user_id geçersiz")
			}
			dbq = dbq.Where("user_id = ?", uid)
		}

		var rows []models.Fee
		if err := dbq.Order("created_at desc, id desc").Find(&rows).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Aidatlar listelenemedi")
		}

		resp := make([]FeeResponse, 0, len(rows))
		for _, r := range rows {
			resp = append(resp, toResponse(r))
		}

		return c.JSON(resp)
	}
}

// PUT /api/fees/:id
func UpdateFeeHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")

		var fee models.Fee
		if err := database.DB.Preload("User").First(&fee, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Aidat bulunamadı")
		}

		var body UpdateFeeRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		beforeData := map[string]interface{}{
			"name":        fee.Name,
			"amount_owed": fee.AmountOwed.InexactFloat64(),
		}

		if body.Name != nil {
			name := strings.TrimSpace(*body.Name)
			if name == "" {
				return fiber.NewError(fiber.StatusBadRequest, "name boş olamaz")
			}
			fee.Name = name
		}

		if body.AmountOwed != nil {
			if *body.AmountOwed <= 0 {
				return fiber.NewError(fiber.StatusBadRequest, "amount_owed 0'dan büyük olmalı")
			}
			newOwed := decimal.NewFromFloat(*body.AmountOwed).Round(2)
			// Ödenmiş tutarın altına düşürülemez
			if newOwed.LessThan(fee.AmountPaid) {
				return fiber.NewError(fiber.StatusBadRequest, "amount_owed ödenmiş tutarın altına indirilemez")
			}
			fee.AmountOwed = newOwed
		}

		if err := database.DB.Save(&fee).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Aidat güncellenemedi")
		}

		// Audit log
		userID, userName, uerr := getUserInfo(c)
		if uerr == nil {
			afterData := map[string]interface{}{
				"name":        fee.Name,
				"amount_owed": fee.AmountOwed.InexactFloat64(),
			}
			if logErr := audit.WriteLog(audit.LogOptions{
				UserID:      userID,
				UserName:    userName,
				EntityType:  "fee",
				EntityID:    fee.ID,
				Action:      models.AuditActionUpdate,
				Description: fmt.Sprintf("Aidat güncellendi: %s", fee.Name),
				Before:      beforeData,
				After:       afterData,
			}); logErr != nil {
				fmt.Printf("Audit log yazılamadı: %v\n", logErr)
			}
		}

		return c.JSON(toResponse(fee))
	}
}

// POST /api/fees/:id/pay
// Kısmi aidat tahsilatı; kalan tutar hiçbir zaman negatife düşmez.
func PayFeeHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")

		var fee models.Fee
		if err := database.DB.Preload("User").First(&fee, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Aidat bulunamadı")
		}

		var body PayFeeRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}
		if body.Amount <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "amount 0'dan büyük olmalı")
		}

		amount := decimal.NewFromFloat(body.Amount).Round(2)
		remaining := fee.AmountOwed.Sub(fee.AmountPaid)
		if amount.GreaterThan(remaining) {
			return fiber.NewError(fiber.StatusBadRequest,
				fmt.Sprintf("amount kalan tutarı aşıyor: kalan %s", remaining.StringFixed(2)))
		}

		beforeData := map[string]interface{}{
			"amount_paid": fee.AmountPaid.InexactFloat64(),
		}

		fee.AmountPaid = fee.AmountPaid.Add(amount)
		if err := database.DB.Save(&fee).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Tahsilat kaydedilemedi")
		}

		// Audit log
		userID, userName, uerr := getUserInfo(c)
		if uerr == nil {
			afterData := map[string]interface{}{
				"amount_paid": fee.AmountPaid.InexactFloat64(),
			}
			if logErr := audit.WriteLog(audit.LogOptions{
				UserID:      userID,
				UserName:    userName,
				EntityType:  "fee",
				EntityID:    fee.ID,
				Action:      models.AuditActionUpdate,
				Description: fmt.Sprintf("Aidat tahsilatı: %s - %s TL", fee.Name, amount.StringFixed(2)),
				Before:      beforeData,
				After:       afterData,
			}); logErr != nil {
				fmt.Printf("Audit log yazılamadı: %v\n", logErr)
			}
		}

		return c.JSON(toResponse(fee))
	}
}

// DELETE /api/fees/:id
func DeleteFeeHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")

		var fee models.Fee
		if err := database.DB.Preload("User").First(&fee, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Aidat bulunamadı")
		}

		beforeData := map[string]interface{}{
			"id":          fee.ID,
			"user_id":     fee.UserID,
			"name":        fee.Name,
			"amount_owed": fee.AmountOwed.InexactFloat64(),
			"amount_paid": fee.AmountPaid.InexactFloat64(),
		}

		if err := database.DB.Delete(&fee).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Aidat silinemedi")
		}

		// Audit log
		userID, userName, uerr := getUserInfo(c)
		if uerr == nil {
			if logErr := audit.WriteLog(audit.LogOptions{
				UserID:      userID,
				UserName:    userName,
				EntityType:  "fee",
				EntityID:    fee.ID,
				Action:      models.AuditActionDelete,
				Description: fmt.Sprintf("Aidat silindi: %s", fee.Name),
				Before:      beforeData,
				After:       nil,
			}); logErr != nil {
				fmt.Printf("Audit log yazılamadı: %v\n", logErr)
			}
		}

		return c.SendStatus(fiber.StatusNoContent)
	}
}
