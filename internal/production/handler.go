package production

import (
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

type CreateProductionRequest struct {
	UserID    uint    `json:"user_id"`
	ProductID uint    `json:"product_id"`
	SeasonID  uint    `json:"season_id"`
	Quantity  float64 `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	Date      string  `json:"date"` // "2025-12-09"
}

type UpdateProductionRequest struct {
	Quantity  *float64 `json:"quantity"`
	UnitPrice *float64 `json:"unit_price"`
	Date      *string  `json:"date"`
}

type ProductionResponse struct {
	ID          uint    `json:"id"`
	UserID      uint    `json:"user_id"`
	UserName    string  `json:"user_name"`
	ProductID   uint    `json:"product_id"`
	ProductName string  `json:"product_name"`
	SeasonID    uint    `json:"season_id"`
	SeasonName  string  `json:"season_name"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	TotalPrice  float64 `json:"total_price"`
	Date        string  `json:"date"`
}

func toResponse(p models.Production) ProductionResponse {
	return ProductionResponse{
		ID:          p.ID,
		UserID:      p.UserID,
		UserName:    p.User.Name,
		ProductID:   p.ProductID,
		ProductName: p.Product.Name,
		SeasonID:    p.SeasonID,
		SeasonName:  p.Season.Name,
		Quantity:    p.Quantity.InexactFloat64(),
		UnitPrice:   p.UnitPrice.InexactFloat64(),
		TotalPrice:  p.TotalPrice.InexactFloat64(),
		Date:        p.Date.Format("2006-01-02"),
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
// Production Handlers
// -------------------------

// POST /api/productions
func CreateProductionHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateProductionRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		if body.UserID == 0 || body.ProductID == 0 || body.SeasonID == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "user_id, product_id ve season_id zorunlu")
		}
		if body.Quantity <= 0 || body.UnitPrice <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "quantity ve unit_price 0'dan büyük olmalı")
		}

		d, err := time.Parse("2006-01-02", body.Date)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Tarih formatı 'YYYY-MM-DD' olmalı")
		}

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

		production := models.Production{
			UserID:     body.UserID,
			ProductID:  body.ProductID,
			SeasonID:   body.SeasonID,
			Quantity:   quantity,
			UnitPrice:  unitPrice,
			TotalPrice: totalPrice,
			Date:       d,
		}

		// Üretim kaydı + envanter girişi tek transaction'da; kova yoksa açılır
		err = database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&production).Error; err != nil {
				return err
			}
			return stock.AddInventory(tx, production.ProductID, production.SeasonID, quantity, totalPrice)
		})
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Üretim kaydedilemedi")
		}

		// Audit log
		userID, userName, uerr := getUserInfo(c)
		if uerr == nil {
			afterData := map[string]interface{}{
				"id":          production.ID,
				"user_id":     production.UserID,
				"product_id":  production.ProductID,
				"season_id":   production.SeasonID,
				"quantity":    production.Quantity.InexactFloat64(),
				"unit_price":  production.UnitPrice.InexactFloat64(),
				"total_price": production.TotalPrice.InexactFloat64(),
				"date":        production.Date.Format("2006-01-02"),
			}
			if logErr := audit.WriteLog(audit.LogOptions{
				UserID:      userID,
				UserName:    userName,
				EntityType:  "production",
				EntityID:    production.ID,
				Action:      models.AuditActionCreate,
				Description: fmt.Sprintf("Üretim eklendi: %s - %s %s - %s TL", member.Name, production.Quantity.StringFixed(2), product.Unit, production.TotalPrice.StringFixed(2)),
				Before:      nil,
				After:       afterData,
			}); logErr != nil {
				fmt.Printf("Audit log yazılamadı: %v\n", logErr)
			}
		}

		production.User = member
		production.Product = product
		production.Season = season
		return c.Status(fiber.StatusCreated).JSON(toResponse(production))
	}
}

// GET /api/productions?user_id=...&season_id=...
func ListProductionsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := database.DB.Model(&models.Production{}).
			Preload("User").
			Preload("Product").
			Preload("Season")

		userIDStr := c.Query("user_id")
		if userIDStr != "" {
			var uid uint
			if _, err := fmt.Sscan(userIDStr, &uid); err != nil || uid == 0 {
				return fiber.NewError(fiber.StatusBadRequest, "user_id geçersiz")
			}
			dbq = dbq.Where("user_id = ?", uid)
		}

		seasonIDStr := c.Query("season_id")
		if seasonIDStr != "" {
			var sid uint
			if _, err := fmt.Sscan(seasonIDStr, &sid); err != nil || sid == 0 {
				return fiber.NewError(fiber.StatusBadRequest, "season_id geçersiz")
			}
			dbq = dbq.Where("season_id = ?", sid)
		}

		var rows []models.Production
		if err := dbq.Order("date desc, id desc").Find(&rows).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Üretimler listelenemedi")
		}

		resp := make([]ProductionResponse, 0, len(rows))
		for _, r := range rows {
			resp = append(resp, toResponse(r))
		}

		return c.JSON(resp)
	}
}

// PUT /api/productions/:id
func UpdateProductionHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")

		var production models.Production
		if err := database.DB.Preload("User").Preload("Product").Preload("Season").
			First(&production, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Üretim kaydı bulunamadı")
		}

		// Ödeme yapılmış üretim değiştirilemez; önce ödemelerin silinmesi gerekir
		var paymentCount int64
		database.DB.Model(&models.Payment{}).Where("production_id = ?", production.ID).Count(&paymentCount)
		if paymentCount > 0 {
			return fiber.NewError(fiber.StatusConflict, "Ödeme yapılmış üretim güncellenemez")
		}

		var body UpdateProductionRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		beforeData := map[string]interface{}{
			"quantity":    production.Quantity.InexactFloat64(),
			"unit_price":  production.UnitPrice.InexactFloat64(),
			"total_price": production.TotalPrice.InexactFloat64(),
			"date":        production.Date.Format("2006-01-02"),
		}

		newQuantity := production.Quantity
		newUnitPrice := production.UnitPrice

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
		if body.Date != nil {
			d, err := time.Parse("2006-01-02", *body.Date)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "Tarih formatı 'YYYY-MM-DD' olmalı")
			}
			production.Date = d
		}

		newTotal := newQuantity.Mul(newUnitPrice).Round(2)
		qtyDelta := newQuantity.Sub(production.Quantity)
		priceDelta := newTotal.Sub(production.TotalPrice)

		err := database.DB.Transaction(func(tx *gorm.DB) error {
			if !qtyDelta.IsZero() || !priceDelta.IsZero() {
				if err := stock.AddInventory(tx, production.ProductID, production.SeasonID, qtyDelta, priceDelta); err != nil {
					return err
				}
			}

			production.Quantity = newQuantity
			production.UnitPrice = newUnitPrice
			production.TotalPrice = newTotal
			return tx.Save(&production).Error
		})
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Üretim güncellenemedi")
		}

		// Audit log
		userID, userName, uerr := getUserInfo(c)
		if uerr == nil {
			afterData := map[string]interface{}{
				"quantity":    production.Quantity.InexactFloat64(),
				"unit_price":  production.UnitPrice.InexactFloat64(),
				"total_price": production.TotalPrice.InexactFloat64(),
				"date":        production.Date.Format("2006-01-02"),
			}
			if logErr := audit.WriteLog(audit.LogOptions{
				UserID:      userID,
				UserName:    userName,
				EntityType:  "production",
				EntityID:    production.ID,
				Action:      models.AuditActionUpdate,
				Description: fmt.Sprintf("Üretim güncellendi: %s TL", production.TotalPrice.StringFixed(2)),
				Before:      beforeData,
				After:       afterData,
			}); logErr != nil {
				fmt.Printf("Audit log yazılamadı: %v\n", logErr)
			}
		}

		return c.JSON(toResponse(production))
	}
}

// DELETE /api/productions/:id
func DeleteProductionHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")

		var production models.Production
		if err := database.DB.Preload("User").Preload("Product").
			First(&production, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Üretim kaydı bulunamadı")
		}

		var paymentCount int64
		database.DB.Model(&models.Payment{}).Where("production_id = ?", production.ID).Count(&paymentCount)
		if paymentCount > 0 {
			return fiber.NewError(fiber.StatusConflict, "Ödeme yapılmış üretim silinemez")
		}

		beforeData := map[string]interface{}{
			"id":          production.ID,
			"user_id":     production.UserID,
			"product_id":  production.ProductID,
			"season_id":   production.SeasonID,
			"quantity":    production.Quantity.InexactFloat64(),
			"total_price": production.TotalPrice.InexactFloat64(),
		}

		err := database.DB.Transaction(func(tx *gorm.DB) error {
			if err := stock.AddInventory(tx, production.ProductID, production.SeasonID,
				production.Quantity.Neg(), production.TotalPrice.Neg()); err != nil {
				return err
			}
			return tx.Delete(&production).Error
		})
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Üretim silinemedi")
		}

		// Audit log
		userID, userName, uerr := getUserInfo(c)
		if uerr == nil {
			if logErr := audit.WriteLog(audit.LogOptions{
				UserID:      userID,
				UserName:    userName,
				EntityType:  "production",
				EntityID:    production.ID,
				Action:      models.AuditActionDelete,
				Description: fmt.Sprintf("Üretim silindi: %s - %s TL", production.Product.Name, production.TotalPrice.StringFixed(2)),
				Before:      beforeData,
				After:       nil,
			}); logErr != nil {
				fmt.Printf("Audit log yazılamadı: %v\n", logErr)
			}
		}

		return c.SendStatus(fiber.StatusNoContent)
	}
}
