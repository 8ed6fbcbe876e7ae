package stock

import (
	"fmt"

	"kooperatif-backend/internal/database"
	"kooperatif-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

// -------------------------
// Request/Response Types
// -------------------------

type StockResponse struct {
	ID          uint    `json:"id"`
	ProductID   uint    `json:"product_id"`
	ProductName string  `json:"product_name"`
	ProductUnit string  `json:"product_unit"`
	SeasonID    uint    `json:"season_id"`
	SeasonName  string  `json:"season_name"`
	Cash        float64 `json:"cash"`
	Quantity    float64 `json:"quantity"`
	TotalPrice  float64 `json:"total_price"`
}

func toResponse(s models.Stock) StockResponse {
	return StockResponse{
		ID:          s.ID,
		ProductID:   s.ProductID,
		ProductName: s.Product.Name,
		ProductUnit: s.Product.Unit,
		SeasonID:    s.SeasonID,
		SeasonName:  s.Season.Name,
		Cash:        s.Cash.InexactFloat64(),
		Quantity:    s.Quantity.InexactFloat64(),
		TotalPrice:  s.TotalPrice.InexactFloat64(),
	}
}

// GET /api/stocks?season_id=...
func ListStocksHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := database.DB.Model(&models.Stock{}).
			Preload("Product").
			Preload("Season")

		seasonIDStr := c.Query("season_id")
		if seasonIDStr != "" {
			var sid uint
			if _, err := fmt.Sscan(seasonIDStr, &sid); err != nil || sid == 0 {
				return fiber.NewError(fiber.StatusBadRequest, "season_id geçersiz")
			}
			dbq = dbq.Where("season_id = ?", sid)
		}

		var rows []models.Stock
		if err := dbq.Order("id desc").Find(&rows).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Stoklar listelenemedi")
		}

		resp := make([]StockResponse, 0, len(rows))
		for _, r := range rows {
			resp = append(resp, toResponse(r))
		}

		return c.JSON(resp)
	}
}

// GET /api/stocks/detail?product_id=...&season_id=...
func GetStockHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var pid, sid uint
		if _, err := fmt.Sscan(c.Query("product_id"), &pid); err != nil || pid == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "product_id geçersiz")
		}
		if _, err := fmt.Sscan(c.Query("season_id"), &sid); err != nil || sid == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "season_id geçersiz")
		}

		var s models.Stock
		if err := database.DB.Preload("Product").Preload("Season").
			First(&s, "product_id = ? AND season_id = ?", pid, sid).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Stok kaydı bulunamadı")
		}

		return c.JSON(toResponse(s))
	}
}
