package catalog

import (
	"fmt"
	"strings"
	"time"

	"kooperatif-backend/internal/audit"
	"kooperatif-backend/internal/database"
	"kooperatif-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type CreateSeasonRequest struct {
	Name      string `json:"name"`
	StartDate string `json:"start_date"` // "2025-04-01"
	EndDate   string `json:"end_date"`   // "2025-10-31"
}

type UpdateSeasonRequest struct {
	Name      *string `json:"name"`
	StartDate *string `json:"start_date"`
	EndDate   *string `json:"end_date"`
}

type SeasonResponse struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

func seasonToResponse(s models.Season) SeasonResponse {
	return SeasonResponse{
		ID:        s.ID,
		Name:      s.Name,
		StartDate: s.StartDate.Format("2006-01-02"),
		EndDate:   s.EndDate.Format("2006-01-02"),
	}
}

// POST /api/seasons
func CreateSeasonHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateSeasonRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		if strings.TrimSpace(body.Name) == "" {
			return fiber.NewError(fiber.StatusBadRequest, "name zorunlu")
		}

		start, err := time.Parse("2006-01-02", body.StartDate)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "start_date formatı 'YYYY-MM-DD' olmalı")
		}
		end, err := time.Parse("2006-01-02", body.EndDate)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "end_date formatı 'YYYY-MM-DD' olmalı")
		}
		if end.Before(start) {
			return fiber.NewError(fiber.StatusBadRequest, "end_date start_date'ten önce olamaz")
		}

		season := models.Season{
			Name:      strings.TrimSpace(body.Name),
			StartDate: start,
			EndDate:   end,
		}

		if err := database.DB.Create(&season).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Sezon oluşturulamadı")
		}

		// Audit log
		userID, userName, uerr := getUserInfo(c)
		if uerr == nil {
			if logErr := audit.WriteLog(audit.LogOptions{
				UserID:      userID,
				UserName:    userName,
				EntityType:  "season",
				EntityID:    season.ID,
				Action:      models.AuditActionCreate,
				Description: fmt.Sprintf("Sezon eklendi: %s", season.Name),
				Before:      nil,
				After:       map[string]interface{}{"id": season.ID, "name": season.Name},
			}); logErr != nil {
				fmt.Printf("Audit log yazılamadı: %v\n", logErr)
			}
		}

		return c.Status(fiber.StatusCreated).JSON(seasonToResponse(season))
	}
}

// GET /api/seasons
func ListSeasonsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var rows []models.Season
		if err := database.DB.Order("start_date desc").Find(&rows).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Sezonlar listelenemedi")
		}

		resp := make([]SeasonResponse, 0, len(rows))
		for _, r := range rows {
			resp = append(resp, seasonToResponse(r))
		}

		return c.JSON(resp)
	}
}

// PUT /api/seasons/:id
func UpdateSeasonHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")

		var season models.Season
		if err := database.DB.First(&season, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Sezon bulunamadı")
		}

		var body UpdateSeasonRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		beforeData := map[string]interface{}{
			"name":       season.Name,
			"start_date": season.StartDate.Format("2006-01-02"),
			"end_date":   season.EndDate.Format("2006-01-02"),
		}

		if body.Name != nil {
			name := strings.TrimSpace(*body.Name)
			if name == "" {
				return fiber.NewError(fiber.StatusBadRequest, "name boş olamaz")
			}
			season.Name = name
		}
		if body.StartDate != nil {
			start, err := time.Parse("2006-01-02", *body.StartDate)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "start_date formatı 'YYYY-MM-DD' olmalı")
			}
			season.StartDate = start
		}
		if body.EndDate != nil {
			end, err := time.Parse("2006-01-02", *body.EndDate)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "end_date formatı 'YYYY-MM-DD' olmalı")
			}
			season.EndDate = end
		}
		if season.EndDate.Before(season.StartDate) {
			return fiber.NewError(fiber.StatusBadRequest, "end_date start_date'ten önce olamaz")
		}

		if err := database.DB.Save(&season).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Sezon güncellenemedi")
		}

		// Audit log
		userID, userName, uerr := getUserInfo(c)
		if uerr == nil {
			if logErr := audit.WriteLog(audit.LogOptions{
				UserID:      userID,
				UserName:    userName,
				EntityType:  "season",
				EntityID:    season.ID,
				Action:      models.AuditActionUpdate,
				Description: fmt.Sprintf("Sezon güncellendi: %s", season.Name),
				Before:      beforeData,
				After: map[string]interface{}{
					"name":       season.Name,
					"start_date": season.StartDate.Format("2006-01-02"),
					"end_date":   season.EndDate.Format("2006-01-02"),
				},
			}); logErr != nil {
				fmt.Printf("Audit log yazılamadı: %v\n", logErr)
			}
		}

		return c.JSON(seasonToResponse(season))
	}
}

// DELETE /api/seasons/:id
// Stok, alım veya üretim kaydı olan sezon silinemez.
func DeleteSeasonHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")

		var season models.Season
		if err := database.DB.First(&season, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Sezon bulunamadı")
		}

		var refCount int64
		database.DB.Model(&models.Stock{}).Where("season_id = ?", season.ID).Count(&refCount)
		if refCount == 0 {
			database.DB.Model(&models.Purchase{}).Where("season_id = ?", season.ID).Count(&refCount)
		}
		if refCount == 0 {
			database.DB.Model(&models.Production{}).Where("season_id = ?", season.ID).Count(&refCount)
		}
		if refCount > 0 {
			return fiber.NewError(fiber.StatusConflict, "Kaydı bulunan sezon silinemez")
		}

		if err := database.DB.Delete(&season).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Sezon silinemedi")
		}

		// Audit log
		userID, userName, uerr := getUserInfo(c)
		if uerr == nil {
			if logErr := audit.WriteLog(audit.LogOptions{
				UserID:      userID,
				UserName:    userName,
				EntityType:  "season",
				EntityID:    season.ID,
				Action:      models.AuditActionDelete,
				Description: fmt.Sprintf("Sezon silindi: %s", season.Name),
				Before:      map[string]interface{}{"id": season.ID, "name": season.Name},
				After:       nil,
			}); logErr != nil {
				fmt.Printf("Audit log yazılamadı: %v\n", logErr)
			}
		}

		return c.SendStatus(fiber.StatusNoContent)
	}
}
