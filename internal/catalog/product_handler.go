package catalog

import (
	"fmt"
	"strings"

	"kooperatif-backend/internal/audit"
	"kooperatif-backend/internal/auth"
	"kooperatif-backend/internal/database"
	"kooperatif-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

// -------------------------
// Request/Response Types
// -------------------------

type CreateProductRequest struct {
	Name string `json:"name"`
	Unit string `json:"unit"` // kg / ton / adet / litre
}

type UpdateProductRequest struct {
	Name *string `json:"name"`
	Unit *string `json:"unit"`
}

type ProductResponse struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
	Unit string `json:"unit"`
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
// Product Handlers
// -------------------------

// POST /api/products
func CreateProductHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateProductRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		if strings.TrimSpace(body.Name) == "" || strings.TrimSpace(body.Unit) == "" {
			return fiber.NewError(fiber.StatusBadRequest, "name ve unit zorunlu")
		}

		product := models.Product{
			Name: strings.TrimSpace(body.Name),
			Unit: strings.TrimSpace(body.Unit),
		}

		if err := database.DB.Create(&product).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Ürün oluşturulamadı")
		}

		// Audit log
		userID, userName, uerr := getUserInfo(c)
		if uerr == nil {
			if logErr := audit.WriteLog(audit.LogOptions{
				UserID:      userID,
				UserName:    userName,
				EntityType:  "product",
				EntityID:    product.ID,
				Action:      models.AuditActionCreate,
				Description: fmt.Sprintf("Ürün eklendi: %s", product.Name),
				Before:      nil,
				After:       map[string]interface{}{"id": product.ID, "name": product.Name, "unit": product.Unit},
			}); logErr != nil {
				fmt.Printf("Audit log yazılamadı: %v\n", logErr)
			}
		}

		return c.Status(fiber.StatusCreated).JSON(ProductResponse{ID: product.ID, Name: product.Name, Unit: product.Unit})
	}
}

// GET /api/products
func ListProductsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var rows []models.Product
		if err := database.DB.Order("name asc").Find(&rows).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Ürünler listelenemedi")
		}

		resp := make([]ProductResponse, 0, len(rows))
		for _, r := range rows {
			resp = append(resp, ProductResponse{ID: r.ID, Name: r.Name, Unit: r.Unit})
		}

		return c.JSON(resp)
	}
}

// PUT /api/products/:id
func UpdateProductHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")

		var product models.Product
		if err := database.DB.First(&product, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Ürün bulunamadı")
		}

		var body UpdateProductRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		beforeData := map[string]interface{}{"name": product.Name, "unit": product.Unit}

		if body.Name != nil {
			name := strings.TrimSpace(*body.Name)
			if name == "" {
				return fiber.NewError(fiber.StatusBadRequest, "name boş olamaz")
			}
			product.Name = name
		}
		if body.Unit != nil {
			unit := strings.TrimSpace(*body.Unit)
			if unit == "" {
				return fiber.NewError(fiber.StatusBadRequest, "unit boş olamaz")
			}
			product.Unit = unit
		}

		if err := database.DB.Save(&product).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Ürün güncellenemedi")
		}

		// Audit log
		userID, userName, uerr := getUserInfo(c)
		if uerr == nil {
			if logErr := audit.WriteLog(audit.LogOptions{
				UserID:      userID,
				UserName:    userName,
				EntityType:  "product",
				EntityID:    product.ID,
				Action:      models.AuditActionUpdate,
				Description: fmt.Sprintf("Ürün güncellendi: %s", product.Name),
				Before:      beforeData,
				After:       map[string]interface{}{"name": product.Name, "unit": product.Unit},
			}); logErr != nil {
				fmt.Printf("Audit log yazılamadı: %v\n", logErr)
			}
		}

		return c.JSON(ProductResponse{ID: product.ID, Name: product.Name, Unit: product.Unit})
	}
}

// DELETE /api/products/:id
// Stok, alım veya üretim kaydı olan ürün silinemez.
func DeleteProductHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")

		var product models.Product
		if err := database.DB.First(&product, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Ürün bulunamadı")
		}

		var refCount int64
		database.DB.Model(&models.Stock{}).Where("product_id = ?", product.ID).Count(&refCount)
		if refCount == 0 {
			database.DB.Model(&models.Purchase{}).Where("product_id = ?", product.ID).Count(&refCount)
		}
		if refCount == 0 {
			database.DB.Model(&models.Production{}).Where("product_id = ?", product.ID).Count(&refCount)
		}
		if refCount > 0 {
			return fiber.NewError(fiber.StatusConflict, "Kaydı bulunan ürün silinemez")
		}

		if err := database.DB.Delete(&product).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Ürün silinemedi")
		}

		// Audit log
		userID, userName, uerr := getUserInfo(c)
		if uerr == nil {
			if logErr := audit.WriteLog(audit.LogOptions{
				UserID:      userID,
				UserName:    userName,
				EntityType:  "product",
				EntityID:    product.ID,
				Action:      models.AuditActionDelete,
				Description: fmt.Sprintf("Ürün silindi: %s", product.Name),
				Before:      map[string]interface{}{"id": product.ID, "name": product.Name},
				After:       nil,
			}); logErr != nil {
				fmt.Printf("Audit log yazılamadı: %v\n", logErr)
			}
		}

		return c.SendStatus(fiber.StatusNoContent)
	}
}
