package registry

import (
	"fmt"
	"strings"
	"time"

	"kooperatif-backend/internal/audit"
	"kooperatif-backend/internal/auth"
	"kooperatif-backend/internal/database"
	"kooperatif-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

// -------------------------
// Request/Response Types
// -------------------------

type CreateMemberRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

type UpdateMemberRequest struct {
	Name  *string `json:"name"`
	Phone *string `json:"phone"`
}

type MemberResponse struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at"`
}

func toResponse(u models.User) MemberResponse {
	return MemberResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Phone:     u.Phone,
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
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
// Member Handlers
// -------------------------

// POST /api/members
func CreateMemberHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateMemberRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		body.Email = strings.TrimSpace(strings.ToLower(body.Email))

		if body.Name == "" || body.Email == "" || body.Password == "" {
			return fiber.NewError(fiber.StatusBadRequest, "İsim, email ve şifre zorunlu")
		}

		var count int64
		database.DB.Model(&models.User{}).Where("email = ?", body.Email).Count(&count)
		if count > 0 {
			return fiber.NewError(fiber.StatusConflict, "Bu email ile kayıtlı kullanıcı var")
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Şifre hashlenemedi")
		}

		member := models.User{
			Name:         body.Name,
			Email:        body.Email,
			Phone:        body.Phone,
			PasswordHash: string(hash),
			Role:         models.RoleMember,
		}

		if err := database.DB.Create(&member).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Üye oluşturulamadı")
		}

		// Audit log
		userID, userName, uerr := getUserInfo(c)
		if uerr == nil {
			if logErr := audit.WriteLog(audit.LogOptions{
				UserID:      userID,
				UserName:    userName,
				EntityType:  "member",
				EntityID:    member.ID,
				Action:      models.AuditActionCreate,
				Description: fmt.Sprintf("Üye eklendi: %s", member.Name),
				Before:      nil,
				After:       map[string]interface{}{"id": member.ID, "name": member.Name, "email": member.Email},
			}); logErr != nil {
				fmt.Printf("Audit log yazılamadı: %v\n", logErr)
			}
		}

		return c.Status(fiber.StatusCreated).JSON(toResponse(member))
	}
}

// GET /api/members
func ListMembersHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var rows []models.User
		if err := database.DB.Where("role = ?", models.RoleMember).
			Order("name asc").Find(&rows).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Üyeler listelenemedi")
		}

		resp := make([]MemberResponse, 0, len(rows))
		for _, r := range rows {
			resp = append(resp, toResponse(r))
		}

		return c.JSON(resp)
	}
}

// GET /api/members/:id
func GetMemberHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")

		var member models.User
		if err := database.DB.First(&member, "id = ? AND role = ?", id, models.RoleMember).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Üye bulunamadı")
		}

		return c.JSON(toResponse(member))
	}
}

// PUT /api/members/:id
func UpdateMemberHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")

		var member models.User
		if err := database.DB.First(&member, "id = ? AND role = ?", id, models.RoleMember).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Üye bulunamadı")
		}

		var body UpdateMemberRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		beforeData := map[string]interface{}{"name": member.Name, "phone": member.Phone}

		if body.Name != nil {
			name := strings.TrimSpace(*body.Name)
			if name == "" {
				return fiber.NewError(fiber.StatusBadRequest, "name boş olamaz")
			}
			member.Name = name
		}
		if body.Phone != nil {
			member.Phone = strings.TrimSpace(*body.Phone)
		}

		if err := database.DB.Save(&member).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Üye güncellenemedi")
		}

		// Audit log
		userID, userName, uerr := getUserInfo(c)
		if uerr == nil {
			if logErr := audit.WriteLog(audit.LogOptions{
				UserID:      userID,
				UserName:    userName,
				EntityType:  "member",
				EntityID:    member.ID,
				Action:      models.AuditActionUpdate,
				Description: fmt.Sprintf("Üye güncellendi: %s", member.Name),
				Before:      beforeData,
				After:       map[string]interface{}{"name": member.Name, "phone": member.Phone},
			}); logErr != nil {
				fmt.Printf("Audit log yazılamadı: %v\n", logErr)
			}
		}

		return c.JSON(toResponse(member))
	}
}

// DELETE /api/members/:id
// Alımı, borcu veya üretimi olan üye silinemez.
func DeleteMemberHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")

		var member models.User
		if err := database.DB.First(&member, "id = ? AND role = ?", id, models.RoleMember).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Üye bulunamadı")
		}

		var refCount int64
		database.DB.Model(&models.Purchase{}).Where("user_id = ?", member.ID).Count(&refCount)
		if refCount == 0 {
			database.DB.Model(&models.Loan{}).Where("user_id = ?", member.ID).Count(&refCount)
		}
		if refCount == 0 {
			database.DB.Model(&models.Production{}).Where("user_id = ?", member.ID).Count(&refCount)
		}
		if refCount == 0 {
			database.DB.Model(&models.Fee{}).Where("user_id = ?", member.ID).Count(&refCount)
		}
		if refCount > 0 {
			return fiber.NewError(fiber.StatusConflict, "Kaydı bulunan üye silinemez")
		}

		if err := database.DB.Delete(&member).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Üye silinemedi")
		}

		// Audit log
		userID, userName, uerr := getUserInfo(c)
		if uerr == nil {
			if logErr := audit.WriteLog(audit.LogOptions{
				UserID:      userID,
				UserName:    userName,
				EntityType:  "member",
				EntityID:    member.ID,
				Action:      models.AuditActionDelete,
				Description: fmt.Sprintf("Üye silindi: %s", member.Name),
				Before:      map[string]interface{}{"id": member.ID, "name": member.Name, "email": member.Email},
				After:       nil,
			}); logErr != nil {
				fmt.Printf("Audit log yazılamadı: %v\n", logErr)
			}
		}

		return c.SendStatus(fiber.StatusNoContent)
	}
}
