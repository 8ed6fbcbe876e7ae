package loan

import (
	"fmt"
	"time"

	"kooperatif-backend/internal/audit"
	"kooperatif-backend/internal/auth"
	"kooperatif-backend/internal/database"
	"kooperatif-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// -------------------------
// Request/Response Types
// -------------------------

type LoanResponse struct {
	ID             uint    `json:"id"`
	PurchaseID     uint    `json:"purchase_id"`
	UserID         uint    `json:"user_id"`
	UserName       string  `json:"user_name"`
	ProductID      uint    `json:"product_id"`
	ProductName    string  `json:"product_name"`
	SeasonID       uint    `json:"season_id"`
	Quantity       float64 `json:"quantity"`
	AmountOwed     float64 `json:"amount_owed"`
	Interest       float64 `json:"interest"`
	InterestAmount float64 `json:"interest_amount"`
	TotalDue       float64 `json:"total_due"`
	Status         string  `json:"status"`
	CreatedAt      string  `json:"created_at"`
}

type OutstandingResponse struct {
	Loans     []LoanResponse `json:"loans"`
	TotalOwed float64        `json:"total_owed"` // faiz dahil toplam
}

// TotalDue - Kalan anapara + basit faiz. Faiz yalnızca bakiye kaldığı sürece işler.
func TotalDue(l models.Loan) decimal.Decimal {
	if l.Status == models.LoanStatusRepaid || !l.AmountOwed.IsPositive() {
		return decimal.Zero
	}
	interestAmount := l.AmountOwed.Mul(l.Interest).Div(decimal.NewFromInt(100)).Round(2)
	return l.AmountOwed.Add(interestAmount)
}

func toResponse(l models.Loan) LoanResponse {
	due := TotalDue(l)
	return LoanResponse{
		ID:             l.ID,
		PurchaseID:     l.PurchaseID,
		UserID:         l.UserID,
		UserName:       l.User.Name,
		ProductID:      l.ProductID,
		ProductName:    l.Product.Name,
		SeasonID:       l.SeasonID,
		Quantity:       l.Quantity.InexactFloat64(),
		AmountOwed:     l.AmountOwed.InexactFloat64(),
		Interest:       l.Interest.InexactFloat64(),
		InterestAmount: due.Sub(l.AmountOwed).InexactFloat64(),
		TotalDue:       due.InexactFloat64(),
		Status:         string(l.Status),
		CreatedAt:      l.CreatedAt.Format(time.RFC3339),
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
// Loan Handlers
// -------------------------

// GET /api/loans?user_id=...&season_id=...&status=...
func ListLoansHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := database.DB.Model(&models.Loan{}).
			Preload("User").
			Preload("Product")

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

		statusStr := c.Query("status")
		if statusStr != "" {
			if statusStr != string(models.LoanStatusPending) && statusStr != string(models.LoanStatusRepaid) {
				return fiber.NewError(fiber.StatusBadRequest, "status 'pending' veya 'repaid' olmalı")
			}
			dbq = dbq.Where("status = ?", statusStr)
		}

		var rows []models.Loan
		if err := dbq.Order("created_at desc, id desc").Find(&rows).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Borçlar listelenemedi")
		}

		resp := make([]LoanResponse, 0, len(rows))
		for _, r := range rows {
			resp = append(resp, toResponse(r))
		}

		return c.JSON(resp)
	}
}

// GET /api/loans/outstanding?user_id=...&season_id=...
func OutstandingLoansHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var uid uint
		if _, err := fmt.Sscan(c.Query("user_id"), &uid); err != nil || uid == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "user_id geçersiz")
		}

		dbq := database.DB.Model(&models.Loan{}).
			Preload("User").
			Preload("Product").
			Where("user_id = ? AND status = ?", uid, models.LoanStatusPending)

		seasonIDStr := c.Query("season_id")
		if seasonIDStr != "" {
			var sid uint
			if _, err := fmt.Sscan(seasonIDStr, &sid); err != nil || sid == 0 {
				return fiber.NewError(fiber.StatusBadRequest, "season_id geçersiz")
			}
			dbq = dbq.Where("season_id = ?", sid)
		}

		var rows []models.Loan
		if err := dbq.Order("created_at asc, id asc").Find(&rows).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Borçlar listelenemedi")
		}

		resp := OutstandingResponse{Loans: make([]LoanResponse, 0, len(rows))}
		total := decimal.Zero
		for _, r := range rows {
			resp.Loans = append(resp.Loans, toResponse(r))
			total = total.Add(TotalDue(r))
		}
		resp.TotalOwed = total.InexactFloat64()

		return c.JSON(resp)
	}
}

// POST /api/loans/:id/repay
// Kısmi tahsilat yok: borç tek seferde, faiziyle birlikte kapatılır.
func RepayLoanHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")

		var loan models.Loan
		if err := database.DB.Preload("User").Preload("Product").
			First(&loan, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Borç bulunamadı")
		}

		if loan.Status == models.LoanStatusRepaid {
			return fiber.NewError(fiber.StatusConflict, "Borç zaten kapatılmış")
		}

		due := TotalDue(loan)
		beforeData := map[string]interface{}{
			"amount_owed": loan.AmountOwed.InexactFloat64(),
			"status":      string(loan.Status),
		}

		err := database.DB.Transaction(func(tx *gorm.DB) error {
			loanTx := models.LoanTransaction{
				LoanID:         loan.ID,
				Amount:         due,
				RemainingToPay: decimal.Zero,
			}
			if err := tx.Create(&loanTx).Error; err != nil {
				return err
			}

			loan.Status = models.LoanStatusRepaid
			loan.AmountOwed = decimal.Zero
			if err := tx.Save(&loan).Error; err != nil {
				return err
			}

			// Alım kaydı da tahsilatla tutarlı kalmalı
			return tx.Model(&models.Purchase{}).
				Where("id = ?", loan.PurchaseID).
				Updates(map[string]interface{}{
					"amount_paid":      gorm.Expr("total_price"),
					"amount_remaining": decimal.Zero,
					"status":           models.PurchaseStatusPaid,
				}).Error
		})
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Tahsilat kaydedilemedi")
		}

		// Audit log
		userID, userName, uerr := getUserInfo(c)
		if uerr == nil {
			afterData := map[string]interface{}{
				"amount_owed": 0,
				"repaid":      due.InexactFloat64(),
				"status":      string(models.LoanStatusRepaid),
			}
			if logErr := audit.WriteLog(audit.LogOptions{
				UserID:      userID,
				UserName:    userName,
				EntityType:  "loan",
				EntityID:    loan.ID,
				Action:      models.AuditActionUpdate,
				Description: fmt.Sprintf("Borç kapatıldı: %s - %s TL", loan.User.Name, due.StringFixed(2)),
				Before:      beforeData,
				After:       afterData,
			}); logErr != nil {
				fmt.Printf("Audit log yazılamadı: %v\n", logErr)
			}
		}

		return c.JSON(toResponse(loan))
	}
}
