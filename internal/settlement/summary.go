package settlement

import (
	"errors"

	"kooperatif-backend/internal/loan"
	"kooperatif-backend/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrProductionNotFound = errors.New("üretim kaydı bulunamadı")
	ErrProductionMismatch = errors.New("üretim kaydı verilen üye/sezon ile eşleşmiyor")
)

// Summary - Üyenin bir üretim teslimi için net ödenecek tutar özeti.
// Her istekte taze hesaplanır, hiçbir yan etkisi yoktur; aidatlar, borçlar ve
// önceki eksik ödemeler brüt üretim değerinden düşülür. AmountDue negatifse
// üyenin borcu üretim değerini aşıyor demektir; sıfıra yuvarlanmaz.
type Summary struct {
	UserID       uint
	SeasonID     uint
	ProductionID uint

	ProductionTotal   decimal.Decimal
	FeesDue           decimal.Decimal
	LoansDue          decimal.Decimal
	PreviousRemaining decimal.Decimal
	AmountDue         decimal.Decimal
}

func BuildSummary(db *gorm.DB, userID, seasonID, productionID uint) (*Summary, error) {
	var production models.Production
	if err := db.First(&production, "id = ?", productionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductionNotFound
		}
		return nil, err
	}
	if production.UserID != userID || production.SeasonID != seasonID {
		return nil, ErrProductionMismatch
	}

	// Aidatlardan kalan
	var feesDue decimal.Decimal
	if err := db.Model(&models.Fee{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(amount_owed - amount_paid), 0)").
		Scan(&feesDue).Error; err != nil {
		return nil, err
	}

	// Açık borçlar (faiz dahil), sezona filtreli
	var loans []models.Loan
	if err := db.Where("user_id = ? AND season_id = ? AND status = ?",
		userID, seasonID, models.LoanStatusPending).
		Find(&loans).Error; err != nil {
		return nil, err
	}
	loansDue := decimal.Zero
	for _, l := range loans {
		loansDue = loansDue.Add(loan.TotalDue(l))
	}

	// Önceki ödemelerde açık kalan tutarlar
	var previousRemaining decimal.Decimal
	if err := db.Model(&models.PaymentTransaction{}).
		Where("user_id = ? AND season_id = ?", userID, seasonID).
		Select("COALESCE(SUM(remaining_to_pay), 0)").
		Scan(&previousRemaining).Error; err != nil {
		return nil, err
	}

	s := &Summary{
		UserID:            userID,
		SeasonID:          seasonID,
		ProductionID:      productionID,
		ProductionTotal:   production.TotalPrice,
		FeesDue:           feesDue,
		LoansDue:          loansDue,
		PreviousRemaining: previousRemaining,
	}
	s.AmountDue = s.ProductionTotal.Sub(s.FeesDue).Sub(s.LoansDue).Sub(s.PreviousRemaining)
	return s, nil
}
