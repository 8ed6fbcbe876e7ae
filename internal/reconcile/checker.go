package reconcile

import (
	"fmt"

	"kooperatif-backend/internal/models"

	"gorm.io/gorm"
)

// Issue - Tutarlılık kontrolünde bulunan tek bir ihlal.
type Issue struct {
	Entity   string
	EntityID uint
	Problem  string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s #%d: %s", i.Entity, i.EntityID, i.Problem)
}

// Check - Tüm mağaza üzerindeki çapraz-kayıt değişmezlerini doğrular.
// Alım aritmetiği, borç-alım eşleşmesi, kasa bakiyesi, aidat ve ödeme
// dağıtım kayıtları kontrol edilir. Testlerde her mutasyondan sonra
// çağrılarak örtük tutarlılık varsayımları açık hale getirilir.
func Check(db *gorm.DB) ([]Issue, error) {
	var issues []Issue

	// Alım aritmetiği: remaining = total - paid, remaining >= 0, status eşleşmesi
	var purchases []models.Purchase
	if err := db.Find(&purchases).Error; err != nil {
		return nil, err
	}
	for _, p := range purchases {
		expected := p.TotalPrice.Sub(p.AmountPaid)
		if !p.AmountRemaining.Equal(expected) {
			issues = append(issues, Issue{"purchase", p.ID,
				fmt.Sprintf("amount_remaining %s, beklenen %s", p.AmountRemaining.StringFixed(2), expected.StringFixed(2))})
		}
		if p.AmountRemaining.IsNegative() {
			issues = append(issues, Issue{"purchase", p.ID, "amount_remaining negatif"})
		}
		wantLoan := p.AmountRemaining.IsPositive()
		if wantLoan != (p.Status == models.PurchaseStatusLoan) {
			issues = append(issues, Issue{"purchase", p.ID,
				fmt.Sprintf("status %s, kalan tutar %s ile uyumsuz", p.Status, p.AmountRemaining.StringFixed(2))})
		}
	}

	// Borç-alım tutarlılığı
	var loans []models.Loan
	if err := db.Find(&loans).Error; err != nil {
		return nil, err
	}
	purchaseByID := make(map[uint]models.Purchase, len(purchases))
	for _, p := range purchases {
		purchaseByID[p.ID] = p
	}
	loanByPurchase := make(map[uint]bool, len(loans))
	for _, l := range loans {
		p, ok := purchaseByID[l.PurchaseID]
		if !ok {
			issues = append(issues, Issue{"loan", l.ID, "kaynak alım kaydı yok"})
			continue
		}
		loanByPurchase[l.PurchaseID] = l.Status == models.LoanStatusPending

		switch l.Status {
		case models.LoanStatusPending:
			if !l.AmountOwed.Equal(p.AmountRemaining) {
				issues = append(issues, Issue{"loan", l.ID,
					fmt.Sprintf("amount_owed %s, alımın kalanı %s", l.AmountOwed.StringFixed(2), p.AmountRemaining.StringFixed(2))})
			}
			if p.Status != models.PurchaseStatusLoan {
				issues = append(issues, Issue{"loan", l.ID, "açık borcun alımı 'loan' durumunda değil"})
			}
		case models.LoanStatusRepaid:
			if !l.AmountOwed.IsZero() {
				issues = append(issues, Issue{"loan", l.ID, "kapatılmış borçta amount_owed sıfır değil"})
			}
		}
	}
	for _, p := range purchases {
		if p.Status == models.PurchaseStatusLoan && !loanByPurchase[p.ID] {
			issues = append(issues, Issue{"purchase", p.ID, "'loan' durumunda ama açık borç kaydı yok"})
		}
	}

	// Kasa hiçbir zaman negatif olamaz
	var stocks []models.Stock
	if err := db.Find(&stocks).Error; err != nil {
		return nil, err
	}
	for _, s := range stocks {
		if s.Cash.IsNegative() {
			issues = append(issues, Issue{"stock", s.ID,
				fmt.Sprintf("cash negatif: %s", s.Cash.StringFixed(2))})
		}
	}

	// Aidat: ödenen tahakkuku aşamaz
	var fees []models.Fee
	if err := db.Find(&fees).Error; err != nil {
		return nil, err
	}
	for _, f := range fees {
		if f.AmountPaid.GreaterThan(f.AmountOwed) {
			issues = append(issues, Issue{"fee", f.ID,
				fmt.Sprintf("amount_paid %s > amount_owed %s", f.AmountPaid.StringFixed(2), f.AmountOwed.StringFixed(2))})
		}
	}

	// Her ödemenin tutarlı bir dağıtım kaydı olmalı
	var payments []models.Payment
	if err := db.Find(&payments).Error; err != nil {
		return nil, err
	}
	var ptxs []models.PaymentTransaction
	if err := db.Find(&ptxs).Error; err != nil {
		return nil, err
	}
	ptxByPayment := make(map[uint]models.PaymentTransaction, len(ptxs))
	for _, t := range ptxs {
		ptxByPayment[t.PaymentID] = t
		if t.RemainingToPay.IsNegative() {
			issues = append(issues, Issue{"payment_transaction", t.ID, "remaining_to_pay negatif"})
		}
	}
	for _, pay := range payments {
		t, ok := ptxByPayment[pay.ID]
		if !ok {
			issues = append(issues, Issue{"payment", pay.ID, "dağıtım kaydı yok"})
			continue
		}
		if !t.Amount.Equal(pay.AmountPaid) {
			issues = append(issues, Issue{"payment", pay.ID,
				fmt.Sprintf("dağıtım tutarı %s, ödeme tutarı %s", t.Amount.StringFixed(2), pay.AmountPaid.StringFixed(2))})
		}
	}

	// Tahsilat kaydı olan borç kapatılmış olmalı
	var loanTxs []models.LoanTransaction
	if err := db.Find(&loanTxs).Error; err != nil {
		return nil, err
	}
	loanByID := make(map[uint]models.Loan, len(loans))
	for _, l := range loans {
		loanByID[l.ID] = l
	}
	for _, t := range loanTxs {
		l, ok := loanByID[t.LoanID]
		if !ok {
			issues = append(issues, Issue{"loan_transaction", t.ID, "borç kaydı yok"})
			continue
		}
		if l.Status != models.LoanStatusRepaid {
			issues = append(issues, Issue{"loan_transaction", t.ID, "tahsilat var ama borç hâlâ açık"})
		}
	}

	return issues, nil
}
