package stock

import (
	"fmt"
	"testing"

	"kooperatif-backend/internal/database"
	"kooperatif-backend/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	// Testler arası etkileşimi önlemek için test başına in-memory veritabanı
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func seedBucketRefs(t *testing.T, db *gorm.DB) (uint, uint) {
	t.Helper()
	product := models.Product{Name: "Buğday", Unit: "kg"}
	require.NoError(t, db.Create(&product).Error)
	season := models.Season{Name: "2026 Yaz"}
	require.NoError(t, db.Create(&season).Error)
	return product.ID, season.ID
}

func TestGetOrCreateIsLazyAndIdempotent(t *testing.T) {
	db := setupDB(t)
	pid, sid := seedBucketRefs(t, db)

	_, err := Get(db, pid, sid)
	require.ErrorIs(t, err, ErrStockNotFound)

	s1, err := GetOrCreate(db, pid, sid)
	require.NoError(t, err)
	require.True(t, s1.Cash.IsZero())
	require.True(t, s1.Quantity.IsZero())

	s2, err := GetOrCreate(db, pid, sid)
	require.NoError(t, err)
	require.Equal(t, s1.ID, s2.ID)

	var count int64
	require.NoError(t, db.Model(&models.Stock{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestCreditCreatesBucketAndAccumulates(t *testing.T) {
	db := setupDB(t)
	pid, sid := seedBucketRefs(t, db)

	require.NoError(t, Credit(db, pid, sid, decimal.NewFromInt(100)))
	require.NoError(t, Credit(db, pid, sid, decimal.NewFromFloat(50.25)))

	s, err := Get(db, pid, sid)
	require.NoError(t, err)
	require.True(t, s.Cash.Equal(decimal.NewFromFloat(150.25)), "cash = %s", s.Cash)
}

func TestCreditRejectsNonPositiveAmount(t *testing.T) {
	db := setupDB(t)
	pid, sid := seedBucketRefs(t, db)

	require.ErrorIs(t, Credit(db, pid, sid, decimal.Zero), ErrNonPositiveAmount)
	require.ErrorIs(t, Credit(db, pid, sid, decimal.NewFromInt(-5)), ErrNonPositiveAmount)
	require.ErrorIs(t, Debit(db, pid, sid, decimal.Zero), ErrNonPositiveAmount)

	// Reddedilen çağrı kova açmamalı
	_, err := Get(db, pid, sid)
	require.ErrorIs(t, err, ErrStockNotFound)
}

func TestDebitMissingBucket(t *testing.T) {
	db := setupDB(t)
	pid, sid := seedBucketRefs(t, db)

	err := Debit(db, pid, sid, decimal.NewFromInt(10))
	require.ErrorIs(t, err, ErrStockNotFound)
}

func TestDebitInsufficientFundsLeavesBalanceUntouched(t *testing.T) {
	db := setupDB(t)
	pid, sid := seedBucketRefs(t, db)

	require.NoError(t, Credit(db, pid, sid, decimal.NewFromInt(100)))

	err := Debit(db, pid, sid, decimal.NewFromInt(200))
	var insuf *InsufficientFundsError
	require.ErrorAs(t, err, &insuf)
	require.True(t, insuf.Requested.Equal(decimal.NewFromInt(200)))
	require.True(t, insuf.Available.Equal(decimal.NewFromInt(100)))

	// Başarısız debit hiçbir şey yazmamalı
	s, err := Get(db, pid, sid)
	require.NoError(t, err)
	require.True(t, s.Cash.Equal(decimal.NewFromInt(100)), "cash = %s", s.Cash)
}

func TestDebitExactBalanceSucceeds(t *testing.T) {
	db := setupDB(t)
	pid, sid := seedBucketRefs(t, db)

	require.NoError(t, Credit(db, pid, sid, decimal.NewFromFloat(99.99)))
	require.NoError(t, Debit(db, pid, sid, decimal.NewFromFloat(99.99)))

	s, err := Get(db, pid, sid)
	require.NoError(t, err)
	require.True(t, s.Cash.IsZero(), "cash = %s", s.Cash)
}

func TestBucketsAreIsolatedPerProductSeason(t *testing.T) {
	db := setupDB(t)
	pid, sid := seedBucketRefs(t, db)
	otherSeason := models.Season{Name: "2026 Kış"}
	require.NoError(t, db.Create(&otherSeason).Error)

	require.NoError(t, Credit(db, pid, sid, decimal.NewFromInt(500)))
	require.NoError(t, Credit(db, pid, otherSeason.ID, decimal.NewFromInt(40)))

	// Diğer sezonun kovasından bu sezonun bakiyesi harcanamaz
	err := Debit(db, pid, otherSeason.ID, decimal.NewFromInt(100))
	var insuf *InsufficientFundsError
	require.ErrorAs(t, err, &insuf)

	s, err := Get(db, pid, sid)
	require.NoError(t, err)
	require.True(t, s.Cash.Equal(decimal.NewFromInt(500)))
}

func TestAddInventorySignedDeltas(t *testing.T) {
	db := setupDB(t)
	pid, sid := seedBucketRefs(t, db)

	// Üretim girişi: pozitif delta
	require.NoError(t, AddInventory(db, pid, sid, decimal.NewFromInt(100), decimal.NewFromInt(2000)))
	// Alım çıkışı: negatif delta
	require.NoError(t, AddInventory(db, pid, sid, decimal.NewFromInt(-30), decimal.NewFromInt(-600)))

	s, err := Get(db, pid, sid)
	require.NoError(t, err)
	require.True(t, s.Quantity.Equal(decimal.NewFromInt(70)), "quantity = %s", s.Quantity)
	require.True(t, s.TotalPrice.Equal(decimal.NewFromInt(1400)), "total_price = %s", s.TotalPrice)
}

func TestCashNeverDriftsAcrossMixedOperations(t *testing.T) {
	db := setupDB(t)
	pid, sid := seedBucketRefs(t, db)

	expected := decimal.Zero
	for i := 1; i <= 10; i++ {
		amt := decimal.NewFromInt(int64(i * 10))
		require.NoError(t, Credit(db, pid, sid, amt))
		expected = expected.Add(amt)
	}
	for i := 1; i <= 5; i++ {
		amt := decimal.NewFromFloat(float64(i) + 0.50)
		require.NoError(t, Debit(db, pid, sid, amt))
		expected = expected.Sub(amt)
	}

	s, err := Get(db, pid, sid)
	require.NoError(t, err)
	require.True(t, s.Cash.Equal(expected), "cash = %s, beklenen %s", s.Cash, expected)
}
