package database

import (
	"log"

	"kooperatif-backend/internal/config"
	"kooperatif-backend/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func Init(cfg *config.Config) {
	var err error

	DB, err = gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{})
	if err != nil {
		log.Fatalf("Veritabanına bağlanılamadı: %v", err)
	}

	if err := Migrate(DB); err != nil {
		log.Fatalf("AutoMigrate hatası: %v", err)
	}

	log.Println("Veritabanı bağlantısı başarılı. Migration tamamlandı.")
}

// Migrate - Tüm modelleri migrate eder. Testler sqlite üzerinde aynı şemayı kurar.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Product{},
		&models.Season{},
		&models.Stock{},
		&models.Purchase{},
		&models.Loan{},
		&models.LoanTransaction{},
		&models.Fee{},
		&models.Production{},
		&models.Payment{},
		&models.PaymentTransaction{},
		&models.AuditLog{},
	)
}
