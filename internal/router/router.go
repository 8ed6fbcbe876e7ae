package router

import (
	"log"
	"strings"

	"kooperatif-backend/internal/audit"
	"kooperatif-backend/internal/auth"
	"kooperatif-backend/internal/catalog"
	"kooperatif-backend/internal/config"
	"kooperatif-backend/internal/fee"
	"kooperatif-backend/internal/loan"
	"kooperatif-backend/internal/models"
	"kooperatif-backend/internal/production"
	"kooperatif-backend/internal/purchase"
	"kooperatif-backend/internal/registry"
	"kooperatif-backend/internal/settlement"
	"kooperatif-backend/internal/stock"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

// New - Tüm route'ları bağlanmış Fiber uygulamasını kurar.
// Testler de aynı uygulamayı app.Test ile kullanır.
func New(cfg *config.Config) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if e, ok := err.(*fiber.Error); ok {
				return c.Status(e.Code).JSON(fiber.Map{
					"error": e.Message,
				})
			}
			log.Println("Unexpected error:", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Beklenmeyen sunucu hatası",
			})
		},
	})

	// CORS origins'i virgülle ayrılmış string'den temizle
	corsOrigins := strings.Split(cfg.CORSOrigins, ",")
	for i := range corsOrigins {
		corsOrigins[i] = strings.TrimSpace(corsOrigins[i])
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(corsOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
	}))

	api := app.Group("/api")

	// Public auth
	api.Post("/auth/register-manager", auth.RegisterManagerHandler(cfg))
	api.Post("/auth/login", auth.LoginHandler(cfg))

	// Protected
	protected := api.Group("")
	protected.Use(auth.JWTMiddleware(cfg))

	protected.Get("/auth/me", auth.MeHandler())

	// Yönetici route'ları: tüm mutasyonlar yönetici yetkisi ister
	manager := protected.Group("")
	manager.Use(auth.RequireRole(models.RoleManager))

	// Üye yönetimi
	manager.Post("/members", registry.CreateMemberHandler())
	manager.Get("/members", registry.ListMembersHandler())
	manager.Get("/members/:id", registry.GetMemberHandler())
	manager.Put("/members/:id", registry.UpdateMemberHandler())
	manager.Delete("/members/:id", registry.DeleteMemberHandler())

	// Ürün yönetimi
	manager.Post("/products", catalog.CreateProductHandler())
	manager.Put("/products/:id", catalog.UpdateProductHandler())
	manager.Delete("/products/:id", catalog.DeleteProductHandler())

	// Sezon yönetimi
	manager.Post("/seasons", catalog.CreateSeasonHandler())
	manager.Put("/seasons/:id", catalog.UpdateSeasonHandler())
	manager.Delete("/seasons/:id", catalog.DeleteSeasonHandler())

	// Alımlar
	manager.Post("/purchases", purchase.CreatePurchaseHandler())
	manager.Put("/purchases/:id", purchase.UpdatePurchaseHandler())
	manager.Delete("/purchases/:id", purchase.DeletePurchaseHandler())

	// Borç tahsilatı
	manager.Post("/loans/:id/repay", loan.RepayLoanHandler())

	// Hakediş ödemeleri
	manager.Post("/payments", settlement.CreatePaymentHandler())
	manager.Put("/payments/:id", settlement.UpdatePaymentHandler())
	manager.Delete("/payments/:id", settlement.DeletePaymentHandler())

	// Aidatlar
	manager.Post("/fees", fee.CreateFeeHandler())
	manager.Put("/fees/:id", fee.UpdateFeeHandler())
	manager.Post("/fees/:id/pay", fee.PayFeeHandler())
	manager.Delete("/fees/:id", fee.DeleteFeeHandler())

	// Üretim teslimatları
	manager.Post("/productions", production.CreateProductionHandler())
	manager.Put("/productions/:id", production.UpdateProductionHandler())
	manager.Delete("/productions/:id", production.DeleteProductionHandler())

	// Ortak (auth gerektiren) okuma route'ları

	protected.Get("/products", catalog.ListProductsHandler())
	protected.Get("/seasons", catalog.ListSeasonsHandler())

	// Kasa ve stok
	protected.Get("/stocks", stock.ListStocksHandler())
	protected.Get("/stocks/detail", stock.GetStockHandler())

	// Alım listesi
	protected.Get("/purchases", purchase.ListPurchasesHandler())

	// Borçlar
	protected.Get("/loans", loan.ListLoansHandler())
	protected.Get("/loans/outstanding", loan.OutstandingLoansHandler())

	// Ödemeler
	protected.Get("/payments/summary", settlement.GetPaymentSummaryHandler())
	protected.Get("/payments", settlement.ListPaymentsHandler())

	// Aidat listesi
	protected.Get("/fees", fee.ListFeesHandler())

	// Üretim listesi
	protected.Get("/productions", production.ListProductionsHandler())

	// Audit logs
	protected.Get("/audit-logs", audit.ListAuditLogsHandler())

	return app
}
