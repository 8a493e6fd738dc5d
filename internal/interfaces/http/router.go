package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/facturas-api/internal/application/admin"
	"github.com/jhoicas/facturas-api/internal/application/auth"
	"github.com/jhoicas/facturas-api/internal/application/batch"
	"github.com/jhoicas/facturas-api/internal/application/extraction"
	"github.com/jhoicas/facturas-api/internal/application/facturas"
	"github.com/jhoicas/facturas-api/internal/application/validation"
	"github.com/jhoicas/facturas-api/internal/domain/entity"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	AuthUC       *auth.UseCase
	ExtractionUC *extraction.UseCase
	ValidationUC *validation.UseCase
	FacturasUC   *facturas.UseCase
	AdminUC      *admin.UseCase
	Sessions     *batch.Manager
	JWTSecret    string
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")

	// Auth (público)
	authGroup := api.Group("/auth")
	authHandler := NewAuthHandler(deps.AuthUC)
	authGroup.Post("/register", authHandler.Register)
	authGroup.Post("/login", authHandler.Login)

	// Rutas protegidas (requieren Bearer Token)
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret))

	// Facturas: extracción de documento único, validación y CRUD (protegido)
	invoices := protected.Group("/invoices")
	facturaHandler := NewFacturaHandler(deps.ExtractionUC, deps.ValidationUC, deps.FacturasUC)
	invoices.Post("/extract", facturaHandler.Extract)
	invoices.Post("/validate", facturaHandler.Validate)
	invoices.Get("/", facturaHandler.List)
	invoices.Get("/:id", facturaHandler.Get)
	invoices.Put("/:id", facturaHandler.Update)
	invoices.Delete("/:id", facturaHandler.Delete)
	invoices.Get("/:id/download", facturaHandler.PresignedURL)

	// Cola de procesamiento por lotes (protegido, una cola por usuario)
	batchGroup := protected.Group("/batch")
	batchHandler := NewBatchHandler(deps.Sessions)
	batchGroup.Post("/items", batchHandler.Enqueue)
	batchGroup.Get("/items", batchHandler.Items)
	batchGroup.Delete("/items", batchHandler.Clear)
	batchGroup.Post("/process", batchHandler.Process)
	batchGroup.Post("/cursor", batchHandler.Navigate)
	batchGroup.Post("/items/:itemId/retry", batchHandler.Retry)
	batchGroup.Delete("/items/:itemId", batchHandler.Remove)
	batchGroup.Post("/items/:itemId/validate", batchHandler.Validate)
	batchGroup.Post("/items/:itemId/edit", batchHandler.BeginEdit)
	batchGroup.Put("/items/:itemId/edit", batchHandler.SaveEdit)
	batchGroup.Delete("/items/:itemId/edit", batchHandler.CancelEdit)

	// Administración (protegido + rol admin)
	adminGroup := protected.Group("/admin", RequireRole(entity.RoleAdmin))
	adminHandler := NewAdminHandler(deps.AdminUC)
	adminGroup.Get("/stats", adminHandler.Stats)
	adminGroup.Get("/users", adminHandler.ListUsers)
	adminGroup.Put("/users/:id/role", adminHandler.SetUserRole)
	adminGroup.Put("/users/:id/active", adminHandler.SetUserActive)
}
