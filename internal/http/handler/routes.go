package handler

import (
	"database/sql"

	"github.com/gofiber/fiber/v2"

	"productapi/internal/service"
)

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// Handlers stay free of business logic; everything is delegated to the service.
func RegisterRoutes(app *fiber.App, db *sql.DB, svc service.ProductService) {
	// Health endpoint: checks DB connectivity only
	app.Get("/health", HealthCheck(db))

	// Simple liveness probe
	app.Get("/healthz", LivenessProbe())

	app.Get("/products", ListProducts(svc))
	app.Post("/products", CreateProduct(svc))
	app.Get("/products/:id", GetProduct(svc))
	app.Put("/products/:id", UpdateProduct(svc))
	app.Delete("/products/:id", DeleteProduct(svc))
	app.Post("/products/:id/image", UploadProductImage(svc))
	app.Get("/products/:id/image-url", ProductImageURL(svc))
}
