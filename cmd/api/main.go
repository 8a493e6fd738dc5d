package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/jhoicas/facturas-api/internal/application/admin"
	"github.com/jhoicas/facturas-api/internal/application/auth"
	"github.com/jhoicas/facturas-api/internal/application/batch"
	"github.com/jhoicas/facturas-api/internal/application/extraction"
	"github.com/jhoicas/facturas-api/internal/application/facturas"
	"github.com/jhoicas/facturas-api/internal/application/ports"
	"github.com/jhoicas/facturas-api/internal/application/validation"
	infraai "github.com/jhoicas/facturas-api/internal/infrastructure/ai"
	"github.com/jhoicas/facturas-api/internal/infrastructure/mongodb"
	infras3 "github.com/jhoicas/facturas-api/internal/infrastructure/s3"
	"github.com/jhoicas/facturas-api/internal/infrastructure/sqlite"
	httpRouter "github.com/jhoicas/facturas-api/internal/interfaces/http"
	"github.com/jhoicas/facturas-api/pkg/config"
	"github.com/jhoicas/facturas-api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: "info",
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Msg("iniciando aplicación")

	ctx := context.Background()

	mongoClient, err := mongodb.Connect(ctx, cfg.Mongo.URI)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a MongoDB")
	}
	defer mongoClient.Disconnect(context.Background())
	facturaRepo := mongodb.NewFacturaRepository(mongoClient.Database(cfg.Mongo.Database))

	userRepo, err := sqlite.Open(cfg.SQLite.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("abrir almacén de usuarios")
	}
	defer userRepo.Close()

	// S3 es opcional: sin bucket configurado, la validación persiste sin
	// archivar y los enlaces de descarga no están disponibles.
	var storage ports.ObjectStorage
	if cfg.S3.Bucket != "" {
		s3Storage, err := infras3.New(ctx, cfg.S3)
		if err != nil {
			log.Fatal().Err(err).Msg("configurar S3")
		}
		storage = s3Storage
	} else {
		log.Warn().Msg("S3 sin configurar: archivado de documentos deshabilitado")
	}

	openaiSvc := infraai.NewOpenAIService(cfg.OpenAI.APIKey, cfg.OpenAI.Model, log)
	extractionUC := extraction.NewUseCase(openaiSvc, cfg.Extraction.MaxFileBytes, cfg.OpenAI.Model, log)
	validationUC := validation.NewUseCase(facturaRepo, storage, log)
	facturasUC := facturas.NewUseCase(facturaRepo, storage, log)
	adminUC := admin.NewUseCase(facturaRepo, userRepo, log)
	authUC := auth.NewUseCase(userRepo, cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Expiration, log)

	previews := &batch.TempFilePreviewStore{Dir: os.TempDir()}
	sessions := batch.NewManager(func() *batch.Queue {
		return batch.NewQueue(extractionUC, validationUC, previews, log)
	}, 30*time.Minute, log)
	stopSweeper := make(chan struct{})
	sessions.StartSweeper(stopSweeper)
	defer close(stopSweeper)

	app := fiber.New(fiber.Config{
		AppName: cfg.App.Name,
		// Las extracciones por lote sondean al proveedor; el timeout de
		// escritura debe cubrir la pasada completa.
		ReadTimeout:  time.Second * 30,
		WriteTimeout: time.Minute * 5,
		IdleTimeout:  time.Second * 60,
		BodyLimit:    32 * 1024 * 1024,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "Facturas API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		AuthUC:       authUC,
		ExtractionUC: extractionUC,
		ValidationUC: validationUC,
		FacturasUC:   facturasUC,
		AdminUC:      adminUC,
		Sessions:     sessions,
		JWTSecret:    cfg.JWT.Secret,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}
