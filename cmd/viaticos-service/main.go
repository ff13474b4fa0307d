package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kallpa-labs/viaticos-service/internal/api"
	"github.com/kallpa-labs/viaticos-service/internal/config"
	"github.com/kallpa-labs/viaticos-service/internal/database"
	"github.com/kallpa-labs/viaticos-service/internal/email"
	"github.com/kallpa-labs/viaticos-service/internal/extract"
	"github.com/kallpa-labs/viaticos-service/internal/ocr"
	"github.com/kallpa-labs/viaticos-service/internal/queue"
	"github.com/kallpa-labs/viaticos-service/internal/services"
	"github.com/kallpa-labs/viaticos-service/internal/sunat"
	"github.com/sirupsen/logrus"
)

func main() {
	// Cargar configuración
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	// Configurar logging
	logger := setupLogger(cfg)
	logger.Info("Starting Viaticos Service...")

	// Configurar modo de Gin
	if cfg.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Conectar a la base de datos
	db, err := database.Connect(cfg)
	if err != nil {
		logger.Fatalf("Error connecting to database: %v", err)
	}
	defer db.Close()

	// Conectar a Redis (opcional, cachea el token de SUNAT)
	redis, err := database.ConnectRedis(cfg)
	if err != nil {
		logger.Warnf("Error connecting to Redis: %v", err)
		redis = nil
	} else {
		defer redis.Close()
	}

	// Inicializar storage de archivos de comprobantes
	var storage *database.ObjectStorage
	if cfg.Storage.Endpoint != "" && cfg.Storage.AccessKeyID != "" && cfg.Storage.SecretAccessKey != "" {
		storage, err = database.NewObjectStorage(&cfg.Storage, logger)
		if err != nil {
			logger.Warnf("Error initializing object storage: %v", err)
			storage = nil
		} else {
			if err := storage.HealthCheck(); err != nil {
				logger.Warnf("Object storage health check failed: %v", err)
			} else {
				logger.Info("Object storage connection healthy")
			}
		}
	} else {
		logger.Warn("Object storage credentials not provided, voucher files will not be persisted")
	}

	// Inicializar servicio de Resend
	var resendService *email.ResendService
	if cfg.Email.ResendAPIKey != "" {
		resendService = email.NewResendService(cfg.Email.ResendAPIKey, cfg.Email.FromEmail, cfg.Server.BaseURL, logger)
		logger.Info("Resend service initialized successfully")
	} else {
		logger.Warn("Resend API key not provided, email service will not be available")
	}

	// Cliente de SUNAT, con caché de token opcional sobre Redis
	var tokenCache sunat.TokenCache
	if cfg.Sunat.TokenCache && redis != nil {
		tokenCache = database.NewTokenCache(redis, logger)
		logger.Info("SUNAT token cache enabled")
	}
	sunatClient := sunat.NewClient(&cfg.Sunat, tokenCache, logger)

	// Pipeline de extracción: proveedor en la nube primero, motor local
	// como fallback
	azureProvider := ocr.NewAzureProvider(&cfg.CloudOCR, logger)
	tesseractProvider := ocr.NewTesseractProvider(&cfg.LocalOCR, logger)
	coordinator := ocr.NewCoordinator(cfg.LocalOCR.MaxPages, logger, azureProvider, tesseractProvider)
	extractor := extract.NewExtractor(logger)

	// Inicializar repositorios
	voucherRepo := database.NewVoucherRepository(db, logger)
	requestRepo := database.NewRequestRepository(db, logger)
	notificationRepo := database.NewNotificationRepository(db, logger)

	// Cola de validación asíncrona
	validationQueue := queue.NewValidationQueue(voucherRepo, sunatClient, cfg.Queue.ItemDelay, logger)

	// Inicializar servicios
	requestService := services.NewRequestService(requestRepo, notificationRepo, resendService, logger)
	voucherService := services.NewVoucherService(
		voucherRepo,
		requestRepo,
		requestService,
		coordinator,
		extractor,
		storage,
		validationQueue,
		cfg.Tax.SpecialRate,
		logger,
	)

	// Inicializar API
	apiHandler := api.NewAPI(voucherService, requestService, logger)

	// Configurar router
	router := setupRouter(apiHandler, db, redis, cfg)

	// Crear servidor HTTP
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Canal para señales de terminación
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Iniciar servidor en goroutine
	go func() {
		logger.Infof("Server starting on %s:%s", cfg.Server.Host, cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Error starting server: %v", err)
		}
	}()

	// Esperar señal de terminación
	<-quit
	logger.Info("Shutting down server...")

	// Contexto con timeout para shutdown graceful
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown graceful del servidor
	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	// Drenar la cola antes de salir: los comprobantes ya encolados
	// terminan su validación
	logger.Info("Draining validation queue...")
	validationQueue.Wait()

	logger.Info("Server exited")
}

// setupLogger configura el logger según la configuración
func setupLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()

	// Configurar nivel de log
	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	// Configurar formato
	if cfg.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return logger
}

// setupRouter configura el router principal
func setupRouter(apiHandler *api.API, db *database.DB, redis *database.Redis, cfg *config.Config) *gin.Engine {
	router := gin.New()

	// Middleware global
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// Middleware de CORS para desarrollo
	if cfg.IsDevelopment() {
		router.Use(func(c *gin.Context) {
			c.Header("Access-Control-Allow-Origin", "*")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization")

			if c.Request.Method == "OPTIONS" {
				c.AbortWithStatus(204)
				return
			}

			c.Next()
		})
	}

	// Health check
	router.GET("/health", func(c *gin.Context) {
		status := "ok"
		checks := gin.H{}

		if err := db.HealthCheck(); err != nil {
			status = "degraded"
			checks["database"] = err.Error()
		} else {
			checks["database"] = "ok"
		}

		if redis != nil {
			if err := redis.HealthCheck(); err != nil {
				checks["redis"] = err.Error()
			} else {
				checks["redis"] = "ok"
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    status,
			"checks":    checks,
			"timestamp": time.Now().UTC(),
			"service":   "viaticos-service",
			"version":   "1.0.0",
		})
	})

	// API v1
	v1 := router.Group("/v1")
	{
		// Comprobantes
		v1.POST("/vouchers/extract", apiHandler.ExtractVoucher)
		v1.POST("/vouchers", apiHandler.CreateVoucher)
		v1.GET("/vouchers/:id", apiHandler.GetVoucher)
		v1.POST("/vouchers/:id/observe", apiHandler.ObserveVoucher)
		v1.POST("/vouchers/:id/approve", apiHandler.ApproveVoucher)
		v1.POST("/vouchers/:id/revalidate", apiHandler.RevalidateVoucher)

		// Solicitudes
		v1.GET("/requests/:id", apiHandler.GetRequest)
		v1.POST("/requests/:id/state", apiHandler.ChangeRequestState)
	}

	return router
}
