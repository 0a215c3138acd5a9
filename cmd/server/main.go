package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/haldiram/distribution/internal/audit"
	catentity "github.com/haldiram/distribution/internal/catalog/entity"
	cathandler "github.com/haldiram/distribution/internal/catalog/handler"
	catrepo "github.com/haldiram/distribution/internal/catalog/repository"
	"github.com/haldiram/distribution/internal/config"
	invent "github.com/haldiram/distribution/internal/inventory/entity"
	invhandler "github.com/haldiram/distribution/internal/inventory/handler"
	invrepo "github.com/haldiram/distribution/internal/inventory/repository"
	invsvc "github.com/haldiram/distribution/internal/inventory/service"
	"github.com/haldiram/distribution/internal/middleware"
	ordent "github.com/haldiram/distribution/internal/orders/entity"
	ordhandler "github.com/haldiram/distribution/internal/orders/handler"
	ordrepo "github.com/haldiram/distribution/internal/orders/repository"
	ordsvc "github.com/haldiram/distribution/internal/orders/service"
	"github.com/haldiram/distribution/internal/payment"
	poent "github.com/haldiram/distribution/internal/purchasing/entity"
	pohandler "github.com/haldiram/distribution/internal/purchasing/handler"
	porepo "github.com/haldiram/distribution/internal/purchasing/repository"
	posvc "github.com/haldiram/distribution/internal/purchasing/service"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zapLogger, err := initLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting distribution service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
	)

	db, err := initDatabase(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}

	if err := db.AutoMigrate(
		&catentity.Product{},
		&catentity.User{},
		&catentity.Vehicle{},
		&invent.StockLevel{},
		&invent.StockBatch{},
		&invent.StockMovement{},
		&ordent.Order{},
		&ordent.OrderItem{},
		&ordent.OrderItemHistory{},
		&poent.PurchaseOrder{},
		&poent.PurchaseItem{},
		&poent.PurchaseItemHistory{},
		&audit.Log{},
	); err != nil {
		zapLogger.Fatal("AutoMigrate failed", zap.Error(err))
	}

	rdb := initRedis(cfg.Redis)
	cache := invsvc.NewSummaryCache(rdb)

	// Repositories
	catRepos := catrepo.NewRepositories(db)
	invRepos := invrepo.NewRepositories(db)
	ordRepos := ordrepo.NewRepositories(db)
	poRepos := porepo.NewRepositories(db)
	auditRepo := audit.NewRepository(db)

	// Services
	ledgerSvc := invsvc.NewLedgerService(db, invRepos)
	ledgerSvc.SetCache(cache)
	lotSvc := invsvc.NewLotService(db, invRepos, ledgerSvc)
	lotSvc.SetCache(cache)
	reportSvc := invsvc.NewReportService(invRepos)
	orderSvc := ordsvc.NewOrderService(db, ordRepos, catRepos, lotSvc, auditRepo)
	purchaseSvc := posvc.NewPOService(db, poRepos, catRepos, lotSvc, auditRepo)
	invoiceSvc := posvc.NewInvoiceService(poRepos, catRepos)

	if cfg.Payment.Enabled {
		gateway := payment.NewPhonePeClient(payment.Config{
			BaseURL:      cfg.Payment.BaseURL,
			AuthURL:      cfg.Payment.AuthURL,
			ClientID:     cfg.Payment.ClientID,
			ClientSecret: cfg.Payment.ClientSecret,
		})
		purchaseSvc.SetGateway(gateway, cfg.Payment.RedirectURL)
	}

	// Handlers
	invHandlers := invhandler.NewHandlers(ledgerSvc, lotSvc, reportSvc)
	orderHandler := ordhandler.NewOrderHandler(orderSvc)
	purchaseHandler := pohandler.NewPOHandler(purchaseSvc, invoiceSvc)
	catalogHandler := cathandler.NewCatalogHandler(catRepos)
	auditHandler := audit.NewHandler(auditRepo)

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(zapLogger))
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	registerRoutes(router, cfg, invHandlers, orderHandler, purchaseHandler, catalogHandler, auditHandler)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		zapLogger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("Server exited")
}

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config

	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	return zapCfg.Build()
}

func initDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	db, err := gorm.Open(postgres.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return db, nil
}

func initRedis(cfg config.RedisConfig) *redis.Client {
	if cfg.Host == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func registerRoutes(
	r *gin.Engine,
	cfg *config.Config,
	inv *invhandler.Handlers,
	orders *ordhandler.OrderHandler,
	purchasing *pohandler.POHandler,
	catalog *cathandler.CatalogHandler,
	auditH *audit.Handler,
) {
	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/health/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
		})
	})

	v1 := r.Group("/api/v1")

	authorized := v1.Group("")
	authorized.Use(middleware.JWTAuth(cfg.JWT.Secret))
	{
		staff := middleware.RequireRoles(catentity.RoleStaff)
		accountant := middleware.RequireRoles(catentity.RoleAccountant, catentity.RoleStaff)

		// Product master, users, fleet
		products := authorized.Group("/products")
		{
			products.GET("", catalog.ListProducts)
			products.GET("/:id", catalog.GetProduct)
			products.POST("", staff, catalog.CreateProduct)
			products.PUT("/:id", staff, catalog.UpdateProduct)
		}
		users := authorized.Group("/users")
		{
			users.GET("/drivers", catalog.ListDrivers)
			users.GET("/:id", catalog.GetUser)
		}
		vehicles := authorized.Group("/vehicles")
		{
			vehicles.GET("", catalog.ListVehicles)
			vehicles.POST("", staff, catalog.CreateVehicle)
		}

		// Stock ledger
		stock := authorized.Group("/stock")
		{
			stock.GET("/levels", inv.Stock.ListLevels)
			stock.GET("/levels/:productId", inv.Stock.GetLevel)
			stock.POST("/levels/set", staff, inv.Stock.SetAbsolute)
			stock.GET("/movements", inv.Stock.ListMovements)
			stock.GET("/movements/export", inv.Stock.ExportMovements)
			stock.GET("/movements/:id", inv.Stock.GetMovement)
			stock.POST("/movements", staff, inv.Stock.ApplyMovement)
			stock.POST("/movements/:id/reverse", staff, inv.Stock.ReverseMovement)
			stock.GET("/summary/:productId", inv.Batch.GetSummary)
		}

		// Lots and allocation
		batches := authorized.Group("/batches")
		{
			batches.GET("", inv.Batch.ListBatches)
			batches.GET("/expiring", inv.Batch.ExpiringSoon)
			batches.GET("/:id", inv.Batch.GetBatch)
			batches.POST("", staff, inv.Batch.CreateBatch)
			batches.POST("/:id/retire", staff, inv.Batch.RetireBatch)
		}
		allocations := authorized.Group("/allocations")
		{
			allocations.POST("", staff, inv.Batch.Allocate)
			allocations.POST("/reverse", staff, inv.Batch.ReverseAllocation)
		}

		// Sales orders
		ordersGroup := authorized.Group("/orders")
		{
			ordersGroup.GET("", orders.List)
			ordersGroup.POST("", orders.Create)
			ordersGroup.GET("/:id", orders.Get)
			ordersGroup.GET("/:id/item-history", orders.ItemHistory)
			ordersGroup.PUT("/:id/items", orders.UpdateItems)
			ordersGroup.POST("/:id/confirm", staff, orders.Confirm)
			ordersGroup.POST("/:id/payment-check", accountant, orders.CheckPayment)
			ordersGroup.POST("/:id/process", staff, orders.Process)
			ordersGroup.POST("/:id/ship", staff, orders.Ship)
			ordersGroup.POST("/:id/receive", orders.Receive)
			ordersGroup.POST("/:id/return", orders.Return)
			ordersGroup.POST("/:id/cancel", orders.Cancel)
		}

		// Vendor purchase orders
		po := authorized.Group("/purchase-orders")
		{
			po.GET("", purchasing.List)
			po.POST("", purchasing.Create)
			po.GET("/driver-assignments", purchasing.ListDriverAssignments)
			po.GET("/:id", purchasing.Get)
			po.GET("/:id/item-history", purchasing.ItemHistory)
			po.GET("/:id/invoice", purchasing.Invoice)
			po.PUT("/:id/items", purchasing.UpdateItems)
			po.POST("/:id/accept", staff, purchasing.Accept)
			po.POST("/:id/receive", staff, purchasing.Receive)
			po.POST("/:id/dispatch", staff, purchasing.Dispatch)
			po.POST("/:id/payment/request", accountant, purchasing.RequestPayment)
			po.POST("/:id/payment/sync", accountant, purchasing.SyncPayment)
			po.POST("/:id/payment/verify", accountant, purchasing.VerifyPayment)
			po.POST("/:id/pack", staff, purchasing.MarkPacked)
			po.POST("/:id/assign-driver", staff, purchasing.AssignDriver)
			po.POST("/:id/ship", staff, purchasing.Ship)
			po.POST("/:id/cancel", purchasing.Cancel)
		}

		// Audit trail
		authorized.GET("/audit/:entityType/:entityId", auditH.Trail)
	}
}
