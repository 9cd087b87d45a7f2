package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"goride/internal/config"
	handlers "goride/internal/handlers/shared"
	"goride/internal/middleware"
	"goride/internal/repositories/interfaces"
	"goride/internal/repositories/memory"
	"goride/internal/repositories/mongodb"
	"goride/internal/services"
	"goride/internal/utils"
	"goride/pkg/broker"
	"goride/pkg/cache"
	"goride/pkg/database"
	"goride/pkg/geo"
	"goride/pkg/logger"
	"goride/pkg/maps"
	"goride/pkg/websocket"
	"goride/routes"

	"github.com/gin-gonic/gin"
)

type stores struct {
	rides   interfaces.RideRepository
	drivers interfaces.DriverRepository
	riders  interfaces.RiderRepository
	mongo   *database.MongoDB
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger, err := logger.NewLogger(&logger.Config{
		Level:      logger.LogLevel(cfg.App.LogLevel),
		Format:     cfg.App.LogFormat,
		TimeFormat: time.RFC3339,
		AppName:    cfg.App.Name,
		Version:    cfg.App.Version,
		Instance:   hostname(),
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	if err := run(cfg, appLogger); err != nil {
		appLogger.WithError(err).Fatal("Server exited with error")
	}
}

func run(cfg *config.Config, appLogger *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Database.MigrateDownTo >= 0 {
		return migrateDown(cfg, appLogger)
	}

	// Storage
	store, err := openStores(cfg, appLogger)
	if err != nil {
		return err
	}
	if store.mongo != nil {
		defer store.mongo.Close()
	}

	var redisCache *cache.RedisCache
	if cfg.Redis.Enabled {
		redisCache, err = cache.NewRedisCache(&cache.RedisConfig{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			return err
		}
		defer redisCache.Close()
	}

	geoIndex := buildGeoIndex(cfg.Store.GeoIndex, store.drivers, redisCache)

	// Realtime fan-out
	hub := websocket.NewHub(appLogger.WithField("component", "websocket"))
	go hub.Run(ctx)

	router := services.NewEventRouter(appLogger.WithField("component", "event_router"), cfg.Dispatch.EventQueueSize, cfg.Dispatch.EventWorkers)
	if cfg.Redis.EventBridge {
		bridge := services.NewRedisEventBridge(redisCache, utils.EventBridgeChannel, hub, appLogger)
		router.AddSink(bridge)
		go func() {
			if err := bridge.Run(ctx, nil); err != nil && !errors.Is(err, context.Canceled) {
				appLogger.WithError(err).Error("Redis event bridge stopped")
			}
		}()
	} else {
		router.AddSink(hub)
	}

	if cfg.Broker.Enabled {
		publisher, err := broker.NewRabbitPublisher(ctx, broker.Config{
			URL:      cfg.Broker.URL,
			Exchange: cfg.Broker.Exchange,
		}, appLogger)
		if err != nil {
			return err
		}
		defer publisher.Close()
		router.AddSink(publisher)
	}
	router.Start(ctx)

	// Services
	fares, err := services.NewFareCalculator(cfg.Pricing)
	if err != nil {
		return err
	}

	var routing maps.ETAEstimator
	if cfg.Maps.Enabled() {
		provider, err := maps.NewGoogleMapsProvider(cfg.Maps.GoogleMaps.APIKey)
		if err != nil {
			return err
		}
		routing = provider
	}
	eta := maps.NewFallbackEstimator(routing, cfg.Maps.RequestTimeout, appLogger.WithField("component", "maps"))

	machine := services.NewRideStateMachine(store.rides, store.drivers, store.riders, fares, router, eta, cfg.Dispatch.MaxPassengers, appLogger.WithField("component", "ride_state_machine"))
	dispatch := services.NewDispatchEngine(cfg.Dispatch, machine, geoIndex, store.rides, store.drivers, router, nil, appLogger.WithField("component", "dispatch"))
	driverService := services.NewDriverService(store.drivers, store.rides, store.riders, geoIndex, router, appLogger.WithField("component", "drivers"))
	riderService := services.NewRiderService(store.riders, store.rides, store.drivers, router, appLogger.WithField("component", "riders"))

	gateway := services.NewRealtimeGateway(machine, driverService, riderService)
	hub.SetRoomAuthorizer(gateway.AuthorizeRoom)
	hub.SetInboundHandler(gateway)

	sweeper := services.NewRequestSweeper(cfg.Dispatch, store.rides, machine, dispatch, fares.Now, appLogger.WithField("component", "sweeper"))
	go sweeper.Run(ctx)

	// Initialize handlers
	rideHandler := handlers.NewRideHandler(dispatch, machine, fares, driverService, riderService)
	driverHandler := handlers.NewDriverHandler(driverService, dispatch)
	riderHandler := handlers.NewRiderHandler(riderService)
	wsHandler := websocket.NewHandler(ctx, hub, cfg.WebSocket.AllowedOrigins, cfg.WebSocket.ReadBufferSize, cfg.WebSocket.WriteBufferSize, websocket.Options{
		PongWait:       cfg.WebSocket.PongTimeout,
		PingPeriod:     cfg.WebSocket.PingInterval,
		MaxMessageSize: cfg.WebSocket.MaxMessageSize,
		SendBuffer:     cfg.WebSocket.SendBufferSize,
	})

	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.Security.TrustedProxies); err != nil {
		return err
	}

	// Global middleware
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestIDMiddleware())
	engine.Use(middleware.RequestLogger(appLogger))
	engine.Use(middleware.CORSMiddleware(cfg.Security.CORSAllowedOrigins))

	identity := middleware.Identity(cfg.Security.AuthEnabled, cfg.Security.JWTSecret)
	if !cfg.Security.AuthEnabled {
		appLogger.Warn("Authentication disabled, trusting X-User-ID headers")
	}

	// API routes
	v1 := engine.Group("/api/v1")
	{
		routes.SetupRideRoutes(v1, rideHandler, identity)
		routes.SetupDriverRoutes(v1, driverHandler, identity)
		routes.SetupRiderRoutes(v1, riderHandler, identity)
	}
	routes.SetupWebSocketRoutes(engine, cfg.WebSocket.Path, wsHandler, identity)

	// Health check
	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":        "healthy",
			"version":       cfg.App.Version,
			"dispatch_mode": dispatch.Mode(),
			"sessions":      hub.SessionCount(),
		})
	})

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.App.Host, cfg.App.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		appLogger.Infof("Starting server on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	appLogger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Warn("Graceful shutdown failed")
	}
	stop()
	router.Stop()

	return nil
}

func openStores(cfg *config.Config, appLogger *logger.Logger) (*stores, error) {
	if cfg.Store.Driver == config.StoreMemory {
		appLogger.Warn("Using in-memory store, state is lost on restart")
		return &stores{
			rides:   memory.NewRideRepository(),
			drivers: memory.NewDriverRepository(),
			riders:  memory.NewRiderRepository(),
		}, nil
	}

	mongoDB, err := database.NewMongoDB(mongoConfig(cfg))
	if err != nil {
		return nil, err
	}

	if cfg.Database.RunMigrations {
		if err := database.NewMigrator(mongoDB.Database, appLogger.WithField("component", "migrations")).Up(); err != nil {
			mongoDB.Close()
			return nil, err
		}
	}

	return &stores{
		rides:   mongodb.NewRideRepository(mongoDB.Database),
		drivers: mongodb.NewDriverRepository(mongoDB.Database),
		riders:  mongodb.NewRiderRepository(mongoDB.Database),
		mongo:   mongoDB,
	}, nil
}

func mongoConfig(cfg *config.Config) *database.DatabaseConfig {
	return &database.DatabaseConfig{
		URI:            cfg.Database.URI,
		Database:       cfg.Database.Database,
		MaxPoolSize:    cfg.Database.MaxPoolSize,
		MinPoolSize:    cfg.Database.MinPoolSize,
		ConnectTimeout: cfg.Database.ConnectTimeout,
		SocketTimeout:  cfg.Database.SocketTimeout,
	}
}

// migrateDown reverts schema migrations and returns without serving.
func migrateDown(cfg *config.Config, appLogger *logger.Logger) error {
	mongoDB, err := database.NewMongoDB(mongoConfig(cfg))
	if err != nil {
		return err
	}
	defer mongoDB.Close()

	target := cfg.Database.MigrateDownTo
	appLogger.WithField("target_version", target).Warn("Reverting database migrations")
	if err := database.NewMigrator(mongoDB.Database, appLogger.WithField("component", "migrations")).Down(target); err != nil {
		return err
	}
	appLogger.Info("Migrations reverted, exiting")
	return nil
}

func buildGeoIndex(kind string, drivers interfaces.DriverRepository, redisCache *cache.RedisCache) services.GeospatialIndex {
	switch kind {
	case config.GeoIndexRedis:
		return services.NewPointGeoIndex(geo.NewRedisIndex(redisCache, utils.DriverGeoKey), drivers)
	case config.GeoIndexMemory:
		return services.NewPointGeoIndex(geo.NewMemoryIndex(), drivers)
	default:
		return services.NewRepositoryGeoIndex(drivers)
	}
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return name
}
