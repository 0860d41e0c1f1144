package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"

	"flipzone/cart"
	"flipzone/catalog"
	"flipzone/config"
	"flipzone/controllers"
	"flipzone/events"
	"flipzone/health"
	"flipzone/metrics"
	"flipzone/middleware"
	"flipzone/routes"
	"flipzone/store"
	"flipzone/utils"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	logger := config.NewLogger(cfg)
	if err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Fatal("server stopped with error")
	}
	logger.Info("server stopped")
}

func run(ctx context.Context, cfg config.Config, logger *log.Entry) error {
	healthHandler := health.NewHandler(version, cfg.StoreTimeout)

	var (
		carts    store.CartRepository
		products store.ProductRepository
		users    store.UserRepository
	)
	switch cfg.StorageDriver {
	case config.DriverMemory:
		logger.Warn("using in-memory storage, data is lost on restart")
		carts = store.NewMemoryCartRepository()
		products = store.NewMemoryProductRepository()
		users = store.NewMemoryUserRepository()
	default:
		client, err := store.ConnectDB(ctx, cfg.MongoURI)
		if err != nil {
			return err
		}
		defer disconnect(client, logger)

		db := client.Database(cfg.MongoDatabase)
		if err := store.EnsureIndexes(ctx, db); err != nil {
			return err
		}
		carts = store.NewMongoCartRepository(db)
		products = store.NewMongoProductRepository(db)
		users = store.NewMongoUserRepository(db)
		healthHandler.RegisterChecker("mongodb", health.MongoChecker(client))
	}

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kafka, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return err
		}
		publisher = kafka
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.WithError(err).Warn("closing event publisher")
		}
	}()

	mailer, err := utils.NewMailer(cfg.MailProvider, cfg.PostmarkAPIToken, cfg.SendgridAPIKey, cfg.EmailSender)
	if err != nil {
		return err
	}

	m := metrics.New()
	tokens := utils.NewTokens(cfg.JWTSecret, cfg.JWTRefreshSecret)
	productCatalog := catalog.NewService(products, cfg.StoreTimeout, logger.WithField("component", "catalog"))
	cartStore := cart.NewStore(carts, productCatalog, cfg.StoreTimeout, logger.WithField("component", "cart"))

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	limiter.StartCleanup(ctx, 10*time.Minute)

	router := mux.NewRouter()
	router.Use(
		middleware.Logging(logger.WithField("component", "http")),
		middleware.Recover(logger),
		middleware.Metrics(m),
	)
	routes.RegisterRoutes(router, routes.Handlers{
		Users:    controllers.NewUserController(users, tokens, mailer, cfg.StoreTimeout, cfg.IsProduction()),
		Products: controllers.NewProductController(productCatalog),
		Cart:     controllers.NewCartController(cartStore, publisher, m),
		Auth:     middleware.NewAuthenticator(tokens, users, cfg.StoreTimeout),
		Health:   healthHandler,
		Metrics:  promhttp.Handler(),
		Limiter:  limiter,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("port", cfg.Port).Info("Server is running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func disconnect(client *mongo.Client, logger *log.Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Disconnect(ctx); err != nil {
		logger.WithError(err).Error("disconnecting from mongodb")
	}
}
