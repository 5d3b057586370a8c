package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/naiyo-24/Mommynme/internal/cart"
	"github.com/naiyo-24/Mommynme/internal/catalog"
	"github.com/naiyo-24/Mommynme/internal/httpapi"
	"github.com/naiyo-24/Mommynme/internal/persistence"
	"github.com/naiyo-24/Mommynme/internal/session"
)

type Config struct {
	HTTPPort        string
	MongoURI        string
	MongoDBName     string
	RedisAddr       string
	RedisPassword   string
	KafkaBrokers    []string
	AuthTopic       string
	AuthURL         string
	CatalogURL      string
	CatalogDBPath   string
	MigrationsPath  string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

func loadConfig() *Config {
	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		MongoURI:        getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName:     getEnv("MONGO_DB_NAME", "storefront"),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		KafkaBrokers:    strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
		AuthTopic:       getEnv("AUTH_TOPIC", "auth-events"),
		AuthURL:         getEnv("AUTH_URL", ""),
		CatalogURL:      getEnv("CATALOG_URL", ""),
		CatalogDBPath:   getEnv("CATALOG_DB_PATH", "catalog.db"),
		MigrationsPath:  getEnv("CATALOG_MIGRATIONS_PATH", "internal/catalog/migrations"),
		RequestTimeout:  30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	cfg := loadConfig()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	ctx := context.Background()

	// Remote cart records live in MongoDB, keyed by user id.
	mongoDB, err := persistence.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to MongoDB")
	}
	defer mongoDB.Client().Disconnect(ctx)
	recordStore := persistence.NewMongoRecordStore(mongoDB)
	if err := recordStore.CreateIndexes(ctx); err != nil {
		log.WithError(err).Fatal("failed to create cart indexes")
	}
	log.WithField("uri", cfg.MongoURI).Info("connected to MongoDB")

	// Anonymous carts live in Redis, keyed by session id.
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.WithError(err).Fatal("Redis connection failed")
	}
	log.WithField("addr", cfg.RedisAddr).Info("connected to Redis")

	supplier, closeSupplier, err := buildCatalogSupplier(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to set up catalog supplier")
	}
	defer closeSupplier()

	// New session gates resolve against the auth supplier, so a user whose
	// sign-in event predates the session (a restart, a new instance) still
	// comes back authenticated. Without AUTH_URL sessions start anonymous
	// and rely on auth events alone.
	identity := func(string) session.IdentityFunc { return session.AnonymousIdentity }
	if cfg.AuthURL != "" {
		identityClient := session.NewIdentityClient(cfg.AuthURL)
		identity = identityClient.Identity
		log.WithField("url", cfg.AuthURL).Info("using auth supplier for identity checks")
	} else {
		log.Warn("AUTH_URL not set, new sessions start anonymous")
	}

	// The registry owns every live session: one gate, one adapter, one
	// hydrated store apiece.
	registry := cart.NewRegistry(func(ctx context.Context, sessionID string) (*cart.Session, error) {
		sessionLog := log.WithField("session_id", sessionID)

		gate := session.NewGate(sessionLog)
		gate.Check(ctx, identity(sessionID))

		local := persistence.NewRedisStorage(redisClient, sessionID)
		adapter := persistence.NewAdapter(gate, recordStore, local, sessionLog)

		store := cart.NewStore(adapter, sessionLog)
		if err := store.Open(ctx); err != nil {
			return nil, err
		}
		return &cart.Session{Store: store, Gate: gate}, nil
	})
	defer registry.Close()

	// Auth supplier pushes sign-in/sign-out events; the consumer flips the
	// matching session gates.
	consumerCtx, cancelConsumer := context.WithCancel(ctx)
	consumer := session.NewConsumer(cfg.KafkaBrokers, cfg.AuthTopic, "storefront-auth-consumer",
		registry.LookupGate, log.WithField("component", "auth-consumer"))
	go consumer.Run(consumerCtx)

	cartHandler := httpapi.NewCartHandler(registry, supplier, cfg.RequestTimeout,
		log.WithField("component", "httpapi"))

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Compress(5))
	r.Use(httpapi.SessionMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Route("/api/v1", cartHandler.Routes)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(r, "storefront"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.HTTPPort).Info("storefront starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down storefront...")
	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Fatal("server forced to shutdown")
	}

	cancelConsumer()
	consumer.Close()
	log.Info("storefront stopped")
}

// buildCatalogSupplier picks the commerce API client when CATALOG_URL is
// set, else a local seeded sqlite catalog.
func buildCatalogSupplier(cfg *Config, log *logrus.Logger) (catalog.Supplier, func(), error) {
	if cfg.CatalogURL != "" {
		log.WithField("url", cfg.CatalogURL).Info("using remote catalog")
		return catalog.NewClient(cfg.CatalogURL), func() {}, nil
	}

	supplier, err := catalog.NewSQLiteSupplier(cfg.CatalogDBPath)
	if err != nil {
		return nil, nil, err
	}
	if err := supplier.RunMigrations(cfg.MigrationsPath); err != nil {
		supplier.Close()
		return nil, nil, err
	}
	log.WithField("path", cfg.CatalogDBPath).Info("using local catalog")
	return supplier, func() { supplier.Close() }, nil
}
