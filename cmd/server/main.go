package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/mongo"

	echoapi "go.pilab.hu/authgate/api/echo"
	rediscache "go.pilab.hu/authgate/cache/redis"
	"go.pilab.hu/authgate/config"
	"go.pilab.hu/authgate/internal/metrics"
	"go.pilab.hu/authgate/middleware"
	"go.pilab.hu/authgate/mongodb"
	"go.pilab.hu/authgate/services"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	setupLogging(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// Fail fast on bad key material before touching any backend.
	signer, err := services.NewTokenSigner(cfg.JWTAlgorithm, cfg.JWTSecretKey, cfg.JWTPrivateKeyPEM, cfg.JWTPublicKeyPEM)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid signing configuration")
	}
	codec := services.NewTokenCodec(signer, cfg.JWTIssuer, cfg.JWTAudience)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("Failed to connect to Redis")
	}
	distributed := rediscache.NewCache(redisClient, cfg.CacheKeyPrefix)

	mongoClient, err := mongodb.Connect(ctx, cfg.MongoURI)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to MongoDB")
	}
	db := mongoClient.Database(cfg.MongoDBName)

	subjects := mongodb.NewSubjectRepositoryMongo(db)
	sessions, err := mongodb.NewSessionRepositoryMongo(ctx, db)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize session repository")
	}

	tokenService := services.NewTokenService(
		codec,
		services.NewRevocationStore(distributed),
		subjects,
		sessions,
		distributed,
		time.Duration(cfg.AccessTokenTTLMin)*time.Minute,
		time.Duration(cfg.RefreshTokenTTLHour)*time.Hour,
	)

	metrics.Register(prometheus.DefaultRegisterer)

	e := buildServer(cfg, tokenService, subjects, distributed, mongoClient, redisClient)

	go func() {
		log.Info().Str("port", cfg.HTTPPort).Msg("Starting HTTP server")
		if err := e.Start(":" + cfg.HTTPPort); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	tokenService.Close()
	if err := redisClient.Close(); err != nil {
		log.Warn().Err(err).Msg("Redis client close failed")
	}
	if err := mongoClient.Disconnect(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("MongoDB client disconnect failed")
	}
	log.Info().Msg("Shutdown complete")
}

func setupLogging(cfg *config.ServerConfig) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func buildServer(
	cfg *config.ServerConfig,
	tokenService *services.TokenService,
	subjects *mongodb.SubjectRepositoryMongo,
	distributed *rediscache.Cache,
	mongoClient *mongo.Client,
	redisClient *redis.Client,
) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())

	e.GET("/healthz", func(c echo.Context) error {
		ctx := c.Request().Context()
		if err := mongodb.Ping(ctx, mongoClient); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "mongodb unreachable"})
		}
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "redis unreachable"})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	authCfg := middleware.AuthConfig{
		Verifier:       tokenService,
		InternalAPIKey: cfg.InternalAPIKey,
	}
	idemCfg := middleware.IdempotencyConfig{
		ServiceName: cfg.ServiceName,
		Cache:       distributed,
		TTL:         time.Duration(cfg.IdempotencyTTLHour) * time.Hour,
	}

	echoapi.NewAuthAPI(tokenService, subjects).RegisterRoutes(e, authCfg, idemCfg)

	return e
}
