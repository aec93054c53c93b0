package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func newLogger() zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	return zerolog.New(output).With().Timestamp().Logger()
}

func main() {
	migrateCmd := flag.Bool("migrate", false, "Run database migration")
	seedDemoCmd := flag.Bool("seed-demo", false, "Seed a demo user with transactions (idempotent)")
	digestCmd := flag.Bool("digest", false, "Run the daily summary digest once and exit")
	flag.Parse()

	log := newLogger()

	if *migrateCmd {
		if err := setupDatabase(log); err != nil {
			log.Fatal().Err(err).Msg("migration failed")
		}
		log.Info().Msg("migration completed successfully")
		return
	}

	// Build the store: Postgres when configured, in-memory otherwise.
	var store Store
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		if *seedDemoCmd {
			log.Fatal().Msg("-seed-demo requires DATABASE_URL to be set")
		}
		log.Warn().Msg("DATABASE_URL not set, using in-memory store (data is not persisted)")
		store = newMemoryStore()
	} else {
		db, err := openDatabase(databaseURL, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize database")
		}
		defer db.Close()

		if *seedDemoCmd {
			if err := seedDemoData(db); err != nil {
				log.Fatal().Err(err).Msg("seeding demo data failed")
			}
			log.Info().Msg("demo data seeded")
			return
		}
		store = newPostgresStore(db)
	}

	var cache *redis.Client
	if rdb, err := initRedis(); err != nil {
		log.Warn().Err(err).Msg("failed to initialize Redis, continuing without cache")
	} else {
		cache = rdb
	}

	push := newPushSenderFromEnv()
	if push == nil {
		log.Warn().Msg("VAPID keys not set, push notifications disabled")
	}

	srv := newServer(store, cache, push, log)

	if *digestCmd {
		if _, err := srv.runDailyDigest(context.Background()); err != nil {
			log.Fatal().Err(err).Msg("daily digest failed")
		}
		return
	}

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	srv.registerRoutes(r)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Info().Str("port", port).Msg("server starting")
	if err := r.Run(":" + port); err != nil {
		log.Fatal().Err(err).Msg("failed to start server")
	}
}
