// cmd/api/main.go
// Main entry point for the matching engine service
// This file bootstraps all components and starts the server

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/amoro-app/amoro-backend/internal/auth"
	"github.com/amoro-app/amoro-backend/internal/common/database"
	"github.com/amoro-app/amoro-backend/internal/config"
	"github.com/amoro-app/amoro-backend/internal/matching"
)

var startTime = time.Now()

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	log.Println("========================================")
	log.Println("🚀 Starting Amoro Matching Engine API")
	log.Println("========================================")

	// 1. Load environment variables
	log.Println("📁 Step 1: Loading .env file...")
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  Warning: No .env file found (%v), using environment variables", err)
	} else {
		log.Println("✅ .env file loaded successfully")
	}

	// 2. Load and validate configuration
	log.Println("📋 Step 2: Loading configuration...")
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal("❌ Configuration validation failed:", err)
	}
	log.Println("✅ Configuration is valid")

	// 3. Connect to PostgreSQL
	log.Println("🗄️  Step 3: Connecting to PostgreSQL...")
	db, err := database.NewPostgresDBFromURL(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("❌ Failed to connect to PostgreSQL:", err)
	}
	defer db.Close()
	log.Println("✅ Connected to PostgreSQL successfully")

	// 4. Connect to Redis (optional, variant outcome counters fall back
	// to in-process tallies without it)
	log.Println("📮 Step 4: Connecting to Redis...")
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.NewRedisClientFromURL(cfg.RedisURL)
		if err != nil {
			log.Printf("⚠️  Redis unavailable (%v), continuing without Redis", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
			log.Println("✅ Connected to Redis successfully")
		}
	} else {
		log.Println("⚠️  Redis URL not configured, skipping Redis connection")
	}

	// 5. Run database migrations
	log.Println("🔨 Step 5: Running database migrations...")
	if err := runMigrations(db); err != nil {
		log.Fatal("❌ Failed to run migrations: ", err)
	}
	log.Println("✅ Database migrations completed")

	// 6. Initialize the matching engine
	log.Println("💘 Step 6: Initializing matching engine...")

	repo := matching.NewPostgresRepository(db)

	variants, err := matching.ParseVariantWeights(cfg.VariantWeights)
	if err != nil {
		log.Fatal("❌ Invalid VARIANT_WEIGHTS: ", err)
	}
	variantRouter, err := matching.NewVariantRouter(variants, redisClient)
	if err != nil {
		log.Fatal("❌ Failed to build variant router: ", err)
	}
	if len(variants) > 0 {
		log.Printf("   ✅ %d scoring variant(s) configured", len(variants))
	} else {
		log.Println("   ✅ Control variant only (default weights)")
	}

	taskQueue := matching.NewTaskQueue(cfg.TaskWorkers, cfg.TaskQueueBuffer, cfg.TaskTimeout)
	trigger := matching.NewProbabilisticTrigger(cfg.ImplicitRefreshRate, nil)
	safety := matching.NewSafetyService(repo, matching.SafetyLimits{
		MaxSwipes: cfg.MaxSwipesPerWindow,
		Window:    cfg.SwipeWindow,
	})

	var hub *matching.Hub
	if cfg.EnableWebSocket {
		hub = matching.NewHub()
		go hub.Run()
		log.Println("   ✅ WebSocket hub started")
	}

	recOpts := matching.RecommendationOptions{
		DefaultLimit: cfg.RecommendationLimit,
		PoolLimit:    cfg.CandidatePoolLimit,
		ScoreWorkers: cfg.ScoreWorkers,
	}

	var notifier matching.MatchNotifier
	if hub != nil {
		notifier = hub
	}
	matchingService := matching.NewService(repo, variantRouter, taskQueue, trigger, safety, notifier, recOpts)
	matchingHandler := matching.NewHandler(matchingService, variantRouter)
	log.Println("✅ Matching engine initialized")

	// 7. Start the nightly preference sweep
	schedulerCtx, stopScheduler := context.WithCancel(context.Background())
	defer stopScheduler()
	if cfg.EnableScheduler {
		scheduler := matching.NewScheduler(matchingService, cfg.RefreshHourUTC)
		scheduler.Start(schedulerCtx)
		log.Printf("   ✅ Implicit preference sweep scheduled for %02d:00", cfg.RefreshHourUTC)
	}

	// 8. Setup routes
	log.Println("🛣️  Step 7: Setting up routes...")
	router := mux.NewRouter()

	router.HandleFunc("/health", healthCheck).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	authMiddleware := auth.NewMiddleware(cfg.JWTSecret)
	matching.RegisterRoutes(router, matchingHandler, hub, authMiddleware)
	log.Println("   ✅ Matching routes registered")

	router.Use(loggingMiddleware)
	router.Use(corsMiddleware)

	// 9. Create and start HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Println("========================================")
		log.Printf("🚀 Server starting on http://localhost%s", srv.Addr)
		log.Printf("🌍 Environment: %s", cfg.Environment)
		log.Println("========================================")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("❌ Failed to start server:", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("⚠️  Shutdown signal received...")

	stopScheduler()
	if hub != nil {
		log.Println("   - Shutting down WebSocket hub...")
		hub.Shutdown()
	}

	log.Println("   - Draining background queue...")
	taskQueue.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("❌ Server forced to shutdown:", err)
	}

	log.Println("✅ Server exited gracefully")
}

// healthCheck returns server health status
func healthCheck(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(startTime).String(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// loggingMiddleware logs all requests
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		log.Printf("%s %s [%d] %v", r.Method, r.RequestURI, wrapped.statusCode, time.Since(start))
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// corsMiddleware handles CORS
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// runMigrations creates the engine's tables. The unique indexes on swipes
// and matches are what make duplicate swipes and concurrent match creation
// resolve safely, so they are not optional.
func runMigrations(db *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS user_profiles (
			id BIGSERIAL PRIMARY KEY,
			display_name VARCHAR(100) NOT NULL,
			age INTEGER NOT NULL,
			gender VARCHAR(20) NOT NULL,
			interests TEXT[] NOT NULL DEFAULT '{}',
			latitude DOUBLE PRECISION,
			longitude DOUBLE PRECISION,
			max_distance_km DOUBLE PRECISION NOT NULL DEFAULT 100,
			last_active TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT CURRENT_TIMESTAMP,
			pref_age_min INTEGER NOT NULL DEFAULT 18,
			pref_age_max INTEGER NOT NULL DEFAULT 100,
			pref_gender VARCHAR(20) NOT NULL DEFAULT 'any',
			avg_swipe_time_ms DOUBLE PRECISION NOT NULL DEFAULT 0,
			swipe_count BIGINT NOT NULL DEFAULT 0,
			like_count BIGINT NOT NULL DEFAULT 0,
			dislike_count BIGINT NOT NULL DEFAULT 0,
			active_hours BIGINT[] NOT NULL DEFAULT array_fill(0::bigint, ARRAY[24]),
			last_view_duration_ms BIGINT NOT NULL DEFAULT 0,
			implicit_preferences JSONB
		)`,

		`CREATE TABLE IF NOT EXISTS swipes (
			id BIGSERIAL PRIMARY KEY,
			from_user_id BIGINT NOT NULL REFERENCES user_profiles(id) ON DELETE CASCADE,
			to_user_id BIGINT NOT NULL REFERENCES user_profiles(id) ON DELETE CASCADE,
			direction VARCHAR(10) NOT NULL,
			swipe_time_ms BIGINT,
			view_duration_ms BIGINT,
			viewed_sections TEXT[],
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS matches (
			id BIGSERIAL PRIMARY KEY,
			user1_id BIGINT NOT NULL REFERENCES user_profiles(id) ON DELETE CASCADE,
			user2_id BIGINT NOT NULL REFERENCES user_profiles(id) ON DELETE CASCADE,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			closed_by BIGINT,
			closed_at TIMESTAMP WITH TIME ZONE,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT matches_canonical_order CHECK (user1_id < user2_id)
		)`,

		`CREATE UNIQUE INDEX IF NOT EXISTS idx_swipes_pair ON swipes(from_user_id, to_user_id)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_matches_pair ON matches(user1_id, user2_id)`,
		`CREATE INDEX IF NOT EXISTS idx_swipes_from_created ON swipes(from_user_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_matches_user1 ON matches(user1_id)`,
		`CREATE INDEX IF NOT EXISTS idx_matches_user2 ON matches(user2_id)`,
		`CREATE INDEX IF NOT EXISTS idx_profiles_last_active ON user_profiles(last_active DESC)`,
	}

	for i, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	return nil
}
