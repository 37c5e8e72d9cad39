// cmd/api/main.go
// Main entry point for the application.
// This file bootstraps all components and starts the server.

package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"mime/multipart"
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

	// Internal packages
	"github.com/printhive/printhive-backend/internal/auth"
	"github.com/printhive/printhive-backend/internal/common/database"
	"github.com/printhive/printhive-backend/internal/common/utils"
	"github.com/printhive/printhive-backend/internal/config"
	"github.com/printhive/printhive-backend/internal/listings"
	"github.com/printhive/printhive-backend/internal/messaging"
	"github.com/printhive/printhive-backend/internal/notify"
	"github.com/printhive/printhive-backend/internal/profile"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	log.Println("========================================")
	log.Println("🚀 Starting Printhive Marketplace API")
	log.Println("========================================")

	// 1. Load environment variables
	log.Println("📁 Step 1: Loading .env file...")
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  Warning: No .env file found (%v), using environment variables", err)
	} else {
		log.Println("✅ .env file loaded successfully")
	}

	// 2. Load and validate configuration
	log.Println("\n📋 Step 2: Loading configuration...")
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal("❌ Configuration validation failed: ", err)
	}
	log.Println("✅ Configuration loaded and valid")

	// 3. Connect to PostgreSQL
	log.Println("\n🗄️  Step 3: Connecting to PostgreSQL...")
	db, err := database.NewPostgresDBFromURL(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("❌ Failed to connect to PostgreSQL: ", err)
	}
	defer db.Close()
	log.Println("✅ Connected to PostgreSQL successfully")

	// 4. Connect to Redis (optional)
	log.Println("\n📮 Step 4: Connecting to Redis...")
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.NewRedisClient(cfg.RedisURL)
		if err != nil {
			log.Printf("⚠️  Redis unavailable (%v), continuing without it", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
			log.Println("✅ Connected to Redis successfully")
		}
	} else {
		log.Println("⚠️  Redis URL not configured, skipping Redis connection")
	}

	// 5. Run database migrations
	log.Println("\n🔨 Step 5: Running database migrations...")
	if err := runMigrations(db); err != nil {
		log.Fatal("❌ Failed to run migrations: ", err)
	}
	log.Println("✅ Database migrations completed")

	sqlxDB := sqlx.NewDb(db, "postgres")

	// 6. Initialize upload storage
	log.Println("\n📦 Step 6: Initializing upload storage...")
	uploadService, err := listings.NewUploadService(listings.UploadConfig{
		UseS3:          cfg.UseS3,
		S3Bucket:       cfg.S3Bucket,
		AWSRegion:      cfg.AWSRegion,
		LocalUploadDir: cfg.LocalUploadDir,
		BaseURL:        cfg.BaseURL,
		MaxSizeBytes:   cfg.MaxUploadSize,
	})
	if err != nil {
		log.Fatal("❌ Failed to initialize upload service: ", err)
	}
	if cfg.UseS3 {
		log.Println("✅ Using S3 for uploads")
	} else {
		log.Println("📝 Using local disk for uploads (development mode)")
	}

	// 7. Initialize Profile module
	log.Println("\n👤 Step 7: Initializing Profile module...")
	profileRepo := profile.NewPostgresRepository(sqlxDB)
	profileService := profile.NewService(profileRepo)
	avatarUpload := func(file multipart.File, header *multipart.FileHeader) (string, error) {
		return uploadService.UploadFile(file, header, listings.UploadKindPhoto)
	}
	profileHandler := profile.NewHandler(profileService, avatarUpload, cfg.MaxUploadSize)
	log.Println("✅ Profile module initialized")

	// 8. Initialize Auth module
	log.Println("\n🔐 Step 8: Initializing Auth module...")
	authRepo := auth.NewPostgresRepository(sqlxDB)
	authService := auth.NewService(authRepo, redisClient, profileService, &auth.Config{
		JWTSecret:          cfg.JWTSecret,
		AccessTokenExpiry:  cfg.AccessTokenExpiry,
		RefreshTokenExpiry: cfg.RefreshTokenExpiry,
		BCryptCost:         cfg.BCryptCost,
	})
	authMiddleware := auth.NewMiddleware(authService)
	authHandler := auth.NewHandler(authService)
	log.Println("✅ Auth module initialized")

	// 9. Initialize Listings module
	log.Println("\n🖨️  Step 9: Initializing Listings module...")
	listingsRepo := listings.NewPostgresRepository(sqlxDB)
	listingsService := listings.NewService(listingsRepo, uploadService, cfg.NearbyDefaultRadiusKM, cfg.MaxNearbyResults)
	listingsHandler := listings.NewHandler(listingsService, cfg.MaxUploadSize)
	log.Println("✅ Listings module initialized")

	// 10. Initialize Notify module
	log.Println("\n🔔 Step 10: Initializing Notify module...")
	notifyService := notify.NewService(cfg, &contactDirectory{users: authService})
	log.Printf("   📧 Email provider: %s", cfg.EmailProvider)
	log.Printf("   📱 SMS provider: %s", cfg.SMSProvider)
	log.Println("✅ Notify module initialized")

	// 11. Initialize Messaging module
	log.Println("\n💬 Step 11: Initializing Messaging module...")
	messagingRepo := messaging.NewPostgresRepository(sqlxDB)
	messagingService := messaging.NewService(messagingRepo, profileService, listingsService, notifyService, cfg.MarkReadBatchLimit)

	messagingHub := messaging.NewHub()
	messagingService.SetHub(messagingHub)
	go messagingHub.Run()
	log.Println("   ✅ WebSocket hub started")

	messagingHandler := messaging.NewMessageHandler(messagingService, notifyService, messagingHub)
	log.Println("✅ Messaging module initialized")

	// 12. Set up routes
	log.Println("\n🌐 Step 12: Setting up routes...")
	router := mux.NewRouter()

	auth.RegisterRoutes(router, authHandler, authMiddleware.Authenticate)
	profile.RegisterRoutes(router, profileHandler, authMiddleware.Authenticate)
	listings.RegisterRoutes(router, listingsHandler, authMiddleware.Authenticate)
	messaging.RegisterRoutes(router, messagingHandler, authMiddleware.Authenticate)

	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(); err != nil {
			utils.ErrorResponse(w, "database unreachable", http.StatusServiceUnavailable)
			return
		}
		utils.MessageResponse(w, "ok", http.StatusOK)
	}).Methods("GET")

	if !cfg.UseS3 {
		router.PathPrefix("/uploads/").Handler(
			http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.LocalUploadDir))))
	}

	router.Use(loggingMiddleware)
	router.Use(corsMiddleware)
	log.Println("✅ Routes registered")

	// 13. Create and start HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Println("\n========================================")
		log.Printf("🚀 Server starting on http://localhost%s", srv.Addr)
		log.Printf("🌍 Environment: %s", cfg.Environment)
		log.Println("========================================")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("❌ Failed to start server: ", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("\n⚠️  Shutdown signal received...")

	log.Println("   - Shutting down messaging hub...")
	messagingHub.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("❌ Server forced to shutdown: ", err)
	}

	log.Println("✅ Server exited gracefully")
}

// contactDirectory adapts the auth service to the notify package
type contactDirectory struct {
	users auth.Service
}

func (d *contactDirectory) GetContact(ctx context.Context, userID int64) (*notify.Contact, error) {
	user, err := d.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	contact := &notify.Contact{Email: user.Email, Username: user.Username}
	if user.Phone != nil {
		contact.Phone = *user.Phone
	}
	return contact, nil
}

// loggingMiddleware logs all requests
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		log.Printf("← %s %s [%d] %v", r.Method, r.RequestURI, wrapped.statusCode, time.Since(start))
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
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// runMigrations executes database migrations
func runMigrations(db *sql.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id BIGSERIAL PRIMARY KEY,
            email VARCHAR(255) UNIQUE NOT NULL,
            username VARCHAR(30) UNIQUE NOT NULL,
            phone VARCHAR(20),
            password_hash VARCHAR(255) NOT NULL,
            is_verified BOOLEAN DEFAULT FALSE,
            last_login_at TIMESTAMPTZ,
            created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
        )`,

		`CREATE TABLE IF NOT EXISTS profiles (
            user_id BIGINT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
            full_name VARCHAR(100) NOT NULL,
            account_type VARCHAR(10) NOT NULL CHECK (account_type IN ('buyer', 'seller')),
            bio TEXT,
            location VARCHAR(100),
            latitude DOUBLE PRECISION,
            longitude DOUBLE PRECISION,
            avatar_url TEXT,
            created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
        )`,

		`CREATE TABLE IF NOT EXISTS listings (
            id BIGSERIAL PRIMARY KEY,
            seller_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            title VARCHAR(150) NOT NULL,
            description TEXT NOT NULL,
            price NUMERIC(12,2) NOT NULL CHECK (price > 0),
            category VARCHAR(50) NOT NULL,
            material VARCHAR(50),
            photo_urls TEXT[] NOT NULL DEFAULT '{}',
            model_file_url TEXT,
            latitude DOUBLE PRECISION,
            longitude DOUBLE PRECISION,
            is_active BOOLEAN DEFAULT TRUE,
            created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE INDEX IF NOT EXISTS idx_listings_seller ON listings(seller_id)`,
		`CREATE INDEX IF NOT EXISTS idx_listings_active_created ON listings(is_active, created_at DESC)`,

		`CREATE TABLE IF NOT EXISTS messages (
            id BIGSERIAL PRIMARY KEY,
            sender_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            receiver_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            listing_id BIGINT REFERENCES listings(id) ON DELETE SET NULL,
            content TEXT NOT NULL CHECK (length(trim(content)) > 0),
            is_read BOOLEAN DEFAULT FALSE,
            created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
            CHECK (sender_id <> receiver_id)
        )`,
		`CREATE INDEX IF NOT EXISTS idx_messages_sender ON messages(sender_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_receiver ON messages(receiver_id, is_read)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_pair ON messages(sender_id, receiver_id, listing_id, created_at)`,

		`CREATE TABLE IF NOT EXISTS sale_confirmations (
            id BIGSERIAL PRIMARY KEY,
            listing_id BIGINT REFERENCES listings(id) ON DELETE SET NULL,
            buyer_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            seller_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            seller_confirmed BOOLEAN NOT NULL DEFAULT FALSE,
            buyer_confirmed BOOLEAN NOT NULL DEFAULT FALSE,
            sale_completed BOOLEAN NOT NULL DEFAULT FALSE,
            seller_confirmed_at TIMESTAMPTZ,
            buyer_confirmed_at TIMESTAMPTZ,
            sale_completed_at TIMESTAMPTZ,
            created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
            CHECK (buyer_id <> seller_id)
        )`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_sale_confirmations_triple
            ON sale_confirmations (COALESCE(listing_id, 0), buyer_id, seller_id)`,
	}

	for i, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
