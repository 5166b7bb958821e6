package main

import (
	"encoding/json"
	stdlog "log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/spendwise/backend/src/config"
	"github.com/username/spendwise/backend/src/database"
	"github.com/username/spendwise/backend/src/handlers"
	"github.com/username/spendwise/backend/src/logger"
	"github.com/username/spendwise/backend/src/security"
	"github.com/username/spendwise/backend/src/services"
	"golang.org/x/time/rate"
)

var limiter = rate.NewLimiter(rate.Every(100*time.Millisecond), 30)

// loginLimiter mirrors the tighter throttle on credential endpoints: 5
// attempts per minute with a small burst.
var loginLimiter = rate.NewLimiter(rate.Every(12*time.Second), 5)

func rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			logger.L.Warn("Rate limit exceeded",
				"method", r.Method,
				"path", r.URL.Path,
				"remoteAddr", r.RemoteAddr)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func loginRateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !loginLimiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			logger.L.Warn("Login rate limit exceeded", "remoteAddr", r.RemoteAddr)
			return
		}
		next(w, r)
	}
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == config.Cfg.FrontendOrigin {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE, PATCH")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Requested-With")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)
	logger.L.Info("Spendwise backend server starting...")

	if len(config.Cfg.JWTSecret) < 32 {
		logger.L.Error("JWT_SECRET configuration invalid. Must be at least 32 bytes.")
		os.Exit(1)
	}

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	database.InitDB(config.Cfg.DatabasePath)

	logger.L.Info("Initializing report cache...")
	reportCache := cache.New(15*time.Minute, 30*time.Minute)

	logger.L.Info("Initializing services and handlers...")
	authService := security.NewAuthService(config.Cfg.JWTSecret)
	emailService := services.NewEmailService()
	captchaService := services.NewCaptchaService(config.Cfg.HCaptchaSecret, config.Cfg.HCaptchaVerifyURL)
	reportService := services.NewReportService(database.DB, time.Now, reportCache)
	importService := services.NewImportService(database.DB, reportService)

	userHandler := handlers.NewUserHandler(authService, emailService, captchaService)
	expenseHandler := handlers.NewExpenseHandler(reportService, importService)
	reportHandler := handlers.NewReportHandler(reportService)
	settingsHandler := handlers.NewSettingsHandler()
	incomeHandler := handlers.NewIncomeHandler()

	logger.L.Info("Configuring routes...")
	rootMux := http.NewServeMux()
	apiRouter := http.NewServeMux()

	// Public routes
	apiRouter.HandleFunc("POST /api/v1/register", loginRateLimit(userHandler.RegisterUserHandler))
	apiRouter.HandleFunc("POST /api/v1/login", loginRateLimit(userHandler.LoginUserHandler))
	apiRouter.HandleFunc("POST /api/v1/refresh", userHandler.RefreshTokenHandler)
	apiRouter.HandleFunc("GET /api/v1/auth/verify-email", userHandler.VerifyEmailHandler)

	// Protected routes: valid token, live session, verified email
	applyAuth := func(handler http.HandlerFunc) http.Handler {
		return userHandler.AuthMiddleware(handler)
	}

	apiRouter.Handle("GET /api/v1/user", applyAuth(userHandler.CurrentUserHandler))
	apiRouter.Handle("POST /api/v1/logout", applyAuth(userHandler.LogoutUserHandler))

	apiRouter.Handle("GET /api/v1/expenses", applyAuth(expenseHandler.HandleList))
	apiRouter.Handle("POST /api/v1/expenses", applyAuth(expenseHandler.HandleCreate))
	apiRouter.Handle("POST /api/v1/expenses/import", applyAuth(expenseHandler.HandleImport))
	apiRouter.Handle("GET /api/v1/expenses/{id}", applyAuth(expenseHandler.HandleGet))
	apiRouter.Handle("PUT /api/v1/expenses/{id}", applyAuth(expenseHandler.HandleUpdate))
	apiRouter.Handle("DELETE /api/v1/expenses/{id}", applyAuth(expenseHandler.HandleDelete))

	apiRouter.Handle("GET /api/v1/dashboard", applyAuth(reportHandler.HandleDashboard))
	apiRouter.Handle("GET /api/v1/reports", applyAuth(reportHandler.HandleYearReport))
	apiRouter.Handle("POST /api/v1/reports/filter", applyAuth(reportHandler.HandleFilterReport))

	apiRouter.Handle("GET /api/v1/settings", applyAuth(settingsHandler.HandleGet))
	apiRouter.Handle("PUT /api/v1/settings", applyAuth(settingsHandler.HandleUpdate))
	apiRouter.Handle("GET /api/v1/income", applyAuth(incomeHandler.HandleList))
	apiRouter.Handle("POST /api/v1/income", applyAuth(incomeHandler.HandleCreate))

	rootMux.Handle("/api/", apiRouter)

	rootMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" && r.Method == http.MethodGet {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"message": "Spendwise backend is running"})
			return
		}
		if !strings.HasPrefix(r.URL.Path, "/api/") {
			logger.L.Warn("Root level path not found", "method", r.Method, "path", r.URL.Path)
			http.NotFound(w, r)
		}
	})

	logger.L.Info("Applying global middleware...")
	finalHandler := enableCORS(rateLimitMiddleware(rootMux))

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      finalHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.L.Info("Server starting", "address", serverAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.L.Error("Failed to start server", "error", err)
		stdlog.Fatalf("Failed to start server: %v", err)
	}
	logger.L.Info("Server stopped gracefully.")
}
