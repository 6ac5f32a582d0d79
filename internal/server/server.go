package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cursor2b-collab/vip-sub000/internal/auth"
	"github.com/cursor2b-collab/vip-sub000/internal/authstate"
	"github.com/cursor2b-collab/vip-sub000/internal/cache"
	"github.com/cursor2b-collab/vip-sub000/internal/catalog"
	"github.com/cursor2b-collab/vip-sub000/internal/config"
	"github.com/cursor2b-collab/vip-sub000/internal/database"
	"github.com/cursor2b-collab/vip-sub000/internal/events"
	"github.com/cursor2b-collab/vip-sub000/internal/gamesession"
	"github.com/cursor2b-collab/vip-sub000/internal/handlers"
	custommiddleware "github.com/cursor2b-collab/vip-sub000/internal/middleware"
	"github.com/cursor2b-collab/vip-sub000/internal/upstream"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type LobbyServer struct {
	config          *config.Config
	db              *database.DB
	api             *upstream.Client
	state           *authstate.Store
	catalog         *catalog.Service
	controller      *gamesession.Controller
	jwtManager      *auth.JWTManager
	authMiddleware  *auth.AuthMiddleware
	apiRateLimiter  *custommiddleware.RateLimiter
	authRateLimiter *custommiddleware.RateLimiter
	hub             *events.Hub
	server          *http.Server
}

func NewLobbyServer() (*LobbyServer, error) {
	// Load configuration
	cfg := config.Load()
	log := slog.Default()

	// Setup database
	db, err := database.NewConnection(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.AutoMigrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// Setup Redis-backed cache
	redisClient, err := cache.NewRedisClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	c := cache.New(redisClient)

	// Upstream platform client
	api := upstream.NewClient(cfg.PlatformAPIURL, cfg.PlatformAgentKey)

	// State holders
	state := authstate.NewStore(api, c, cfg.BalancePollInterval, log)
	catalogService := catalog.NewService(api, c, cfg.CatalogCacheTTL, log)
	controller := gamesession.NewController(api, state, db,
		cfg.LaunchTimeout, cfg.TransferOutTimeout, cfg.BalanceSettleDelay, log)

	// Gateway auth
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, "lobby-gateway")
	authMiddleware := auth.NewAuthMiddleware(jwtManager)

	// Rate limiters
	apiRateLimiter := custommiddleware.NewAPIRateLimiter()
	authRateLimiter := custommiddleware.NewAuthRateLimiter()

	// Event push hub; every auth/balance change fans out to the player's
	// connected shells.
	hub := events.NewHub(log)
	state.Subscribe(func(change authstate.Change) {
		hub.Broadcast(change.PlayerID, string(change.Event), change)
	})

	return &LobbyServer{
		config:          cfg,
		db:              db,
		api:             api,
		state:           state,
		catalog:         catalogService,
		controller:      controller,
		jwtManager:      jwtManager,
		authMiddleware:  authMiddleware,
		apiRateLimiter:  apiRateLimiter,
		authRateLimiter: authRateLimiter,
		hub:             hub,
	}, nil
}

func (s *LobbyServer) Start() error {
	router := s.setupRouter()

	s.server = &http.Server{
		Addr:    ":" + s.config.Port,
		Handler: router,
	}

	go s.hub.Run()

	// Warm the catalog so the first lobby render doesn't pay for the fetch.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.catalog.Load(ctx); err != nil {
			slog.Warn("catalog warm-up failed, will retry on demand", "error", err)
		}
	}()

	go func() {
		slog.Info("Starting lobby gateway", "port", s.config.Port)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down lobby gateway")

	// Sweep any live game sessions so no vendor ledger is left holding
	// funds across the restart.
	s.controller.CloseAll(gamesession.TriggerUnmount)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}

	if err := s.db.Close(); err != nil {
		slog.Warn("failed to close database", "error", err)
	}

	slog.Info("Server exited cleanly")
	return nil
}

func (s *LobbyServer) setupRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(auth.RequestLogger())
	r.Use(middleware.Recoverer)
	r.Use(auth.SecurityHeaders)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	authHandler := handlers.NewAuthHandler(s.api, s.state, s.jwtManager, slog.Default())
	gameHandler := handlers.NewGameHandler(s.controller)
	lobbyHandler := handlers.NewLobbyHandler(s.catalog, s.api, s.state)
	walletHandler := handlers.NewWalletHandler(s.api, s.state, s.db, slog.Default())

	r.Route("/api", func(r chi.Router) {
		r.Use(s.apiRateLimiter.RateLimit)

		r.Group(func(r chi.Router) {
			r.Use(s.authRateLimiter.RateLimit)
			r.Mount("/auth", authHandler.Routes())
		})

		r.Mount("/lobby", lobbyHandler.Routes())

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware.RequireAuth)
			r.Mount("/auth/session", authHandler.ProtectedRoutes())
			r.Mount("/account", lobbyHandler.ProtectedRoutes())
			r.Mount("/wallet", walletHandler.Routes())
			r.Mount("/game", gameHandler.Routes())
		})
	})

	// Push socket; authenticated via token query parameter since browsers
	// cannot set headers on websocket handshakes.
	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware.RequireAuth)
		r.Get("/ws", func(w http.ResponseWriter, req *http.Request) {
			playerID, ok := auth.GetPlayerIDFromContext(req.Context())
			if !ok {
				http.Error(w, "User not authenticated", http.StatusUnauthorized)
				return
			}
			s.hub.ServeWS(w, req, playerID)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	return r
}
