package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/devsketch/apiserver/config"
	"github.com/devsketch/apiserver/internal/db"
	"github.com/devsketch/apiserver/internal/handlers"
	"github.com/devsketch/apiserver/internal/mq"
	"github.com/devsketch/apiserver/internal/services"
	"github.com/devsketch/apiserver/internal/session"
	"github.com/devsketch/apiserver/internal/store"
	"github.com/devsketch/apiserver/types"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Services is the wired application core.
type Services struct {
	Auth     *services.AuthService
	Authz    *services.AuthzService
	Projects *services.ProjectService
	Session  *session.Manager
}

// BuildServices wires repositories, the token lifecycle, the refresh
// coordinator and the authorization engine over one database handle.
func BuildServices(dbConn *sqlx.DB, cfg config.AuthConfig, events services.EventPublisher, logger *zap.Logger) Services {
	userRepo := store.NewUserRepository(dbConn)
	roleRepo := store.NewRoleRepository(dbConn)
	projectRepo := store.NewProjectRepository(dbConn)

	tokens := services.NewTokenService(userRepo, cfg, events, logger)
	coordinator := services.NewRefreshCoordinator(tokens, logger)
	authz := services.NewAuthzService(roleRepo, userRepo, projectRepo, events, logger)

	cookies := session.CookiePolicy{
		AccessTTL:  tokens.AccessTTL(),
		RefreshTTL: tokens.RefreshTTL(),
		Secure:     cfg.CookieSecure,
	}

	return Services{
		Auth:     services.NewAuthService(userRepo, tokens, coordinator, events, logger),
		Authz:    authz,
		Projects: services.NewProjectService(projectRepo, authz, logger),
		Session:  session.NewManager(tokens, coordinator, authz, cookies, logger),
	}
}

// NewRouter mounts every route on a chi router.
func NewRouter(svc Services, logger *zap.Logger) *chi.Mux {
	httpLogger := logger.Named("http")
	requireSession := handlers.RequireSession(svc.Session, httpLogger)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		handlers.RequestLogger(httpLogger),
		middleware.Recoverer,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, svc.Auth, svc.Session, httpLogger)
	})
	router.Route("/projects", func(r chi.Router) {
		handlers.ProjectRouter(r, svc.Projects, requireSession, httpLogger)
	})
	router.Route("/operator-roles", func(r chi.Router) {
		handlers.OperatorRoleRouter(r, svc.Authz, requireSession, httpLogger)
	})
	return router
}

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sqlx.DB
	broker     mq.Backend
	stop       context.CancelFunc
	logger     *zap.Logger
}

// New constructs a Server from configuration.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	broker, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("open message broker: %w", err)
	}

	runCtx, stop := context.WithCancel(context.Background())
	events := newEventPublisher(runCtx, broker, cfg.MQ, logger)

	router := NewRouter(BuildServices(dbConn, cfg.Auth, events, logger), logger)

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		broker:     broker,
		stop:       stop,
		logger:     logger,
	}, nil
}

// newEventPublisher returns the event bus over broker, or a no-op publisher
// when no broker is configured. An in-process broker is tailed into the
// audit log until ctx is done.
func newEventPublisher(ctx context.Context, broker mq.Backend, cfg config.MQConfig, logger *zap.Logger) services.EventPublisher {
	if broker == nil {
		return services.NopPublisher{}
	}
	bus := mq.NewEventBus(broker, cfg, logger)
	if _, inProcess := broker.(*mq.MemoryBackend); inProcess {
		go auditLog(ctx, bus, logger.Named("audit"))
	}
	return bus
}

func auditLog(ctx context.Context, bus *mq.EventBus, logger *zap.Logger) {
	err := bus.Tail(ctx, func(event types.SecurityEvent) error {
		logger.Info("security event",
			zap.String("type", string(event.Type)),
			zap.Int64("user_id", event.UserID),
			zap.Int64("actor_id", event.ActorID),
			zap.String("event_id", event.ID),
		)
		return nil
	})
	if err != nil && ctx.Err() == nil {
		logger.Warn("audit tail stopped", zap.Error(err))
	}
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server. It returns http.ErrServerClosed after Shutdown.
func (s *Server) Start() error {
	s.logger.Info("server listening", zap.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests, then closes the broker and database.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.stop != nil {
		s.stop()
	}
	if s.broker != nil {
		_ = s.broker.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return err
}
