package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/SeerNT/UniversityAPI/internal/auth"
	"github.com/SeerNT/UniversityAPI/internal/config"
	"github.com/SeerNT/UniversityAPI/internal/db"
	"github.com/SeerNT/UniversityAPI/internal/events"
	"github.com/SeerNT/UniversityAPI/internal/health"
	"github.com/SeerNT/UniversityAPI/internal/httputil"
	"github.com/SeerNT/UniversityAPI/internal/major"
	"github.com/SeerNT/UniversityAPI/internal/metrics"
	"github.com/SeerNT/UniversityAPI/internal/middleware"
	"github.com/SeerNT/UniversityAPI/internal/photo"
	"github.com/SeerNT/UniversityAPI/internal/student"
	"github.com/SeerNT/UniversityAPI/internal/user"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/uptrace/bun"
	"google.golang.org/grpc"
)

const ServiceName = "university-api"

type App struct {
	config    *config.Config
	logger    *slog.Logger
	db        *bun.DB
	telemetry *metrics.Telemetry
	publisher events.Publisher
	limiter   *middleware.RateLimiter

	router     chi.Router
	server     *http.Server
	grpcServer *grpc.Server
	health     *health.GRPCServer
	stopWatch  context.CancelFunc
}

// Models returns the tables in creation order; students reference majors.
func Models() []interface{} {
	return []interface{}{
		(*major.Major)(nil),
		(*student.Student)(nil),
		(*user.User)(nil),
	}
}

// Migrate creates any missing tables.
func Migrate(ctx context.Context, database *bun.DB) error {
	return db.RunMigrations(ctx, database, Models()...)
}

// New connects to the database, creates the schema and wires every
// component behind one chi router.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx := context.Background()

	database, err := db.New(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	logger.Info("database connected", "driver", cfg.Database.Driver)

	if err := Migrate(ctx, database); err != nil {
		db.Close(database)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	telemetry, err := metrics.Init(ServiceName, Version, cfg.Env, logger)
	if err != nil {
		db.Close(database)
		return nil, err
	}
	m := telemetry.Metrics
	if err := m.Database.RegisterDB(database.DB, telemetry.MeterProvider.Meter(ServiceName)); err != nil {
		logger.Warn("failed to register database pool metrics", "error", err)
	}

	publisher, err := events.New(cfg, logger)
	if err != nil {
		logger.Warn("failed to initialize event publisher, events disabled", "driver", cfg.Events.Driver, "error", err)
		publisher = events.Noop()
	} else if cfg.Events.Driver != "" && cfg.Events.Driver != "none" {
		publisher = events.Instrument(publisher, cfg.Events.Driver, m.Messaging)
	}

	photos, err := photo.NewFileStore(cfg.Photos.Dir, cfg.Photos.URLPrefix, logger)
	if err != nil {
		db.Close(database)
		return nil, fmt.Errorf("failed to initialize photo store: %w", err)
	}

	tokenCfg, err := auth.NewTokenConfig(cfg.Auth)
	if err != nil {
		db.Close(database)
		return nil, err
	}
	hasher, err := auth.NewHasher(cfg.Auth.BcryptCost)
	if err != nil {
		db.Close(database)
		return nil, err
	}

	app := &App{
		config:    cfg,
		logger:    logger,
		db:        database,
		telemetry: telemetry,
		publisher: publisher,
		router:    chi.NewRouter(),
		health:    health.NewGRPCServer(database, logger),
	}

	app.router.Use(chimw.RequestID)
	if cfg.Server.TrustProxy {
		app.router.Use(chimw.RealIP)
	}
	app.router.Use(middleware.Logging(logger))
	app.router.Use(chimw.Recoverer)
	app.router.Use(chimw.StripSlashes)
	app.router.Use(middleware.SecurityHeaders)
	app.router.Use(middleware.CORS(cfg.Server.CORSOrigins))

	app.router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		httputil.RespondWithMessage(w, http.StatusOK, "University API")
	})
	app.router.Handle("/metrics", telemetry.Handler)
	health.NewHandler(database).RegisterRoutes(app.router)

	// Majors
	majorRepo := major.NewRepository(database, m)
	majorService := major.NewService(majorRepo, logger, m)
	major.NewHandler(majorService, logger).RegisterRoutes(app.router)

	// Students
	studentRepo := student.NewRepository(database, major.NewCounter(m), m)
	studentService := student.NewService(studentRepo, photos, publisher, logger, m)
	student.NewHandler(studentService, logger, cfg.Photos.MaxBytes).RegisterRoutes(app.router)

	// Auth
	var limit func(http.Handler) http.Handler
	if limitCfg := middleware.PerMinute(cfg.RateLimit.AuthPerMinute, cfg.RateLimit.AuthBurst); limitCfg.Enabled() {
		app.limiter = middleware.NewRateLimiter(limitCfg, logger)
		limit = app.limiter.Middleware
	} else {
		logger.Warn("auth rate limiting disabled", "auth_per_minute", cfg.RateLimit.AuthPerMinute)
	}
	authService := auth.NewService(user.NewRepository(database, m), hasher, auth.NewTokens(tokenCfg), logger, m)
	authHandler := auth.NewHandler(authService, auth.CookieOptionsFor(cfg.Env, tokenCfg.TTL), logger, m)
	authHandler.RegisterRoutes(app.router, limit)

	logger.Info("application initialized successfully")
	return app, nil
}

// Router exposes the HTTP handler, mainly for tests.
func (a *App) Router() http.Handler {
	return a.router
}

func (a *App) DB() *bun.DB {
	return a.db
}

// Run serves gRPC health in the background and blocks on the HTTP server.
func (a *App) Run() error {
	a.grpcServer = health.NewServer(a.telemetry.MeterProvider)
	a.health.Register(a.grpcServer)

	watchCtx, cancel := context.WithCancel(context.Background())
	a.stopWatch = cancel
	go a.health.Watch(watchCtx, 10*time.Second)

	lis, err := net.Listen("tcp", ":"+a.config.Server.GRPCPort)
	if err != nil {
		return fmt.Errorf("failed to listen on grpc port: %w", err)
	}
	go func() {
		a.logger.Info("grpc server starting", "port", a.config.Server.GRPCPort)
		if err := a.grpcServer.Serve(lis); err != nil {
			a.logger.Error("grpc server stopped", "error", err)
		}
	}()

	a.server = &http.Server{
		Addr:         ":" + a.config.Server.Port,
		Handler:      a.router,
		ReadTimeout:  time.Duration(a.config.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(a.config.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(a.config.Server.IdleTimeout) * time.Second,
	}

	a.logger.Info("server starting", "port", a.config.Server.Port)
	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and releases every resource. It is safe
// to call on an App that never ran.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down server")

	var errs []error
	if a.stopWatch != nil {
		a.stopWatch()
	}
	a.health.Shutdown()

	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}
	if a.grpcServer != nil {
		a.grpcServer.GracefulStop()
	}
	if a.limiter != nil {
		a.limiter.Stop()
	}
	if err := a.publisher.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close publisher: %w", err))
	}
	if err := a.telemetry.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("metrics shutdown: %w", err))
	}
	db.Close(a.db)

	return errors.Join(errs...)
}
