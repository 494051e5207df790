// Package app wires stores, services and HTTP routes into a runnable application.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/mkrupp/practice-tracker/internal/catalog"
	"github.com/mkrupp/practice-tracker/internal/daykey"
	"github.com/mkrupp/practice-tracker/internal/infra/config"
	"github.com/mkrupp/practice-tracker/internal/infra/logging"
	"github.com/mkrupp/practice-tracker/internal/infra/telemetry"
	http_ "github.com/mkrupp/practice-tracker/internal/infra/transport/http"
	"github.com/mkrupp/practice-tracker/internal/repo/completion"
	"github.com/mkrupp/practice-tracker/internal/repo/session"
	"github.com/mkrupp/practice-tracker/internal/repo/sqldb"
	"github.com/mkrupp/practice-tracker/internal/repo/user"
	"github.com/mkrupp/practice-tracker/internal/svc/authsvc"
	"github.com/mkrupp/practice-tracker/internal/svc/statssvc"
	"github.com/mkrupp/practice-tracker/internal/svc/trackersvc"
)

// Config aggregates the configuration of every component.
type Config struct {
	config.EnvConfig

	Log       logging.LoggerConfig      `envPrefix:"LOG_"`
	Telemetry telemetry.Config          `envPrefix:"OTEL_"`
	DB        sqldb.Config              `envPrefix:"DB_"`
	Time      daykey.Config             `envPrefix:"TIME_"`
	Catalog   catalog.Config            `envPrefix:"CATALOG_"`
	Auth      authsvc.AuthConfig        `envPrefix:"AUTH_"`
	Stats     statssvc.StatsConfig      `envPrefix:"STATS_"`
	HTTP      http_.HTTPTransportConfig `envPrefix:"HTTP_"`

	// APIPrefix is the path all routes are mounted under
	APIPrefix string `env:"API_PREFIX" default:"/api"`
}

// App holds the wired components. Close releases the database.
type App struct {
	DB      *sqldb.DB
	Auth    *authsvc.AuthService
	Tracker *trackersvc.TrackerService
	Stats   *statssvc.StatsService

	handler http.Handler
	log     logging.Logger
}

// New opens the database and builds services and routes. The schema is not migrated.
func New(ctx context.Context, cfg Config) (_ *App, err error) {
	log := logging.GetLogger("app")

	cat, err := catalog.Load(cfg.Catalog)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	clock, err := daykey.NewClock(cfg.Time)
	if err != nil {
		return nil, fmt.Errorf("new clock: %w", err)
	}

	db, err := sqldb.Open(ctx, cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	defer func() {
		if err != nil {
			err = errors.Join(err, db.Close())
		}
	}()

	completions := completion.NewSQLCompletionRepository(db)

	authSvc, err := authsvc.NewAuthService(
		user.NewSQLUserRepository(db),
		session.NewSQLSessionRepository(db),
		cfg.Auth,
	)
	if err != nil {
		return nil, fmt.Errorf("new auth service: %w", err)
	}

	trackerSvc, err := trackersvc.NewTrackerService(completions, cat, clock, nil)
	if err != nil {
		return nil, fmt.Errorf("new tracker service: %w", err)
	}

	statsSvc, err := statssvc.NewStatsService(cfg.Stats, completions, cat, clock, nil)
	if err != nil {
		return nil, fmt.Errorf("new stats service: %w", err)
	}

	cookieName := cfg.Auth.CookieName

	api := http.NewServeMux()
	authHTTP := authsvc.NewHTTPTransport(authSvc)
	trackerHTTP := trackersvc.NewHTTPTransport(trackerSvc, authSvc, cookieName)
	statsHTTP := statssvc.NewHTTPTransport(statsSvc, authSvc, cookieName)

	for _, route := range []string{"/register", "/login", "/logout", "/me"} {
		api.Handle(route, authHTTP)
	}

	for _, route := range []string{"/practices", "/completions", "/done", "/undo"} {
		api.Handle(route, trackerHTTP)
	}

	api.Handle("/stats", statsHTTP)
	api.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		http_.WriteError(w, http.StatusNotFound, http_.CodeNotFound, "Not found", nil)
	})

	prefix := "/" + strings.Trim(cfg.APIPrefix, "/")

	root := http.NewServeMux()
	if prefix == "/" {
		root.Handle("/", api)
	} else {
		root.Handle(prefix+"/", http.StripPrefix(prefix, api))
	}

	log.InfoContext(ctx, "app ready",
		"db_dialect", string(db.Dialect()),
		"practices", cat.Len(),
		"timezone", clock.Location().String(),
		"api_prefix", prefix)

	return &App{
		DB:      db,
		Auth:    authSvc,
		Tracker: trackerSvc,
		Stats:   statsSvc,
		handler: root,
		log:     log,
	}, nil
}

// Handler returns the routes without the middleware chain.
func (a *App) Handler() http.Handler {
	return a.handler
}

// Migrate brings the schema up to date.
func (a *App) Migrate(ctx context.Context) error {
	applied, err := a.DB.Migrate(ctx)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	a.log.InfoContext(ctx, "schema migrated", "applied", applied)

	return nil
}

// Serve runs the HTTP server until ctx is cancelled.
func (a *App) Serve(ctx context.Context, cfg http_.HTTPTransportConfig) error {
	return http_.ListenAndServe(ctx, a.handler, cfg)
}

// Close releases the database.
func (a *App) Close() error {
	return a.DB.Close()
}
