package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"ffconvert/config"
	"ffconvert/internal/db"
	"ffconvert/internal/ipam"
	"ffconvert/internal/logs"
	"ffconvert/internal/middleware"
	"ffconvert/internal/report"
	"ffconvert/internal/repo"

	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

// App serves an audit report and, optionally, the network tree of the
// converted store.
type App struct {
	cfg        *config.Config
	Router     *mux.Router
	httpServer *http.Server

	rep     *report.Report
	metrics *report.Metrics
	db      *gorm.DB
	scope   *repo.Scope
}

func (a *App) Initialize(cfg *config.Config, rep *report.Report) error {
	a.cfg = cfg
	a.rep = rep

	// 1) Логи
	logs.Init(logs.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
	})

	// 2) БД (опционально, только чтение сети)
	if cfg.Report.IPAM {
		d, err := db.Open(cfg.Database.Driver, cfg.Database.DSN)
		if err != nil {
			return fmt.Errorf("db open: %w", err)
		}
		s, err := repo.NewScope(d)
		if err != nil {
			return err
		}
		a.db, a.scope = d, s
	}

	// 3) Роутер + middleware
	a.Router = mux.NewRouter()
	a.Router.Use(middleware.RequestID)
	a.Router.Use(middleware.Recoverer)
	a.Router.Use(middleware.LoggerMW)

	// 4) Health
	a.Router.HandleFunc("/healthz", a.healthz).Methods(http.MethodGet)
	a.Router.HandleFunc("/readyz", a.readyz).Methods(http.MethodGet)

	// 5) Отчёт, метрики, IPAM
	a.metrics = report.NewMetrics()
	a.metrics.Observe(rep)
	a.Router.Handle("/metrics", a.metrics.Handler()).Methods(http.MethodGet)
	report.NewHTTP(rep).RegisterRoutes(a.Router)
	if a.scope != nil {
		ipam.NewHTTP(ipam.NewRepo(a.scope)).RegisterRoutes(a.Router)
	}

	_ = a.Router.Walk(func(rt *mux.Route, r *mux.Router, ancestors []*mux.Route) error {
		path, _ := rt.GetPathTemplate()
		methods, _ := rt.GetMethods()
		logs.Logger.Debugf("route: %-6v %s", methods, path)
		return nil
	})
	return nil
}

func (a *App) healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("ok\n"))
}

func (a *App) readyz(w http.ResponseWriter, r *http.Request) {
	if a.db != nil {
		sqlDB, err := a.db.DB()
		if err == nil {
			err = sqlDB.PingContext(r.Context())
		}
		if err != nil {
			http.Error(w, "db: "+err.Error(), http.StatusServiceUnavailable)
			return
		}
	}
	a.healthz(w, r)
}

// Run serves until ctx is done or SIGINT/SIGTERM arrives.
func (a *App) Run(ctx context.Context) error {
	if a.Router == nil || a.cfg == nil {
		return ErrNotInitialized
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.httpServer = &http.Server{
		Addr:         a.cfg.Report.Addr,
		Handler:      a.Router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logs.Logger.Infof("HTTP listening on %s", a.cfg.Report.Addr)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}
	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = a.httpServer.Shutdown(sctx)
	return a.Close()
}

// Close releases the database, if one was opened.
func (a *App) Close() error {
	if a.scope == nil {
		return nil
	}
	err := a.scope.Close()
	a.scope = nil
	return err
}

var ErrNotInitialized = &initError{"server not initialized (call Initialize(cfg) first)"}

type initError struct{ s string }

func (e *initError) Error() string { return e.s }
