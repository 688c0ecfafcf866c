package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/obrafin/obrafin/internal/amqp"
	"github.com/obrafin/obrafin/internal/config"
	"github.com/obrafin/obrafin/internal/database"
	log "github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

// Application wires configuration, database, router, and server lifecycle.
type Application struct {
	cfg    config.Application
	db     *pgxpool.Pool
	router *mux.Router
	srv    *http.Server
	broker *amqp.Client
}

// NewApplication constructs the full HTTP application, ready to Run().
func NewApplication(ctx context.Context, cfg config.Application) (*Application, error) {
	if cfg.Database.MigrateOnStart {
		if err := database.Migrate(cfg.Database); err != nil {
			return nil, err
		}
	}

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	r := mux.NewRouter()

	// Build dependencies (services, handlers...)
	deps := BuildDependencies(db, cfg)

	var broker *amqp.Client
	if cfg.Amqp.Enabled {
		broker, err = amqp.NewClient(cfg.Amqp.Url, cfg.Amqp.Exchange)
		if err != nil {
			db.Close()
			return nil, err
		}
		amqp.NewForwarder(broker).Attach(deps.EventBus)
		log.Infof("Forwarding domain events to exchange %s", cfg.Amqp.Exchange)
	}

	// Middleware chain
	SetupMiddleware(r, deps, cfg)

	// Routes
	RegisterRoutes(r, deps, cfg)

	srv := &http.Server{
		Handler:      r,
		Addr:         cfg.Server.Addr,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Application{cfg: cfg, db: db, router: r, srv: srv, broker: broker}, nil
}

// Run starts the HTTP server and blocks until ctx is cancelled or the server fails.
func (a *Application) Run(ctx context.Context) error {
	defer a.close()

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Starting server on %s", a.srv.Addr)
		errCh <- a.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.srv.Shutdown(shutdownCtx)
	}
}

func (a *Application) close() {
	if a.broker != nil {
		if err := a.broker.Close(); err != nil {
			log.Warnf("failed to close AMQP connection: %v", err)
		}
	}
	a.db.Close()
}
