package myhttp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"transit-ledger/internal/config"
	"transit-ledger/internal/ledger-service/adapters/driven/bm"
	"transit-ledger/internal/ledger-service/adapters/driven/cache"
	"transit-ledger/internal/ledger-service/adapters/driven/consumer"
	"transit-ledger/internal/ledger-service/adapters/driven/db"
	"transit-ledger/internal/ledger-service/adapters/driver/myhttp/handle"
	"transit-ledger/internal/ledger-service/adapters/driver/myhttp/middleware"
	"transit-ledger/internal/ledger-service/adapters/driver/myhttp/ws"
	"transit-ledger/internal/ledger-service/core/ports"
	"transit-ledger/internal/ledger-service/core/services"
	"transit-ledger/internal/mylogger"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

const WaitTime = 10

type Server struct {
	mux        http.Handler
	cfg        *config.Config
	srv        *http.Server
	mylog      mylogger.Logger
	db         *db.DB
	mb         ports.ILedgerBroker
	redis      *redis.Client
	dispatcher *ws.Dispatcher
	ctx        context.Context
	appCtx     context.Context
	mu         sync.Mutex
	wg         sync.WaitGroup
}

func NewServer(ctx, appCtx context.Context, mylog mylogger.Logger, cfg *config.Config) *Server {
	s := &Server{
		ctx:    ctx,
		appCtx: appCtx,
		cfg:    cfg,
		mylog:  mylog,
	}

	return s
}

// Run connects the infrastructure, wires the ledger and listens. It returns
// when the server stops.
func (s *Server) Run() error {
	mylog := s.mylog.Action("server_started")

	// Initialize database connection
	db, err := db.New(s.ctx, s.cfg.DB, mylog)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	s.db = db
	mylog.Info("Successful database connection")

	// Initialize RabbitMQ connection
	mb, err := bm.New(s.appCtx, s.cfg.RabbitMq, s.mylog)
	if err != nil {
		return fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	s.mb = mb
	mylog.Info("Successful message broker connection")

	// Redis is optional
	if s.cfg.Redis.Addr != "" {
		client, err := cache.NewClient(s.ctx, s.cfg.Redis)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		s.redis = client
		mylog.Info("Successful redis connection")
	}

	// Configure routes and handlers
	if err := s.Configure(); err != nil {
		return err
	}

	s.mu.Lock()
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%v", s.cfg.Srv.LedgerServicePort),
		Handler:           s.mux,
		ReadHeaderTimeout: WaitTime * time.Second,
	}
	s.mu.Unlock()

	mylog = mylog.WithGroup("details").With("port", s.cfg.Srv.LedgerServicePort)

	mylog.Info("server is running")
	return s.startHTTPServer()
}

// Stop provides a programmatic shutdown. Accepts a context for timeout control.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mylog.Info("Shutting down HTTP server...")

	if s.srv != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, WaitTime*time.Second)
		defer cancel()

		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.mylog.Error("Failed to shut down HTTP server gracefully", err)
			return fmt.Errorf("http server shutdown: %w", err)
		}
	}

	// autopilot stops with the signal context
	s.wg.Wait()

	if s.dispatcher != nil {
		s.dispatcher.Close()
	}

	if s.mb != nil {
		if err := s.mb.Close(); err != nil {
			s.mylog.Error("Failed to close message broker", err)
		}
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.mylog.Error("Failed to close redis", err)
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.mylog.Error("Failed to close database", err)
			return fmt.Errorf("db close: %w", err)
		}
		s.mylog.Info("Database closed")
	}

	s.mylog.Info("HTTP server shut down gracefully")
	return nil
}

func (s *Server) startHTTPServer() error {
	errCh := make(chan error, 1)

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		} else {
			errCh <- nil
		}
	}()

	select {
	case <-s.ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Configure builds the ledger on top of the connected adapters and registers routes.
func (s *Server) Configure() error {
	log := s.mylog.Action("configure")

	// Repositories
	ledgerRepo := db.NewLedgerRepo(s.db)

	// websocket
	s.dispatcher = ws.NewDispatcher(s.appCtx, s.mylog, ws.NewEventHandler(s.cfg.App.JwtSecret))

	// services
	ledgerService := services.NewLedgerService(s.appCtx, s.mylog, ledgerRepo, s.mb, s.dispatcher, services.LedgerOptions{
		Offline:     s.cfg.Ledger.StartOffline,
		DeclineRate: s.cfg.Ledger.DeclineRate,
		Location:    s.cfg.Ledger.Location(),
	})
	if err := ledgerService.Restore(s.ctx); err != nil {
		return err
	}
	authService := services.NewAuthService(s.cfg.App, ledgerService, s.mylog)

	// broker commands
	commands := consumer.New(s.appCtx, s.mylog, s.mb, ledgerService)
	if err := commands.Run(); err != nil {
		return fmt.Errorf("failed to consume commands: %w", err)
	}

	if s.cfg.Ledger.Autopilot {
		autopilot := services.NewAutopilot(s.mylog, ledgerService, s.cfg.Ledger.TickInterval, s.cfg.Ledger.TripDuration)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			autopilot.Run(s.ctx)
		}()
	}

	var idem ports.IIdempotencyStore
	if s.redis != nil {
		idem = cache.NewIdempotencyStore(s.redis)
	}

	s.mux = NewRouter(RouterDeps{
		Ledger:      ledgerService,
		Auth:        authService,
		Health:      handle.NewHealthHandler(s.db, s.mb, ledgerService),
		Dispatcher:  s.dispatcher,
		Idempotency: idem,
		JwtSecret:   s.cfg.App.JwtSecret,
		Log:         s.mylog,
	})

	log.Info("ledger service configured", "autopilot", s.cfg.Ledger.Autopilot, "offline", ledgerService.IsOffline())
	return nil
}

type RouterDeps struct {
	Ledger      ports.ILedgerService
	Auth        ports.IAuthService
	Health      *handle.HealthHandler
	Dispatcher  *ws.Dispatcher
	Idempotency ports.IIdempotencyStore
	JwtSecret   string
	Log         mylogger.Logger
}

func NewRouter(d RouterDeps) http.Handler {
	mux := http.NewServeMux()

	ledgerHandler := handle.NewLedgerHandler(d.Ledger, d.Log)
	authHandler := handle.NewAuthHandler(d.Auth, d.Log)

	authMiddleware := middleware.NewAuthMiddleware(d.JwtSecret)
	idempotency := middleware.NewIdempotency(d.Idempotency, d.Log)

	// passenger or operator
	user := func(h http.HandlerFunc) http.Handler {
		return authMiddleware.Wrap(idempotency.Wrap(h))
	}
	// operator only
	admin := func(h http.HandlerFunc) http.Handler {
		return authMiddleware.Admin(idempotency.Wrap(h))
	}

	// Register routes
	mux.Handle("POST /auth/passengers", authHandler.PassengerLogin())
	mux.Handle("POST /auth/operators", authHandler.OperatorLogin())

	mux.Handle("POST /passengers/{passenger_id}/topups", user(ledgerHandler.TopUp()))
	mux.Handle("GET /passengers/{passenger_id}", user(ledgerHandler.PassengerDetails()))
	mux.Handle("POST /trips", user(ledgerHandler.PlaceTrip()))
	mux.Handle("POST /trips/{trip_id}/cancel", user(ledgerHandler.CancelTrip()))
	mux.Handle("GET /fares", user(ledgerHandler.FareEstimate()))

	mux.Handle("POST /trips/{trip_id}/assign", admin(ledgerHandler.AssignTrip()))
	mux.Handle("POST /trips/{trip_id}/start", admin(ledgerHandler.StartTrip()))
	mux.Handle("POST /trips/{trip_id}/end", admin(ledgerHandler.EndTrip()))
	mux.Handle("POST /settlements", admin(ledgerHandler.Settle()))
	mux.Handle("GET /settlements", admin(ledgerHandler.Settlements()))
	mux.Handle("POST /offline", admin(ledgerHandler.SetOffline()))
	mux.Handle("POST /events/process", admin(ledgerHandler.ProcessPending()))
	mux.Handle("GET /events", admin(ledgerHandler.Events()))
	mux.Handle("GET /reports/overview", admin(ledgerHandler.Overview()))

	if d.Health != nil {
		mux.Handle("GET /health", d.Health.Health())
	}
	mux.Handle("GET /metrics", promhttp.Handler())

	// websocket routes
	if d.Dispatcher != nil {
		mux.Handle("GET /ws/passengers/{passenger_id}", d.Dispatcher.WsHandler())
	}

	return middleware.Metrics(mux)
}
