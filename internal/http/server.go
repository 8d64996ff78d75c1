package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/ride-dispatch/internal/candidates"
	"github.com/example/ride-dispatch/internal/config"
	"github.com/example/ride-dispatch/internal/dispatch"
	"github.com/example/ride-dispatch/internal/history"
	"github.com/example/ride-dispatch/internal/ingest"
	"github.com/example/ride-dispatch/internal/ledger"
	"github.com/example/ride-dispatch/internal/models"
	"github.com/example/ride-dispatch/internal/observability"
	"github.com/example/ride-dispatch/internal/registry"
	"github.com/example/ride-dispatch/internal/storage"
)

type Server struct {
	cfg      config.ServerConfig
	logger   *slog.Logger
	reg      *registry.Registry
	ledger   *ledger.Ledger
	engine   *dispatch.Engine
	notifier *dispatch.Notifier
	source   candidates.Source
	store    storage.TripStore

	locations *ingest.Producer // nil when Kafka is not configured
	events    *ingest.Producer

	mux *mux.Router
}

// NewServer wires the dispatch core from config. Redis, Kafka and Postgres
// are all optional; missing ones fall back to in-memory stand-ins so the
// binary runs locally without setup.
func NewServer(cfg config.ServerConfig, logger *slog.Logger) *Server {
	reg := registry.New(logger)

	led := ledger.New(func(driverID string) bool {
		return reg.IsOpen(models.RoleDriver, driverID)
	})

	dir := sessionDirectory{reg: reg}
	eng := dispatch.NewEngine(dir, led, history.NewTracker(), logger, cfg.OfferTimeout, cfg.ExhaustionGrace)
	notif := dispatch.NewNotifier(dir, logger)

	var source candidates.Source
	if cfg.RedisAddr != "" {
		source = candidates.NewRedisSource(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisGeoKey)
	} else {
		source = candidates.NewMemorySource()
	}

	var store storage.TripStore
	if cfg.PGDSN != "" {
		if ps, err := storage.NewPostgresStore(cfg.PGDSN); err == nil {
			store = ps
		} else {
			logger.Error("postgres unavailable, using memory store", "error", err)
		}
	}
	if store == nil {
		store = storage.NewMemoryStore()
	}

	var locations, events *ingest.Producer
	if len(cfg.KafkaBrokers) > 0 {
		locations = ingest.NewProducer(cfg.KafkaBrokers, cfg.LocationTopic)
		events = ingest.NewProducer(cfg.KafkaBrokers, cfg.RideEventTopic)
	}

	s := &Server{
		cfg:       cfg,
		logger:    logger,
		reg:       reg,
		ledger:    led,
		engine:    eng,
		notifier:  notif,
		source:    source,
		store:     store,
		locations: locations,
		events:    events,
		mux:       mux.NewRouter(),
	}

	// A closing driver socket must never leave a phantom entry in the
	// ledger or a dispatch walk stuck on its timer.
	reg.OnClose(func(role models.Role, identity string) {
		observability.WSConnections.WithLabelValues(string(role)).Set(float64(reg.CountOfRole(role)))
		if role != models.RoleDriver {
			return
		}
		led.SetOffline(identity)
		eng.HandleDisconnect(identity)
		observability.DriversOnline.Set(float64(led.OnlineCount()))
	})

	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/v1/rides/request", s.handleRideRequest).Methods("POST")
	s.mux.HandleFunc("/api/v1/rides/{ride_id}/complete", s.handleCompleteRide).Methods("POST")
	s.mux.HandleFunc("/internal/driver/locations", s.handleDriverLocation).Methods("POST")
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/ws", s.handleWS)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

// Close releases external connections held by the server.
func (s *Server) Close() error {
	if s.locations != nil {
		_ = s.locations.Close()
	}
	if s.events != nil {
		_ = s.events.Close()
	}
	return nil
}

// sessionDirectory adapts the registry to the narrow interfaces the
// dispatch package consumes.
type sessionDirectory struct {
	reg *registry.Registry
}

func (d sessionDirectory) DriverConn(driverID string) (dispatch.Sender, bool) {
	sess, ok := d.reg.Lookup(models.RoleDriver, driverID)
	if !ok {
		return nil, false
	}
	return sess, true
}

func (d sessionDirectory) ForEachOfRole(role models.Role, fn func(identity string, s dispatch.Sender)) {
	d.reg.ForEachOfRole(role, func(identity string, sess *registry.Session) {
		fn(identity, sess)
	})
}
