// Package api is the localhost debug overlay for the night-defense
// subsystem: scheduler and clock state as JSON, plan summary, health
// and Prometheus metrics. It exposes nothing that mutates game state.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pkarpov/duskwatch/internal/night"
	"github.com/pkarpov/duskwatch/internal/plan"
)

// ClockSource is the read side of the game clock.
type ClockSource interface {
	TimeOfDay() float64
	Day() int
	Paused() bool
	Speed() float64
}

// RecordSource serves recently cleared nights. Optional.
type RecordSource interface {
	LoadRecent(ctx context.Context, limit int) ([]night.Record, error)
}

// RouterConfig carries the dependencies of the router. Construction is
// pure: no goroutines, no listeners, safe under httptest.
type RouterConfig struct {
	Clock     ClockSource
	Scheduler *night.Scheduler
	Monitor   *night.Monitor
	Plan      *plan.Plan
	Records   RecordSource // nil disables /api/records

	// DisableLogging drops the request logger middleware (tests).
	DisableLogging bool
}

type handlers struct {
	cfg RouterConfig
}

// NewRouter builds the debug overlay router.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)

	h := &handlers{cfg: cfg}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", h.handleStatus)
		r.Get("/plan", h.handlePlan)
		if cfg.Records != nil {
			r.Get("/records", h.handleRecords)
		}
	})

	return r
}

// Status is the JSON shape of /api/status.
type Status struct {
	Day             int     `json:"day"`
	TimeOfDay       float64 `json:"timeOfDay"`
	ClockPaused     bool    `json:"clockPaused"`
	ClockSpeed      float64 `json:"clockSpeed"`
	Week            int     `json:"week"`
	Night           int     `json:"night"`
	NightWindowOpen bool    `json:"nightWindowOpen"`
	NightStarted    bool    `json:"nightStarted"`
	UnitsAlive      int     `json:"unitsAlive"`
	TotalUnits      int     `json:"totalUnits"`
	PendingWaves    int     `json:"pendingWaves"`
	WaveActive      bool    `json:"waveActive"`
	CurrentWave     int     `json:"currentWave"`
}

func (h *handlers) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s := Status{
		Day:             h.cfg.Clock.Day(),
		TimeOfDay:       h.cfg.Clock.TimeOfDay(),
		ClockPaused:     h.cfg.Clock.Paused(),
		ClockSpeed:      h.cfg.Clock.Speed(),
		Week:            h.cfg.Monitor.Week(),
		Night:           h.cfg.Monitor.Night(),
		NightWindowOpen: h.cfg.Monitor.NightWindowOpen(),
		NightStarted:    h.cfg.Scheduler.NightStarted(),
		UnitsAlive:      h.cfg.Scheduler.UnitsAlive(),
		TotalUnits:      h.cfg.Scheduler.TotalUnits(),
		PendingWaves:    h.cfg.Scheduler.PendingWaves(),
		WaveActive:      h.cfg.Scheduler.WaveActive(),
		CurrentWave:     h.cfg.Scheduler.CurrentWave(),
	}
	writeJSON(w, s)
}

type planSummary struct {
	Weeks  int `json:"weeks"`
	Nights int `json:"nights"`
	Waves  int `json:"waves"`
	Units  int `json:"units"`
}

func (h *handlers) handlePlan(w http.ResponseWriter, _ *http.Request) {
	var sum planSummary
	if h.cfg.Plan != nil {
		sum.Weeks = len(h.cfg.Plan.Weeks)
		for _, week := range h.cfg.Plan.Weeks {
			for _, n := range week.Nights {
				sum.Nights++
				sum.Waves += len(n.Waves)
				sum.Units += n.TotalUnits()
			}
		}
	}
	writeJSON(w, sum)
}

func (h *handlers) handleRecords(w http.ResponseWriter, r *http.Request) {
	records, err := h.cfg.Records.LoadRecent(r.Context(), 20)
	if err != nil {
		slog.Error("loading night records", "error", err)
		http.Error(w, "failed to load records", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []night.Record{}
	}
	writeJSON(w, records)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding response", "error", err)
	}
}

// Server runs the debug overlay on a localhost address.
type Server struct {
	addr    string
	handler http.Handler
}

// NewServer creates the server. Bind to localhost; this surface is not
// meant to be reachable from outside the host.
func NewServer(addr string, handler http.Handler) *Server {
	return &Server{addr: addr, handler: handler}
}

// Run serves until the context is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.handler,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("debug overlay listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()

	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
