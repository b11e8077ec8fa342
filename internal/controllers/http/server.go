package httpctrl

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"reflect"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/websocket"

	"github.com/Agrid-Dev/greenhouse/internal/eventlog"
	"github.com/Agrid-Dev/greenhouse/internal/greenhouse"
	"github.com/Agrid-Dev/greenhouse/internal/ports"
)

type Config struct {
	Addr     string
	DeviceID string
	RunID    string

	// StreamInterval is how often websocket clients are checked for a new snapshot.
	StreamInterval time.Duration

	// AccessLog receives combined-format request logs when set.
	AccessLog io.Writer
}

type Server struct {
	svc    ports.GreenhouseService
	events ports.EventSource
	cfg    Config
	srv    *http.Server

	upgrader websocket.Upgrader
}

// New returns a runnable server. events may be nil.
func New(svc ports.GreenhouseService, events ports.EventSource, cfg Config) *Server {
	if cfg.StreamInterval <= 0 {
		cfg.StreamInterval = time.Second
	}
	mux := http.NewServeMux()
	s := &Server{svc: svc, events: events, cfg: cfg}

	// Read
	mux.HandleFunc("GET /v1", s.handleGet)
	mux.HandleFunc("GET /v1/events", s.handleGetEvents)
	mux.HandleFunc("GET /v1/ws", s.handleStream)

	// Write
	mux.HandleFunc("POST /v1/running", s.handlePostRunning)
	mux.HandleFunc("POST /v1/start", s.handleStart)
	mux.HandleFunc("POST /v1/stop", s.handleStop)
	mux.HandleFunc("POST /v1/toggle", s.handlePostToggle)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	var h http.Handler = mux
	h = handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(h)
	if cfg.AccessLog != nil {
		h = handlers.CombinedLoggingHandler(cfg.AccessLog, h)
	}

	s.srv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// ---- DTOs ----

type subsystemDTO struct {
	Active   bool    `json:"active"`
	Progress float64 `json:"progress"`
}

type snapshotDTO struct {
	DeviceID           string       `json:"device_id"`
	RunID              string       `json:"run_id,omitempty"`
	Running            bool         `json:"running"`
	SimulationTime     string       `json:"simulation_time"`
	Minutes            uint32       `json:"minutes"`
	CO2Level           int          `json:"co2_level"`
	StartCO2Level      int          `json:"start_co2_level"`
	Cloudiness         int          `json:"cloudiness"`
	UV                 subsystemDTO `json:"uv"`
	CO2Lift            subsystemDTO `json:"co2"`
	IR                 subsystemDTO `json:"ir"`
	LastIRActivation   string       `json:"last_ir_activation"`
	LastIRConsumption  float64      `json:"last_ir_consumption_kwh"`
	TotalIRConsumption float64      `json:"total_ir_consumption_kwh"`
}

type eventDTO struct {
	Time    string `json:"time"`
	Message string `json:"message"`
	Line    string `json:"line"`
}

func toDTO(s greenhouse.Snapshot) snapshotDTO {
	return snapshotDTO{
		Running:            s.Running,
		SimulationTime:     s.Time.Format(time.RFC3339),
		Minutes:            s.Minutes,
		CO2Level:           s.CO2Level,
		StartCO2Level:      s.StartCO2Level,
		Cloudiness:         s.Cloudiness,
		UV:                 subsystemDTO(s.UV),
		CO2Lift:            subsystemDTO(s.CO2Lift),
		IR:                 subsystemDTO(s.IR),
		LastIRActivation:   s.LastIRActivation.Format(time.RFC3339),
		LastIRConsumption:  s.LastIRConsumption,
		TotalIRConsumption: s.TotalIRConsumption,
	}
}

func (s *Server) snapshot() snapshotDTO {
	dto := toDTO(s.svc.Get())
	dto.DeviceID = s.cfg.DeviceID
	dto.RunID = s.cfg.RunID
	return dto
}

// ---- Handlers ----

func (s *Server) handleGet(w http.ResponseWriter, _ *http.Request) {
	s.respondSnapshot(w)
}

func (s *Server) handleGetEvents(w http.ResponseWriter, _ *http.Request) {
	out := []eventDTO{}
	if s.events != nil {
		for _, e := range s.events.Entries() {
			out = append(out, toEventDTO(e))
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func toEventDTO(e eventlog.Entry) eventDTO {
	return eventDTO{Time: e.Time.Format(time.RFC3339), Message: e.Message, Line: e.String()}
}

func (s *Server) handlePostRunning(w http.ResponseWriter, r *http.Request) {
	// body: {"value": true}
	postValue(s, w, r, func(v bool) error {
		s.svc.SetRunning(v)
		return nil
	})
}

func (s *Server) handleStart(w http.ResponseWriter, _ *http.Request) {
	s.svc.SetRunning(true)
	s.respondSnapshot(w)
}

func (s *Server) handleStop(w http.ResponseWriter, _ *http.Request) {
	s.svc.SetRunning(false)
	s.respondSnapshot(w)
}

func (s *Server) handlePostToggle(w http.ResponseWriter, r *http.Request) {
	// body: {"value": "uv"}
	postValue(s, w, r, func(v string) error {
		sub, err := greenhouse.ParseSubsystem(v)
		if err != nil {
			return err
		}
		_, err = s.svc.Toggle(sub)
		return err
	})
}

// handleStream pushes the snapshot to a websocket client whenever it changes.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error.
		return
	}
	defer conn.Close()

	// Reader goroutine: notices client close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.cfg.StreamInterval)
	defer ticker.Stop()

	var last snapshotDTO
	first := true
	for {
		cur := s.snapshot()
		if first || !reflect.DeepEqual(cur, last) {
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(cur); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Printf("http: websocket write: %v", err)
				}
				return
			}
			last = cur
			first = false
		}

		select {
		case <-r.Context().Done():
			return
		case <-closed:
			return
		case <-ticker.C:
		}
	}
}

// ---- generic helpers ----
func (s *Server) respondSnapshot(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, s.snapshot())
}

func postValue[T any](s *Server, w http.ResponseWriter, r *http.Request, apply func(T) error) {
	dec := json.NewDecoder(r.Body)
	var req struct {
		Value *T `json:"value"`
	}
	if err := dec.Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Value == nil {
		writeErr(w, http.StatusBadRequest, "missing field 'value'")
		return
	}

	if err := apply(*req.Value); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}

	s.respondSnapshot(w)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
