// Package configmode serves the configuration API the bike exposes while it
// is in configuration mode.
package configmode

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/censys/bike-scanner/pkg/base"
	"github.com/censys/bike-scanner/pkg/buffer"
	"github.com/censys/bike-scanner/pkg/config"
	"github.com/censys/bike-scanner/pkg/scanning"
	"github.com/censys/bike-scanner/pkg/storage"
)

// DefaultRecordLimit caps how many records GET /api/records returns.
const DefaultRecordLimit = 10

// Scanner runs a fresh WiFi scan.
type Scanner interface {
	Scan(ctx context.Context) ([]scanning.Observation, error)
}

// Server edits the stored configuration and exposes the buffered records.
// A successful save is announced on Saved; the caller restarts the device.
type Server struct {
	store   *config.Store
	buf     *buffer.Buffer
	scanner Scanner
	logger  *log.Logger

	mu      sync.Mutex
	current config.Config
	saved   chan config.Config
}

func New(store *config.Store, buf *buffer.Buffer, scanner Scanner, current config.Config, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		store:   store,
		buf:     buf,
		scanner: scanner,
		logger:  logger,
		current: current,
		saved:   make(chan config.Config, 1),
	}
}

// Saved receives each configuration once it has been persisted.
func (s *Server) Saved() <-chan config.Config { return s.saved }

// Router returns the API routes without the access log.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/config", s.getConfig).Methods(http.MethodGet)
	api.HandleFunc("/config", s.saveConfig).Methods(http.MethodPost)
	api.HandleFunc("/wifi", s.wifi).Methods(http.MethodGet)
	api.HandleFunc("/records", s.records).Methods(http.MethodGet)
	api.HandleFunc("/records/{name}", s.record).Methods(http.MethodGet)
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
	}).Methods(http.MethodGet)
	return r
}

// Handler wraps Router with an access log written to the server's logger.
func (s *Server) Handler() http.Handler {
	return handlers.LoggingHandler(s.logger.Writer(), s.Router())
}

// ListenAndServe serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Printf("configuration API listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// configView is Config as shown to clients. The remote key is write-only.
type configView struct {
	BikeID             string         `json:"bikeId"`
	ScanTimeActiveMs   int            `json:"scanTimeActiveMs"`
	ScanTimeInactiveMs int            `json:"scanTimeInactiveMs"`
	Bases              scanning.Bases `json:"bases"`
	RemoteEndpoint     string         `json:"remoteEndpoint"`
	RemoteKeySet       bool           `json:"remoteKeySet"`
}

func (s *Server) getConfig(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	c := s.current
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, configView{
		BikeID:             c.BikeID,
		ScanTimeActiveMs:   c.ScanTimeActiveMs,
		ScanTimeInactiveMs: c.ScanTimeInactiveMs,
		Bases:              c.Bases,
		RemoteEndpoint:     c.RemoteEndpoint,
		RemoteKeySet:       c.RemoteKey != "",
	})
}

// saveConfig overlays the posted fields on the current configuration, so a
// client may send only what it changes.
func (s *Server) saveConfig(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.current
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 8<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&next); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.store.Save(r.Context(), next); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, config.ErrInvalid) {
			status = http.StatusUnprocessableEntity
		}
		writeError(w, status, err)
		return
	}
	s.current = next
	s.logger.Printf("configuration saved bike=%s", next.BikeID)

	select {
	case s.saved <- next:
	default:
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "saved", "restart": true})
}

type wifiEntry struct {
	SSID     string `json:"ssid"`
	RSSI     int    `json:"rssi"`
	Channel  int    `json:"channel"`
	Strength string `json:"strength"`
	Base     bool   `json:"base"`
}

func strength(rssi int) string {
	switch {
	case rssi > -60:
		return "strong"
	case rssi < base.Threshold:
		return "weak"
	default:
		return "fair"
	}
}

func (s *Server) wifi(w http.ResponseWriter, r *http.Request) {
	obs, err := s.scanner.Scan(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	s.mu.Lock()
	bases := s.current.Bases
	s.mu.Unlock()

	out := make([]wifiEntry, 0, len(obs))
	for _, o := range obs {
		_, isBase := bases.Lookup(o.SSID)
		out = append(out, wifiEntry{SSID: o.SSID, RSSI: o.RSSI, Channel: o.Channel, Strength: strength(o.RSSI), Base: isBase})
	}
	writeJSON(w, http.StatusOK, map[string]any{"networks": out})
}

type recordEntry struct {
	Name    string          `json:"name"`
	Size    int             `json:"size"`
	Content json.RawMessage `json:"content"`
}

func (s *Server) records(w http.ResponseWriter, r *http.Request) {
	limit := DefaultRecordLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, errors.New("limit must be a positive integer"))
			return
		}
		limit = n
	}
	ids, err := s.buf.IDs(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	out := make([]recordEntry, 0, min(limit, len(ids)))
	for _, id := range ids {
		if len(out) == limit {
			break
		}
		raw, err := s.buf.Raw(r.Context(), id)
		if err != nil {
			s.logger.Printf("read %s: %v", id, err)
			continue
		}
		content := json.RawMessage(raw)
		if !json.Valid(raw) {
			content, _ = json.Marshal(string(raw))
		}
		out = append(out, recordEntry{Name: string(id), Size: len(raw), Content: content})
	}
	writeJSON(w, http.StatusOK, map[string]any{"total": len(ids), "records": out})
}

func (s *Server) record(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	raw, err := s.buf.Raw(r.Context(), buffer.RecordID(name))
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(raw)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
