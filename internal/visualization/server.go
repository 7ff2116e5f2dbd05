package visualization

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/nvandessel/co2twin/internal/dataset"
	"github.com/nvandessel/co2twin/internal/ratelimit"
	"github.com/nvandessel/co2twin/internal/sector"
	"github.com/nvandessel/co2twin/internal/simulation"
	"github.com/nvandessel/co2twin/internal/store"
	"github.com/nvandessel/co2twin/internal/workspace"
)

// maxBodyBytes caps the size of a simulate request body.
const maxBodyBytes = 1 << 20

// Server serves the workbench page and its JSON API.
type Server struct {
	ws       *workspace.Workspace
	sim      *simulation.Simulator
	limiters ratelimit.ToolLimiters
	logger   *slog.Logger

	listenAddr string
	httpServer *http.Server
	listener   net.Listener
	mu         sync.Mutex
	addr       string
}

// NewServer creates a workbench server. An empty listenAddr lets the OS
// pick a free localhost port.
func NewServer(ws *workspace.Workspace, sim *simulation.Simulator, listenAddr string) *Server {
	if listenAddr == "" {
		listenAddr = "localhost:0"
	}
	return &Server{
		ws:         ws,
		sim:        sim,
		limiters:   ratelimit.NewToolLimiters(),
		logger:     ws.Logger.With("component", "workbench"),
		listenAddr: listenAddr,
	}
}

// Addr returns the address the server is listening on (e.g., "localhost:PORT").
// Returns empty string if the server hasn't started yet.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Handler returns the instrumented request router.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/api/graph", s.handleGraph)
	mux.HandleFunc("/api/simulate", s.handleSimulate)
	return otelhttp.NewHandler(mux, "co2twin.workbench")
}

// ListenAndServe starts the HTTP server and blocks until the context is
// cancelled. A clean shutdown returns nil.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	s.mu.Lock()
	s.listener = ln
	s.addr = ln.Addr().String()
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Unlock()

	s.logger.Info("workbench listening", "addr", s.addr)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
			return
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("workbench shutdown", "error", err)
		}
	}()

	err = s.httpServer.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	presets, stored, err := s.ws.Cities(r.Context())
	if err != nil {
		s.logger.Error("listing cities", "error", err)
		http.Error(w, "listing cities: "+err.Error(), http.StatusInternalServerError)
		return
	}

	g := s.sim.Graph()
	page := indexData{
		Presets: presets,
		Stored:  stored,
		Edges:   g.Edges(),
		Sectors: g.Sectors(),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, page); err != nil {
		s.logger.Error("rendering index", "error", err)
	}
}

// handleGraph renders the published graph. An optional city query
// parameter annotates nodes with that city's baseline values.
func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := ratelimit.CheckLimit(s.limiters, "http_graph"); err != nil {
		writeError(w, http.StatusTooManyRequests, err.Error())
		return
	}

	format, err := ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var values sector.Values
	if city := r.URL.Query().Get("city"); city != "" {
		ds, err := s.ws.Dataset(r.Context(), city)
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		values = ds.Sectors
	}

	switch format {
	case FormatJSON:
		w.Header().Set("Content-Type", "application/json")
	default:
		w.Header().Set("Content-Type", "text/vnd.graphviz; charset=utf-8")
	}
	if err := Render(w, format, s.sim.Graph(), values); err != nil {
		s.logger.Error("rendering graph", "error", err)
	}
}

// simulateRequest is the body of POST /api/simulate. Sectors, when
// present, is an inline dataset and takes precedence over City.
type simulateRequest struct {
	City          string                 `json:"city"`
	Sectors       json.RawMessage        `json:"sectors"`
	Changes       map[string]interface{} `json:"changes"`
	MaxIterations int                    `json:"max_iterations"`
	Tolerance     float64                `json:"tolerance"`
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := ratelimit.CheckLimit(s.limiters, "http_simulate"); err != nil {
		writeError(w, http.StatusTooManyRequests, err.Error())
		return
	}

	var req simulateRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	runReq := workspace.RunRequest{
		City:          req.City,
		Changes:       req.Changes,
		MaxIterations: req.MaxIterations,
		Tolerance:     req.Tolerance,
	}
	if hasSectors(req.Sectors) {
		ds, err := workspace.InlineDataset(req.City, req.Sectors)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		runReq.Dataset = ds
	}

	res, err := s.ws.Run(r.Context(), s.sim, runReq)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// hasSectors reports whether the request carried an inline baseline. An
// explicit null counts as absent.
func hasSectors(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, simulation.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, dataset.ErrNotFound), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ratelimit.ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON encodes v before writing the header so an unencodable value
// (NaN or Inf from a runaway graph) becomes a 500 instead of an empty 200.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		buf.Reset()
		status = http.StatusInternalServerError
		json.NewEncoder(&buf).Encode(map[string]string{"error": "encoding response: " + err.Error()})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
