package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/whitneyland/mcpplay-core/logger"
)

// maxRPCBodyBytes bounds a single request body. Scores are small; this
// is generous headroom, not a tuning knob.
const maxRPCBodyBytes = 8 << 20

// HTTPServer is the primary's process boundary: it owns the TCP
// listener and exposes the dispatcher at POST /mcp, a health probe at
// GET /health, and engraved images at GET /images/.
type HTTPServer struct {
	dispatcher *Server
	imagesDir  string
	srv        *http.Server
	ln         net.Listener
	port       int
	log        *slog.Logger
}

// NewHTTPServer creates an HTTP server over the given dispatcher.
// Engraved images are served from imagesDir.
func NewHTTPServer(dispatcher *Server, imagesDir string) *HTTPServer {
	return &HTTPServer{
		dispatcher: dispatcher,
		imagesDir:  imagesDir,
		log:        logger.WithComponent("http"),
	}
}

// Listen binds the listener and returns the bound port (which differs
// from the requested one when port 0 lets the OS pick). Binding is
// separate from serving so the caller can publish the primary record
// only after the port is truly held.
func (h *HTTPServer) Listen(host string, port int) (int, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return 0, fmt.Errorf("bind %s: %w", addr, err)
	}
	h.ln = ln
	h.port = ln.Addr().(*net.TCPAddr).Port
	h.dispatcher.SetImageBase(fmt.Sprintf("http://%s:%d", host, h.port))

	mux := http.NewServeMux()
	mux.HandleFunc("/mcp", h.handleRPC)
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/images/", h.handleImage)

	h.srv = &http.Server{
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	h.log.Info("listening", "addr", ln.Addr().String())
	return h.port, nil
}

// Port returns the bound port. Zero before Listen.
func (h *HTTPServer) Port() int {
	return h.port
}

// Serve blocks handling requests until Shutdown. A graceful shutdown
// is reported as nil.
func (h *HTTPServer) Serve() error {
	if h.srv == nil {
		return errors.New("Serve called before Listen")
	}
	if err := h.srv.Serve(h.ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server, letting in-flight requests finish until
// the context expires.
func (h *HTTPServer) Shutdown(ctx context.Context) error {
	if h.srv == nil {
		return nil
	}
	return h.srv.Shutdown(ctx)
}

func (h *HTTPServer) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRPCBodyBytes))
	if err != nil {
		h.log.Warn("failed to read request body", "error", err)
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	resp, ok := h.dispatcher.Handle(body)
	if !ok {
		// Notification: acknowledged, nothing to say back.
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(resp); err != nil {
		h.log.Warn("failed to write response", "error", err)
	}
}

func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	payload := struct {
		Status string `json:"status"`
		Port   int    `json:"port"`
	}{Status: "healthy", Port: h.port}

	data, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func (h *HTTPServer) handleImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Reject traversal outright rather than trusting path cleaning.
	if strings.Contains(r.URL.Path, "..") {
		h.log.Warn("rejected traversal attempt", "path", r.URL.Path)
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/images/")
	if name == "" {
		http.NotFound(w, r)
		return
	}

	path := filepath.Join(h.imagesDir, filepath.FromSlash(name))
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, path)
}
