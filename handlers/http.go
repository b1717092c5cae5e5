package handlers

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"mapsmith/persistence"
	"mapsmith/services"
)

// Server exposes the editor over websocket plus a few HTTP renderings of a
// session
type Server struct {
	db       persistence.Storage
	clients  *ClientManager
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewServer creates the HTTP front end
func NewServer(db persistence.Storage, clients *ClientManager, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		db:      db,
		clients: clients,
		logger:  logger,
		upgrader: websocket.Upgrader{
			// Allow connections from any origin; the editor has no auth
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Routes returns the HTTP handler
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebsocket)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /sessions/{id}/canvas.png", s.handleCanvas)
	mux.HandleFunc("GET /sessions/{id}/stats.html", s.handleStatsChart)
	return mux
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("failed to upgrade connection", zap.Error(err))
		return
	}
	defer conn.Close()

	HandleClientConnection(conn, s.db, s.clients, s.logger)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok\n"))
}

func (s *Server) handleCanvas(w http.ResponseWriter, r *http.Request) {
	editor, ok := s.clients.Editor(r.PathValue("id"))
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	width := queryInt(r, "w", services.DefaultCanvasSide)
	height := queryInt(r, "h", services.DefaultCanvasSide)
	img, err := editor.RenderCanvas(width, height)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := services.EncodePNG(&buf, img); err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(buf.Bytes())
}

func (s *Server) handleStatsChart(w http.ResponseWriter, r *http.Request) {
	editor, ok := s.clients.Editor(r.PathValue("id"))
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	var buf bytes.Buffer
	if err := editor.WriteStatsChart(&buf); err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, services.ErrNoMap) {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	s.logger.Error("render failed", zap.Error(err))
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func queryInt(r *http.Request, key string, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || n <= 0 {
		return def
	}
	return n
}
