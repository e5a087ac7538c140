package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/skip2/go-qrcode"
)

const (
	qrSize        = 256
	recentGames   = 20
	statsLookback = 7 // days
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // Non-browser clients don't send Origin
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return u.Host == r.Host
	},
}

// Server exposes the game over HTTP and WebSocket.
type Server struct {
	hub       *Hub
	coord     *Coordinator
	sim       *Simulation
	store     *Store
	analytics *Analytics
	logger    *slog.Logger
	staticDir string
	publicURL string
}

// NewServer wires the HTTP layer to the game components.
func NewServer(hub *Hub, coord *Coordinator, sim *Simulation, store *Store, analytics *Analytics, cfg Config, logger *slog.Logger) *Server {
	return &Server{
		hub:       hub,
		coord:     coord,
		sim:       sim,
		store:     store,
		analytics: analytics,
		logger:    logger,
		staticDir: cfg.StaticDir,
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
	}
}

func extractIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorMsg{Msg: msg})
}

func parseRoomID(s string) (RoomID, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid room id %q", s)
	}
	return RoomID(n), nil
}

// SetupRoutes configures HTTP routes
func (s *Server) SetupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	if s.staticDir != "" {
		// Serve static files with no-cache so browsers always revalidate
		fs := http.FileServer(http.Dir(s.staticDir))
		mux.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "no-cache")
			fs.ServeHTTP(w, r)
		}))
	}

	mux.HandleFunc("GET /game", s.serveGame)
	mux.HandleFunc("GET /api/rooms", s.listRooms)
	mux.HandleFunc("POST /api/rooms", s.createRoom)
	mux.HandleFunc("GET /api/rooms/{id}", s.getRoom)
	mux.HandleFunc("GET /api/rooms/{id}/qr", s.roomQR)
	mux.HandleFunc("GET /api/games", s.listGames)
	mux.HandleFunc("GET /api/stats", s.stats)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return mux
}

// serveGame upgrades to the duplex game channel.
func (s *Server) serveGame(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var room RoomID
	if v := q.Get("room"); v != "" {
		id, err := parseRoomID(v)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		room = id
	}
	watch, _ := strconv.ParseBool(q.Get("watch"))

	ip := extractIP(r)
	if !s.hub.CanAccept(ip) {
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	id, err := s.coord.Connect(r.Context())
	if err != nil {
		s.logger.Error("connect failed", "error", err)
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrade error", "error", err)
		return
	}

	s.hub.TrackConnect(ip)

	client := NewClient(s.hub, s.coord, conn, s.logger, id, ip)
	client.enc = ParseEncoding(q.Get("enc"))
	client.room = room
	client.watch = watch
	s.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}

func (s *Server) listRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := s.coord.ListRooms(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rooms)
}

func (s *Server) createRoom(w http.ResponseWriter, r *http.Request) {
	id, err := s.coord.CreateRoom(r.Context())
	switch {
	case errors.Is(err, ErrTooManyRooms):
		writeError(w, http.StatusServiceUnavailable, ErrTooManyRooms.Error())
		return
	case err != nil:
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, CreatedMsg{ID: id})
}

func (s *Server) lookupRoom(ctx context.Context, w http.ResponseWriter, raw string) (RoomInfo, bool) {
	id, err := parseRoomID(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return RoomInfo{}, false
	}
	info, err := s.coord.RoomInfo(ctx, id)
	switch {
	case errors.Is(err, ErrRoomNotFound):
		writeError(w, http.StatusNotFound, ErrRoomNotFound.Error())
		return RoomInfo{}, false
	case err != nil:
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return RoomInfo{}, false
	}
	return info, true
}

func (s *Server) getRoom(w http.ResponseWriter, r *http.Request) {
	if info, ok := s.lookupRoom(r.Context(), w, r.PathValue("id")); ok {
		writeJSON(w, http.StatusOK, info)
	}
}

// roomQR renders a QR code pointing at the room's join page.
func (s *Server) roomQR(w http.ResponseWriter, r *http.Request) {
	info, ok := s.lookupRoom(r.Context(), w, r.PathValue("id"))
	if !ok {
		return
	}
	png, err := qrcode.Encode(s.joinURL(r, info.ID), qrcode.Medium, qrSize)
	if err != nil {
		s.logger.Error("qr encode failed", "room", info.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "qr encode failed")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(png)
}

func (s *Server) joinURL(r *http.Request, id RoomID) string {
	base := s.publicURL
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		base = scheme + "://" + r.Host
	}
	return fmt.Sprintf("%s/?room=%d", base, id)
}

func (s *Server) listGames(w http.ResponseWriter, r *http.Request) {
	games, err := s.analytics.RecentGames(recentGames)
	if err != nil {
		s.logger.Error("recent games query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if games == nil {
		games = []GameRecord{}
	}
	writeJSON(w, http.StatusOK, games)
}

// StatsResponse is returned by /api/stats
type StatsResponse struct {
	Rooms       int            `json:"rooms"`
	Connections int            `json:"connections"`
	Sockets     int            `json:"sockets"`
	Ticks       uint64         `json:"ticks"`
	EventLog    bool           `json:"event_log"`
	Events      map[string]int `json:"events,omitempty"`
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	resp := StatsResponse{
		Rooms:       s.store.Len(),
		Connections: s.hub.ClientCount(),
		Sockets:     s.hub.TotalConns(),
		Ticks:       s.sim.Ticks(),
		EventLog:    s.analytics.Enabled(),
	}
	if resp.EventLog {
		events, err := s.analytics.EventCounts(statsLookback)
		if err != nil {
			s.logger.Warn("event counts query failed", "error", err)
		}
		resp.Events = events
	}
	writeJSON(w, http.StatusOK, resp)
}
