// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/relabs-tech/flight_board/internal/config"
	"github.com/relabs-tech/flight_board/internal/scene"
	"github.com/relabs-tech/flight_board/internal/telemetry"
)

const (
	wsWriteTimeout = time.Second
	wsSendBuffer   = 16
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS is enforced by the outer handler
	},
}

// wsClient owns one websocket connection. Only its writer goroutine writes
// to conn; send is closed when the client is removed.
type wsClient struct {
	conn   *websocket.Conn
	remote string
	send   chan telemetry.Snapshot
}

func (c *wsClient) writeLoop(logger *zap.SugaredLogger) {
	defer c.conn.Close()
	for s := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := c.conn.WriteJSON(s); err != nil {
			logger.Infow("web: websocket write", "remote", c.remote, "error", err)
			return
		}
	}
}

// WebServer serves the latest telemetry and the 3D scene over HTTP, and
// streams every new snapshot to websocket clients.
type WebServer struct {
	latest telemetry.Latest
	scene  *scene.Scene
	logger *zap.SugaredLogger

	// followHeading turns the scene vehicle with the telemetry yaw.
	followHeading bool

	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

// NewWebServer builds a server around sc; nil gets an empty default scene.
func NewWebServer(sc *scene.Scene, logger *zap.SugaredLogger) *WebServer {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if sc == nil {
		sc = scene.New(scene.DefaultOptions())
	}
	return &WebServer{
		scene:         sc,
		logger:        logger,
		followHeading: true,
		clients:       map[*wsClient]struct{}{},
	}
}

func (ws *WebServer) Scene() *scene.Scene { return ws.scene }

// Update stores s and queues it for every websocket client. It never
// blocks: a client whose queue is full is dropped.
func (ws *WebServer) Update(s telemetry.Snapshot) {
	_ = ws.latest.Publish(s)
	if ws.followHeading {
		ws.scene.SetHeading(s.Pose.Yaw)
	}

	ws.mu.Lock()
	defer ws.mu.Unlock()
	for c := range ws.clients {
		select {
		case c.send <- s:
		default:
			ws.logger.Infow("web: dropping slow websocket client", "remote", c.remote)
			ws.removeLocked(c)
		}
	}
}

func (ws *WebServer) removeLocked(c *wsClient) {
	if _, ok := ws.clients[c]; !ok {
		return
	}
	delete(ws.clients, c)
	close(c.send)
}

// Handler returns the HTTP routes wrapped in CORS. staticDir may be empty.
func (ws *WebServer) Handler(staticDir string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/telemetry", ws.handleTelemetry)
	mux.HandleFunc("GET /api/scene", ws.handleScene)
	mux.HandleFunc("DELETE /api/scene", ws.handleSceneReset)
	mux.HandleFunc("POST /api/scene/pose", ws.handleScenePose)
	mux.HandleFunc("POST /api/scene/obstacles", ws.handleSceneObstacle)
	mux.HandleFunc("/ws", ws.handleWS)
	if staticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(staticDir)))
	}
	return cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
	}).Handler(mux)
}

func (ws *WebServer) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		ws.logger.Warnw("web: json encode", "error", err)
	}
}

func (ws *WebServer) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	s, ok := ws.latest.Get()
	if !ok {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}
	ws.writeJSON(w, s)
}

func (ws *WebServer) handleScene(w http.ResponseWriter, r *http.Request) {
	ws.writeJSON(w, ws.scene.View())
}

func (ws *WebServer) handleSceneReset(w http.ResponseWriter, r *http.Request) {
	ws.scene.Reset()
	w.WriteHeader(http.StatusNoContent)
}

func (ws *WebServer) handleScenePose(w http.ResponseWriter, r *http.Request) {
	var p scene.Pose
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, "bad pose: "+err.Error(), http.StatusBadRequest)
		return
	}
	ws.scene.SetPose(p)
	w.WriteHeader(http.StatusNoContent)
}

func (ws *WebServer) handleSceneObstacle(w http.ResponseWriter, r *http.Request) {
	var o struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
		Z float64 `json:"z"`
	}
	if err := json.NewDecoder(r.Body).Decode(&o); err != nil {
		http.Error(w, "bad obstacle: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := ws.scene.AddObstacle(o.X, o.Y, o.Z); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (ws *WebServer) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		ws.logger.Warnw("web: websocket upgrade", "error", err)
		return
	}
	c := &wsClient{
		conn:   conn,
		remote: conn.RemoteAddr().String(),
		send:   make(chan telemetry.Snapshot, wsSendBuffer),
	}

	ws.mu.Lock()
	ws.clients[c] = struct{}{}
	if s, ok := ws.latest.Get(); ok {
		c.send <- s
	}
	ws.mu.Unlock()
	go c.writeLoop(ws.logger)

	// Clients only listen; reading detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				ws.logger.Infow("web: websocket read", "error", err)
			}
			break
		}
	}
	ws.mu.Lock()
	ws.removeLocked(c)
	ws.mu.Unlock()
}

// Clients returns the number of connected websocket clients.
func (ws *WebServer) Clients() int {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return len(ws.clients)
}

// RunWeb subscribes to the board's telemetry and serves it until ctx is done.
func RunWeb(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) error {
	client, err := telemetry.Connect(cfg.MQTTBroker, cfg.MQTTClientIDWeb)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	logger.Infow("web: connected to MQTT broker", "broker", cfg.MQTTBroker)

	ws := NewWebServer(scene.New(scene.Options{
		MapSizeCM:      cfg.SceneMapSizeCM,
		ObstacleSizeCM: cfg.SceneObstacleSizeCM,
		VehicleSizeCM:  cfg.SceneVehicleSizeCM,
		MaxObstacles:   cfg.SceneMaxObstacles,
	}), logger)
	if cfg.SceneDemoInterval > 0 {
		ws.followHeading = false
		go runSceneDemo(ctx, ws.Scene(), time.Duration(cfg.SceneDemoInterval)*time.Millisecond, logger)
	}
	topic := telemetry.Topic(cfg.TopicTelemetry, cfg.BoardName)
	if err := telemetry.Subscribe(client, topic, logger, ws.Update); err != nil {
		return err
	}
	logger.Infow("web: subscribed", "topic", topic)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WebServerPort),
		Handler:           ws.Handler(cfg.WebStaticDir),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Infow("web: server listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "web server")
	}
	return nil
}

func runSceneDemo(ctx context.Context, sc *scene.Scene, interval time.Duration, logger *zap.SugaredLogger) {
	demo := scene.NewDemo(sc, time.Now().UnixNano())
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	logger.Infow("web: scene demo running", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := demo.Step(); err != nil {
				logger.Debugw("web: scene demo", "error", err)
			}
		}
	}
}
