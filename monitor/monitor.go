// Package monitor serves the bridge state on the local network: the last
// reading, the announced descriptor and a websocket feed of new readings.
package monitor

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Uranury/iot-bridge/iothub"
	"github.com/Uranury/iot-bridge/sensors"
)

const (
	writeTimeout = 5 * time.Second
	// sendBuffer is how many readings a slow client may lag behind before
	// newer ones are dropped for it.
	sendBuffer = 16
)

// client owns its connection's writes; Write only queues.
type client struct {
	conn *websocket.Conn
	send chan *sensors.SensorData
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Server struct {
	logger *zap.SugaredLogger
	router *gin.Engine
	srv    *http.Server

	mu      sync.Mutex
	latest  *sensors.SensorData
	device  *iothub.DeviceInfo
	clients map[*client]bool
	started time.Time
}

func New(addr string, logger *zap.SugaredLogger) *Server {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	s := &Server{
		logger:  logger,
		clients: make(map[*client]bool),
		started: time.Now(),
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/healthz", s.handleHealth)
	r.GET("/api/latest", s.handleLatest)
	r.GET("/api/device", s.handleDevice)
	r.GET("/ws", s.handleWebSocket)
	s.router = r
	s.srv = &http.Server{Addr: addr, Handler: r}
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

// Start serves on its own goroutine until Shutdown.
func (s *Server) Start() {
	go func() {
		s.logger.Infof("monitor listening on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Errorf("monitor: %v", err)
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for c := range s.clients {
		s.dropLocked(c)
	}
	s.mu.Unlock()
	return s.srv.Shutdown(ctx)
}

// Announce records the descriptor sent to the hub.
func (s *Server) Announce(info iothub.DeviceInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.device = &info
}

// Write stores data as the latest reading and queues it for every
// websocket client. It never waits on the network.
func (s *Server) Write(_ context.Context, data *sensors.SensorData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = data
	for c := range s.clients {
		select {
		case c.send <- data:
		default:
			s.logger.Debugf("websocket client lagging, reading dropped")
		}
	}
	return nil
}

// dropLocked unregisters c and closes its connection. s.mu must be held.
func (s *Server) dropLocked(c *client) {
	if !s.clients[c] {
		return
	}
	delete(s.clients, c)
	close(c.send)
	c.conn.Close()
}

func (s *Server) writePump(c *client) {
	for data := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteJSON(data); err != nil {
			s.logger.Debugf("websocket write error: %v", err)
			// unblocks the read loop, which unregisters the client
			c.conn.Close()
			for range c.send {
			}
			return
		}
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) handleLatest(c *gin.Context) {
	s.mu.Lock()
	latest := s.latest
	s.mu.Unlock()
	if latest == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no reading yet"})
		return
	}
	c.JSON(http.StatusOK, latest)
}

func (s *Server) handleDevice(c *gin.Context) {
	s.mu.Lock()
	device := s.device
	s.mu.Unlock()
	if device == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "device not announced yet"})
		return
	}
	c.JSON(http.StatusOK, device)
}

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warnf("websocket upgrade error: %v", err)
		return
	}

	cl := &client{conn: conn, send: make(chan *sensors.SensorData, sendBuffer)}
	s.mu.Lock()
	s.clients[cl] = true
	n := len(s.clients)
	s.mu.Unlock()
	s.logger.Debugf("client connected, total clients: %d", n)

	go s.writePump(cl)

	// Reads only detect the peer going away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.mu.Lock()
	s.dropLocked(cl)
	n = len(s.clients)
	s.mu.Unlock()
	s.logger.Debugf("client disconnected, total clients: %d", n)
}
