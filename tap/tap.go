package tap

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/semlink/driver"
	"github.com/c360/semlink/errors"
	"github.com/c360/semlink/metric"
)

const shutdownGrace = 5 * time.Second

// Config holds tap server settings
type Config struct {
	Addr         string
	Path         string
	MaxClients   int
	PingInterval time.Duration
	WriteTimeout time.Duration
	// SendQueue is how many frames a client may lag before it is dropped
	SendQueue int
}

// DefaultConfig returns the tap defaults
func DefaultConfig() Config {
	return Config{
		Addr:         ":8090",
		Path:         "/events",
		MaxClients:   64,
		PingInterval: 30 * time.Second,
		WriteTimeout: 10 * time.Second,
		SendQueue:    64,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Addr == "" {
		c.Addr = def.Addr
	}
	if c.Path == "" {
		c.Path = def.Path
	}
	if c.MaxClients <= 0 {
		c.MaxClients = def.MaxClients
	}
	if c.PingInterval <= 0 {
		c.PingInterval = def.PingInterval
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.SendQueue <= 0 {
		c.SendQueue = def.SendQueue
	}
	return c
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics registers tap metrics with registry
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(s *Server) {
		s.metricsRegistry = registry
	}
}

// WithRobot labels frames with the robot name
func WithRobot(name string) Option {
	return func(s *Server) {
		s.robot = name
	}
}

// Metrics holds Prometheus metrics for the tap
type Metrics struct {
	clientsConnected prometheus.Gauge
	framesSent       prometheus.Counter
	clientsDropped   *prometheus.CounterVec
}

func newMetrics(registry *metric.MetricsRegistry) *Metrics {
	if registry == nil {
		return nil
	}

	m := &Metrics{
		clientsConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metric.Namespace,
			Subsystem: "tap",
			Name:      "clients_connected",
			Help:      "Number of currently connected tap clients",
		}),
		framesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "tap",
			Name:      "frames_sent_total",
			Help:      "Total event frames queued to tap clients",
		}),
		clientsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "tap",
			Name:      "clients_dropped_total",
			Help:      "Tap clients disconnected by the server",
		}, []string{"reason"}),
	}

	if registry.RegisterGauge("tap", "clients_connected", m.clientsConnected) != nil ||
		registry.RegisterCounter("tap", "frames_sent", m.framesSent) != nil ||
		registry.RegisterCounterVec("tap", "clients_dropped", m.clientsDropped) != nil {
		return nil
	}
	return m
}

// client is one connected observer. Frames are queued on send and written
// by the client's own writer goroutine.
type client struct {
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

// Server broadcasts driver events to WebSocket clients
type Server struct {
	cfg             Config
	robot           string
	logger          *slog.Logger
	metricsRegistry *metric.MetricsRegistry
	metrics         *Metrics
	upgrader        websocket.Upgrader

	clientsMu sync.RWMutex
	clients   map[*client]struct{}
	closed    bool
	wg        sync.WaitGroup

	framesSent atomic.Int64
	dropped    atomic.Int64
}

// New creates a tap server. Nothing listens until Run.
func New(cfg Config, opts ...Option) *Server {
	s := &Server{
		cfg:     cfg.withDefaults(),
		logger:  slog.Default(),
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "tap")
	s.metrics = newMetrics(s.metricsRegistry)
	return s
}

// Handler returns the mux serving the event endpoint
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.Path, s.handleWebSocket)
	return mux
}

// HandleEvent broadcasts ev. It has the driver.Handler signature so it can
// be registered with Driver.OnEvent.
func (s *Server) HandleEvent(_ context.Context, ev driver.Event) {
	s.Broadcast(FromEvent(s.robot, ev, time.Now()))
}

// Broadcast queues msg for every client. Clients whose queue is full are dropped.
func (s *Server) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Warn("Failed to encode tap frame", "kind", msg.Kind, "error", err)
		return
	}

	s.clientsMu.RLock()
	targets := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		targets = append(targets, c)
	}
	s.clientsMu.RUnlock()

	for _, c := range targets {
		select {
		case c.send <- data:
			s.framesSent.Add(1)
			if s.metrics != nil {
				s.metrics.framesSent.Inc()
			}
		case <-c.done:
		default:
			s.logger.Debug("Dropping slow tap client")
			s.drop(c, "slow")
		}
	}
}

// ClientCount returns the number of connected clients
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// Dropped returns how many clients were disconnected for lagging or failing writes
func (s *Server) Dropped() int64 {
	return s.dropped.Load()
}

// Run serves the tap until ctx is cancelled, then closes every client
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()
	s.logger.Info("Event tap listening", "addr", s.cfg.Addr, "path", s.cfg.Path)

	var runErr error
	select {
	case err := <-errCh:
		if err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			runErr = errors.WrapFatal(err, "Server", "Run", fmt.Sprintf("listen on %s", s.cfg.Addr))
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			runErr = errors.WrapTransient(err, "Server", "Run", "shutdown tap server")
		}
	}

	s.Close()
	return runErr
}

// Close disconnects every client and rejects new ones
func (s *Server) Close() {
	s.clientsMu.Lock()
	s.closed = true
	clients := s.clients
	s.clients = make(map[*client]struct{})
	s.clientsMu.Unlock()

	for c := range clients {
		c.close()
	}
	if s.metrics != nil {
		s.metrics.clientsConnected.Set(0)
	}
	s.wg.Wait()
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.clientsMu.RLock()
	full := len(s.clients) >= s.cfg.MaxClients
	closed := s.closed
	s.clientsMu.RUnlock()
	if closed || full {
		http.Error(w, "tap unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("WebSocket upgrade failed", "error", err)
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, s.cfg.SendQueue),
		done: make(chan struct{}),
	}

	s.clientsMu.Lock()
	if s.closed {
		s.clientsMu.Unlock()
		c.close()
		return
	}
	s.clients[c] = struct{}{}
	count := len(s.clients)
	s.wg.Add(2)
	s.clientsMu.Unlock()

	if s.metrics != nil {
		s.metrics.clientsConnected.Set(float64(count))
	}
	s.logger.Debug("Tap client connected", "remote", r.RemoteAddr, "clients", count)

	go s.writeLoop(c)
	go s.readLoop(c)
}

// writeLoop owns all writes to the connection
func (s *Server) writeLoop(c *client) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.drop(c, "write_error")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.drop(c, "ping_error")
				return
			}
		}
	}
}

// readLoop discards client frames and notices disconnects. A client that
// answers no ping within two intervals times out.
func (s *Server) readLoop(c *client) {
	defer s.wg.Done()
	defer s.remove(c)

	deadline := 2 * s.cfg.PingInterval
	_ = c.conn.SetReadDeadline(time.Now().Add(deadline))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(deadline))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) drop(c *client, reason string) {
	s.dropped.Add(1)
	if s.metrics != nil {
		s.metrics.clientsDropped.WithLabelValues(reason).Inc()
	}
	s.remove(c)
}

func (s *Server) remove(c *client) {
	s.clientsMu.Lock()
	_, present := s.clients[c]
	delete(s.clients, c)
	count := len(s.clients)
	s.clientsMu.Unlock()

	c.close()
	if present && s.metrics != nil {
		s.metrics.clientsConnected.Set(float64(count))
	}
}
