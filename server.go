package beauty

import (
	"context"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Server listens on one TCP port and dispatches every accepted connection
// to its own goroutine. It owns the ConnectionManager, the HandlerChain and
// the once-a-second tick that expires idle keep-alive/WebSocket
// connections.
type Server struct {
	listener net.Listener
	manager  *ConnectionManager
	handler  *HandlerChain
	settings Settings
	metrics  *serverMetrics

	acceptLimiter *rate.Limiter

	connID  uint64
	closing chan struct{}
	once    sync.Once

	log *logrus.Entry
}

// ServerOption customizes a Server at construction time.
type ServerOption func(*Server)

// WithFileSink wires a FileSink into the server's handler chain, enabling
// the default GET/multipart-POST file flow.
func WithFileSink(sink FileSink) ServerOption {
	return func(s *Server) { s.handler.sink = sink }
}

// WithRequestHandler appends a RequestHandlerFunc run before the default
// file-sink behaviour, in registration order.
func WithRequestHandler(h RequestHandlerFunc) ServerOption {
	return func(s *Server) { s.handler.AddRequestHandler(h) }
}

// WithExpectContinueHandler overrides the default "always continue" policy
// for requests carrying Expect: 100-continue.
func WithExpectContinueHandler(h ExpectContinueHandler) ServerOption {
	return func(s *Server) { s.handler.SetExpectContinueHandler(h) }
}

// WithWsEndpoint registers a WsReceiver to handle upgrades on path.
func WithWsEndpoint(path string, endpoint WsReceiver) ServerOption {
	return func(s *Server) {
		s.manager.pathToEndpoint[path] = endpoint
		if setter, ok := endpoint.(interface{ SetWsSender(WsSender) }); ok {
			setter.SetWsSender(s.manager)
		}
	}
}

// WithMetricsRegisterer registers the server's Prometheus collectors with
// reg instead of the default global registry.
func WithMetricsRegisterer(reg prometheus.Registerer) ServerOption {
	return func(s *Server) { s.metrics = newServerMetrics(reg) }
}

// WithAcceptRateLimit caps the rate of accepted connections (e.g. to blunt
// connection-flood abuse); burst allows short spikes above the steady rate.
func WithAcceptRateLimit(perSecond float64, burst int) ServerOption {
	return func(s *Server) { s.acceptLimiter = rate.NewLimiter(rate.Limit(perSecond), burst) }
}

// NewServer constructs a Server bound to addr (host:port, or ":0" for an
// OS-assigned port) with settings, applying opts in order. The server does
// not accept connections until Serve is called.
func NewServer(addr string, settings Settings, opts ...ServerOption) (*Server, error) {
	settings = settings.normalized()

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	manager := NewConnectionManager(settings, nil)

	s := &Server{
		listener: listener,
		manager:  manager,
		handler:  NewHandlerChain(nil, settings.MaxContentSize),
		settings: settings,
		closing:  make(chan struct{}),
		log:      logrus.WithField("component", "server"),
	}

	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = newServerMetrics(prometheus.DefaultRegisterer)
	}
	manager.metrics = s.metrics

	return s, nil
}

// Addr returns the address the server is actually listening on, useful
// when NewServer was given port 0.
func (s *Server) Addr() string { return s.listener.Addr().String() }

// Serve runs the accept loop until ctx is cancelled or Shutdown is called.
// It blocks; call it from its own goroutine.
func (s *Server) Serve(ctx context.Context) error {
	go s.tickLoop(ctx)

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.closing:
				return nil
			default:
			}
			if ctx.Err() != nil {
				return nil
			}
			s.log.WithError(err).Debug("accept failed")
			continue
		}

		if s.acceptLimiter != nil && !s.acceptLimiter.Allow() {
			_ = conn.Close()
			continue
		}

		id := strconv.FormatUint(atomic.AddUint64(&s.connID, 1), 10)
		c := NewConnection(conn, s.manager, s.handler, id, s.settings)
		s.manager.Start(c)
	}
}

func (s *Server) tickLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.closing:
			return
		case <-ticker.C:
			s.manager.Tick()
		}
	}
}

// Shutdown stops accepting new connections and closes every connection
// currently open.
func (s *Server) Shutdown() {
	s.once.Do(func() {
		close(s.closing)
		_ = s.listener.Close()
		s.manager.StopAll()
	})
}

// SetDebugMsgHandler installs cb to receive low-level diagnostic strings
// from the connection manager.
func (s *Server) SetDebugMsgHandler(cb func(msg string)) {
	s.manager.SetDebugMsgHandler(cb)
}
