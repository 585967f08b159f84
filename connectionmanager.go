package beauty

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ConnectionManager tracks every live Connection so they can be ticked for
// keep-alive/WebSocket expiry and cleanly stopped on shutdown. It also
// implements WsSender, routing application sends down to the right
// Connection by id.
type ConnectionManager struct {
	mu          sync.Mutex
	connections map[string]*Connection

	wsConnMu    sync.Mutex
	wsConns     map[string]*Connection
	endpointOf  map[string]WsReceiver // connection id -> endpoint handling it

	pathToEndpoint map[string]WsReceiver

	settings Settings
	debugMsg func(msg string)

	metrics *serverMetrics
}

// NewConnectionManager returns a manager configured with settings.
func NewConnectionManager(settings Settings, metrics *serverMetrics) *ConnectionManager {
	return &ConnectionManager{
		connections:    make(map[string]*Connection),
		wsConns:        make(map[string]*Connection),
		endpointOf:     make(map[string]WsReceiver),
		pathToEndpoint: make(map[string]WsReceiver),
		settings:       settings,
		debugMsg:       func(string) {},
		metrics:        metrics,
	}
}

// SetDebugMsgHandler installs cb to receive low-level diagnostic strings
// (accept errors, forced disconnects) in place of the default no-op.
func (m *ConnectionManager) SetDebugMsgHandler(cb func(msg string)) {
	m.debugMsg = cb
}

// SetWsEndpoints registers the path -> WsReceiver table consulted on every
// upgrade request.
func (m *ConnectionManager) SetWsEndpoints(endpoints map[string]WsReceiver) {
	m.pathToEndpoint = endpoints
}

func (m *ConnectionManager) wsEndpointForPath(path string) WsReceiver {
	return m.pathToEndpoint[path]
}

// Start registers c and runs it on its own goroutine, deciding keep-alive
// eligibility from the configured timeout and connection limit.
func (m *ConnectionManager) Start(c *Connection) {
	m.mu.Lock()
	useKeepAlive := m.settings.KeepAliveTimeout != 0 &&
		(m.settings.ConnectionLimit == 0 || len(m.connections) < m.settings.ConnectionLimit)
	m.connections[c.ConnectionID()] = c
	if m.metrics != nil {
		m.metrics.connectionsOpen.Inc()
	}
	m.mu.Unlock()

	go c.Run(useKeepAlive)
}

func (m *ConnectionManager) remove(id string) {
	m.mu.Lock()
	if _, ok := m.connections[id]; ok {
		delete(m.connections, id)
		if m.metrics != nil {
			m.metrics.connectionsOpen.Dec()
		}
	}
	m.mu.Unlock()
}

// StopAll closes every tracked connection, used on server shutdown.
func (m *ConnectionManager) StopAll() {
	m.mu.Lock()
	conns := make([]*Connection, 0, len(m.connections))
	for _, c := range m.connections {
		conns = append(conns, c)
	}
	m.connections = make(map[string]*Connection)
	m.mu.Unlock()

	for _, c := range conns {
		c.Stop()
	}
}

// Tick expires idle keep-alive connections and connections that exceeded
// their request budget, and drives WebSocket ping scheduling/pong-timeout
// enforcement for every open WS connection. Call this once a second from
// the server's background loop: this single periodic sweep is the tick
// every time-based protocol behavior runs on, so none of it needs its own
// background goroutine.
func (m *ConnectionManager) Tick() {
	now := time.Now()
	m.mu.Lock()
	var expired []*Connection
	for id, c := range m.connections {
		if !c.UseKeepAlive() {
			continue
		}
		idle := c.LastReceivedTime().Add(m.settings.KeepAliveTimeout).Before(now)
		overBudget := c.NrOfRequests() >= m.settings.KeepAliveMax
		if idle || overBudget {
			expired = append(expired, c)
			delete(m.connections, id)
		}
	}
	m.mu.Unlock()

	for _, c := range expired {
		m.debugMsg("closing connection due to inactivity or request limit")
		c.Stop()
	}

	m.wsConnMu.Lock()
	wsConns := make([]*Connection, 0, len(m.wsConns))
	for _, c := range m.wsConns {
		wsConns = append(wsConns, c)
	}
	m.wsConnMu.Unlock()

	for _, c := range wsConns {
		if c.checkWsLiveness(now) {
			m.debugMsg("closing websocket connection due to pong timeout")
			c.sendWsFrame(WsOpClose, closePayload(1000, "pong timeout"))
			c.Stop()
		}
	}
}

func (m *ConnectionManager) registerWsConnection(id string, c *Connection) {
	m.wsConnMu.Lock()
	m.wsConns[id] = c
	m.endpointOf[id] = c.wsEndpoint
	m.wsConnMu.Unlock()
	if m.metrics != nil {
		m.metrics.wsConnectionsOpen.Inc()
	}
}

func (m *ConnectionManager) unregisterWsConnection(id string) {
	m.wsConnMu.Lock()
	delete(m.wsConns, id)
	delete(m.endpointOf, id)
	m.wsConnMu.Unlock()
	if m.metrics != nil {
		m.metrics.wsConnectionsOpen.Dec()
	}
}

// SendWsText implements WsSender.
func (m *ConnectionManager) SendWsText(connectionID, message string, callback WriteCompleteCallback) WriteResult {
	c := m.lookupWs(connectionID)
	if c == nil {
		return WriteConnectionClosed
	}
	return c.SendWsText(message, callback)
}

// SendWsBinary implements WsSender.
func (m *ConnectionManager) SendWsBinary(connectionID string, data []byte, callback WriteCompleteCallback) WriteResult {
	c := m.lookupWs(connectionID)
	if c == nil {
		return WriteConnectionClosed
	}
	return c.SendWsBinary(data, callback)
}

// SendWsClose implements WsSender.
func (m *ConnectionManager) SendWsClose(connectionID string, statusCode uint16, reason string, callback WriteCompleteCallback) WriteResult {
	c := m.lookupWs(connectionID)
	if c == nil {
		return WriteConnectionClosed
	}
	return c.SendWsClose(statusCode, reason, callback)
}

// ActiveWsConnectionsForEndpoint implements WsSender.
func (m *ConnectionManager) ActiveWsConnectionsForEndpoint(endpoint WsReceiver) []string {
	m.wsConnMu.Lock()
	defer m.wsConnMu.Unlock()
	var ids []string
	for id, ep := range m.endpointOf {
		if ep == endpoint {
			ids = append(ids, id)
		}
	}
	return ids
}

// IsWriteInProgress implements WsSender.
func (m *ConnectionManager) IsWriteInProgress(connectionID string) bool {
	c := m.lookupWs(connectionID)
	if c == nil {
		return false
	}
	return c.IsWriteInProgress()
}

func (m *ConnectionManager) lookupWs(id string) *Connection {
	m.wsConnMu.Lock()
	defer m.wsConnMu.Unlock()
	return m.wsConns[id]
}

// serverMetrics groups the Prometheus collectors a ConnectionManager/Server
// updates as connections come and go.
type serverMetrics struct {
	connectionsOpen   prometheus.Gauge
	wsConnectionsOpen prometheus.Gauge
	requestsTotal     prometheus.Counter
}
