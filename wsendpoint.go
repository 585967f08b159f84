package beauty

// WriteResult reports the outcome of a WebSocket send requested through a
// WsEndpoint.
type WriteResult int

const (
	// WriteSuccess means the write was accepted and queued/sent.
	WriteSuccess WriteResult = iota
	// WriteInProgress means another write on the same connection has not
	// completed yet; the caller should retry once notified via callback.
	WriteInProgress
	// WriteConnectionClosed means the connection id is unknown or already
	// closed.
	WriteConnectionClosed
)

// WriteCompleteCallback is invoked once a queued write finishes, reporting
// any error and the number of bytes actually written. It may be nil.
type WriteCompleteCallback func(err error, bytesWritten int)

// WsReceiver is implemented by application code that wants WebSocket
// events for a given path. WsEndpoint implements the bookkeeping and leaves
// these four methods abstract, mirroring IWsReceiver.
type WsReceiver interface {
	OnWsOpen(connectionID string)
	OnWsMessage(connectionID string, msg WsMessage)
	OnWsClose(connectionID string)
	OnWsError(connectionID string, err error)
}

// WsSender is implemented by the ConnectionManager and gives a WsEndpoint a
// way to push data to the connections it owns.
type WsSender interface {
	SendWsText(connectionID, message string, callback WriteCompleteCallback) WriteResult
	SendWsBinary(connectionID string, data []byte, callback WriteCompleteCallback) WriteResult
	SendWsClose(connectionID string, statusCode uint16, reason string, callback WriteCompleteCallback) WriteResult
	ActiveWsConnectionsForEndpoint(endpoint WsReceiver) []string
	IsWriteInProgress(connectionID string) bool
}

// WsEndpoint handles every WebSocket connection upgraded on a single path.
// Embed it in a concrete type that implements OnWsOpen/OnWsMessage/
// OnWsClose/OnWsError; the connection manager wires in a WsSender once the
// endpoint is registered with a Server.
//
// Example:
//
//	type ChatEndpoint struct{ beauty.WsEndpoint }
//	func (c *ChatEndpoint) OnWsMessage(id string, msg beauty.WsMessage) {
//		c.SendText(id, "echo: "+string(msg.Content), nil)
//	}
type WsEndpoint struct {
	path     string
	wsSender WsSender
}

// NewWsEndpoint returns a WsEndpoint serving path. Embed the result (or call
// this from an embedding type's constructor) before registering it.
func NewWsEndpoint(path string) WsEndpoint {
	return WsEndpoint{path: path}
}

// Path returns the URL path this endpoint was registered for.
func (e *WsEndpoint) Path() string { return e.path }

// SendText sends a text frame to connectionID.
func (e *WsEndpoint) SendText(connectionID, message string, callback WriteCompleteCallback) WriteResult {
	if e.wsSender == nil {
		return WriteConnectionClosed
	}
	return e.wsSender.SendWsText(connectionID, message, callback)
}

// SendBinary sends a binary frame to connectionID.
func (e *WsEndpoint) SendBinary(connectionID string, data []byte, callback WriteCompleteCallback) WriteResult {
	if e.wsSender == nil {
		return WriteConnectionClosed
	}
	return e.wsSender.SendWsBinary(connectionID, data, callback)
}

// SendClose sends a close frame to connectionID.
func (e *WsEndpoint) SendClose(connectionID string, statusCode uint16, reason string, callback WriteCompleteCallback) WriteResult {
	if e.wsSender == nil {
		return WriteConnectionClosed
	}
	return e.wsSender.SendWsClose(connectionID, statusCode, reason, callback)
}

// ActiveConnections lists the connection ids currently upgraded on this
// endpoint.
func (e *WsEndpoint) ActiveConnections(self WsReceiver) []string {
	if e.wsSender == nil {
		return nil
	}
	return e.wsSender.ActiveWsConnectionsForEndpoint(self)
}

// CanSendTo reports whether connectionID is not mid-write.
func (e *WsEndpoint) CanSendTo(connectionID string) bool {
	if e.wsSender == nil {
		return false
	}
	return !e.wsSender.IsWriteInProgress(connectionID)
}

// SetWsSender is called once by the ConnectionManager when the endpoint is
// registered. Not for use by application code.
func (e *WsEndpoint) SetWsSender(sender WsSender) {
	e.wsSender = sender
}
