package beauty

import "time"

// minMaxContentSize is the smallest buffer a Connection is allowed to read
// and write through; anything below it cannot hold a full status line.
const minMaxContentSize = 1024

// Settings configures connection lifetime, keep-alive accounting and
// WebSocket liveness timers shared by every Connection a Server manages.
type Settings struct {
	// KeepAliveTimeout is how long an idle persistent connection is kept
	// open. Zero disables keep-alive: every response closes the connection.
	KeepAliveTimeout time.Duration

	// KeepAliveMax caps the number of requests served on one connection
	// before it is closed, advertised via the Keep-Alive response header.
	KeepAliveMax int

	// ConnectionLimit caps concurrent persistent connections; beyond it new
	// connections are served without keep-alive and close after one reply.
	// Zero means unlimited.
	ConnectionLimit int

	// WsReceiveTimeout closes a WebSocket connection that has gone this long
	// without receiving any frame, pongs included. Zero disables the timeout.
	WsReceiveTimeout time.Duration

	// WsPingInterval is how often a ping is sent to an idle WebSocket
	// connection to verify the client is still responsive. Zero disables
	// automatic pings. Should be well under WsReceiveTimeout.
	WsPingInterval time.Duration

	// WsPongTimeout is how long to wait for a pong after a ping before
	// closing the connection.
	WsPongTimeout time.Duration

	// MaxContentSize bounds the read/write buffer size for every connection,
	// and therefore the largest request body handled in one pass without
	// the multipart/streaming path. Clamped up to minMaxContentSize.
	MaxContentSize int
}

// DefaultSettings returns the same defaults as the legacy construction
// defaults: 5s keep-alive, up to 100 requests per connection, no connection
// limit, a 300s WebSocket receive timeout with a 100s ping interval and 5s
// pong timeout, and a 1024 byte buffer.
func DefaultSettings() Settings {
	return Settings{
		KeepAliveTimeout: 5 * time.Second,
		KeepAliveMax:     100,
		ConnectionLimit:  0,
		WsReceiveTimeout: 300 * time.Second,
		WsPingInterval:   100 * time.Second,
		WsPongTimeout:    5 * time.Second,
		MaxContentSize:   minMaxContentSize,
	}
}

func (s Settings) normalized() Settings {
	if s.MaxContentSize < minMaxContentSize {
		s.MaxContentSize = minMaxContentSize
	}
	return s
}
