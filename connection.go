package beauty

import (
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// wsGUID is appended to Sec-WebSocket-Key before hashing, per RFC 6455 §1.3.
const wsGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// Connection owns one client socket end to end: HTTP request/response
// cycles while useKeepAlive allows, or a WebSocket frame loop once a
// request upgrades. It runs entirely on its own goroutine; all socket I/O
// is blocking, the idiomatic Go trade for the original's asio callback
// chains.
type Connection struct {
	conn           net.Conn
	manager        *ConnectionManager
	handler        *HandlerChain
	settings       Settings
	id             string
	maxContentSize int

	recvBuffer []byte
	sendBuffer []byte

	request *Request
	parser  *RequestParser
	reply   *Reply

	wsParser   *WsParser
	wsEncoder  *WsEncoder
	wsEndpoint WsReceiver
	isWebSocket bool

	useKeepAlive bool
	nrOfRequests int

	lastActivityTime time.Time
	lastReceivedTime time.Time

	wsMu         sync.Mutex
	lastPingTime time.Time
	lastPongTime time.Time

	writeMu         sync.Mutex
	writeInProgress bool

	log *logrus.Entry
}

// NewConnection wraps an accepted socket. Call Run to drive it; Run blocks
// until the connection is closed, so callers invoke it in its own
// goroutine.
func NewConnection(conn net.Conn, manager *ConnectionManager, handler *HandlerChain, id string, settings Settings) *Connection {
	content := make([]byte, 0, settings.MaxContentSize)
	sendBuf := make([]byte, 0, settings.MaxContentSize)
	c := &Connection{
		conn:           conn,
		manager:        manager,
		handler:        handler,
		settings:       settings,
		id:             id,
		maxContentSize: settings.MaxContentSize,
		recvBuffer:     content,
		sendBuffer:     sendBuf,
		request:        &Request{},
		parser:         NewRequestParser(),
		wsParser:       NewWsParser(),
		wsEncoder:      NewServerWsEncoder(),
		log:            logrus.WithField("connection", id),
	}
	c.reply = NewReply(&c.sendBuffer)
	now := time.Now()
	c.lastActivityTime = now
	c.lastReceivedTime = now
	return c
}

// ConnectionID returns the id this connection was registered under.
func (c *Connection) ConnectionID() string { return c.id }

// UseKeepAlive reports whether this connection may serve more than one
// request.
func (c *Connection) UseKeepAlive() bool { return c.useKeepAlive }

// NrOfRequests returns how many requests have completed on this connection.
func (c *Connection) NrOfRequests() int { return c.nrOfRequests }

// IsWebSocket reports whether the connection has upgraded.
func (c *Connection) IsWebSocket() bool { return c.isWebSocket }

// LastReceivedTime returns the timestamp of the most recently read byte.
func (c *Connection) LastReceivedTime() time.Time { return c.lastReceivedTime }

// LastActivityTime returns the timestamp of the most recent read or write.
func (c *Connection) LastActivityTime() time.Time { return c.lastActivityTime }

// IsWriteInProgress reports whether a WebSocket write has not yet completed.
func (c *Connection) IsWriteInProgress() bool {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.writeInProgress
}

// Run drives the connection until it is closed, either by the peer, by a
// protocol error, or by Stop. It always runs the handler chain's CloseFile
// cleanup and removes itself from the manager before returning.
func (c *Connection) Run(useKeepAlive bool) {
	c.useKeepAlive = useKeepAlive
	defer c.shutdown()

	for {
		if !c.serveOneRequest() {
			return
		}
		if c.isWebSocket {
			c.runWebSocket()
			return
		}
		if !c.useKeepAlive || c.nrOfRequests >= c.settings.KeepAliveMax {
			return
		}
	}
}

// Stop closes the underlying socket, unblocking any in-flight Read/Write.
func (c *Connection) Stop() {
	_ = c.conn.Close()
}

func (c *Connection) shutdown() {
	c.handler.CloseFile(c.id, c.reply)
	_ = c.conn.Close()
	c.manager.remove(c.id)
}

// serveOneRequest reads, parses, handles and answers exactly one HTTP
// request. It returns false once the connection should be torn down
// (malformed request, I/O error, or a handler closing it explicitly).
func (c *Connection) serveOneRequest() bool {
	c.request.reset()
	c.reply.reset()
	c.parser.Reset()
	c.recvBuffer = c.recvBuffer[:0]

	result, err := c.readHeaders()
	if err != nil {
		return false
	}

	switch result {
	case ParseBad:
		c.reply.stockReply(c.request, StatusBadRequest)
		return c.finishExchange()
	case ParseVersionNotSupported:
		c.reply.stockReply(c.request, StatusVersionNotSupported)
		return c.finishExchange()
	case ParseMissingContentLength:
		c.reply.stockReply(c.request, StatusLengthRequired)
		return c.finishExchange()
	case ParseUpgradeToWebSocket:
		if !decodeRequest(c.request, c.recvBuffer) {
			c.reply.stockReply(c.request, StatusBadRequest)
			return c.finishExchange()
		}
		return c.handleUpgrade()
	case ParseGoodHeadersExpectContinue:
		return c.handleExpectContinue()
	case ParseExpectContinueWithBody:
		c.reply.stockReply(c.request, StatusBadRequest)
		return c.finishExchange()
	case ParseGoodComplete:
		if !decodeRequest(c.request, c.recvBuffer) {
			c.reply.stockReply(c.request, StatusBadRequest)
			return c.finishExchange()
		}
		c.handler.HandleRequest(c.id, c.request, &c.recvBuffer, c.reply)
		return c.finishExchange()
	case ParseGoodPart:
		return c.handleGoodPart()
	default:
		return false
	}
}

func (c *Connection) handleExpectContinue() bool {
	if !decodeRequest(c.request, c.recvBuffer) {
		c.reply.stockReply(c.request, StatusBadRequest)
		return c.finishExchange()
	}
	if !c.handler.ShouldContinueAfterHeaders(c.request, c.reply) {
		return c.finishExchange()
	}
	if _, err := c.conn.Write([]byte("HTTP/1.1 100 Continue\r\n\r\n")); err != nil {
		return false
	}
	result := c.parser.ResumeAfterContinue(&c.recvBuffer)
	return c.continueBody(result, false)
}

// isMultipartUpload reports whether req looks like a multipart/form-data
// POST, purely from its already-parsed Content-Type header: this needs no
// body bytes, so it is safe to call before the body has fully arrived.
func isMultipartUpload(req *Request) bool {
	return req.Method == "POST" && strings.Contains(req.HeaderValue("Content-Type"), "multipart")
}

// handleGoodPart runs when the headers are fully parsed but the body spans
// more than one read. A multipart upload is dispatched immediately so it can
// stream writes to the sink as further chunks arrive; anything else keeps
// reading until the whole body is in hand before decoding and dispatching it
// once, so the handler chain and FormParams never see a truncated body.
func (c *Connection) handleGoodPart() bool {
	if isMultipartUpload(c.request) {
		if !decodeRequest(c.request, c.recvBuffer) {
			c.reply.stockReply(c.request, StatusBadRequest)
			return c.finishExchange()
		}
		c.reply.noBodyBytesReceived = c.request.noBodyBytesReceived
		c.handler.HandleRequest(c.id, c.request, &c.recvBuffer, c.reply)

		if c.reply.isMultiPart {
			if err := c.writeHeadersOnly(); err != nil {
				return false
			}
			return c.readMultipartBody()
		}
		return c.finishExchange()
	}

	return c.continueBody(ParseGoodPart, false)
}

// continueBody keeps reading socket data and feeding the request parser
// until the body (tracked via parser-owned content-length state) completes,
// then decodes and runs the handler chain once against the complete body,
// unless alreadyHandled (the multipart good_part path already ran it once).
func (c *Connection) continueBody(last ParseResult, alreadyHandled bool) bool {
	result := last
	for result != ParseGoodComplete {
		if result == ParseBad || result == ParseVersionNotSupported {
			c.reply.stockReply(c.request, StatusBadRequest)
			return c.finishExchange()
		}
		buf := make([]byte, c.maxContentSize)
		n, err := c.conn.Read(buf)
		if err != nil {
			return false
		}
		c.touch(n)
		result, _ = c.parser.Parse(c.request, &c.recvBuffer, buf[:n])
	}
	if !alreadyHandled {
		if !decodeRequest(c.request, c.recvBuffer) {
			c.reply.stockReply(c.request, StatusBadRequest)
			return c.finishExchange()
		}
		c.handler.HandleRequest(c.id, c.request, &c.recvBuffer, c.reply)
	}
	return c.finishExchange()
}

// readMultipartBody streams the remaining body bytes straight into the
// handler chain's multipart writer, bypassing the header parser entirely
// (its job ended once Content-Type/Content-Length were read).
func (c *Connection) readMultipartBody() bool {
	for c.request.noBodyBytesReceived < c.request.contentLength {
		buf := make([]byte, c.maxContentSize)
		n, err := c.conn.Read(buf)
		if err != nil {
			return false
		}
		c.touch(n)
		c.request.noBodyBytesReceived += n
		chunk := buf[:n]
		priorCounter := c.handler.multipartWriteCounter
		c.handler.HandlePartialWrite(c.id, c.request, &chunk, c.reply)

		if c.request.noBodyBytesReceived < c.request.contentLength {
			if c.handler.multipartWriteCounter != priorCounter {
				if err := c.writeHeadersOnly(); err != nil {
					return false
				}
			}
			continue
		}
		return c.finishExchange()
	}
	return c.finishExchange()
}

// writeHeadersOnly acks a newly opened multipart destination file (e.g. a
// 201 Created) before the rest of its body has arrived.
func (c *Connection) writeHeadersOnly() error {
	head := c.statusLineAndHeaders()
	_, err := c.conn.Write(head)
	return err
}

// finishExchange writes the full reply (headers plus body, streamed if
// partial) and reports whether the connection survives for another
// request.
func (c *Connection) finishExchange() bool {
	if err := c.writeReply(); err != nil {
		return false
	}
	c.nrOfRequests++
	if c.manager.metrics != nil {
		c.manager.metrics.requestsTotal.Inc()
	}
	if c.isWebSocket {
		return true
	}
	if !c.request.keepAlive || strings.EqualFold(c.reply.HeaderValue("Connection"), "close") {
		return false
	}
	return c.useKeepAlive
}

func (c *Connection) readHeaders() (ParseResult, error) {
	for {
		buf := make([]byte, c.maxContentSize)
		n, err := c.conn.Read(buf)
		if err != nil {
			return ParseBad, err
		}
		c.touch(n)
		result, consumed := c.parser.Parse(c.request, &c.recvBuffer, buf[:n])
		if result == ParseIndeterminate {
			continue
		}
		if result == ParseGoodHeadersExpectContinue && consumed < n {
			// the client already shipped body bytes in the same read as
			// the headers, without waiting for our 100-continue: a
			// protocol violation (§7).
			return ParseExpectContinueWithBody, nil
		}
		return result, nil
	}
}

func (c *Connection) touch(n int) {
	now := time.Now()
	c.lastActivityTime = now
	if n > 0 {
		c.lastReceivedTime = now
	}
}

// statusLineAndHeaders renders the current reply's status line and headers
// (no body), used both for the final reply and for early multipart acks.
func (c *Connection) statusLineAndHeaders() []byte {
	out := make([]byte, 0, 256)
	out = append(out, statusLine(c.reply.Status())...)

	if c.useKeepAlive {
		out = append(out, "Connection: keep-alive\r\n"...)
		out = append(out, "Keep-Alive: timeout="...)
		out = append(out, strconv.Itoa(int(c.settings.KeepAliveTimeout.Seconds()))...)
		out = append(out, ", max="...)
		out = append(out, strconv.Itoa(c.settings.KeepAliveMax)...)
		out = append(out, "\r\n"...)
	}

	for _, h := range c.reply.Headers() {
		out = append(out, h.Name...)
		out = append(out, ": "...)
		out = append(out, h.Value...)
		out = append(out, "\r\n"...)
	}
	out = append(out, "\r\n"...)
	return out
}

func (c *Connection) writeReply() error {
	head := c.statusLineAndHeaders()
	if _, err := c.conn.Write(head); err != nil {
		return err
	}

	if c.reply.externalData != nil {
		_, err := c.conn.Write(c.reply.externalData)
		return err
	}

	if c.reply.streamCallback != nil {
		return c.writeStreamedBody()
	}

	if len(*c.reply.Content) > 0 {
		_, err := c.conn.Write(*c.reply.Content)
		return err
	}
	return nil
}

func (c *Connection) writeStreamedBody() error {
	buf := make([]byte, c.maxContentSize)
	for {
		n, err := c.reply.streamCallback(c.id, buf)
		if n > 0 {
			chunk := buf[:n]
			if c.reply.useChunkedEncoding {
				if _, werr := c.conn.Write(wrapChunk(chunk)); werr != nil {
					return werr
				}
			} else {
				if _, werr := c.conn.Write(chunk); werr != nil {
					return werr
				}
			}
		}
		if err != nil || n == 0 {
			if c.reply.useChunkedEncoding {
				_, werr := c.conn.Write(finalChunk())
				return werr
			}
			return nil
		}
	}
}

// handleUpgrade completes the WebSocket handshake and, on success, hands
// the connection over to runWebSocket for the lifetime of the socket.
func (c *Connection) handleUpgrade() bool {
	endpoint := c.manager.wsEndpointForPath(c.request.RequestPath)
	if endpoint == nil {
		c.reply.stockReply(c.request, StatusNotFound)
		return c.finishExchange()
	}

	key := c.request.HeaderValue("Sec-WebSocket-Key")
	sum := sha1.Sum([]byte(key + wsGUID))
	accept := base64.StdEncoding.EncodeToString(sum[:])

	resp := fmt.Sprintf("HTTP/1.1 101 Switching Protocols\r\nUpgrade: websocket\r\nConnection: Upgrade\r\nSec-WebSocket-Accept: %s\r\n\r\n", accept)
	if _, err := c.conn.Write([]byte(resp)); err != nil {
		return false
	}

	c.isWebSocket = true
	c.wsEndpoint = endpoint
	return true
}

// runWebSocket is the frame loop for an upgraded connection: it blocks until
// the peer closes, a protocol error occurs, or the server-side endpoint
// closes it. Ping scheduling and pong-timeout enforcement are not done here:
// they run on ConnectionManager.Tick's single periodic sweep (see
// checkWsLiveness), alongside the same tick that expires idle HTTP
// keep-alive connections, rather than on a second per-connection goroutine.
func (c *Connection) runWebSocket() {
	c.wsMu.Lock()
	c.lastPingTime = time.Now()
	c.lastPongTime = time.Now()
	c.wsMu.Unlock()

	c.manager.registerWsConnection(c.id, c)
	defer c.manager.unregisterWsConnection(c.id)

	c.wsEndpoint.OnWsOpen(c.id)
	defer c.wsEndpoint.OnWsClose(c.id)

	for {
		if c.settings.WsReceiveTimeout > 0 {
			_ = c.conn.SetReadDeadline(time.Now().Add(c.settings.WsReceiveTimeout))
		}
		buf := make([]byte, c.maxContentSize)
		n, err := c.conn.Read(buf)
		if err != nil {
			if isTimeoutErr(err) {
				c.sendWsFrame(WsOpClose, closePayload(1000, "idle timeout"))
			}
			c.wsEndpoint.OnWsError(c.id, err)
			return
		}
		c.touch(n)
		content := buf[:n]
		result := c.wsParser.Parse(&content)

		switch result {
		case WsFrameIndeterminate:
			continue
		case WsFrameData:
			c.wsEndpoint.OnWsMessage(c.id, WsMessage{Opcode: c.wsParser.Opcode(), Fin: c.wsParser.Fin(), Content: content})
		case WsFramePing:
			c.sendWsFrame(WsOpPong, content)
		case WsFramePong:
			c.wsMu.Lock()
			c.lastPongTime = time.Now()
			c.wsMu.Unlock()
		case WsFrameClose:
			c.sendWsFrame(WsOpClose, content)
			return
		case WsFrameFragmentationError:
			c.sendWsFrame(WsOpClose, closePayload(1002, "fragmentation not supported"))
			return
		case WsFrameBad:
			c.sendWsFrame(WsOpClose, closePayload(1002, "protocol error"))
			return
		}
		c.wsParser.Reset()
	}
}

func isTimeoutErr(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}

func closePayload(code uint16, reason string) []byte {
	p := make([]byte, 2, 2+len(reason))
	p[0] = byte(code >> 8)
	p[1] = byte(code)
	return append(p, reason...)
}

// checkWsLiveness is invoked by ConnectionManager.Tick for every open
// WebSocket connection. It sends a ping once wsPingInterval has elapsed and
// reports whether the peer has gone silent past wsPingInterval +
// wsPongTimeout since the last pong, in which case the caller closes the connection with a 1000
// close frame.
func (c *Connection) checkWsLiveness(now time.Time) (pongTimedOut bool) {
	c.wsMu.Lock()
	pongTimedOut = c.settings.WsPongTimeout > 0 &&
		now.Sub(c.lastPongTime) > c.settings.WsPingInterval+c.settings.WsPongTimeout
	needsPing := !pongTimedOut && c.settings.WsPingInterval > 0 &&
		now.Sub(c.lastPingTime) >= c.settings.WsPingInterval
	if needsPing {
		c.lastPingTime = now
	}
	c.wsMu.Unlock()

	if needsPing {
		c.sendWsFrame(WsOpPing, nil)
	}
	return pongTimedOut
}

// SendWsText sends a text frame, used by WsEndpoint/ConnectionManager.
func (c *Connection) SendWsText(message string, callback WriteCompleteCallback) WriteResult {
	return c.sendWsData(WsOpText, []byte(message), callback)
}

// SendWsBinary sends a binary frame.
func (c *Connection) SendWsBinary(data []byte, callback WriteCompleteCallback) WriteResult {
	return c.sendWsData(WsOpBinary, data, callback)
}

// SendWsClose sends a close frame.
func (c *Connection) SendWsClose(statusCode uint16, reason string, callback WriteCompleteCallback) WriteResult {
	return c.sendWsData(WsOpClose, closePayload(statusCode, reason), callback)
}

func (c *Connection) sendWsData(opcode WsOpcode, payload []byte, callback WriteCompleteCallback) WriteResult {
	c.writeMu.Lock()
	if c.writeInProgress {
		c.writeMu.Unlock()
		return WriteInProgress
	}
	c.writeInProgress = true
	c.writeMu.Unlock()

	n, err := c.sendWsFrame(opcode, payload)

	c.writeMu.Lock()
	c.writeInProgress = false
	c.writeMu.Unlock()

	if callback != nil {
		callback(err, n)
	}
	if err != nil {
		return WriteConnectionClosed
	}
	return WriteSuccess
}

func (c *Connection) sendWsFrame(opcode WsOpcode, payload []byte) (int, error) {
	frame := make([]byte, 0, len(payload)+14)
	switch opcode {
	case WsOpText:
		c.wsEncoder.EncodeTextFrame(&frame, string(payload), true)
	case WsOpBinary:
		c.wsEncoder.EncodeBinaryFrame(&frame, payload, true)
	case WsOpPing:
		c.wsEncoder.EncodePingFrame(&frame, payload)
	case WsOpPong:
		c.wsEncoder.EncodePongFrame(&frame, payload)
	case WsOpClose:
		c.wsEncoder.EncodeCloseFramePayload(&frame, payload)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	n, err := c.conn.Write(frame)
	return n, err
}
