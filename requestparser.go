package beauty

import (
	"strconv"
	"strings"
)

// ParseResult is the outcome of feeding one or more bytes to RequestParser.
type ParseResult int

const (
	ParseIndeterminate ParseResult = iota
	ParseGoodComplete
	ParseGoodPart
	ParseGoodHeadersExpectContinue
	ParseExpectContinueWithBody
	ParseUpgradeToWebSocket
	ParseBad
	ParseVersionNotSupported
	ParseMissingContentLength
)

type parserState int

const (
	stateMethodStart parserState = iota
	stateMethod
	stateURIStart
	stateURI
	stateVersionH
	stateVersionT1
	stateVersionT2
	stateVersionP
	stateVersionSlash
	stateVersionMajorStart
	stateVersionMajor
	stateVersionMinorStart
	stateVersionMinor
	stateExpectingNewline1
	stateHeaderLineStart
	stateHeaderLWS
	stateHeaderName
	stateSpaceBeforeHeaderValue
	stateHeaderValue
	stateExpectingNewline2
	stateExpectingNewline3
	statePost
)

// RequestParser is a byte-at-a-time HTTP/1.1 request-line + header + bounded
// body-prefix parser. One instance belongs to a single Connection and is
// reset() between keep-alive requests.
type RequestParser struct {
	state         parserState
	contentLength int // -1 means "not yet known / no body expected"
}

// NewRequestParser returns a parser ready for the start of a request line.
func NewRequestParser() *RequestParser {
	return &RequestParser{state: stateMethodStart, contentLength: -1}
}

// Reset returns the parser to its initial state for the next request on a
// keep-alive connection.
func (p *RequestParser) Reset() {
	p.state = stateMethodStart
	p.contentLength = -1
}

// Parse feeds the bytes of buf into the state machine, appending body bytes
// into content (the connection's shared bounded buffer) as they arrive.
// It returns as soon as a terminal result is reached; any bytes in buf past
// the consumed prefix are left for the caller (used for pipelined/pipelined
// WS-upgrade bytes, which never occur with compliant clients but are not
// assumed away).
func (p *RequestParser) Parse(req *Request, content *[]byte, buf []byte) (ParseResult, int) {
	for i, b := range buf {
		result := p.consume(req, content, b)
		if result != ParseIndeterminate {
			return result, i + 1
		}
	}
	return ParseGoodPart, len(buf)
}

func (p *RequestParser) consume(req *Request, content *[]byte, input byte) ParseResult {
	switch p.state {
	case stateMethodStart:
		if !isChar(input) || isCtl(input) || isTspecial(input) {
			return ParseBad
		}
		p.state = stateMethod
		req.Method += string(input)
		return ParseIndeterminate
	case stateMethod:
		switch {
		case input == ' ':
			p.state = stateURIStart
		case !isChar(input) || isCtl(input) || isTspecial(input):
			return ParseBad
		default:
			req.Method += string(input)
		}
		return ParseIndeterminate
	case stateURIStart:
		if isCtl(input) {
			return ParseBad
		}
		p.state = stateURI
		req.URI += string(input)
		return ParseIndeterminate
	case stateURI:
		switch {
		case input == ' ':
			p.state = stateVersionH
		case input == '\r':
			req.HTTPVersionMajor = 0
			req.HTTPVersionMinor = 9
			return ParseGoodComplete
		case isCtl(input):
			return ParseBad
		default:
			req.URI += string(input)
		}
		return ParseIndeterminate
	case stateVersionH:
		if input != 'H' {
			return ParseBad
		}
		p.state = stateVersionT1
		return ParseIndeterminate
	case stateVersionT1:
		if input != 'T' {
			return ParseBad
		}
		p.state = stateVersionT2
		return ParseIndeterminate
	case stateVersionT2:
		if input != 'T' {
			return ParseBad
		}
		p.state = stateVersionP
		return ParseIndeterminate
	case stateVersionP:
		if input != 'P' {
			return ParseBad
		}
		p.state = stateVersionSlash
		return ParseIndeterminate
	case stateVersionSlash:
		if input != '/' {
			return ParseBad
		}
		req.HTTPVersionMajor = 0
		req.HTTPVersionMinor = 0
		p.state = stateVersionMajorStart
		return ParseIndeterminate
	case stateVersionMajorStart:
		if !isDigit(input) {
			return ParseBad
		}
		req.HTTPVersionMajor = req.HTTPVersionMajor*10 + int(input-'0')
		p.state = stateVersionMajor
		return ParseIndeterminate
	case stateVersionMajor:
		switch {
		case input == '.':
			p.state = stateVersionMinorStart
		case isDigit(input):
			req.HTTPVersionMajor = req.HTTPVersionMajor*10 + int(input-'0')
		default:
			return ParseBad
		}
		return ParseIndeterminate
	case stateVersionMinorStart:
		if !isDigit(input) {
			return ParseBad
		}
		req.HTTPVersionMinor = req.HTTPVersionMinor*10 + int(input-'0')
		p.state = stateVersionMinor
		return ParseIndeterminate
	case stateVersionMinor:
		switch {
		case input == '\r':
			if req.HTTPVersionMajor > 1 {
				return ParseVersionNotSupported
			}
			p.state = stateExpectingNewline1
		case isDigit(input):
			req.HTTPVersionMinor = req.HTTPVersionMinor*10 + int(input-'0')
		default:
			return ParseBad
		}
		return ParseIndeterminate
	case stateExpectingNewline1:
		if input != '\n' {
			return ParseBad
		}
		p.state = stateHeaderLineStart
		return ParseIndeterminate
	case stateHeaderLineStart:
		switch {
		case input == '\r':
			p.state = stateExpectingNewline3
		case len(req.Headers) > 0 && (input == ' ' || input == '\t'):
			p.state = stateHeaderLWS
		case !isChar(input) || isCtl(input) || isTspecial(input):
			return ParseBad
		default:
			req.Headers = append(req.Headers, Header{Name: string(input)})
			p.state = stateHeaderName
		}
		return ParseIndeterminate
	case stateHeaderLWS:
		switch {
		case input == '\r':
			p.state = stateExpectingNewline2
		case input == ' ' || input == '\t':
			// skip folded whitespace
		case isCtl(input):
			return ParseBad
		default:
			p.state = stateHeaderValue
			last := &req.Headers[len(req.Headers)-1]
			last.Value += string(input)
		}
		return ParseIndeterminate
	case stateHeaderName:
		switch {
		case input == ':':
			p.state = stateSpaceBeforeHeaderValue
		case !isChar(input) || isCtl(input) || isTspecial(input):
			return ParseBad
		default:
			last := &req.Headers[len(req.Headers)-1]
			last.Name += string(input)
		}
		return ParseIndeterminate
	case stateSpaceBeforeHeaderValue:
		if input != ' ' {
			return ParseBad
		}
		p.state = stateHeaderValue
		return ParseIndeterminate
	case stateHeaderValue:
		if input == '\r' {
			p.state = stateExpectingNewline2
			return ParseIndeterminate
		}
		if isCtl(input) {
			return ParseBad
		}
		last := &req.Headers[len(req.Headers)-1]
		last.Value += string(input)
		return ParseIndeterminate
	case stateExpectingNewline2:
		if input != '\n' {
			return ParseBad
		}
		p.state = stateHeaderLineStart
		return ParseIndeterminate
	case stateExpectingNewline3:
		if input != '\n' {
			return ParseBad
		}
		return p.checkRequestAfterAllHeaders(req, content)
	case statePost:
		p.contentLength--
		*content = append(*content, input)
		req.noBodyBytesReceived++
		if p.contentLength == 0 {
			return ParseGoodComplete
		}
		return ParseIndeterminate
	default:
		return ParseBad
	}
}

// checkRequestAfterAllHeaders runs once, right after the blank line
// terminating the headers, mirroring expecting_newline_3 in the original
// state machine: determine keep-alive, validate Content-Length for
// body-bearing methods, and detect Expect: 100-continue / WS upgrade.
func (p *RequestParser) checkRequestAfterAllHeaders(req *Request, content *[]byte) ParseResult {
	req.keepAlive = computeKeepAlive(req)

	if isWebSocketUpgrade(req) {
		return ParseUpgradeToWebSocket
	}

	bodyBearing := req.Method == "POST" || req.Method == "PUT" || req.Method == "PATCH"
	if bodyBearing {
		if te := req.HeaderValue("Transfer-Encoding"); strings.EqualFold(te, "chunked") {
			if req.HTTPVersionMajor < 1 || (req.HTTPVersionMajor == 1 && req.HTTPVersionMinor < 1) {
				return ParseBad
			}
			return ParseVersionNotSupported // chunked requests are never implemented
		}
		cl := req.HeaderValue("Content-Length")
		if cl == "" {
			return ParseMissingContentLength
		}
		n, err := strconv.Atoi(cl)
		if err != nil || n < 0 {
			return ParseBad
		}
		p.contentLength = n
		req.contentLength = n
	} else {
		p.contentLength = 0
		req.contentLength = 0
	}

	if expect := req.HeaderValue("Expect"); strings.EqualFold(expect, "100-continue") {
		// whether the client already shipped body bytes in the same
		// read as these headers (a protocol violation: it must wait for
		// our 100-continue before sending a byte of body) can only be
		// told apart from the caller's side, which still holds the
		// unconsumed tail of the buffer Parse was fed. See readHeaders.
		return ParseGoodHeadersExpectContinue
	}

	return p.startBody(content)
}

// startBody transitions into body collection: the shared buffer is cleared
// to make room for body bytes and, if the body is empty, the request is
// already complete. Called both from checkRequestAfterAllHeaders directly
// and from ResumeAfterContinue once a 100-continue handshake has been
// accepted by the handler chain.
func (p *RequestParser) startBody(content *[]byte) ParseResult {
	*content = (*content)[:0]
	if p.contentLength <= 0 {
		return ParseGoodComplete
	}
	p.state = statePost
	return ParseIndeterminate
}

// ResumeAfterContinue is invoked once the 100-continue response has been
// written, moving the parser into body-collection state for the body that
// follows.
func (p *RequestParser) ResumeAfterContinue(content *[]byte) ParseResult {
	return p.startBody(content)
}

func computeKeepAlive(req *Request) bool {
	if conn := req.HeaderValue("Connection"); conn != "" {
		return strings.EqualFold(conn, "keep-alive")
	}
	return req.HTTPVersionMajor > 1 || (req.HTTPVersionMajor == 1 && req.HTTPVersionMinor == 1)
}

func isWebSocketUpgrade(req *Request) bool {
	if req.Method != "GET" {
		return false
	}
	return strings.EqualFold(req.HeaderValue("Upgrade"), "websocket") &&
		strings.Contains(strings.ToLower(req.HeaderValue("Connection")), "upgrade") &&
		req.HeaderValue("Sec-WebSocket-Key") != "" &&
		req.HeaderValue("Sec-WebSocket-Version") == "13"
}

func isChar(c byte) bool   { return c <= 127 }
func isCtl(c byte) bool    { return c <= 31 || c == 127 }
func isDigit(c byte) bool  { return c >= '0' && c <= '9' }
func isTspecial(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '@', ',', ';', ':', '\\', '"', '/', '[', ']', '?', '=', '{', '}', ' ', '\t':
		return true
	}
	return false
}
