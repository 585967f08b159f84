package beauty

import "testing"

func parseAll(t *testing.T, raw string) (*Request, *RequestParser, []byte, ParseResult) {
	t.Helper()
	req := &Request{contentLength: -1}
	p := NewRequestParser()
	var content []byte
	var result ParseResult
	buf := []byte(raw)
	consumed := 0
	for consumed < len(buf) {
		var n int
		result, n = p.Parse(req, &content, buf[consumed:])
		consumed += n
		if result != ParseIndeterminate {
			break
		}
	}
	return req, p, content, result
}

func TestParseSimpleGetRequest(t *testing.T) {
	req, _, _, result := parseAll(t, "GET /index.html HTTP/1.1\r\nHost: example.com\r\n\r\n")
	if result != ParseGoodComplete {
		t.Fatalf("expected ParseGoodComplete, got %v", result)
	}
	if req.Method != "GET" || req.URI != "/index.html" {
		t.Fatalf("unexpected request: %+v", req)
	}
	if req.HTTPVersionMajor != 1 || req.HTTPVersionMinor != 1 {
		t.Fatalf("unexpected version: %d.%d", req.HTTPVersionMajor, req.HTTPVersionMinor)
	}
	if req.HeaderValue("Host") != "example.com" {
		t.Fatalf("expected Host header, got %+v", req.Headers)
	}
}

func TestParsePostWithBody(t *testing.T) {
	req, _, content, result := parseAll(t, "POST /submit HTTP/1.1\r\nContent-Length: 5\r\n\r\nhello")
	if result != ParseGoodComplete {
		t.Fatalf("expected ParseGoodComplete, got %v", result)
	}
	if string(content) != "hello" {
		t.Fatalf("unexpected body: %q", content)
	}
}

func TestParseMissingContentLengthOnPost(t *testing.T) {
	_, _, _, result := parseAll(t, "POST /submit HTTP/1.1\r\n\r\n")
	if result != ParseMissingContentLength {
		t.Fatalf("expected ParseMissingContentLength, got %v", result)
	}
}

func TestParseBadMethodChar(t *testing.T) {
	_, _, _, result := parseAll(t, "G\x01T / HTTP/1.1\r\n\r\n")
	if result != ParseBad {
		t.Fatalf("expected ParseBad, got %v", result)
	}
}

func TestParseVersionTooHigh(t *testing.T) {
	_, _, _, result := parseAll(t, "GET / HTTP/2.0\r\n\r\n")
	if result != ParseVersionNotSupported {
		t.Fatalf("expected ParseVersionNotSupported, got %v", result)
	}
}

func TestParseExpectContinue(t *testing.T) {
	_, _, _, result := parseAll(t, "POST /upload HTTP/1.1\r\nContent-Length: 4\r\nExpect: 100-continue\r\n\r\n")
	if result != ParseGoodHeadersExpectContinue {
		t.Fatalf("expected ParseGoodHeadersExpectContinue, got %v", result)
	}
}

func TestParseWebSocketUpgrade(t *testing.T) {
	raw := "GET /ws HTTP/1.1\r\nUpgrade: websocket\r\nConnection: Upgrade\r\nSec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\nSec-WebSocket-Version: 13\r\n\r\n"
	_, _, _, result := parseAll(t, raw)
	if result != ParseUpgradeToWebSocket {
		t.Fatalf("expected ParseUpgradeToWebSocket, got %v", result)
	}
}

func TestParseHttp09NoVersion(t *testing.T) {
	req, _, _, result := parseAll(t, "GET /index.html\r")
	if result != ParseGoodComplete {
		t.Fatalf("expected ParseGoodComplete for HTTP/0.9, got %v", result)
	}
	if req.HTTPVersionMajor != 0 || req.HTTPVersionMinor != 9 {
		t.Fatalf("expected version 0.9, got %d.%d", req.HTTPVersionMajor, req.HTTPVersionMinor)
	}
}

func TestParsePartialThenComplete(t *testing.T) {
	req := &Request{contentLength: -1}
	p := NewRequestParser()
	var content []byte

	result, n := p.Parse(req, &content, []byte("GET /x HTTP/1.1\r\n"))
	if result != ParseGoodPart {
		t.Fatalf("expected ParseGoodPart for a partial header read, got %v", result)
	}
	if n != len("GET /x HTTP/1.1\r\n") {
		t.Fatalf("expected all bytes consumed, got %d", n)
	}

	result, _ = p.Parse(req, &content, []byte("\r\n"))
	if result != ParseGoodComplete {
		t.Fatalf("expected ParseGoodComplete once headers terminate, got %v", result)
	}
}

func TestComputeKeepAliveDefaultsByVersion(t *testing.T) {
	req11 := &Request{HTTPVersionMajor: 1, HTTPVersionMinor: 1}
	if !computeKeepAlive(req11) {
		t.Fatal("expected HTTP/1.1 to default to keep-alive")
	}
	req10 := &Request{HTTPVersionMajor: 1, HTTPVersionMinor: 0}
	if computeKeepAlive(req10) {
		t.Fatal("expected HTTP/1.0 to default to connection close")
	}
}
