package beauty

import (
	"strings"
	"testing"
)

func TestReplySendBelow200HasNoContentLength(t *testing.T) {
	content := []byte("ignored")
	r := NewReply(&content)
	r.Send(StatusSwitchingProtocols)

	if !r.ReturnToClient() {
		t.Fatal("expected ReturnToClient to be true")
	}
	if len(content) != 0 {
		t.Fatalf("expected content cleared for a sub-200 status, got %q", content)
	}
	if r.HeaderValue("Content-Length") != "" {
		t.Fatal("expected no Content-Length header for a sub-200 status")
	}
}

func TestReplySendNoContentHasNoContentLength(t *testing.T) {
	content := []byte("ignored")
	r := NewReply(&content)
	r.Send(StatusNoContent)

	if len(content) != 0 {
		t.Fatalf("expected content cleared for 204, got %q", content)
	}
	if r.HeaderValue("Content-Length") != "" {
		t.Fatal("expected no Content-Length header for 204")
	}
}

func TestReplySendWithBodyAddsContentLength(t *testing.T) {
	content := []byte("hello")
	r := NewReply(&content)
	r.Send(StatusOK)

	if r.HeaderValue("Content-Length") != "5" {
		t.Fatalf("unexpected Content-Length: %q", r.HeaderValue("Content-Length"))
	}
	if string(content) != "hello" {
		t.Fatalf("expected content preserved, got %q", content)
	}
}

func TestReplySendWithContentType(t *testing.T) {
	content := []byte(`{"ok":true}`)
	r := NewReply(&content)
	r.SendWithContentType(StatusCreated, "application/json")

	if r.Status() != StatusCreated {
		t.Fatalf("unexpected status: %v", r.Status())
	}
	if r.HeaderValue("Content-Type") != "application/json" {
		t.Fatalf("unexpected Content-Type: %q", r.HeaderValue("Content-Type"))
	}
	if r.HeaderValue("Content-Length") != "11" {
		t.Fatalf("unexpected Content-Length: %q", r.HeaderValue("Content-Length"))
	}
}

func TestReplySendPtrUsesExternalData(t *testing.T) {
	content := []byte{}
	r := NewReply(&content)
	data := []byte("external payload")
	r.SendPtr(StatusOK, "text/plain", data)

	if r.HeaderValue("Content-Length") != "17" {
		t.Fatalf("unexpected Content-Length: %q", r.HeaderValue("Content-Length"))
	}
	if !r.ReturnToClient() {
		t.Fatal("expected ReturnToClient to be true")
	}
}

func TestReplySendBigSetsUpStreamingState(t *testing.T) {
	content := []byte{}
	r := NewReply(&content)
	called := 0
	cb := func(id string, buf []byte) (int, error) {
		called++
		return 0, nil
	}
	r.SendBig(StatusOK, "application/octet-stream", 1024, cb)

	if r.HeaderValue("Content-Length") != "1024" {
		t.Fatalf("unexpected Content-Length: %q", r.HeaderValue("Content-Length"))
	}
	if r.HeaderValue("Transfer-Encoding") != "" {
		t.Fatal("expected no Transfer-Encoding header for SendBig")
	}
	if !r.replyPartial {
		t.Fatal("expected replyPartial to be set")
	}
	if r.streamCallback == nil {
		t.Fatal("expected streamCallback to be set")
	}
	_, _ = r.streamCallback("", nil)
	if called != 1 {
		t.Fatalf("expected callback to be reachable, called %d times", called)
	}
}

func TestReplySendStreamingUsesChunkedEncoding(t *testing.T) {
	content := []byte{}
	r := NewReply(&content)
	r.SendStreaming(StatusOK, "text/plain", func(id string, buf []byte) (int, error) { return 0, nil })

	if r.HeaderValue("Transfer-Encoding") != "chunked" {
		t.Fatalf("expected chunked transfer encoding, got %q", r.HeaderValue("Transfer-Encoding"))
	}
	if r.HeaderValue("Content-Length") != "" {
		t.Fatal("expected no Content-Length header for chunked streaming")
	}
	if !r.useChunkedEncoding {
		t.Fatal("expected useChunkedEncoding to be set")
	}
}

func TestReplyStockReplyBodyAndConnectionClose(t *testing.T) {
	content := []byte{}
	r := NewReply(&content)
	req := &Request{Method: "GET"}
	r.stockReply(req, StatusNotFound)

	if r.Status() != StatusNotFound {
		t.Fatalf("unexpected status: %v", r.Status())
	}
	if r.HeaderValue("Connection") != "close" {
		t.Fatal("expected Connection: close on a non-ok stock reply")
	}
	if !strings.Contains(string(content), "Not Found") {
		t.Fatalf("expected body to mention the status message, got %q", content)
	}
}

func TestReplyStockReplyOKDoesNotCloseConnection(t *testing.T) {
	content := []byte{}
	r := NewReply(&content)
	req := &Request{Method: "GET"}
	r.stockReply(req, StatusOK)

	if r.HeaderValue("Connection") == "close" {
		t.Fatal("expected no Connection: close on an ok stock reply")
	}
}

func TestReplyStockReplyNoContentHasNilBody(t *testing.T) {
	content := []byte{}
	r := NewReply(&content)
	r.stockReply(&Request{Method: "GET"}, StatusNoContent)

	if len(content) != 0 {
		t.Fatalf("expected empty body for 204, got %q", content)
	}
	if r.HeaderValue("Content-Length") != "" {
		t.Fatal("expected no Content-Length for a 204 stock reply")
	}
}

func TestReplyStockReplyHeadHasNoBody(t *testing.T) {
	content := []byte{}
	r := NewReply(&content)
	req := &Request{Method: "HEAD"}
	r.stockReply(req, StatusOK)

	if len(content) != 0 {
		t.Fatalf("expected no body for a HEAD request, got %q", content)
	}
	if r.HeaderValue("Content-Length") == "" {
		t.Fatal("expected Content-Length to still reflect the logical body size")
	}
}

func TestReplyAddHeaderAndHeaderValueIsCaseInsensitive(t *testing.T) {
	content := []byte{}
	r := NewReply(&content)
	r.AddHeader("X-Request-Id", "abc123")

	if !r.HasHeaders() {
		t.Fatal("expected HasHeaders to be true")
	}
	if r.HeaderValue("x-request-id") != "abc123" {
		t.Fatalf("expected case-insensitive header lookup, got %q", r.HeaderValue("x-request-id"))
	}
	if r.HeaderValue("missing") != "" {
		t.Fatal("expected empty string for a missing header")
	}
}

func TestReplyResetClearsState(t *testing.T) {
	content := []byte("stale")
	r := NewReply(&content)
	r.AddHeader("X-Test", "1")
	r.Send(StatusOK)
	r.isMultiPart = true
	r.streamedBytes = 5

	r.reset()

	if len(content) != 0 {
		t.Fatalf("expected content truncated, got %q", content)
	}
	if r.HasHeaders() {
		t.Fatal("expected headers cleared")
	}
	if r.ReturnToClient() {
		t.Fatal("expected returnToClient cleared")
	}
	if r.isMultiPart {
		t.Fatal("expected isMultiPart cleared")
	}
	if r.streamedBytes != 0 {
		t.Fatal("expected streamedBytes cleared")
	}
}

func TestWrapChunkFormatsHexLengthPrefix(t *testing.T) {
	chunk := wrapChunk([]byte("hello"))
	if string(chunk) != "5\r\nhello\r\n" {
		t.Fatalf("unexpected chunk encoding: %q", chunk)
	}
}

func TestWrapChunkEmptyData(t *testing.T) {
	chunk := wrapChunk(nil)
	if string(chunk) != "0\r\n\r\n" {
		t.Fatalf("unexpected chunk encoding for empty data: %q", chunk)
	}
}

func TestFinalChunkIsTerminalMarker(t *testing.T) {
	if string(finalChunk()) != "0\r\n\r\n" {
		t.Fatalf("unexpected final chunk: %q", finalChunk())
	}
}
