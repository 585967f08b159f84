package beauty

import (
	"strings"
	"testing"
)

func TestStatusLineKnown(t *testing.T) {
	line := statusLine(StatusNotFound)
	if line != "HTTP/1.1 404 Not Found\r\n" {
		t.Fatalf("unexpected status line: %q", line)
	}
}

func TestStatusLineUnknownFallsBackToInternalError(t *testing.T) {
	line := statusLine(Status(999))
	if line != statusLines[StatusInternalServerError] {
		t.Fatalf("expected fallback to 500, got %q", line)
	}
}

func TestStockReplyBodyKnownStatus(t *testing.T) {
	body := stockReplyBody(StatusNotFound)
	if !strings.Contains(string(body), `"status":404`) {
		t.Fatalf("expected status 404 in body, got %s", body)
	}
	if !strings.Contains(string(body), "Not Found") {
		t.Fatalf("expected message in body, got %s", body)
	}
}

func TestStockReplyBodyUnknownStatusFallsBack(t *testing.T) {
	body := stockReplyBody(Status(999))
	if !strings.Contains(string(body), `"status":500`) {
		t.Fatalf("expected fallback to 500, got %s", body)
	}
}

func TestIsStatusOK(t *testing.T) {
	ok := []Status{StatusOK, StatusCreated, StatusAccepted, StatusNoContent}
	for _, s := range ok {
		if !isStatusOK(s) {
			t.Errorf("expected %d to be ok", s)
		}
	}
	notOK := []Status{StatusBadRequest, StatusNotFound, StatusInternalServerError}
	for _, s := range notOK {
		if isStatusOK(s) {
			t.Errorf("expected %d to not be ok", s)
		}
	}
}
