package beauty

import "testing"

type fakeWsSender struct {
	textCalls   []string
	binaryCalls [][]byte
	closeCalls  []uint16

	sendResult      WriteResult
	activeIDs       []string
	writeInProgress bool
}

func (f *fakeWsSender) SendWsText(connectionID, message string, callback WriteCompleteCallback) WriteResult {
	f.textCalls = append(f.textCalls, message)
	return f.sendResult
}

func (f *fakeWsSender) SendWsBinary(connectionID string, data []byte, callback WriteCompleteCallback) WriteResult {
	f.binaryCalls = append(f.binaryCalls, data)
	return f.sendResult
}

func (f *fakeWsSender) SendWsClose(connectionID string, statusCode uint16, reason string, callback WriteCompleteCallback) WriteResult {
	f.closeCalls = append(f.closeCalls, statusCode)
	return f.sendResult
}

func (f *fakeWsSender) ActiveWsConnectionsForEndpoint(endpoint WsReceiver) []string {
	return f.activeIDs
}

func (f *fakeWsSender) IsWriteInProgress(connectionID string) bool {
	return f.writeInProgress
}

func TestWsEndpointPathReturnsConfiguredPath(t *testing.T) {
	e := NewWsEndpoint("/chat")
	if e.Path() != "/chat" {
		t.Fatalf("unexpected path: %q", e.Path())
	}
}

func TestWsEndpointSendMethodsReturnConnectionClosedWithoutSender(t *testing.T) {
	e := NewWsEndpoint("/chat")
	if r := e.SendText("conn1", "hi", nil); r != WriteConnectionClosed {
		t.Fatalf("expected WriteConnectionClosed, got %v", r)
	}
	if r := e.SendBinary("conn1", []byte("hi"), nil); r != WriteConnectionClosed {
		t.Fatalf("expected WriteConnectionClosed, got %v", r)
	}
	if r := e.SendClose("conn1", 1000, "bye", nil); r != WriteConnectionClosed {
		t.Fatalf("expected WriteConnectionClosed, got %v", r)
	}
	if e.CanSendTo("conn1") {
		t.Fatal("expected CanSendTo to be false without a sender")
	}
	if e.ActiveConnections(stubWsReceiver{}) != nil {
		t.Fatal("expected ActiveConnections to be nil without a sender")
	}
}

func TestWsEndpointDelegatesToSenderOnceConfigured(t *testing.T) {
	e := NewWsEndpoint("/chat")
	sender := &fakeWsSender{sendResult: WriteSuccess, activeIDs: []string{"a", "b"}}
	e.SetWsSender(sender)

	if r := e.SendText("conn1", "hello", nil); r != WriteSuccess {
		t.Fatalf("expected WriteSuccess, got %v", r)
	}
	if len(sender.textCalls) != 1 || sender.textCalls[0] != "hello" {
		t.Fatalf("unexpected text calls: %v", sender.textCalls)
	}

	if r := e.SendBinary("conn1", []byte("data"), nil); r != WriteSuccess {
		t.Fatalf("expected WriteSuccess, got %v", r)
	}
	if len(sender.binaryCalls) != 1 || string(sender.binaryCalls[0]) != "data" {
		t.Fatalf("unexpected binary calls: %v", sender.binaryCalls)
	}

	if r := e.SendClose("conn1", 1001, "going away", nil); r != WriteSuccess {
		t.Fatalf("expected WriteSuccess, got %v", r)
	}
	if len(sender.closeCalls) != 1 || sender.closeCalls[0] != 1001 {
		t.Fatalf("unexpected close calls: %v", sender.closeCalls)
	}

	ids := e.ActiveConnections(stubWsReceiver{})
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Fatalf("unexpected active connections: %v", ids)
	}
}

func TestWsEndpointCanSendToReflectsWriteInProgress(t *testing.T) {
	e := NewWsEndpoint("/chat")
	sender := &fakeWsSender{writeInProgress: true}
	e.SetWsSender(sender)

	if e.CanSendTo("conn1") {
		t.Fatal("expected CanSendTo to be false while a write is in progress")
	}

	sender.writeInProgress = false
	if !e.CanSendTo("conn1") {
		t.Fatal("expected CanSendTo to be true once the write completes")
	}
}

func TestWsEndpointSendReturnsSenderFailureVerbatim(t *testing.T) {
	e := NewWsEndpoint("/chat")
	sender := &fakeWsSender{sendResult: WriteInProgress}
	e.SetWsSender(sender)

	if r := e.SendText("conn1", "hi", nil); r != WriteInProgress {
		t.Fatalf("expected WriteInProgress to be passed through, got %v", r)
	}
}
