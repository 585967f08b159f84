package demo

import (
	"strings"
	"testing"

	beauty "github.com/paneda/beauty-sub000"
)

func TestRouterAPIListUsers(t *testing.T) {
	api := NewRouterAPI()
	content := []byte{}
	reply := beauty.NewReply(&content)
	req := &beauty.Request{Method: "GET", RequestPath: "/api/users", HTTPVersionMajor: 1, HTTPVersionMinor: 1}

	api.HandleRequest(req, reply)

	if reply.Status() != beauty.StatusOK {
		t.Fatalf("expected 200, got %v", reply.Status())
	}
	if !strings.Contains(string(content), "Jane Smith") {
		t.Fatalf("expected the seeded user list, got %q", content)
	}
}

func TestRouterAPIGetUserByID(t *testing.T) {
	api := NewRouterAPI()
	content := []byte{}
	reply := beauty.NewReply(&content)
	req := &beauty.Request{Method: "GET", RequestPath: "/api/users/42", HTTPVersionMajor: 1, HTTPVersionMinor: 1}

	api.HandleRequest(req, reply)

	if !strings.Contains(string(content), `"id":"42"`) {
		t.Fatalf("expected the path param echoed into the body, got %q", content)
	}
}

func TestRouterAPICreateUser(t *testing.T) {
	api := NewRouterAPI()
	content := []byte(`{"name":"New User"}`)
	reply := beauty.NewReply(&content)
	req := &beauty.Request{Method: "POST", RequestPath: "/api/users", HTTPVersionMajor: 1, HTTPVersionMinor: 1}

	api.HandleRequest(req, reply)

	if reply.Status() != beauty.StatusCreated {
		t.Fatalf("expected 201, got %v", reply.Status())
	}
}

func TestRouterAPIUpdateAndDeleteUser(t *testing.T) {
	api := NewRouterAPI()

	putContent := []byte{}
	putReply := beauty.NewReply(&putContent)
	putReq := &beauty.Request{Method: "PUT", RequestPath: "/api/users/7", HTTPVersionMajor: 1, HTTPVersionMinor: 1}
	api.HandleRequest(putReq, putReply)
	if !strings.Contains(string(putContent), "User 7 updated") {
		t.Fatalf("unexpected PUT response: %q", putContent)
	}

	delContent := []byte{}
	delReply := beauty.NewReply(&delContent)
	delReq := &beauty.Request{Method: "DELETE", RequestPath: "/api/users/7", HTTPVersionMajor: 1, HTTPVersionMinor: 1}
	api.HandleRequest(delReq, delReply)
	if !strings.Contains(string(delContent), "User 7 deleted") {
		t.Fatalf("unexpected DELETE response: %q", delContent)
	}
}

func TestRouterAPINestedUserPostRoute(t *testing.T) {
	api := NewRouterAPI()
	content := []byte{}
	reply := beauty.NewReply(&content)
	req := &beauty.Request{Method: "GET", RequestPath: "/api/users/3/posts/9", HTTPVersionMajor: 1, HTTPVersionMinor: 1}

	api.HandleRequest(req, reply)

	body := string(content)
	if !strings.Contains(body, `"id":"9"`) || !strings.Contains(body, `"userId":"3"`) {
		t.Fatalf("expected both path params in the body, got %q", body)
	}
}

func TestRouterAPIUnmatchedRouteLeavesReplyUnfinalized(t *testing.T) {
	api := NewRouterAPI()
	content := []byte{}
	reply := beauty.NewReply(&content)
	req := &beauty.Request{Method: "GET", RequestPath: "/not-an-api-route", HTTPVersionMajor: 1, HTTPVersionMinor: 1}

	api.HandleRequest(req, reply)

	if reply.ReturnToClient() {
		t.Fatal("expected an unmatched route to fall through to the rest of the chain")
	}
}

func TestRouterAPICorsHeadersOnMatchedRoute(t *testing.T) {
	api := NewRouterAPI()
	content := []byte{}
	reply := beauty.NewReply(&content)
	req := &beauty.Request{Method: "GET", RequestPath: "/api/users", HTTPVersionMajor: 1, HTTPVersionMinor: 1}
	req.Headers = []beauty.Header{{Name: "Origin", Value: "https://example.com"}}

	api.HandleRequest(req, reply)

	if reply.HeaderValue("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("expected wildcard CORS origin header, got %q", reply.HeaderValue("Access-Control-Allow-Origin"))
	}
}
