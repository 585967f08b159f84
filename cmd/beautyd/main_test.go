package main

import (
	"testing"

	beauty "github.com/paneda/beauty-sub000"
	"github.com/sirupsen/logrus"
)

func TestAuthExpectContinueHandlerEmptyTokenAllowsEverything(t *testing.T) {
	handler := authExpectContinueHandler("", logrus.WithField("test", "1"))
	content := []byte{}
	reply := beauty.NewReply(&content)
	req := &beauty.Request{RequestPath: "/upload"}

	handler(req, reply)

	if reply.ReturnToClient() {
		t.Fatal("expected an empty token to never reject the request")
	}
}

func TestAuthExpectContinueHandlerRejectsMissingAuthorization(t *testing.T) {
	handler := authExpectContinueHandler("secret", logrus.WithField("test", "1"))
	content := []byte{}
	reply := beauty.NewReply(&content)
	req := &beauty.Request{RequestPath: "/upload"}

	handler(req, reply)

	if reply.Status() != beauty.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", reply.Status())
	}
	if reply.HeaderValue("WWW-Authenticate") == "" {
		t.Fatal("expected a WWW-Authenticate header on rejection")
	}
}

func TestAuthExpectContinueHandlerRejectsWrongToken(t *testing.T) {
	handler := authExpectContinueHandler("secret", logrus.WithField("test", "1"))
	content := []byte{}
	reply := beauty.NewReply(&content)
	req := &beauty.Request{
		RequestPath: "/upload",
		Headers:     []beauty.Header{{Name: "Authorization", Value: "Bearer wrong"}},
	}

	handler(req, reply)

	if reply.Status() != beauty.StatusUnauthorized {
		t.Fatalf("expected 401 for a mismatched token, got %v", reply.Status())
	}
}

func TestAuthExpectContinueHandlerAcceptsCorrectToken(t *testing.T) {
	handler := authExpectContinueHandler("secret", logrus.WithField("test", "1"))
	content := []byte{}
	reply := beauty.NewReply(&content)
	req := &beauty.Request{
		RequestPath: "/upload",
		Headers:     []beauty.Header{{Name: "Authorization", Value: "Bearer secret"}},
	}

	handler(req, reply)

	if reply.ReturnToClient() {
		t.Fatal("expected a matching bearer token to not reject the request")
	}
}

func TestNewRootCmdRegistersExpectedFlags(t *testing.T) {
	cmd := newRootCmd()
	for _, name := range []string{"address", "port", "doc-root", "keep-alive-timeout", "keep-alive-max", "connection-limit", "auth-token", "debug"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Fatalf("expected a %q flag to be registered", name)
		}
	}
}
