// Package demo wires up the example handlers and WebSocket endpoints shipped
// with beautyd: a broadcast chat room, a small file-listing API and a
// router-based REST demo, mirroring the reference integrations of the
// library they sit on top of.
package demo

import (
	"fmt"

	"github.com/paneda/beauty-sub000"
	"github.com/sirupsen/logrus"
)

// ChatEndpoint is a broadcast chat room: every text message from one client
// is relayed to every other client connected on the same path.
type ChatEndpoint struct {
	beauty.WsEndpoint
	log *logrus.Entry
}

// NewChatEndpoint returns a chat endpoint registered at path.
func NewChatEndpoint(path string) *ChatEndpoint {
	return &ChatEndpoint{
		WsEndpoint: beauty.NewWsEndpoint(path),
		log:        logrus.WithField("endpoint", "chat"),
	}
}

// OnWsOpen welcomes the new client and tells the rest of the room.
func (c *ChatEndpoint) OnWsOpen(connectionID string) {
	c.log.WithField("conn", connectionID).Info("chat client connected")
	c.SendText(connectionID, `{"type":"welcome","message":"Welcome to the Beauty demo chat room!"}`, nil)

	for _, other := range c.ActiveConnections(c) {
		if other != connectionID {
			c.SendText(other, fmt.Sprintf(`{"type":"user_joined","user":%q}`, connectionID), nil)
		}
	}
}

// OnWsMessage relays a text message to every other connected client.
func (c *ChatEndpoint) OnWsMessage(connectionID string, msg beauty.WsMessage) {
	if msg.Opcode != beauty.WsOpText {
		return
	}
	text := string(msg.Content)
	c.log.WithField("conn", connectionID).Debug("chat message received")

	for _, other := range c.ActiveConnections(c) {
		if other != connectionID {
			c.SendText(other, fmt.Sprintf(`{"type":"chat_message","from":%q,"message":%q}`, connectionID, text), nil)
		}
	}
}

// OnWsClose tells the remaining clients that connectionID left.
func (c *ChatEndpoint) OnWsClose(connectionID string) {
	c.log.WithField("conn", connectionID).Info("chat client disconnected")
	for _, other := range c.ActiveConnections(c) {
		c.SendText(other, fmt.Sprintf(`{"type":"user_left","user":%q}`, connectionID), nil)
	}
}

// OnWsError logs transport errors for the connection; the connection is torn
// down by the caller immediately after this returns.
func (c *ChatEndpoint) OnWsError(connectionID string, err error) {
	c.log.WithField("conn", connectionID).WithError(err).Warn("chat endpoint error")
}
