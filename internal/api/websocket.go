package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ticketpress/sheet-engine/internal/engine"
	"github.com/ticketpress/sheet-engine/pkg/ticketformat"
)

// WebSocket message types
const (
	EventRender   = "render"
	EventFrame    = "frame"
	EventError    = "error"
	EventResponse = "response"
)

// WSMessage represents a WebSocket message
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// framePayload is the data of an EventFrame message
type framePayload struct {
	FrameID  string `json:"frame_id"`
	PNG      string `json:"png"` // base64
	Rendered int    `json:"rendered"`
	Total    int    `json:"total"`
}

// WSClient represents a connected WebSocket client
type WSClient struct {
	conn   *websocket.Conn
	server *Server

	mu     sync.Mutex
	send   chan WSMessage
	closed bool
}

// handleWebSocket handles WebSocket connections for live preview. Every
// render event starts a new frame; the engine discards whichever frame it
// supersedes, so dragging a margin slider never draws stale geometry.
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		fmt.Printf("WebSocket upgrade failed: %v\n", err)
		return
	}

	client := &WSClient{
		conn:   conn,
		send:   make(chan WSMessage, 16),
		server: s,
	}

	go client.writePump()
	client.readPump()
}

func (c *WSClient) readPump() {
	defer func() {
		c.closeSend()
		c.conn.Close()
	}()

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				fmt.Printf("WebSocket error: %v\n", err)
			}
			return
		}

		c.handleMessage(&msg)
	}
}

func (c *WSClient) writePump() {
	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			fmt.Printf("WebSocket write error: %v\n", err)
			return
		}
	}
}

func (c *WSClient) handleMessage(msg *WSMessage) {
	switch msg.Event {
	case EventRender:
		var req RenderRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			c.sendError(fmt.Sprintf("invalid render request: %v", err))
			return
		}
		// Rendering happens off the read loop so a newer render event can
		// arrive and supersede this frame inside the engine
		go c.handleRenderEvent(&req)
	default:
		c.sendError(fmt.Sprintf("unknown event: %s", msg.Event))
	}
}

func (c *WSClient) handleRenderEvent(req *RenderRequest) {
	if err := ticketformat.Validate(&req.Project); err != nil {
		c.sendError(fmt.Sprintf("project validation failed: %v", err))
		return
	}

	if req.PixelsPerMM <= 0 {
		req.PixelsPerMM = 300 / engine.MMPerInch
	}

	frameID := uuid.New().String()
	data, stats, err := c.server.engine.RenderSheetPNG(context.Background(), &req.Project, req.Records, req.PixelsPerMM)
	if err != nil {
		// A superseded frame was replaced by a newer one; stay quiet
		if errors.Is(err, engine.ErrSuperseded) {
			return
		}
		c.sendError(fmt.Sprintf("failed to render sheet: %v", err))
		return
	}

	payload, err := json.Marshal(framePayload{
		FrameID:  frameID,
		PNG:      base64.StdEncoding.EncodeToString(data),
		Rendered: stats.Rendered,
		Total:    stats.Total,
	})
	if err != nil {
		c.sendError(fmt.Sprintf("failed to encode frame: %v", err))
		return
	}

	c.trySend(WSMessage{Event: EventFrame, Data: payload})
}

// closeSend marks the client closed and closes the send channel. Render
// goroutines spawned before the close go through trySend, which checks
// the flag under the same lock, so they never send after this returns.
func (c *WSClient) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// trySend drops the message when the client disconnected or cannot keep
// up; a newer frame is always on its way
func (c *WSClient) trySend(msg WSMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	select {
	case c.send <- msg:
	default:
	}
}

func (c *WSClient) sendError(message string) {
	payload, _ := json.Marshal(map[string]string{"error": message})
	c.trySend(WSMessage{Event: EventError, Data: payload})
}
