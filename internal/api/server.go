// Package api handles HTTP and WebSocket API endpoints
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/ticketpress/sheet-engine/internal/engine"
	"github.com/ticketpress/sheet-engine/internal/fonts"
	"github.com/ticketpress/sheet-engine/pkg/ticketformat"
)

// maxFontUpload bounds a single font file upload
const maxFontUpload = 16 << 20

// Server is the API server
type Server struct {
	router   *gin.Engine
	engine   *engine.Engine
	fonts    *fonts.Registry
	upgrader websocket.Upgrader
}

// RenderRequest is the body of POST /render and of ws render events
type RenderRequest struct {
	Project     ticketformat.Project  `json:"project"`
	Records     []ticketformat.Record `json:"records"`
	PixelsPerMM float64               `json:"pixels_per_mm"`
}

// NewServer creates a new API server
func NewServer(eng *engine.Engine, registry *fonts.Registry) *Server {
	// Set Gin to release mode
	gin.SetMode(gin.ReleaseMode)

	router := gin.Default()
	router.Use(corsMiddleware())

	server := &Server{
		router: router,
		engine: eng,
		fonts:  registry,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins
			},
		},
	}

	server.setupRoutes()

	return server
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.POST("/render", s.handleRender)
	s.router.GET("/fonts", s.handleGetFonts)
	s.router.POST("/fonts/:family", s.handleRegisterFont)
	s.router.GET("/ws", s.handleWebSocket)
}

// Run starts the server on the given port
func (s *Server) Run(port int) error {
	return s.router.Run(fmt.Sprintf(":%d", port))
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleRender(c *gin.Context) {
	var req RenderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request: %v", err)})
		return
	}

	if err := ticketformat.Validate(&req.Project); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("project validation failed: %v", err)})
		return
	}

	if req.PixelsPerMM <= 0 {
		req.PixelsPerMM = 300 / engine.MMPerInch // 300 DPI default
	}

	data, stats, err := s.engine.RenderSheetPNG(c.Request.Context(), &req.Project, req.Records, req.PixelsPerMM)
	if err != nil {
		status, message := statusForRenderError(err)
		c.JSON(status, gin.H{"error": message})
		return
	}

	c.Header("X-Tickets-Rendered", fmt.Sprintf("%d", stats.Rendered))
	c.Header("X-Tickets-Total", fmt.Sprintf("%d", stats.Total))
	c.Data(http.StatusOK, "image/png", data)
}

func (s *Server) handleGetFonts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"families": s.fonts.Families()})
}

func (s *Server) handleRegisterFont(c *gin.Context) {
	family := c.Param("family")

	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxFontUpload))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("failed to read font data: %v", err)})
		return
	}

	if err := s.fonts.Register(family, data); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"family": family})
}

// statusForRenderError maps engine errors to HTTP statuses. Decode and
// geometry problems are caller mistakes; a size mismatch is a bug.
func statusForRenderError(err error) (int, string) {
	var geomErr *engine.InvalidGeometryError
	if errors.As(err, &geomErr) {
		return http.StatusBadRequest, err.Error()
	}

	var decErr *engine.DecodeError
	if errors.As(err, &decErr) {
		return http.StatusUnprocessableEntity, err.Error()
	}

	if errors.Is(err, engine.ErrSuperseded) {
		return http.StatusConflict, err.Error()
	}

	// Caller-context cancellation: the client went away or timed out,
	// which the engine passes through distinct from supersession
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return http.StatusRequestTimeout, err.Error()
	}

	return http.StatusInternalServerError, err.Error()
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
