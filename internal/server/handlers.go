package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/handterm/handterm/internal/shell"
)

// Handlers contains all HTTP handlers.
type Handlers struct {
	engine *shell.Engine
}

// NewHandlers creates a handler set bound to the engine.
func NewHandlers(engine *shell.Engine) *Handlers {
	return &Handlers{engine: engine}
}

// Root handles the basic liveness check.
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "handterm",
	})
}

// Health reports engine state.
func (h *Handlers) Health(c *gin.Context) {
	frame := h.engine.Frame()
	c.JSON(http.StatusOK, gin.H{
		"status":       "healthy",
		"pty_active":   frame.PTYActive,
		"editor_open":  frame.EditorOpen,
		"output_lines": len(frame.Output),
		"jobs":         len(h.engine.Jobs()),
	})
}

// Frame returns the current engine frame snapshot.
func (h *Handlers) Frame(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.Frame())
}

// Jobs lists tracked background processes.
func (h *Handlers) Jobs(c *gin.Context) {
	jobs := h.engine.Jobs()
	c.JSON(http.StatusOK, gin.H{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

// Execute submits one command line.
func (h *Handlers) Execute(c *gin.Context) {
	var req struct {
		Command string `json:"command" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.engine.ExecuteCommand(req.Command)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"frame":   h.engine.Frame(),
	})
}

// PTYKey sends a logical key to the open PTY session.
func (h *Handlers) PTYKey(c *gin.Context) {
	var req struct {
		Key string `json:"key" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.engine.SendKeyToPTY(req.Key); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Interrupt delivers Ctrl+C to whatever owns the terminal.
func (h *Handlers) Interrupt(c *gin.Context) {
	if err := h.engine.InterruptForeground(); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Autocomplete completes the word under the cursor.
func (h *Handlers) Autocomplete(c *gin.Context) {
	var req struct {
		Text   string `json:"text"`
		Cursor int    `json:"cursor"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	text, cursor := h.engine.Autocomplete(req.Text, req.Cursor)
	c.JSON(http.StatusOK, gin.H{
		"text":   text,
		"cursor": cursor,
	})
}
