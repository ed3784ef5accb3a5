package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/handterm/handterm/internal/infrastructure/logging"
	"github.com/handterm/handterm/internal/shell"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// The rendering collaborator connects from the device itself.
		return true
	},
}

// framePushInterval paces the outbound frame stream.
const framePushInterval = 100 * time.Millisecond

// Message is one inbound client message.
type Message struct {
	Type    string `json:"type"`
	Command string `json:"command,omitempty"`
	Key     string `json:"key,omitempty"`
	Text    string `json:"text,omitempty"`
	Cursor  int    `json:"cursor,omitempty"`
}

// Handler streams engine frames to the rendering collaborator and accepts
// keystrokes and command lines from it.
type Handler struct {
	engine *shell.Engine
	log    *logging.Logger
}

// NewHandler creates a WebSocket handler bound to the engine.
func NewHandler(engine *shell.Engine, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{engine: engine, log: logger}
}

// HandleConnection upgrades the request and runs the session: one writer
// pushing frames on change, one reader dispatching client messages.
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	var writeMu sync.Mutex
	send := func(payload interface{}) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(payload)
	}

	_ = send(gin.H{"type": "system", "message": "connected"})
	_ = send(gin.H{"type": "frame", "frame": h.engine.Frame()})

	done := make(chan struct{})
	go h.pushFrames(send, done)
	defer close(done)

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn("websocket read error", zap.Error(err))
			}
			return
		}

		switch msg.Type {
		case "execute":
			h.engine.ExecuteCommand(msg.Command)
		case "key":
			if err := h.engine.SendKeyToPTY(msg.Key); err != nil {
				_ = send(gin.H{"type": "error", "error": err.Error()})
			}
		case "interrupt":
			if err := h.engine.InterruptForeground(); err != nil {
				_ = send(gin.H{"type": "error", "error": err.Error()})
			}
		case "autocomplete":
			text, cursor := h.engine.Autocomplete(msg.Text, msg.Cursor)
			_ = send(gin.H{"type": "autocomplete", "text": text, "cursor": cursor})
		case "ping":
			_ = send(gin.H{"type": "pong"})
		default:
			_ = send(gin.H{"type": "error", "error": "unknown message type"})
		}
	}
}

// pushFrames sends a frame whenever the visible state changes, paced by the
// push interval, until done closes or a write fails.
func (h *Handler) pushFrames(send func(interface{}) error, done <-chan struct{}) {
	ticker := time.NewTicker(framePushInterval)
	defer ticker.Stop()

	var last shell.Frame
	for {
		select {
		case <-done:
			return
		case <-h.engine.Done():
			_ = send(gin.H{"type": "quit"})
			return
		case <-ticker.C:
			frame := h.engine.Frame()
			if frameEqual(frame, last) {
				continue
			}
			if err := send(gin.H{"type": "frame", "frame": frame}); err != nil {
				return
			}
			last = frame
		}
	}
}

func frameEqual(a, b shell.Frame) bool {
	if len(a.Output) != len(b.Output) ||
		a.Partial != b.Partial ||
		a.PTYInput != b.PTYInput ||
		a.PTYCursor != b.PTYCursor ||
		a.Prompt != b.Prompt ||
		a.Cwd != b.Cwd ||
		a.PTYActive != b.PTYActive ||
		a.EditorOpen != b.EditorOpen {
		return false
	}
	for i := range a.Output {
		if a.Output[i] != b.Output[i] {
			return false
		}
	}
	return true
}
