package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/securevm/internal/api/http"
	"github.com/GriffinCanCode/securevm/internal/domain/session"
	"github.com/GriffinCanCode/securevm/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/securevm/internal/sandbox"
	"github.com/GriffinCanCode/securevm/internal/shared/id"
	"github.com/GriffinCanCode/securevm/internal/shared/utils"
)

// Message types
const (
	TypeEval   = "eval"
	TypePing   = "ping"
	TypePong   = "pong"
	TypeResult = "result"
	TypeSystem = "system"
	TypeError  = "error"
)

// Message is a client frame.
type Message struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"` // echoed in the reply
	Code string `json:"code,omitempty"`
}

// Reply is a server frame.
type Reply struct {
	Type      string                `json:"type"`
	ID        string                `json:"id,omitempty"`
	Message   string                `json:"message,omitempty"`
	Result    *apihttp.EvalResponse `json:"result,omitempty"`
	Timestamp int64                 `json:"timestamp"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS middleware decides which origins reach the route
	},
}

// Handler serves a REPL over WebSocket, bound to one session per connection.
type Handler struct {
	sessions *session.Manager
	metrics  *monitoring.Metrics
	logger   *zap.Logger
}

// NewHandler creates a new WebSocket handler. metrics and logger may be nil.
func NewHandler(sessions *session.Manager, metrics *monitoring.Metrics, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		sessions: sessions,
		metrics:  metrics,
		logger:   logger,
	}
}

// HandleConnection upgrades the request and runs the REPL loop until the
// client disconnects or the session goes away.
func (h *Handler) HandleConnection(c *gin.Context) {
	sid, err := id.ParseSessionID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, err := h.sessions.Get(sid); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(utils.MaxMessageSize)

	cid := id.NewConnectionID()
	logger := h.logger.With(
		zap.String("connection_id", cid.String()),
		zap.String("session_id", sid.String()))
	logger.Info("repl connected")

	if h.metrics != nil {
		h.metrics.IncWSConnections()
		defer h.metrics.DecWSConnections()
	}

	// Get request context for propagation
	reqCtx := c.Request.Context()

	h.send(conn, Reply{Type: TypeSystem, Message: "connected to " + sid.String()})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("websocket read error", zap.Error(err))
			}
			break
		}

		var msg Message
		if err := sonic.Unmarshal(data, &msg); err != nil {
			h.sendError(conn, "", "malformed message")
			continue
		}
		h.record("in", msg.Type)

		switch msg.Type {
		case TypeEval:
			if !h.handleEval(reqCtx, conn, sid, msg, logger) {
				logger.Info("repl closed with its session")
				return
			}
		case TypePing:
			h.send(conn, Reply{Type: TypePong, ID: msg.ID})
		default:
			h.sendError(conn, msg.ID, "unknown message type")
		}
	}
	logger.Info("repl disconnected")
}

// handleEval reports false once the session no longer exists.
func (h *Handler) handleEval(ctx context.Context, conn *websocket.Conn, sid id.SessionID, msg Message, logger *zap.Logger) bool {
	if err := utils.ValidateCode(msg.Code); err != nil {
		h.sendError(conn, msg.ID, err.Error())
		return true
	}

	result, err := h.sessions.Eval(ctx, sid, msg.Code)
	if err != nil && !(result != nil && errors.Is(err, sandbox.ErrEvaluation)) {
		h.sendError(conn, msg.ID, err.Error())
		if errors.Is(err, session.ErrSessionNotFound) {
			return false
		}
		logger.Error("repl evaluation failed", zap.Error(err))
		return true
	}

	resp := apihttp.NewEvalResponse(result)
	h.send(conn, Reply{Type: TypeResult, ID: msg.ID, Result: &resp})
	return true
}

func (h *Handler) record(direction, msgType string) {
	if h.metrics != nil {
		h.metrics.RecordWSMessage(direction, msgType)
	}
}

func (h *Handler) send(conn *websocket.Conn, reply Reply) error {
	reply.Timestamp = time.Now().Unix()
	data, err := sonic.Marshal(reply)
	if err != nil {
		return err
	}
	h.record("out", reply.Type)
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (h *Handler) sendError(conn *websocket.Conn, msgID, message string) error {
	return h.send(conn, Reply{Type: TypeError, ID: msgID, Message: message})
}
