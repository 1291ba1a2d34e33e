package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-mock/internal/middleware"
	"github.com/stemsi/exstem-mock/internal/model"
	"github.com/stemsi/exstem-mock/internal/response"
	"github.com/stemsi/exstem-mock/internal/service"
	ws "github.com/stemsi/exstem-mock/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams the live session and accepts exam actions over one socket.
type WSHandler struct {
	examService *service.ExamService
	log         zerolog.Logger
	upgrader    websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(examService *service.ExamService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		examService: examService,
		log:         log.With().Str("component", "ws_handler").Logger(),
		upgrader:    buildUpgrader(allowedOrigins),
	}
}

// ExamWebSocketStream godoc
// WS /ws/v1/exam/stream?token=...
// Pushes every published session view (timer ticks included) and applies client actions.
func (h *WSHandler) ExamWebSocketStream(c *gin.Context) {
	sessionID := middleware.GetSessionID(c)
	if sessionID == "" {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	raw, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	conn := ws.NewConn(raw)
	defer conn.Close()

	wsLog := h.log.With().Str("session_id", sessionID).Logger()
	wsLog.Info().Msg("Candidate connected")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub := h.examService.Subscribe(ctx, sessionID)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		wsLog.Error().Err(err).Msg("Subscribe failed")
		_ = conn.WriteError(string(response.ErrInternal), response.GetMessage(response.ErrInternal))
		return
	}

	if view, err := h.examService.State(); err == nil {
		h.writeView(conn, view)
	}

	go h.forward(ctx, cancel, conn, sub.Channel(), wsLog)

	for {
		var msg ws.RequestPayload
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}
		if ctx.Err() != nil {
			return
		}

		if err := h.examService.Authorize(sessionID); err != nil {
			h.writeErr(conn, err)
			return
		}
		h.dispatch(ctx, conn, &msg, wsLog)
	}
}

// forward relays published session views until the socket or subscription closes.
func (h *WSHandler) forward(ctx context.Context, cancel context.CancelFunc, conn *ws.Conn, ch <-chan *redis.Message, log zerolog.Logger) {
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteState([]byte(msg.Payload)); err != nil {
				log.Debug().Err(err).Msg("Stopped forwarding session events")
				return
			}
		}
	}
}

func (h *WSHandler) dispatch(ctx context.Context, conn *ws.Conn, msg *ws.RequestPayload, log zerolog.Logger) {
	var (
		view model.SessionView
		err  error
	)

	switch msg.Action {
	case ws.ActionPing:
		_ = conn.WriteTyped(ws.PongResponse{Event: ws.EventPong})
		return
	case ws.ActionSignal:
		state, err := h.examService.Signal(ctx, msg.Signal)
		if err != nil {
			h.writeErr(conn, err)
			return
		}
		_ = conn.WriteTyped(ws.ProctorResponse{Event: ws.EventProctor, Data: state})
		return
	case ws.ActionNavigate:
		if msg.Index == nil {
			_ = conn.WriteError(string(response.ErrInvalidPayload), "index is required")
			return
		}
		view, err = h.examService.Navigate(ctx, *msg.Index)
	case ws.ActionNext:
		view, err = h.examService.Next(ctx)
	case ws.ActionAnswer:
		view, err = h.examService.MarkAnswer(ctx, msg.QuestionID, msg.Answer)
	case ws.ActionClear:
		view, err = h.examService.ClearResponse(ctx, msg.QuestionID)
	case ws.ActionReview:
		view, err = h.examService.ToggleReview(ctx, msg.QuestionID)
	case ws.ActionSubject:
		view, err = h.examService.ChangeSubject(ctx, msg.Subject)
	case ws.ActionSubmit:
		view, err = h.examService.End(ctx)
		if err == nil {
			log.Info().Msg("Exam submitted over WebSocket")
		}
	default:
		log.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
		_ = conn.WriteError(string(response.ErrUnknownAction), "unknown action: "+string(msg.Action))
		return
	}

	if err != nil {
		h.writeErr(conn, err)
		return
	}
	h.writeView(conn, view)
}

func (h *WSHandler) writeView(conn *ws.Conn, view model.SessionView) {
	data, err := json.Marshal(view)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to marshal session view")
		return
	}
	_ = conn.WriteState(data)
}

func (h *WSHandler) writeErr(conn *ws.Conn, err error) {
	_, code := classify(err)
	if code == response.ErrInternal {
		h.log.Error().Err(err).Msg("WebSocket action failed")
	}
	_ = conn.WriteError(string(code), response.GetMessage(code))
}
