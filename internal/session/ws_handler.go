package session

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	httperrors "github.com/gokatarajesh/timed-quiz/pkg/http/errors"
	ws "github.com/gokatarajesh/timed-quiz/pkg/http/ws"
)

const (
	tickInterval     = time.Second
	wsCommandTimeout = 10 * time.Second
)

// Handler serves the live session protocol over WebSocket.
type Handler struct {
	service  *Service
	hub      *ws.Hub
	upgrader *websocket.Upgrader
	logger   zerolog.Logger
}

// NewHandler creates a WebSocket handler for quiz sessions.
func NewHandler(service *Service, hub *ws.Hub, upgrader *websocket.Upgrader, logger zerolog.Logger) *Handler {
	return &Handler{
		service:  service,
		hub:      hub,
		upgrader: upgrader,
		logger:   logger.With().Str("component", "session_ws").Logger(),
	}
}

// Register mounts GET /ws/sessions/{id} behind auth.
func (h *Handler) Register(mux *http.ServeMux, auth func(http.Handler) http.Handler) {
	mux.Handle("GET /ws/sessions/{id}", auth(http.HandlerFunc(h.HandleWebSocket)))
}

// HandleWebSocket upgrades the request and streams session state until the
// client leaves or the session closes.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	runner, err := h.service.Get(id)
	if err != nil {
		status, code, message := errorStatus(err)
		h.logger.Debug().Err(err).Str("session_id", id).Int("status", status).Str("code", code).Msg(message)
		http.Error(w, message, status)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	h.HandleConnection(conn, runner)
}

// HandleConnection manages one WebSocket client of a session.
func (h *Handler) HandleConnection(conn *websocket.Conn, runner *Runner) {
	sessionID := runner.ID()
	c := ws.NewConnection(conn, h.logger.With().Str("session_id", sessionID).Logger())
	h.hub.Join(sessionID, c)
	defer h.hub.Leave(sessionID, c.ID())

	go c.WritePump()

	ctx, cancel := context.WithTimeout(context.Background(), wsCommandTimeout)
	view, err := runner.View(ctx)
	cancel()
	if err != nil {
		h.sendError(c, err)
		return
	}
	h.send(c, ws.TypeState, view)

	go h.tick(c, runner)

	c.ReadPump(func(msg ws.Message) error {
		return h.handleMessage(c, runner, msg)
	})
}

// tick pushes the remaining time once a second while the countdown runs.
func (h *Handler) tick(c *ws.Connection, runner *Runner) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.Done():
			return
		case <-runner.Done():
			return
		case <-ticker.C:
			if runner.Submitted() {
				return
			}
			remaining := runner.Remaining()
			h.send(c, ws.TypeTick, ws.TickPayload{
				SessionID:        runner.ID(),
				RemainingSeconds: remaining,
				Clock:            FormatClock(remaining),
			})
		}
	}
}

func (h *Handler) handleMessage(c *ws.Connection, runner *Runner, msg ws.Message) error {
	ctx, cancel := context.WithTimeout(context.Background(), wsCommandTimeout)
	defer cancel()

	var err error
	switch msg.Type {
	case ws.TypeSelectAnswer:
		var payload ws.SelectAnswerPayload
		if err := msg.Decode(&payload); err != nil {
			h.sendCodedError(c, msg.RequestID, httperrors.ErrCodeInvalidPayload, "Invalid select_answer payload")
			return err
		}
		_, err = runner.SelectAnswer(ctx, payload.Option)
	case ws.TypeGoToQuestion:
		var payload ws.GoToQuestionPayload
		if err := msg.Decode(&payload); err != nil {
			h.sendCodedError(c, msg.RequestID, httperrors.ErrCodeInvalidPayload, "Invalid go_to_question payload")
			return err
		}
		_, err = runner.GoToQuestion(ctx, payload.Index)
	case ws.TypePrevious:
		_, err = runner.Previous(ctx)
	case ws.TypeNext:
		_, err = runner.Next(ctx)
	case ws.TypeSubmit:
		_, err = runner.Submit(ctx)
	case ws.TypePing:
		h.send(c, ws.TypePong, nil)
		return nil
	default:
		h.sendCodedError(c, msg.RequestID, httperrors.ErrCodeUnknownMessageType, "Unknown message type: "+msg.Type)
		return nil
	}

	// Successful commands reach the client through the hub broadcast.
	if err != nil {
		h.sendErrorWithRequest(c, msg.RequestID, err)
		if errors.Is(err, ErrClosed) {
			c.Close()
		}
	}
	return nil
}

func (h *Handler) send(c *ws.Connection, msgType string, payload interface{}) {
	msg, err := ws.NewMessage(msgType, payload)
	if err != nil {
		h.logger.Error().Err(err).Str("type", msgType).Msg("encode message")
		return
	}
	if err := c.Send(msg); err != nil {
		h.logger.Debug().Err(err).Str("type", msgType).Msg("send message")
	}
}

func (h *Handler) sendError(c *ws.Connection, err error) {
	h.sendErrorWithRequest(c, "", err)
}

func (h *Handler) sendErrorWithRequest(c *ws.Connection, requestID string, err error) {
	_, code, message := errorStatus(err)
	h.sendCodedError(c, requestID, code, message)
}

func (h *Handler) sendCodedError(c *ws.Connection, requestID, code, message string) {
	msg, err := ws.NewMessage(ws.TypeError, ws.ErrorPayload{Code: code, Message: message})
	if err != nil {
		return
	}
	msg.RequestID = requestID
	if err := c.Send(msg); err != nil {
		h.logger.Debug().Err(err).Msg("send error message")
	}
}
