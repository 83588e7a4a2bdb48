package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"academy-ledger-service/internal/app"
	"academy-ledger-service/internal/domain"
	"academy-ledger-service/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// WSHandler streams the XP leaderboard and accepts quiz submissions over one socket.
type WSHandler struct {
	service  *app.QuizService
	log      logger.Log
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService, log logger.Log) *WSHandler {
	return &WSHandler{
		service: service,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the request and pushes a "leaderboard" message on every balance change.
// Connections that carry the gateway's X-User-ID header may also send
// {"type":"submit","payload":<quiz submission>} and receive a "submissionResult".
// Without the header the socket is read-only.
func (h *WSHandler) ServeWS(c *gin.Context) {
	userID := strings.TrimSpace(c.GetHeader(userIDHeader))

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.ErrorErr("ws upgrade failed", err)
		return
	}
	defer conn.Close()

	ctx := c.Request.Context()
	updates, cancel, err := h.service.SubscribeLeaderboard(ctx)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: domain.PublicMessage(err)}})
		return
	}
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// single writer: gorilla connections do not support concurrent writes
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.ErrorErr("ws write error", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "leaderboard", Payload: update}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	push := func(msg outboundMessage[any]) {
		select {
		case send <- msg:
		case <-writerDone:
		}
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "submit":
			if userID == "" {
				push(errorMessage("missing X-User-ID header"))
				continue
			}
			var sub domain.QuizSubmission
			if err := json.Unmarshal(inbound.Payload, &sub); err != nil {
				push(errorMessage("invalid submission payload"))
				continue
			}
			result, err := h.service.SubmitQuiz(ctx, userID, sub)
			if err != nil {
				if domain.KindOf(err) == domain.KindInternal {
					h.log.ErrorErr("ws submission failed", err, "user_id", userID)
				}
				push(errorMessage(domain.PublicMessage(err)))
				continue
			}
			push(outboundMessage[any]{Type: "submissionResult", Payload: result})
		default:
			push(errorMessage("unsupported message type"))
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

func errorMessage(msg string) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: msg}}
}
