package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

// Subscriber hands out the event stream of one session.
type Subscriber interface {
	Subscribe(topic string) (<-chan domain.Event, func())
	// Subscribers reports how many local connections follow the session.
	Subscribers(topic string) int
}

type WSHandler struct {
	orch     *app.Orchestrator
	events   Subscriber
	auth     *HostAuth
	upgrader websocket.Upgrader
}

func NewWSHandler(orch *app.Orchestrator, events Subscriber, auth *HostAuth) *WSHandler {
	return &WSHandler{
		orch:   orch,
		events: events,
		auth:   auth,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Inbound message types.
const (
	msgHostStart    = "hostStart"
	msgHostNext     = "hostNext"
	msgHostEnd      = "hostEnd"
	msgSubmitAnswer = "submitAnswer"
)

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type nextPayload struct {
	QuestionIndex *int `json:"questionIndex"`
}

type answerPayload struct {
	QuestionID     string `json:"questionId"`
	SelectedOption int    `json:"selectedOption"`
	ResponseTimeMs int64  `json:"responseTimeMs"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type joinedPayload struct {
	Session       domain.GameSession `json:"session"`
	Total         int                `json:"total"`
	ParticipantID string             `json:"participantId"`
	IsHost        bool               `json:"isHost"`
}

type answerReceived struct {
	QuestionID string `json:"questionId"`
}

type ackPayload struct {
	Command string              `json:"command"`
	State   domain.SessionState `json:"state"`
	Index   int                 `json:"currentQuestionIndex"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// client is one websocket connection bound to a session.
type client struct {
	sessionID     string
	participantID string
	name          string
	isHost        bool
}

// ServeWS upgrades HTTP requests to websockets and wires them into the session commands.
// Query: sessionId, pin or code to find the session; participantId and name for
// players; role=host (plus a token) for the host.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ref := app.SessionRef{ID: q.Get("sessionId"), Pin: q.Get("pin"), ShareCode: q.Get("code")}
	cl := client{participantID: q.Get("participantId"), name: q.Get("name"), isHost: q.Get("role") == "host"}
	if cl.isHost {
		hostID, err := h.auth.HostID(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		cl.participantID = hostID
	}
	if (ref.ID == "" && ref.Pin == "" && ref.ShareCode == "") || cl.participantID == "" {
		http.Error(w, "missing sessionId/pin/code or participantId", http.StatusBadRequest)
		return
	}

	session, err := h.orch.Resolve(r.Context(), ref)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	cl.sessionID = session.ID

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// subscribe before joining so nothing published after the join snapshot is missed
	updates, cancel := h.events.Subscribe(cl.sessionID)
	defer cancel()

	joined, err := h.orch.Join(r.Context(), app.JoinCommand{
		Session:         app.SessionRef{ID: cl.sessionID},
		ParticipantID:   cl.participantID,
		ParticipantName: cl.name,
		IsHost:          cl.isHost,
	})
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	push := func(msg outboundMessage[any]) {
		select {
		case send <- msg:
		case <-writerDone:
		}
	}

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case ev, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: ev.Type, Payload: ev.Payload}:
				case <-closeSignals:
					return
				case <-writerDone:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	push(outboundMessage[any]{Type: "joined", Payload: joinedPayload{
		Session:       joined.Session,
		Total:         joined.Total,
		ParticipantID: cl.participantID,
		IsHost:        cl.isHost,
	}})
	if joined.Question != nil {
		push(outboundMessage[any]{Type: domain.EventQuestionStarted, Payload: *joined.Question})
	}
	if joined.Leaderboard != nil {
		push(outboundMessage[any]{Type: domain.EventGameEnded, Payload: domain.GameEnded{Leaderboard: *joined.Leaderboard}})
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		push(h.handle(r.Context(), cl, inbound))
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// handle runs one inbound message and returns the reply for the sender only.
func (h *WSHandler) handle(ctx context.Context, cl client, inbound inboundMessage) outboundMessage[any] {
	cmd, err := h.command(cl, inbound)
	if err != nil {
		return errorMessage(err)
	}
	res, err := h.orch.Handle(ctx, cmd)
	if errors.Is(err, domain.ErrSessionLocked) {
		return outboundMessage[any]{Type: domain.EventSessionLocked, Payload: domain.SessionLocked{Reason: err.Error()}}
	}
	if err != nil {
		return errorMessage(err)
	}
	if res.Submission != nil {
		return outboundMessage[any]{Type: "answerReceived", Payload: answerReceived{QuestionID: cmd.(app.SubmitAnswerCommand).QuestionID}}
	}
	return outboundMessage[any]{Type: "ack", Payload: ackPayload{
		Command: inbound.Type,
		State:   res.Session.State,
		Index:   res.Session.CurrentQuestionIndex,
	}}
}

func (h *WSHandler) command(cl client, inbound inboundMessage) (app.Command, error) {
	switch inbound.Type {
	case msgHostStart, msgHostNext, msgHostEnd:
		if !cl.isHost {
			return nil, domain.ErrNotHost
		}
		switch inbound.Type {
		case msgHostStart:
			return app.HostStartCommand{SessionID: cl.sessionID, HostID: cl.participantID}, nil
		case msgHostNext:
			var payload nextPayload
			if len(inbound.Payload) > 0 {
				if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
					return nil, fmt.Errorf("%w: invalid next payload", domain.ErrValidation)
				}
			}
			return app.HostNextCommand{SessionID: cl.sessionID, HostID: cl.participantID, QuestionIndex: payload.QuestionIndex}, nil
		default:
			return app.HostEndCommand{SessionID: cl.sessionID, HostID: cl.participantID}, nil
		}
	case msgSubmitAnswer:
		if cl.isHost {
			return nil, fmt.Errorf("%w: hosts cannot answer", domain.ErrValidation)
		}
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return nil, fmt.Errorf("%w: invalid answer payload", domain.ErrValidation)
		}
		return app.SubmitAnswerCommand{
			SessionID:       cl.sessionID,
			ParticipantID:   cl.participantID,
			ParticipantName: cl.name,
			QuestionID:      payload.QuestionID,
			SelectedOption:  payload.SelectedOption,
			ResponseTimeMs:  payload.ResponseTimeMs,
		}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported message type %q", domain.ErrValidation, inbound.Type)
	}
}

func errorMessage(err error) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
}
