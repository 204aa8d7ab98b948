package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/nexuslabs/nexus/internal/orchestrator"
	"github.com/nexuslabs/nexus/pkg/types"
)

// maxMessageChars is the upper bound on a single chat message.
const maxMessageChars = 2000

// maxBodyBytes caps the chat request body read.
const maxBodyBytes = 1 << 20

// chatRequest is the JSON body accepted by both chat transports.
type chatRequest struct {
	Message string `json:"message"`
	Mode    string `json:"mode,omitempty"`
}

// buildRequest validates the chat body and combines it with per-request
// headers into an orchestrator request. A non-empty second return value is
// the client-facing validation error.
func buildRequest(body chatRequest, h http.Header) (orchestrator.Request, string) {
	msg := strings.TrimSpace(body.Message)
	if msg == "" {
		return orchestrator.Request{}, "Message is required"
	}
	if utf8.RuneCountInString(msg) > maxMessageChars {
		return orchestrator.Request{}, fmt.Sprintf("Message too long (max %d chars)", maxMessageChars)
	}

	userID := h.Get("X-Session-ID")
	if userID == "" {
		userID = "anonymous"
	}

	tier := types.TierFree
	if strings.EqualFold(h.Get("X-Tier"), string(types.TierPro)) {
		tier = types.TierPro
	}

	return orchestrator.Request{
		Message: msg,
		UserID:  userID,
		Mode:    types.Mode(body.Mode),
		Tier:    tier,
	}, ""
}

// handleChat streams chat events over Server-Sent Events. Each event is one
// JSON-encoded ChatEvent in a "data:" frame.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var body chatRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	req, errMsg := buildRequest(body, r.Header)
	if errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	requestID := uuid.NewString()
	slog.Info("server: chat request", "request_id", requestID, "user_id", req.UserID, "tier", req.Tier)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Request-ID", requestID)
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	for ev := range s.orch.Orchestrate(r.Context(), req) {
		payload, err := json.Marshal(ev)
		if err != nil {
			slog.Error("server: event marshal failed", "type", ev.Type, "err", err)
			payload, _ = json.Marshal(types.ChatEvent{Type: types.EventError, Content: "Stream interrupted"})
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			// Client went away; the orchestrator notices via r.Context().
			return
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

// handleChatWS carries the chat event stream over a WebSocket. The client
// sends one JSON chat request per turn; the server answers with the full
// event sequence for that turn and then waits for the next request.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Debug("server: websocket accept failed", "err", err)
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}

		var body chatRequest
		if err := json.Unmarshal(data, &body); err != nil {
			if err := writeEvent(ctx, conn, types.ChatEvent{Type: types.EventError, Content: "Invalid JSON body"}); err != nil {
				return
			}
			continue
		}

		req, errMsg := buildRequest(body, r.Header)
		if errMsg != "" {
			if err := writeEvent(ctx, conn, types.ChatEvent{Type: types.EventError, Content: errMsg}); err != nil {
				return
			}
			continue
		}
		slog.Info("server: chat request", "request_id", uuid.NewString(), "user_id", req.UserID, "tier", req.Tier, "transport", "ws")

		for ev := range s.orch.Orchestrate(ctx, req) {
			if err := writeEvent(ctx, conn, ev); err != nil {
				return
			}
		}
	}
}

// writeEvent sends one ChatEvent as a JSON text frame.
func writeEvent(ctx context.Context, conn *websocket.Conn, ev types.ChatEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, payload)
}
