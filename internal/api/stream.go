package api

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/ashureev/promptrunner/internal/domain"
	"github.com/ashureev/promptrunner/internal/executor"
)

const streamWriteTimeout = 5 * time.Second

// Stream message types.
const (
	streamTypeStep   = "step"
	streamTypeResult = "result"
)

type streamStep struct {
	Type  string      `json:"type"`
	Passo stepPayload `json:"passo"`
}

type streamResult struct {
	Type   string `json:"type"`
	Status int    `json:"status"`
	Body   any    `json:"body"`
}

// Stream runs a prompt over a websocket, pushing each step as it is recorded
// and finishing with the same body the HTTP endpoint would return.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // CORS policy allows any origin
	})
	if err != nil {
		h.logger.Error("WebSocket accept failed", "error", err)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "execution finished"); closeErr != nil {
			h.logger.Debug("WebSocket close failed", "error", closeErr)
		}
	}()

	var req executor.Request
	readCtx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	err = wsjson.Read(readCtx, ws, &req)
	cancel()
	if err != nil {
		h.logger.Debug("WebSocket request read failed", "error", err)
		req = executor.Request{}
	}

	// From here on the client only listens; a close from its side cancels the run.
	ctx := ws.CloseRead(r.Context())

	observer := func(s domain.StepRecord) {
		h.writeStream(ctx, ws, streamStep{Type: streamTypeStep, Passo: stepToPayload(s)})
	}

	status, body := h.run(r.WithContext(ctx), req, executor.WithStepObserver(observer))
	h.writeStream(ctx, ws, streamResult{Type: streamTypeResult, Status: status, Body: body})
}

func (h *Handler) writeStream(ctx context.Context, ws *websocket.Conn, v any) {
	writeCtx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()
	if err := wsjson.Write(writeCtx, ws, v); err != nil {
		h.logger.Debug("WebSocket write failed", "error", err)
	}
}
