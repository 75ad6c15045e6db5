package formfill

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/MrWong99/voicefill/internal/observe"
	"github.com/MrWong99/voicefill/pkg/slotfill"
)

// maxExtractBody bounds the /v1/extract request body.
const maxExtractBody = 64 << 10

// ExtractRequest is the body of POST /v1/extract.
type ExtractRequest struct {
	Transcript string              `json:"transcript"`
	Form       *slotfill.FormState `json:"form,omitempty"`
}

// SlotExplanation describes how one slot was resolved.
type SlotExplanation struct {
	Slot   string `json:"slot"`
	Value  string `json:"value,omitempty"`
	Match  bool   `json:"match"`
	Source string `json:"source,omitempty"`
}

// ExtractResponse is the body returned by POST /v1/extract.
type ExtractResponse struct {
	Patch   slotfill.Patch     `json:"patch"`
	Form    slotfill.FormState `json:"form"`
	Explain []SlotExplanation  `json:"explain"`
}

// Explain converts extraction results into their wire form.
func Explain(results []slotfill.Result) []SlotExplanation {
	out := make([]SlotExplanation, len(results))
	for i, r := range results {
		v, ok := r.Value.Get()
		out[i] = SlotExplanation{Slot: r.Slot.String(), Value: v, Match: ok, Source: r.Source}
	}
	return out
}

// captureMessage is every JSON message exchanged on /v1/capture.
type captureMessage struct {
	Type       string              `json:"type"`
	SessionID  string              `json:"session_id,omitempty"`
	Transcript string              `json:"transcript,omitempty"`
	Patch      *slotfill.Patch     `json:"patch,omitempty"`
	Form       *slotfill.FormState `json:"form,omitempty"`
	Message    string              `json:"message,omitempty"`
}

// Handler exposes a [Service] over HTTP.
type Handler struct {
	svc *Service
}

// NewHandler creates a Handler for svc.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Register adds the form-filling routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/extract", h.Extract)
	mux.HandleFunc("GET /v1/capture", h.Capture)
}

// Extract handles POST /v1/extract.
func (h *Handler) Extract(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxExtractBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req ExtractRequest
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	var form slotfill.FormState
	if req.Form != nil {
		form = *req.Form
	}

	filled := h.svc.Fill(r.Context(), req.Transcript, form)
	writeJSON(w, http.StatusOK, ExtractResponse{
		Patch:   filled.Patch,
		Form:    filled.Form,
		Explain: Explain(filled.Results),
	})
}

// Capture handles GET /v1/capture. Binary frames carry PCM audio; a text
// frame {"type":"stop"} ends the capture. The optional form query parameter
// holds the current form as JSON.
func (h *Handler) Capture(w http.ResponseWriter, r *http.Request) {
	var form slotfill.FormState
	if raw := r.URL.Query().Get("form"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &form); err != nil {
			writeError(w, http.StatusBadRequest, "invalid form parameter: "+err.Error())
			return
		}
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		observe.Logger(r.Context()).Warn("capture: websocket accept failed", "err", err)
		return
	}
	defer conn.CloseNow()

	if !h.svc.CaptureEnabled() {
		conn.Close(websocket.StatusPolicyViolation, "speech capture is not configured")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	log := observe.Logger(ctx)

	c, err := h.svc.StartCapture(ctx)
	if err != nil {
		log.Error("capture: start failed", "err", err)
		_ = wsjson.Write(ctx, conn, captureMessage{Type: "error", Message: err.Error()})
		conn.Close(websocket.StatusInternalError, "capture failed to start")
		return
	}
	if err := wsjson.Write(ctx, conn, captureMessage{Type: "started", SessionID: c.ID}); err != nil {
		cancel()
		_, _ = c.Finish(context.WithoutCancel(ctx), <-c.Done(), form)
		return
	}

	go h.pump(ctx, conn, c, cancel)

	res := <-c.Done()
	filled, err := c.Finish(context.WithoutCancel(ctx), res, form)
	if errors.Is(err, context.Canceled) {
		return
	}

	writeCtx, writeCancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer writeCancel()
	msg := captureMessage{Type: "result", Transcript: res.Transcript, Patch: &filled.Patch, Form: &filled.Form}
	if err != nil {
		msg = captureMessage{Type: "error", Message: err.Error()}
	}
	if err := wsjson.Write(writeCtx, conn, msg); err != nil {
		log.Warn("capture: write result failed", "session_id", c.ID, "err", err)
		return
	}
	conn.Close(websocket.StatusNormalClosure, "")
}

// pump forwards client frames to the capture until the connection closes.
// A read error cancels ctx, which aborts a capture that is still running.
func (h *Handler) pump(ctx context.Context, conn *websocket.Conn, c *Capture, cancel context.CancelFunc) {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			cancel()
			return
		}
		switch typ {
		case websocket.MessageBinary:
			if err := c.Write(data); err != nil {
				observe.Logger(ctx).Debug("capture: forward audio", "session_id", c.ID, "err", err)
			}
		case websocket.MessageText:
			var msg captureMessage
			if json.Unmarshal(data, &msg) == nil && msg.Type == "stop" {
				_ = c.StopCapture()
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
