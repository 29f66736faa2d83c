package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/mizuna-io/mizuna/internal/remote/chat"
	"github.com/mizuna-io/mizuna/internal/remote/command"
	"github.com/mizuna-io/mizuna/internal/remote/telemetry"
	"github.com/mizuna-io/mizuna/pkg/log"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 1000
	maxRequestBody      = 64 << 10
)

type handler struct {
	remote Remote
}

type errorResponse struct {
	Error string `json:"error"`
}

// telemetryResponse adds temperature bands to the snapshot.
type telemetryResponse struct {
	telemetry.Snapshot
	CPUBand telemetry.Band `json:"cpuBand"`
	GPUBand telemetry.Band `json:"gpuBand"`
}

type statusResponse struct {
	Command any `json:"command"`
	Stream  any `json:"stream"`
	Speed   int `json:"speed"`
}

type commandResponse struct {
	Direction command.Direction `json:"direction"`
	Sent      bool              `json:"sent"`
}

type speedRequest struct {
	Value *float64 `json:"value"`
}

type speedResponse struct {
	Speed int `json:"speed"`
}

type chatRequest struct {
	Text string `json:"text"`
}

type clearResponse struct {
	Cleared int `json:"cleared"`
}

func (h *handler) readyz(w http.ResponseWriter, _ *http.Request) {
	if !h.remote.Ready() {
		writeError(w, http.StatusServiceUnavailable, "not ready")
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *handler) telemetry(w http.ResponseWriter, _ *http.Request) {
	snap := h.remote.Snapshot()
	writeJSON(w, http.StatusOK, telemetryResponse{
		Snapshot: snap,
		CPUBand:  snap.CPUBand(),
		GPUBand:  snap.GPUBand(),
	})
}

func (h *handler) connectivity(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.remote.Connectivity())
}

func (h *handler) status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		Command: h.remote.CommandStatus(),
		Stream:  h.remote.StreamStatus(),
		Speed:   h.remote.Speed(),
	})
}

func (h *handler) command(w http.ResponseWriter, r *http.Request) {
	dir, err := command.ParseDirection(mux.Vars(r)["direction"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if dir == command.Stop {
		h.remote.Release()
		writeJSON(w, http.StatusAccepted, commandResponse{Direction: dir, Sent: true})
		return
	}
	sent := h.remote.Press(dir)
	writeJSON(w, http.StatusAccepted, commandResponse{Direction: dir, Sent: sent})
}

func (h *handler) speed(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		writeJSON(w, http.StatusOK, speedResponse{Speed: h.remote.Speed()})
		return
	}

	var req speedRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Value == nil {
		writeError(w, http.StatusBadRequest, "value is required")
		return
	}
	writeJSON(w, http.StatusAccepted, speedResponse{Speed: h.remote.CommitSpeed(*req.Value)})
}

func (h *handler) transcript(w http.ResponseWriter, _ *http.Request) {
	msgs := h.remote.Transcript()
	if msgs == nil {
		msgs = []chat.Message{}
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (h *handler) chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is empty")
		return
	}
	if !h.remote.Chat(r.Context(), req.Text) {
		writeError(w, http.StatusConflict, "a chat request is already in flight")
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *handler) clearChat(w http.ResponseWriter, r *http.Request) {
	n, err := h.remote.ClearChat(r.Context())
	if err != nil {
		var ce *chat.ClearError
		if errors.As(err, &ce) {
			writeError(w, http.StatusBadGateway, ce.Message)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, clearResponse{Cleared: n})
}

func (h *handler) streamEvent(w http.ResponseWriter, r *http.Request) {
	switch mux.Vars(r)["event"] {
	case "loaded":
		h.remote.StreamLoaded()
	case "error":
		h.remote.StreamErrored()
	default:
		writeError(w, http.StatusBadRequest, "event must be loaded or error")
		return
	}
	writeJSON(w, http.StatusAccepted, h.remote.StreamStatus())
}

func (h *handler) historySummary(w http.ResponseWriter, r *http.Request) {
	reader := h.remote.History()
	if reader == nil {
		writeError(w, http.StatusNotFound, "history is disabled")
		return
	}
	sums, err := reader.Summarize(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sums)
}

func (h *handler) history(w http.ResponseWriter, r *http.Request) {
	reader := h.remote.History()
	if reader == nil {
		writeError(w, http.StatusNotFound, "history is disabled")
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	entries, err := reader.Recent(r.Context(), mux.Vars(r)["feed"], limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid JSON body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug("Failed to write response", "error", err.Error())
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}
