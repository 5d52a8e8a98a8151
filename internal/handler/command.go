package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	apperrors "github.com/phonelink/broker-server-go/internal/errors"
	"github.com/phonelink/broker-server-go/internal/middleware"
	"github.com/phonelink/broker-server-go/internal/service"
)

type CommandHandler struct {
	commandService *service.CommandService
}

func NewCommandHandler(commandService *service.CommandService) *CommandHandler {
	return &CommandHandler{
		commandService: commandService,
	}
}

// POST /sms
func (h *CommandHandler) SendSMS(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetAccountID(r.Context())

	var req struct {
		HostDeviceID int64  `json:"host_device_id"`
		Sim          int    `json:"sim"`
		To           string `json:"to"`
		Body         string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	result, err := h.commandService.SendSMS(r.Context(), accountID, req.HostDeviceID, req.Sim, req.To, req.Body)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// POST /call
// An omitted action places the call; action "end" hangs up.
func (h *CommandHandler) Call(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetAccountID(r.Context())

	var req struct {
		HostDeviceID int64  `json:"host_device_id"`
		Action       string `json:"action"`
		Sim          int    `json:"sim"`
		To           string `json:"to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	var (
		result *service.CommandResult
		err    error
	)
	switch req.Action {
	case "", "place":
		result, err = h.commandService.PlaceCall(r.Context(), accountID, req.HostDeviceID, req.Sim, req.To)
	case "end":
		result, err = h.commandService.EndCall(r.Context(), accountID, req.HostDeviceID)
	default:
		writeError(w, apperrors.InvalidInput("action", "must be place or end"))
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// GET /sims?host_device_id=N
func (h *CommandHandler) GetSims(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetAccountID(r.Context())

	raw := r.URL.Query().Get("host_device_id")
	if raw == "" {
		writeError(w, apperrors.MissingRequired("host_device_id"))
		return
	}
	hostDeviceID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, apperrors.InvalidInput("host_device_id", "must be an integer"))
		return
	}

	result, err := h.commandService.GetSims(r.Context(), accountID, hostDeviceID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
