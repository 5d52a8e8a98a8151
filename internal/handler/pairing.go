package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/phonelink/broker-server-go/internal/audit"
	apperrors "github.com/phonelink/broker-server-go/internal/errors"
	"github.com/phonelink/broker-server-go/internal/middleware"
	"github.com/phonelink/broker-server-go/internal/service"
)

type PairingHandler struct {
	pairingService *service.PairingService
}

func NewPairingHandler(pairingService *service.PairingService) *PairingHandler {
	return &PairingHandler{
		pairingService: pairingService,
	}
}

func (h *PairingHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.GenerateCode)
	r.Post("/confirm", h.Confirm)

	return r
}

// POST /pair?host_device_id=N
func (h *PairingHandler) GenerateCode(w http.ResponseWriter, r *http.Request) {
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

	result, err := h.pairingService.GenerateCode(r.Context(), accountID, hostDeviceID)
	if err != nil {
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:      audit.EventCodeGenerate,
		AccountID: accountID,
		DeviceID:  hostDeviceID,
	})

	writeJSON(w, http.StatusOK, result)
}

// POST /pair/confirm
func (h *PairingHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetAccountID(r.Context())

	var req struct {
		Code           string `json:"code"`
		ClientDeviceID int64  `json:"client_device_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	result, err := h.pairingService.Confirm(r.Context(), accountID, req.Code, req.ClientDeviceID)
	if err != nil {
		switch apperrors.GetCode(err) {
		case apperrors.ErrCodeInvalidPairingCode, apperrors.ErrCodeForbidden:
			audit.LogFromRequest(r, audit.Event{
				Type:      audit.EventPairFailure,
				AccountID: accountID,
				DeviceID:  req.ClientDeviceID,
			})
		}
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:      audit.EventPairConfirm,
		AccountID: accountID,
		DeviceID:  req.ClientDeviceID,
		Details:   map[string]interface{}{"host_device_id": result.HostDeviceID, "status": string(result.Status)},
	})

	writeJSON(w, http.StatusOK, result)
}
