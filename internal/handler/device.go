package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/phonelink/broker-server-go/internal/audit"
	"github.com/phonelink/broker-server-go/internal/middleware"
	"github.com/phonelink/broker-server-go/internal/model"
	"github.com/phonelink/broker-server-go/internal/service"
)

type DeviceHandler struct {
	deviceService *service.DeviceService
}

func NewDeviceHandler(deviceService *service.DeviceService) *DeviceHandler {
	return &DeviceHandler{
		deviceService: deviceService,
	}
}

func (h *DeviceHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.CreateDevice)
	r.Get("/", h.ListDevices)

	return r
}

// POST /devices
func (h *DeviceHandler) CreateDevice(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetAccountID(r.Context())

	var req struct {
		Name string `json:"name"`
		Role string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	device, err := h.deviceService.CreateDevice(r.Context(), accountID, req.Name, model.DeviceRole(req.Role))
	if err != nil {
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:      audit.EventDeviceCreate,
		AccountID: accountID,
		DeviceID:  device.ID,
		Details:   map[string]interface{}{"role": req.Role},
	})

	writeJSON(w, http.StatusCreated, device)
}

// GET /devices
func (h *DeviceHandler) ListDevices(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetAccountID(r.Context())

	statuses, err := h.deviceService.ListDevices(r.Context(), accountID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"devices": statuses,
	})
}
