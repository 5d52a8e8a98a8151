package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	apperrors "github.com/phonelink/broker-server-go/internal/errors"
	"github.com/phonelink/broker-server-go/internal/middleware"
	"github.com/phonelink/broker-server-go/internal/model"
	"github.com/phonelink/broker-server-go/internal/relay"
	"github.com/phonelink/broker-server-go/internal/service"
)

type WSHandler struct {
	deviceService *service.DeviceService
	router        *relay.Router
	upgrader      websocket.Upgrader
}

func NewWSHandler(deviceService *service.DeviceService, router *relay.Router) *WSHandler {
	return &WSHandler{
		deviceService: deviceService,
		router:        router,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Token auth stands in for origin checks, native clients
			// send no Origin header at all.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *WSHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/host/{deviceId}", h.HostChannel)
	r.Get("/client/{deviceId}", h.ClientChannel)

	return r
}

// GET /ws/host/{deviceId}?token=
func (h *WSHandler) HostChannel(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, model.DeviceRoleHost)
}

// GET /ws/client/{deviceId}?token=
func (h *WSHandler) ClientChannel(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, model.DeviceRoleClient)
}

// serve upgrades the connection and runs the channel until it dies. The
// device must belong to the authenticated account and its role must
// match the endpoint.
func (h *WSHandler) serve(w http.ResponseWriter, r *http.Request, role model.DeviceRole) {
	accountID := middleware.GetAccountID(r.Context())

	deviceID, err := strconv.ParseInt(chi.URLParam(r, "deviceId"), 10, 64)
	if err != nil {
		writeError(w, apperrors.InvalidInput("deviceId", "must be an integer"))
		return
	}

	device, err := h.deviceService.GetOwnedDevice(r.Context(), accountID, deviceID)
	if err != nil {
		writeError(w, err)
		return
	}

	if device.Role != role {
		writeError(w, apperrors.Forbidden("Device role does not match endpoint"))
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered the client.
		log.Warn().Err(err).Int64("deviceId", deviceID).Msg("websocket upgrade failed")
		return
	}

	h.router.Serve(r.Context(), relay.NewChannel(deviceID, conn))
}
