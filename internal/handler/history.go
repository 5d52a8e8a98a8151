package handler

import (
	"net/http"
	"strconv"

	apperrors "github.com/phonelink/broker-server-go/internal/errors"
	"github.com/phonelink/broker-server-go/internal/middleware"
	"github.com/phonelink/broker-server-go/internal/service"
)

type HistoryHandler struct {
	messageService *service.MessageService
}

func NewHistoryHandler(messageService *service.MessageService) *HistoryHandler {
	return &HistoryHandler{
		messageService: messageService,
	}
}

// GET /history?device_id=N&limit=&offset=&kind=
func (h *HistoryHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetAccountID(r.Context())

	raw := r.URL.Query().Get("device_id")
	if raw == "" {
		writeError(w, apperrors.MissingRequired("device_id"))
		return
	}
	deviceID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, apperrors.InvalidInput("device_id", "must be an integer"))
		return
	}

	p := ParsePagination(r)
	kind := r.URL.Query().Get("kind")

	result, err := h.messageService.History(r.Context(), accountID, deviceID, kind, p.Limit, p.Offset)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
