package handler

import (
	"net/http"

	"github.com/rs/zerolog/log"

	apperrors "github.com/phonelink/broker-server-go/internal/errors"
	"github.com/phonelink/broker-server-go/internal/httputil"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	httputil.WriteJSON(w, status, data)
}

// writeError renders a service error. Unexpected ones are logged here so
// handlers do not have to.
func writeError(w http.ResponseWriter, err error) {
	appErr, ok := apperrors.AsAppError(err)
	if !ok || appErr.Code == apperrors.ErrCodeInternal || appErr.Code == apperrors.ErrCodeDatabase {
		log.Error().Err(err).Msg("request failed")
	}
	httputil.WriteError(w, err)
}
