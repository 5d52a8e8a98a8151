// Package audit emits the security-relevant edges of the broker as
// structured log events: authentication outcomes, device registration,
// pairing activity and throttle hits. Relayed traffic is never audited
// here; the message log is its record.
package audit

import (
	"net/http"

	"github.com/rs/zerolog/log"
)

type EventType string

const (
	EventAccountRegister EventType = "account_register"
	EventLoginSuccess    EventType = "login_success"
	EventLoginFailure    EventType = "login_failure"
	EventAuthFailure     EventType = "auth_failure"
	EventDeviceCreate    EventType = "device_create"
	EventCodeGenerate    EventType = "pairing_code_generate"
	EventPairConfirm     EventType = "pairing_confirm"
	EventPairFailure     EventType = "pairing_failure"
	EventRateLimitExceed EventType = "rate_limit_exceeded"
)

type Event struct {
	Type      EventType
	AccountID string
	DeviceID  int64
	IP        string
	UserAgent string
	Details   map[string]interface{}
}

func Log(event Event) {
	e := log.Info().
		Str("audit", "security").
		Str("event_type", string(event.Type))

	if event.AccountID != "" {
		e = e.Str("account_id", event.AccountID)
	}
	if event.DeviceID != 0 {
		e = e.Int64("device_id", event.DeviceID)
	}
	if event.IP != "" {
		e = e.Str("ip", event.IP)
	}
	if event.UserAgent != "" {
		e = e.Str("user_agent", event.UserAgent)
	}
	if len(event.Details) > 0 {
		e = e.Fields(event.Details)
	}

	e.Msg("security audit event")
}

// LogFromRequest stamps the event with the caller's address before
// logging it.
func LogFromRequest(r *http.Request, event Event) {
	event.IP = clientIP(r)
	event.UserAgent = r.UserAgent()
	Log(event)
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return r.RemoteAddr
}
