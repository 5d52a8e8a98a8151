package model

type DeviceRole string

const (
	DeviceRoleHost   DeviceRole = "host"
	DeviceRoleClient DeviceRole = "client"
)

func (r DeviceRole) Valid() bool {
	return r == DeviceRoleHost || r == DeviceRoleClient
}

type CommandName string

const (
	CommandSendSMS   CommandName = "SEND_SMS"
	CommandPlaceCall CommandName = "PLACE_CALL"
	CommandEndCall   CommandName = "END_CALL"
	CommandGetSims   CommandName = "GET_SIMS"
)

func (c CommandName) Valid() bool {
	switch c {
	case CommandSendSMS, CommandPlaceCall, CommandEndCall, CommandGetSims:
		return true
	}
	return false
}

type MessageKind string

const (
	MessageKindCommand MessageKind = "command"
	MessageKindEvent   MessageKind = "event"
	MessageKindWebRTC  MessageKind = "webrtc"
)

type PairingStatus string

const (
	PairingStatusPaired        PairingStatus = "paired"
	PairingStatusAlreadyPaired PairingStatus = "already_paired"
)
