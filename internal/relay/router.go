package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/phonelink/broker-server-go/internal/model"
	"github.com/phonelink/broker-server-go/internal/repository"
)

// Typed errors surfaced to the sending peer. The literal text is the
// wire-level error field.
var (
	errNoPairedHost      = errors.New("no paired host")
	errDestinationNeeded = errors.New("destination required")
	errTargetOffline     = errors.New("target_offline")
)

// Router reads frames from registered channels, validates their shape,
// and forwards them to the paired peer. REST-submitted commands whose
// target has no live channel are queued for replay instead.
type Router struct {
	registry    *Registry
	deviceRepo  repository.DeviceRepository
	pairRepo    repository.PairingRepository
	messageRepo repository.MessageLogRepository
	queueRepo   repository.QueuedCommandRepository
}

func NewRouter(
	registry *Registry,
	deviceRepo repository.DeviceRepository,
	pairRepo repository.PairingRepository,
	messageRepo repository.MessageLogRepository,
	queueRepo repository.QueuedCommandRepository,
) *Router {
	return &Router{
		registry:    registry,
		deviceRepo:  deviceRepo,
		pairRepo:    pairRepo,
		messageRepo: messageRepo,
		queueRepo:   queueRepo,
	}
}

// Serve owns a device's channel from registration to teardown and blocks
// until the connection dies or ctx is cancelled. Frames on the channel
// are processed in receipt order.
func (rt *Router) Serve(ctx context.Context, ch *Channel) {
	stop := context.AfterFunc(ctx, ch.Close)
	defer stop()

	rt.registry.Register(ch.DeviceID(), ch)
	go ch.writePump()

	rt.touchLastSeen(ctx, ch.DeviceID())

	log.Info().Int64("deviceId", ch.DeviceID()).Msg("channel open")

	// The acknowledgment must reach the send queue before any replayed
	// command does.
	if err := ch.SendFrame(NewConnected(ch.DeviceID())); err != nil {
		rt.teardown(ctx, ch)
		return
	}

	go rt.replayLoop(ctx, ch)

	rt.readLoop(ctx, ch)
	rt.teardown(ctx, ch)
}

func (rt *Router) readLoop(ctx context.Context, ch *Channel) {
	for {
		data, err := ch.ReadMessage()
		if err != nil {
			return
		}
		rt.handleFrame(ctx, ch, data)
	}
}

// handleFrame validates one inbound frame and routes it. Rejected frames
// produce a typed error for the sender; the connection stays open.
func (rt *Router) handleFrame(ctx context.Context, ch *Channel, data []byte) {
	frame, err := Decode(data)
	if err != nil {
		var unknown *UnknownFrameError
		var malformed *MalformedFrameError
		switch {
		case errors.As(err, &unknown):
			ch.SendError(unknown.Error(), "")
		case errors.As(err, &malformed):
			ch.SendError(malformed.Error(), malformed.ReqID)
		default:
			ch.SendError("invalid JSON", "")
		}
		return
	}

	switch frame.Kind() {
	case FrameTypePing:
		ch.SendFrame(NewPong())
		return
	case FrameTypePong:
		// Heartbeat reply, the read deadline is already refreshed.
		return
	}

	rt.route(ctx, ch, frame, data)
}

// route forwards a frame to its destination's live channel. The original
// bytes are forwarded untouched. Frames arriving over a channel are
// never queued: a dead peer is reported synchronously.
func (rt *Router) route(ctx context.Context, ch *Channel, frame Frame, raw []byte) {
	explicit, reqID := routing(frame)

	target, err := rt.resolveTarget(ctx, ch.DeviceID(), explicit)
	if err != nil {
		ch.SendError(err.Error(), reqID)
		return
	}

	peer := rt.registry.Lookup(target)
	if peer == nil {
		ch.SendError(errTargetOffline.Error(), reqID)
		return
	}
	if err := peer.Send(raw); err != nil {
		ch.SendError(errTargetOffline.Error(), reqID)
		return
	}

	rt.logMessage(ctx, ch.DeviceID(), target, logKind(frame.Kind()), raw)
}

// resolveTarget picks the destination device: the explicit one when the
// frame names it and it is paired with the sender, otherwise the unique
// paired peer.
func (rt *Router) resolveTarget(ctx context.Context, from, explicit int64) (int64, error) {
	peers, err := rt.pairRepo.FindPeerIDs(ctx, from)
	if err != nil {
		log.Warn().Err(err).Int64("deviceId", from).Msg("peer lookup failed during routing")
		return 0, errTargetOffline
	}

	if explicit != 0 {
		for _, p := range peers {
			if p == explicit {
				return explicit, nil
			}
		}
		return 0, errNoPairedHost
	}

	switch len(peers) {
	case 0:
		return 0, errNoPairedHost
	case 1:
		return peers[0], nil
	default:
		return 0, errDestinationNeeded
	}
}

// SubmitCommand delivers a REST-submitted command to the target device,
// persisting it for replay when the target has no live channel. Reports
// whether it was delivered immediately.
func (rt *Router) SubmitCommand(ctx context.Context, fromDeviceID, targetDeviceID int64, payload json.RawMessage) (bool, error) {
	if ch := rt.registry.Lookup(targetDeviceID); ch != nil {
		if err := ch.Send(payload); err == nil {
			rt.logMessage(ctx, fromDeviceID, targetDeviceID, model.MessageKindCommand, payload)
			return true, nil
		}
	}

	if _, err := rt.queueRepo.Create(ctx, model.CreateQueuedCommandParams{
		TargetDeviceID: targetDeviceID,
		FromDeviceID:   fromDeviceID,
		Payload:        payload,
	}); err != nil {
		return false, fmt.Errorf("queue command: %w", err)
	}

	rt.logMessage(ctx, fromDeviceID, targetDeviceID, model.MessageKindCommand, payload)

	// The target may have registered between the lookup and the insert.
	// Wake its replay loop so the row is not stranded until the next
	// reconnect.
	if ch := rt.registry.Lookup(targetDeviceID); ch != nil {
		ch.NudgeReplay()
	}

	return false, nil
}

// replayLoop drains the device's queued commands once on open, then on
// every nudge, until the channel is torn down. Running it on a single
// goroutine per channel keeps replay in submission order.
func (rt *Router) replayLoop(ctx context.Context, ch *Channel) {
	rt.replayQueued(ctx, ch)

	for {
		select {
		case <-ch.replayNudge:
			rt.replayQueued(ctx, ch)
		case <-ch.Done():
			return
		}
	}
}

// replayQueued claims and delivers pending commands in submission order.
// Each row is claimed before it is sent, so overlapping replays never
// deliver a command twice.
func (rt *Router) replayQueued(ctx context.Context, ch *Channel) {
	cmds, err := rt.queueRepo.FindPendingByTarget(ctx, ch.DeviceID())
	if err != nil {
		log.Error().Err(err).Int64("deviceId", ch.DeviceID()).Msg("load queued commands")
		return
	}

	delivered := 0
	for _, cmd := range cmds {
		claimed, err := rt.queueRepo.MarkDelivered(ctx, cmd.ID)
		if err != nil {
			log.Error().Err(err).Int64("queuedId", cmd.ID).Msg("claim queued command")
			return
		}
		if !claimed {
			continue
		}
		if err := ch.Send(cmd.Payload); err != nil {
			log.Warn().Err(err).Int64("queuedId", cmd.ID).Msg("channel closed during replay, queued command dropped")
			return
		}
		delivered++
	}

	if delivered > 0 {
		log.Info().Int("count", delivered).Int64("deviceId", ch.DeviceID()).Msg("queued commands replayed")
	}
}

// teardown is the single disconnect path for a channel, normal or not.
// It closes the channel (cancelling its pumps and replay loop), removes
// the registry entry if it is still ours, and tells live peers.
func (rt *Router) teardown(ctx context.Context, ch *Channel) {
	ch.Close()

	removed := rt.registry.Unregister(ch.DeviceID(), ch)

	// Run the bookkeeping even when the request context is already gone.
	ctx = context.WithoutCancel(ctx)

	rt.touchLastSeen(ctx, ch.DeviceID())

	if !removed {
		// A newer channel replaced this one; the device is still online.
		return
	}

	rt.notifyOffline(ctx, ch.DeviceID())
	log.Info().Int64("deviceId", ch.DeviceID()).Msg("channel closed")
}

// notifyOffline emits a DEVICE_OFFLINE event to every paired device that
// currently has a live channel.
func (rt *Router) notifyOffline(ctx context.Context, deviceID int64) {
	peers, err := rt.pairRepo.FindPeerIDs(ctx, deviceID)
	if err != nil {
		log.Warn().Err(err).Int64("deviceId", deviceID).Msg("peer lookup failed for offline notify")
		return
	}

	data, err := Encode(NewOfflineEvent(deviceID))
	if err != nil {
		return
	}

	for _, peerID := range peers {
		if peer := rt.registry.Lookup(peerID); peer != nil {
			peer.Send(data)
		}
	}
}

// logMessage appends the audit record for a routed or queued frame. A
// failed write must never break live relaying, so it is only logged.
func (rt *Router) logMessage(ctx context.Context, from, to int64, kind model.MessageKind, payload []byte) {
	if _, err := rt.messageRepo.Create(ctx, model.CreateMessageLogParams{
		FromDeviceID: from,
		ToDeviceID:   to,
		Kind:         kind,
		Payload:      json.RawMessage(payload),
	}); err != nil {
		log.Warn().
			Err(err).
			Int64("fromDeviceId", from).
			Int64("toDeviceId", to).
			Msg("message log write failed")
	}
}

func (rt *Router) touchLastSeen(ctx context.Context, deviceID int64) {
	if err := rt.deviceRepo.UpdateLastSeen(ctx, deviceID, time.Now()); err != nil {
		log.Warn().Err(err).Int64("deviceId", deviceID).Msg("update last seen")
	}
}
