package relay

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// writeWait bounds a single write to the peer.
	writeWait = 10 * time.Second
	// readWait is how long the peer may stay silent before the channel
	// is treated as dead. Any inbound frame refreshes it.
	readWait = 60 * time.Second
	// pingInterval is how often an idle peer is probed. Must be shorter
	// than readWait.
	pingInterval = 30 * time.Second
	// maxFrameSize bounds one inbound frame.
	maxFrameSize = 64 * 1024
	// sendBufferSize is the per-channel outbound queue. A peer that
	// stops draining it is disconnected rather than blocking the router.
	sendBufferSize = 64
)

var ErrChannelClosed = errors.New("channel closed")

// Channel wraps one device's duplex connection. Reads happen on the
// owning serve loop; writes from any goroutine funnel through the send
// queue into a single write pump.
type Channel struct {
	deviceID    int64
	conn        *websocket.Conn
	send        chan []byte
	replayNudge chan struct{}
	done        chan struct{}
	closeOnce   sync.Once
	logger      zerolog.Logger
}

func NewChannel(deviceID int64, conn *websocket.Conn) *Channel {
	conn.SetReadLimit(maxFrameSize)
	return &Channel{
		deviceID:    deviceID,
		conn:        conn,
		send:        make(chan []byte, sendBufferSize),
		replayNudge: make(chan struct{}, 1),
		done:        make(chan struct{}),
		logger:      log.With().Int64("deviceId", deviceID).Logger(),
	}
}

func (c *Channel) DeviceID() int64 { return c.deviceID }

// Done is closed when the channel is torn down.
func (c *Channel) Done() <-chan struct{} { return c.done }

// Close tears the channel down. Safe to call from any goroutine, any
// number of times.
func (c *Channel) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// Send queues a frame for delivery. It never blocks: a full queue means
// the peer has stopped draining, so the channel is closed instead.
func (c *Channel) Send(data []byte) error {
	select {
	case <-c.done:
		return ErrChannelClosed
	default:
	}

	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrChannelClosed
	default:
		c.logger.Warn().Msg("send queue full, closing channel")
		c.Close()
		return ErrChannelClosed
	}
}

// SendFrame encodes and queues a frame.
func (c *Channel) SendFrame(f Frame) error {
	data, err := Encode(f)
	if err != nil {
		return err
	}
	return c.Send(data)
}

// SendError queues a typed error for the peer.
func (c *Channel) SendError(msg, reqID string) {
	data, err := json.Marshal(ErrorFrame{Error: msg, ReqID: reqID})
	if err != nil {
		return
	}
	c.Send(data)
}

// NudgeReplay wakes the channel's replay loop. Coalesces when a nudge is
// already pending.
func (c *Channel) NudgeReplay() {
	select {
	case c.replayNudge <- struct{}{}:
	default:
	}
}

// ReadMessage blocks for the next inbound frame, refreshing the liveness
// deadline first.
func (c *Channel) ReadMessage() ([]byte, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(readWait)); err != nil {
		return nil, err
	}
	_, data, err := c.conn.ReadMessage()
	return data, err
}

// writePump drains the send queue and emits periodic heartbeat probes.
// It owns all writes to the connection. Closing the channel stops it, so
// a dead channel never keeps a live timer.
func (c *Channel) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	ping, _ := Encode(NewPing())

	for {
		select {
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Debug().Err(err).Msg("write failed")
				c.Close()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, ping); err != nil {
				c.logger.Debug().Err(err).Msg("heartbeat write failed")
				c.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}
