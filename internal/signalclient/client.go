// Package signalclient connects a meshcall client to the room relay's
// websocket signaling endpoint. Outbound it implements the peerconn
// SignalSender; inbound it dispatches offer/answer/candidate traffic to
// the attached manager and join/leave events to the host application.
package signalclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"

	"github.com/mossy-p/meshcall/internal/models"
	"github.com/mossy-p/meshcall/internal/peerconn"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 256
)

// Client is one websocket connection to the relay for one room session.
// Inbound messages are dispatched sequentially from the read pump, which
// preserves the relay's per-sender ordering.
type Client struct {
	conn   *websocket.Conn
	log    *slog.Logger
	selfID string
	roomID string
	send   chan []byte

	mu           sync.Mutex
	manager      *peerconn.Manager
	onPeerJoined func(remoteID string)
	onPeerLeft   func(remoteID string)

	closed    chan struct{}
	closeOnce sync.Once
}

// Dial connects to the relay's signaling endpoint for room and reads the
// join confirmation carrying the relay-assigned participant id. The
// relay sends that confirmation before any other traffic, so the id is
// known before the pumps start.
func Dial(ctx context.Context, relayURL, room, displayName string, logger *slog.Logger) (*Client, error) {
	endpoint := strings.TrimRight(relayURL, "/") + "/ws/signal/" + room
	if displayName != "" {
		endpoint += "?displayName=" + url.QueryEscape(displayName)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing relay %s: %w", endpoint, err)
	}

	conn.SetReadDeadline(time.Now().Add(pongWait))
	var welcome models.SignalMessage
	if err := conn.ReadJSON(&welcome); err != nil {
		conn.Close()
		return nil, fmt.Errorf("reading join confirmation: %w", err)
	}
	if welcome.Type != models.SignalTypeJoin || welcome.From == "" {
		conn.Close()
		return nil, fmt.Errorf("unexpected welcome message type %q", welcome.Type)
	}

	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		conn:   conn,
		log:    logger.With("component", "signalclient", "room", welcome.RoomID),
		selfID: welcome.From,
		roomID: welcome.RoomID,
		send:   make(chan []byte, sendBuffer),
		closed: make(chan struct{}),
	}, nil
}

// SelfID returns the relay-assigned participant id.
func (c *Client) SelfID() string {
	return c.selfID
}

// RoomID returns the resolved room id.
func (c *Client) RoomID() string {
	return c.roomID
}

// Attach wires the manager and membership callbacks and starts the read
// and write pumps. Call once, after constructing the manager with
// c.SelfID and c.Send.
func (c *Client) Attach(manager *peerconn.Manager, onPeerJoined, onPeerLeft func(remoteID string)) {
	c.mu.Lock()
	c.manager = manager
	c.onPeerJoined = onPeerJoined
	c.onPeerLeft = onPeerLeft
	c.mu.Unlock()

	go c.writePump()
	go c.readPump()
}

// Send implements peerconn.SignalSender.
func (c *Client) Send(msg peerconn.Message) error {
	wire, err := encode(c.roomID, msg)
	if err != nil {
		return err
	}
	select {
	case c.send <- wire:
		return nil
	case <-c.closed:
		return errors.New("signalclient: connection closed")
	default:
		return errors.New("signalclient: send buffer full")
	}
}

// Close tears down the websocket connection and stops the pumps.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.conn.Close()
	})
	return nil
}

func encode(roomID string, msg peerconn.Message) ([]byte, error) {
	out := models.SignalMessage{
		From:   msg.From,
		To:     msg.To,
		RoomID: roomID,
	}
	switch msg.Kind {
	case peerconn.KindOffer:
		out.Type = models.SignalTypeOffer
	case peerconn.KindAnswer:
		out.Type = models.SignalTypeAnswer
	case peerconn.KindCandidate:
		out.Type = models.SignalTypeCandidate
	default:
		return nil, fmt.Errorf("signalclient: unknown message kind %q", msg.Kind)
	}

	var payload any
	switch {
	case msg.SDP != nil:
		payload = models.SDPPayload{Type: msg.SDP.Type.String(), SDP: msg.SDP.SDP}
	case msg.Candidate != nil:
		payload = models.CandidatePayload{
			Candidate:        msg.Candidate.Candidate,
			SDPMid:           msg.Candidate.SDPMid,
			SDPMLineIndex:    msg.Candidate.SDPMLineIndex,
			UsernameFragment: msg.Candidate.UsernameFragment,
		}
	default:
		return nil, errors.New("signalclient: message has no payload")
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("signalclient: marshaling payload: %w", err)
	}
	out.Payload = raw
	return json.Marshal(out)
}

func (c *Client) readPump() {
	defer c.Close()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("websocket read failed", "error", err)
			}
			return
		}

		var msg models.SignalMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.log.Warn("unparseable signaling message", "error", err)
			continue
		}
		c.dispatch(msg)
	}
}

func (c *Client) dispatch(msg models.SignalMessage) {
	c.mu.Lock()
	manager := c.manager
	onPeerJoined := c.onPeerJoined
	onPeerLeft := c.onPeerLeft
	c.mu.Unlock()

	switch msg.Type {
	case models.SignalTypeOffer, models.SignalTypeAnswer:
		if manager == nil {
			return
		}
		var payload models.SDPPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			c.log.Warn("unparseable SDP payload", "from", msg.From, "error", err)
			return
		}
		sdp := webrtc.SessionDescription{Type: webrtc.NewSDPType(payload.Type), SDP: payload.SDP}
		if msg.Type == models.SignalTypeOffer {
			manager.HandleOffer(msg.From, sdp)
		} else {
			manager.HandleAnswer(msg.From, sdp)
		}

	case models.SignalTypeCandidate:
		if manager == nil {
			return
		}
		var payload models.CandidatePayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			c.log.Warn("unparseable candidate payload", "from", msg.From, "error", err)
			return
		}
		manager.HandleIceCandidate(msg.From, webrtc.ICECandidateInit{
			Candidate:        payload.Candidate,
			SDPMid:           payload.SDPMid,
			SDPMLineIndex:    payload.SDPMLineIndex,
			UsernameFragment: payload.UsernameFragment,
		})

	case models.SignalTypeJoin:
		if msg.From != "" && msg.From != c.selfID && onPeerJoined != nil {
			onPeerJoined(msg.From)
		}

	case models.SignalTypeLeave:
		if manager != nil {
			manager.RemovePeer(msg.From)
		}
		if onPeerLeft != nil {
			onPeerLeft(msg.From)
		}

	case models.SignalTypeError:
		c.log.Warn("relay reported error", "error", msg.Error)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.log.Warn("websocket write failed", "error", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.closed:
			return
		}
	}
}
