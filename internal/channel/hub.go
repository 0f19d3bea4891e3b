// Package channel hosts the realtime pub/sub service the collaboration layer
// subscribes to: named channels with presence tracking and fire-and-forget
// broadcast. Delivery is at-most-once per subscriber with no ordering
// guarantee across senders.
package channel

import (
	"errors"
	"sync"

	"go.uber.org/zap"
)

// EventPresenceSync is emitted by the hub whenever a channel's presence set changes.
const EventPresenceSync = "presence-sync"

const memberQueueSize = 64

// ErrMemberLeft indicates an operation on a member that already left its channel.
var ErrMemberLeft = errors.New("channel: member has left")

// PresenceState is the presence payload a member announces into its channel.
type PresenceState struct {
	UserID         string `json:"user_id"`
	UserName       string `json:"user_name"`
	AvatarURL      string `json:"avatar_url,omitempty"`
	CursorPosition int    `json:"cursor_position"`
	IsEditing      bool   `json:"is_editing"`
}

// Event is delivered to channel subscribers. Presence is populated for
// presence-sync events, in track order; Payload carries broadcast bytes.
type Event struct {
	Type     string
	Payload  []byte
	Presence []PresenceState
}

// Handler consumes events on a member's delivery goroutine.
type Handler func(Event)

// Relay forwards broadcasts to other nodes. Implemented by RedisBridge.
type Relay interface {
	Publish(channelName, eventType string, payload []byte) error
}

// Hub is the in-process channel registry. One hub serves every document
// channel of the node; channels exist while they have members.
type Hub struct {
	mu       sync.RWMutex
	channels map[string]*channelState
	relay    Relay
	logger   *zap.Logger
	nextID   int64
}

type channelState struct {
	members    map[int64]*Member
	trackOrder []int64
}

// Member is one subscription to a named channel.
type Member struct {
	hub     *Hub
	channel string
	id      int64
	handler Handler
	queue   chan Event

	mu       sync.Mutex
	left     bool
	presence *PresenceState
}

// NewHub constructs an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		channels: make(map[string]*channelState),
		logger:   logger,
	}
}

// SetRelay attaches a cross-node relay. Must be called before members join.
func (h *Hub) SetRelay(relay Relay) {
	h.mu.Lock()
	h.relay = relay
	h.mu.Unlock()
}

// Join subscribes a handler to the named channel and starts its delivery
// goroutine. The member is invisible to presence until it calls Track.
func (h *Hub) Join(channelName string, handler Handler) (*Member, error) {
	if channelName == "" {
		return nil, errors.New("channel: name required")
	}
	if handler == nil {
		return nil, errors.New("channel: handler required")
	}

	h.mu.Lock()
	h.nextID++
	member := &Member{
		hub:     h,
		channel: channelName,
		id:      h.nextID,
		handler: handler,
		queue:   make(chan Event, memberQueueSize),
	}
	state, ok := h.channels[channelName]
	if !ok {
		state = &channelState{members: make(map[int64]*Member)}
		h.channels[channelName] = state
	}
	state.members[member.id] = member
	h.mu.Unlock()

	go member.pump()
	return member, nil
}

// Track announces or updates the member's presence and emits a presence-sync
// to every member of the channel.
func (m *Member) Track(presence PresenceState) error {
	m.mu.Lock()
	if m.left {
		m.mu.Unlock()
		return ErrMemberLeft
	}
	first := m.presence == nil
	copied := presence
	m.presence = &copied
	m.mu.Unlock()

	m.hub.presenceChanged(m.channel, m.id, first)
	return nil
}

// Broadcast fans a payload out to every member of the channel, the sender
// included; receivers filter by sender identity. Delivery is best effort.
func (m *Member) Broadcast(eventType string, payload []byte) error {
	m.mu.Lock()
	if m.left {
		m.mu.Unlock()
		return ErrMemberLeft
	}
	m.mu.Unlock()

	m.hub.fanOut(m.channel, Event{Type: eventType, Payload: payload})

	m.hub.mu.RLock()
	relay := m.hub.relay
	m.hub.mu.RUnlock()
	if relay != nil {
		if err := relay.Publish(m.channel, eventType, payload); err != nil {
			m.hub.logger.Warn("channel relay publish failed",
				zap.String("channel", m.channel), zap.Error(err))
		}
	}
	return nil
}

// Leave removes the member from its channel. A final presence-sync is emitted
// if the member had tracked presence. In-flight events may still be delivered
// to other members; the leaver's queue is drained and closed.
func (m *Member) Leave() {
	m.mu.Lock()
	if m.left {
		m.mu.Unlock()
		return
	}
	m.left = true
	tracked := m.presence != nil
	m.presence = nil
	m.mu.Unlock()

	m.hub.removeMember(m.channel, m.id, tracked)
	close(m.queue)
}

func (m *Member) pump() {
	for event := range m.queue {
		m.handler(event)
	}
}

func (m *Member) deliver(event Event) {
	m.mu.Lock()
	left := m.left
	m.mu.Unlock()
	if left {
		return
	}
	select {
	case m.queue <- event:
	default:
		// at-most-once: a slow subscriber loses events rather than
		// backpressuring the channel
		m.hub.logger.Debug("channel event dropped",
			zap.String("channel", m.channel), zap.String("event", event.Type))
	}
}

// InjectRemote delivers a broadcast that originated on another node to local
// members without re-relaying it.
func (h *Hub) InjectRemote(channelName, eventType string, payload []byte) {
	h.fanOut(channelName, Event{Type: eventType, Payload: payload})
}

func (h *Hub) fanOut(channelName string, event Event) {
	h.mu.RLock()
	state := h.channels[channelName]
	if state == nil {
		h.mu.RUnlock()
		return
	}
	targets := make([]*Member, 0, len(state.members))
	for _, member := range state.members {
		targets = append(targets, member)
	}
	h.mu.RUnlock()

	for _, member := range targets {
		member.deliver(event)
	}
}

func (h *Hub) presenceChanged(channelName string, memberID int64, firstTrack bool) {
	h.mu.Lock()
	state := h.channels[channelName]
	if state == nil {
		h.mu.Unlock()
		return
	}
	if firstTrack {
		state.trackOrder = append(state.trackOrder, memberID)
	}
	snapshot, targets := h.presenceSnapshotLocked(state)
	h.mu.Unlock()

	event := Event{Type: EventPresenceSync, Presence: snapshot}
	for _, member := range targets {
		member.deliver(event)
	}
}

func (h *Hub) removeMember(channelName string, memberID int64, tracked bool) {
	h.mu.Lock()
	state := h.channels[channelName]
	if state == nil {
		h.mu.Unlock()
		return
	}
	delete(state.members, memberID)
	for i, id := range state.trackOrder {
		if id == memberID {
			state.trackOrder = append(state.trackOrder[:i], state.trackOrder[i+1:]...)
			break
		}
	}
	if len(state.members) == 0 {
		delete(h.channels, channelName)
		h.mu.Unlock()
		return
	}
	var snapshot []PresenceState
	var targets []*Member
	if tracked {
		snapshot, targets = h.presenceSnapshotLocked(state)
	}
	h.mu.Unlock()

	if tracked {
		event := Event{Type: EventPresenceSync, Presence: snapshot}
		for _, member := range targets {
			member.deliver(event)
		}
	}
}

// presenceSnapshotLocked collects tracked presence in track order plus the
// full member list. Callers hold h.mu.
func (h *Hub) presenceSnapshotLocked(state *channelState) ([]PresenceState, []*Member) {
	snapshot := make([]PresenceState, 0, len(state.trackOrder))
	for _, id := range state.trackOrder {
		member := state.members[id]
		if member == nil {
			continue
		}
		member.mu.Lock()
		if member.presence != nil {
			snapshot = append(snapshot, *member.presence)
		}
		member.mu.Unlock()
	}
	targets := make([]*Member, 0, len(state.members))
	for _, member := range state.members {
		targets = append(targets, member)
	}
	return snapshot, targets
}
