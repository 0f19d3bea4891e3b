// Package collab implements the collaborative document session: presence,
// full-content broadcast, cursor broadcast, and local comments for one open
// document. Conflict handling is deliberately last-write-wins — the most
// recently received content broadcast replaces the local replica in its
// entirety, with no merge.
package collab

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/livedoc-hq/livedoc/backend/internal/channel"
	"go.uber.org/zap"
)

// Broadcast event names on a document channel.
const (
	EventContentChange = "content-change"
	EventCursorMove    = "cursor-move"
	EventPresenceSync  = channel.EventPresenceSync
)

var (
	errMissingDocumentID = errors.New("collab: document id required")
	errMissingUserID     = errors.New("collab: user id required")
	errMissingChannels   = errors.New("collab: channel hub required")
	errSessionOpen       = errors.New("collab: session already open")
	errSessionClosed     = errors.New("collab: session closed")
	// ErrNoSaveFunc indicates Save was called without a persistence callback.
	ErrNoSaveFunc = errors.New("collab: no save callback configured")
)

type contentChangePayload struct {
	Content string `json:"content"`
	UserID  string `json:"user_id"`
}

type cursorMovePayload struct {
	Position int    `json:"position"`
	UserID   string `json:"user_id"`
}

// SessionEvent describes a state change the session applied in response to a
// channel event, for observers such as the websocket transport.
type SessionEvent struct {
	Type          string         `json:"type"`
	Content       string         `json:"content,omitempty"`
	UserID        string         `json:"user_id,omitempty"`
	Position      int            `json:"position,omitempty"`
	Collaborators []Collaborator `json:"collaborators,omitempty"`
}

// SaveFunc persists the supplied content. Success and failure semantics
// belong entirely to the callback.
type SaveFunc func(ctx context.Context, content string) error

// SessionConfig describes a session's dependencies.
type SessionConfig struct {
	DocumentID     string
	User           Identity
	InitialContent string
	Channels       *channel.Hub
	SaveFunc       SaveFunc
	Observer       func(SessionEvent)
	Clock          func() time.Time
	Logger         *zap.Logger
}

// Session coordinates one participant's view of a shared document. All event
// handling runs on the channel member's delivery goroutine; a mutex guards
// local state against the caller's goroutine.
type Session struct {
	documentID string
	user       Identity
	channels   *channel.Hub
	saveFunc   SaveFunc
	observer   func(SessionEvent)
	clock      func() time.Time
	logger     *zap.Logger

	mu            sync.Mutex
	member        *channel.Member
	connected     bool
	closed        bool
	content       string
	collaborators []Collaborator
	comments      []Comment
}

// NewSession validates the configuration and returns an unopened session.
func NewSession(cfg SessionConfig) (*Session, error) {
	if strings.TrimSpace(cfg.DocumentID) == "" {
		return nil, errMissingDocumentID
	}
	if strings.TrimSpace(cfg.User.UserID) == "" {
		return nil, errMissingUserID
	}
	if cfg.Channels == nil {
		return nil, errMissingChannels
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		documentID: cfg.DocumentID,
		user:       cfg.User,
		channels:   cfg.Channels,
		saveFunc:   cfg.SaveFunc,
		observer:   cfg.Observer,
		clock:      clock,
		logger:     logger,
		content:    cfg.InitialContent,
	}, nil
}

// ChannelName derives the globally unique channel for a document.
func ChannelName(documentID string) string {
	return "doc:" + documentID
}

// Open joins the document channel, registers the event handlers, and then
// announces the local user's presence. The session reports connected only
// after both steps succeed; a join failure leaves it disconnected for good —
// there is no retry.
func (s *Session) Open(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errSessionClosed
	}
	if s.member != nil {
		return errSessionOpen
	}

	member, err := s.channels.Join(ChannelName(s.documentID), s.handleEvent)
	if err != nil {
		s.logger.Warn("channel join failed",
			zap.String("document_id", s.documentID), zap.Error(err))
		return err
	}
	s.member = member

	if err := member.Track(channel.PresenceState{
		UserID:         s.user.UserID,
		UserName:       s.user.DisplayName,
		AvatarURL:      s.user.AvatarURL,
		CursorPosition: 0,
		IsEditing:      false,
	}); err != nil {
		member.Leave()
		s.member = nil
		return err
	}

	s.connected = true
	return nil
}

// EditContent replaces the local content immediately and, if the session is
// open, broadcasts the full new content tagged with the local identity.
// Every call broadcasts the complete string: no batching, no diffing. The
// broadcast is fire-and-forget.
func (s *Session) EditContent(newContent string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.content = newContent
	member := s.member
	connected := s.connected
	s.mu.Unlock()

	if !connected || member == nil {
		return
	}
	payload, err := json.Marshal(contentChangePayload{Content: newContent, UserID: s.user.UserID})
	if err != nil {
		return
	}
	_ = member.Broadcast(EventContentChange, payload)
}

// MoveCursor broadcasts the raw offset tagged with the local identity. Local
// state is untouched; only remote participants record the position.
func (s *Session) MoveCursor(offset int) {
	s.mu.Lock()
	member := s.member
	connected := s.connected && !s.closed
	s.mu.Unlock()

	if !connected || member == nil {
		return
	}
	payload, err := json.Marshal(cursorMovePayload{Position: offset, UserID: s.user.UserID})
	if err != nil {
		return
	}
	_ = member.Broadcast(EventCursorMove, payload)
}

// AddComment appends a comment anchored at the given offset. Empty or
// whitespace-only text and a negative (unselected) anchor are rejected.
// Comments stay local to this session: they are not broadcast to other
// participants and not persisted.
func (s *Session) AddComment(text string, anchorOffset int) (Comment, bool) {
	if strings.TrimSpace(text) == "" {
		return Comment{}, false
	}
	if anchorOffset < 0 {
		return Comment{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Comment{}, false
	}

	now := s.clock()
	comment := Comment{
		ID:               commentID(now),
		AuthorID:         s.user.UserID,
		AuthorName:       s.user.DisplayName,
		Text:             text,
		AnchorOffset:     anchorOffset,
		CreatedAtSeconds: now.Unix(),
	}
	s.comments = append(s.comments, comment)
	return comment, true
}

// Save hands the current content to the configured persistence callback.
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	content := s.content
	saveFunc := s.saveFunc
	s.mu.Unlock()

	if saveFunc == nil {
		return ErrNoSaveFunc
	}
	return saveFunc(ctx, content)
}

// Close leaves the channel. Events that arrive afterwards mutate nothing, and
// the collaborator list is stale from the caller's point of view.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.connected = false
	member := s.member
	s.member = nil
	s.mu.Unlock()

	if member != nil {
		member.Leave()
	}
}

// Content returns the local content replica.
func (s *Session) Content() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.content
}

// Connected reports whether the channel subscription is live.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Collaborators returns a copy of the current collaborator set.
func (s *Session) Collaborators() []Collaborator {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Collaborator(nil), s.collaborators...)
}

// Comments returns a copy of the session's comments.
func (s *Session) Comments() []Comment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Comment(nil), s.comments...)
}

// DocumentID returns the document this session is attached to.
func (s *Session) DocumentID() string {
	return s.documentID
}

func (s *Session) handleEvent(event channel.Event) {
	switch event.Type {
	case channel.EventPresenceSync:
		s.handlePresenceSync(event.Presence)
	case EventContentChange:
		s.handleContentChange(event.Payload)
	case EventCursorMove:
		s.handleCursorMove(event.Payload)
	}
}

// handlePresenceSync replaces the collaborator set wholesale with whatever
// the channel reports, assigning colors by position in the reported order.
func (s *Session) handlePresenceSync(presence []channel.PresenceState) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	collaborators := make([]Collaborator, 0, len(presence))
	for index, state := range presence {
		collaborators = append(collaborators, Collaborator{
			UserID:         state.UserID,
			DisplayName:    state.UserName,
			AvatarURL:      state.AvatarURL,
			CursorPosition: state.CursorPosition,
			IsEditing:      state.IsEditing,
			Color:          colorForIndex(index),
		})
	}
	s.collaborators = collaborators
	observer := s.observer
	snapshot := append([]Collaborator(nil), collaborators...)
	s.mu.Unlock()

	if observer != nil {
		observer(SessionEvent{Type: EventPresenceSync, Collaborators: snapshot})
	}
}

// handleContentChange overwrites the local replica with the received payload
// verbatim when it came from another participant. Last write observed wins.
func (s *Session) handleContentChange(raw []byte) {
	var payload contentChangePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		s.logger.Debug("discarding malformed content broadcast",
			zap.String("document_id", s.documentID), zap.Error(err))
		return
	}
	if payload.UserID == s.user.UserID {
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.content = payload.Content
	observer := s.observer
	s.mu.Unlock()

	if observer != nil {
		observer(SessionEvent{Type: EventContentChange, Content: payload.Content, UserID: payload.UserID})
	}
}

// handleCursorMove updates only the sending collaborator's recorded offset.
// The offset is clamped at zero but never validated against content length.
func (s *Session) handleCursorMove(raw []byte) {
	var payload cursorMovePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return
	}
	if payload.UserID == s.user.UserID {
		return
	}
	position := payload.Position
	if position < 0 {
		position = 0
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	for i := range s.collaborators {
		if s.collaborators[i].UserID == payload.UserID {
			s.collaborators[i].CursorPosition = position
			break
		}
	}
	observer := s.observer
	s.mu.Unlock()

	if observer != nil {
		observer(SessionEvent{Type: EventCursorMove, UserID: payload.UserID, Position: position})
	}
}
