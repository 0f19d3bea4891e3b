package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/livedoc-hq/livedoc/backend/internal/collab"
	"go.uber.org/zap"
)

const outboundFrameBuffer = 32

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Client frame types on a document session socket.
const (
	frameContentChange = "content-change"
	frameCursorMove    = "cursor-move"
	frameAddComment    = "add-comment"
	frameSave          = "save"
)

// Server frame types, in addition to echoes of the session events.
const (
	frameConnection = "connection"
	frameInit       = "init"
	frameComment    = "comment"
	frameError      = "error"
)

type clientFrame struct {
	Type     string `json:"type"`
	Content  string `json:"content,omitempty"`
	Position int    `json:"position,omitempty"`
	Text     string `json:"text,omitempty"`
}

type serverFrame struct {
	Type          string                `json:"type"`
	Status        string                `json:"status,omitempty"`
	Content       string                `json:"content,omitempty"`
	UserID        string                `json:"user_id,omitempty"`
	Position      int                   `json:"position,omitempty"`
	Collaborators []collab.Collaborator `json:"collaborators,omitempty"`
	Comment       *collab.Comment       `json:"comment,omitempty"`
	Error         string                `json:"error,omitempty"`
}

// handleDocumentSession upgrades the request and runs one collaborative
// session for the connection. The client drives edits, cursor moves,
// comments, and saves; presence and remote edits stream back as frames.
func (h *httpHandler) handleDocumentSession(c *gin.Context) {
	claims, ok := h.sessionClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	identity, err := h.users.ResolveProfile(claims)
	if err != nil {
		h.logger.Warn("failed to resolve profile", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	documentID := c.Param("id")
	document, err := h.documents.GetDocumentByID(c.Request.Context(), documentID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	outbound := make(chan serverFrame, outboundFrameBuffer)
	pushFrame := func(frame serverFrame) {
		select {
		case outbound <- frame:
		default:
			// a stalled socket loses frames rather than blocking the channel
		}
	}

	displayName := identity.DisplayName
	if displayName == "" {
		displayName = identity.Email
	}

	session, err := collab.NewSession(collab.SessionConfig{
		DocumentID:     document.DocumentID,
		User:           collab.Identity{UserID: identity.UserID, DisplayName: displayName, AvatarURL: identity.AvatarURL},
		InitialContent: document.Content,
		Channels:       h.channels,
		SaveFunc: func(ctx context.Context, content string) error {
			_, err := h.documents.SaveContentByID(ctx, document.DocumentID, identity.UserID, content)
			return err
		},
		Observer: func(event collab.SessionEvent) {
			pushFrame(serverFrame{
				Type:          event.Type,
				Content:       event.Content,
				UserID:        event.UserID,
				Position:      event.Position,
				Collaborators: event.Collaborators,
			})
		},
		Logger: h.logger,
	})
	if err != nil {
		h.logger.Error("failed to build session", zap.Error(err))
		return
	}

	if err := session.Open(c.Request.Context()); err != nil {
		// no retry: the socket reports disconnected and closes
		conn.WriteJSON(serverFrame{Type: frameConnection, Status: "disconnected"}) //nolint:errcheck
		return
	}

	pushFrame(serverFrame{Type: frameConnection, Status: "connected"})
	pushFrame(serverFrame{Type: frameInit, Content: session.Content(), Collaborators: session.Collaborators()})

	done := make(chan struct{})
	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		for {
			select {
			case frame := <-outbound:
				if err := conn.WriteJSON(frame); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	h.readSessionFrames(c.Request.Context(), conn, session, pushFrame)

	// leave the channel before stopping the writer so late observer events
	// land on a live (if soon abandoned) buffer instead of a closed one
	session.Close()
	close(done)
	<-writeDone
}

func (h *httpHandler) readSessionFrames(ctx context.Context, conn *websocket.Conn, session *collab.Session, pushFrame func(serverFrame)) {
	for {
		var frame clientFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}
		switch frame.Type {
		case frameContentChange:
			session.EditContent(frame.Content)
		case frameCursorMove:
			session.MoveCursor(frame.Position)
		case frameAddComment:
			if comment, ok := session.AddComment(frame.Text, frame.Position); ok {
				pushFrame(serverFrame{Type: frameComment, Comment: &comment})
			}
		case frameSave:
			if err := session.Save(ctx); err != nil {
				// the edit survives in memory; the client shows a transient notice
				pushFrame(serverFrame{Type: frameError, Error: "save_failed"})
			}
		default:
			h.logger.Debug("ignoring unknown session frame", zap.String("type", frame.Type))
		}
	}
}
