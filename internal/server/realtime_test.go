package server

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/livedoc-hq/livedoc/backend/internal/auth"
	"github.com/livedoc-hq/livedoc/backend/internal/collab"
	"github.com/livedoc-hq/livedoc/backend/internal/documents"
)

const frameReadDeadline = 3 * time.Second

// readFrameOfType drains frames until one with the wanted type arrives.
// Presence updates interleave with other frames, so tests match on type
// instead of assuming a strict ordering.
func readFrameOfType(t *testing.T, conn *websocket.Conn, frameType string) serverFrame {
	t.Helper()
	deadline := time.Now().Add(frameReadDeadline)
	for {
		if err := conn.SetReadDeadline(deadline); err != nil {
			t.Fatalf("failed to set read deadline: %v", err)
		}
		var frame serverFrame
		if err := conn.ReadJSON(&frame); err != nil {
			t.Fatalf("failed to read %q frame: %v", frameType, err)
		}
		if frame.Type == frameType {
			return frame
		}
	}
}

func seedDocument(t *testing.T, env *testEnv, ownerID, content string) documents.Document {
	t.Helper()
	project, err := env.documents.CreateProject(context.Background(), ownerID, "Realtime", "")
	if err != nil {
		t.Fatalf("failed to create project: %v", err)
	}
	document, err := env.documents.CreateDocument(context.Background(), ownerID, project.ProjectID, "Shared Notes", documents.DocTypeNotes)
	if err != nil {
		t.Fatalf("failed to create document: %v", err)
	}
	if content != "" {
		document, err = env.documents.SaveContent(context.Background(), ownerID, document.DocumentID, ownerID, content)
		if err != nil {
			t.Fatalf("failed to seed content: %v", err)
		}
	}
	return document
}

func dialSession(t *testing.T, server *httptest.Server, documentID, token string) *websocket.Conn {
	t.Helper()
	target := "ws" + strings.TrimPrefix(server.URL, "http") + "/documents/" + documentID + "/session?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(target, nil)
	if err != nil {
		t.Fatalf("failed to dial session: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}

func TestSessionInitCarriesStoredContent(t *testing.T) {
	env := newTestEnv(t)
	document := seedDocument(t, env, "writer-1", "existing draft")
	server := httptest.NewServer(env.handler)
	t.Cleanup(server.Close)

	token := env.mintToken(t, auth.UserProfile{UserID: "writer-1", DisplayName: "Writer"})
	conn := dialSession(t, server, document.DocumentID, token)

	connection := readFrameOfType(t, conn, frameConnection)
	if connection.Status != "connected" {
		t.Fatalf("expected connected status, got %q", connection.Status)
	}
	initFrame := readFrameOfType(t, conn, frameInit)
	if initFrame.Content != "existing draft" {
		t.Fatalf("expected stored content in init frame, got %q", initFrame.Content)
	}
}

func TestSessionRejectsUnknownDocument(t *testing.T) {
	env := newTestEnv(t)
	server := httptest.NewServer(env.handler)
	t.Cleanup(server.Close)

	token := env.mintToken(t, auth.UserProfile{UserID: "writer-1"})
	target := "ws" + strings.TrimPrefix(server.URL, "http") + "/documents/missing/session?token=" + token
	if _, _, err := websocket.DefaultDialer.Dial(target, nil); err == nil {
		t.Fatal("expected dial to fail for unknown document")
	}
}

func TestContentChangePropagatesBetweenClients(t *testing.T) {
	env := newTestEnv(t)
	document := seedDocument(t, env, "writer-1", "")
	server := httptest.NewServer(env.handler)
	t.Cleanup(server.Close)

	tokenA := env.mintToken(t, auth.UserProfile{UserID: "writer-1", DisplayName: "Ada"})
	tokenB := env.mintToken(t, auth.UserProfile{UserID: "writer-2", DisplayName: "Grace"})

	connA := dialSession(t, server, document.DocumentID, tokenA)
	readFrameOfType(t, connA, frameInit)
	connB := dialSession(t, server, document.DocumentID, tokenB)
	readFrameOfType(t, connB, frameInit)

	if err := connA.WriteJSON(clientFrame{Type: frameContentChange, Content: "hello from ada"}); err != nil {
		t.Fatalf("failed to send edit: %v", err)
	}

	frame := readFrameOfType(t, connB, frameContentChange)
	if frame.Content != "hello from ada" {
		t.Fatalf("unexpected propagated content %q", frame.Content)
	}
	if frame.UserID != "writer-1" {
		t.Fatalf("expected sender writer-1, got %q", frame.UserID)
	}
}

func TestPresenceSyncListsBothCollaborators(t *testing.T) {
	env := newTestEnv(t)
	document := seedDocument(t, env, "writer-1", "")
	server := httptest.NewServer(env.handler)
	t.Cleanup(server.Close)

	tokenA := env.mintToken(t, auth.UserProfile{UserID: "writer-1", DisplayName: "Ada"})
	tokenB := env.mintToken(t, auth.UserProfile{UserID: "writer-2", DisplayName: "Grace"})

	connA := dialSession(t, server, document.DocumentID, tokenA)
	readFrameOfType(t, connA, frameInit)
	_ = dialSession(t, server, document.DocumentID, tokenB)

	deadline := time.Now().Add(frameReadDeadline)
	for {
		if time.Now().After(deadline) {
			t.Fatal("never observed a presence sync with both collaborators")
		}
		frame := readFrameOfType(t, connA, collab.EventPresenceSync)
		if len(frame.Collaborators) != 2 {
			continue
		}
		seen := map[string]string{}
		for _, collaborator := range frame.Collaborators {
			seen[collaborator.UserID] = collaborator.DisplayName
		}
		if seen["writer-1"] != "Ada" || seen["writer-2"] != "Grace" {
			t.Fatalf("unexpected collaborators %+v", frame.Collaborators)
		}
		return
	}
}

func TestCommentEchoStaysLocal(t *testing.T) {
	env := newTestEnv(t)
	document := seedDocument(t, env, "writer-1", "")
	server := httptest.NewServer(env.handler)
	t.Cleanup(server.Close)

	tokenA := env.mintToken(t, auth.UserProfile{UserID: "writer-1", DisplayName: "Ada"})
	tokenB := env.mintToken(t, auth.UserProfile{UserID: "writer-2", DisplayName: "Grace"})

	connA := dialSession(t, server, document.DocumentID, tokenA)
	readFrameOfType(t, connA, frameInit)
	connB := dialSession(t, server, document.DocumentID, tokenB)
	readFrameOfType(t, connB, frameInit)

	if err := connA.WriteJSON(clientFrame{Type: frameAddComment, Text: "check this heading", Position: 4}); err != nil {
		t.Fatalf("failed to send comment: %v", err)
	}
	echo := readFrameOfType(t, connA, frameComment)
	if echo.Comment == nil || echo.Comment.Text != "check this heading" {
		t.Fatalf("unexpected comment echo %+v", echo.Comment)
	}

	// an edit from B arrives, while the comment never does
	if err := connB.WriteJSON(clientFrame{Type: frameContentChange, Content: "marker"}); err != nil {
		t.Fatalf("failed to send marker edit: %v", err)
	}
	if err := connA.WriteJSON(clientFrame{Type: frameContentChange, Content: "marker back"}); err != nil {
		t.Fatalf("failed to send return edit: %v", err)
	}
	frame := readFrameOfType(t, connB, frameContentChange)
	if frame.Comment != nil {
		t.Fatalf("comment leaked to another client: %+v", frame.Comment)
	}
}

func TestSaveFramePersistsContent(t *testing.T) {
	env := newTestEnv(t)
	document := seedDocument(t, env, "writer-1", "")
	server := httptest.NewServer(env.handler)
	t.Cleanup(server.Close)

	token := env.mintToken(t, auth.UserProfile{UserID: "writer-2", DisplayName: "Grace"})
	conn := dialSession(t, server, document.DocumentID, token)
	readFrameOfType(t, conn, frameInit)

	if err := conn.WriteJSON(clientFrame{Type: frameContentChange, Content: "persisted body"}); err != nil {
		t.Fatalf("failed to send edit: %v", err)
	}
	if err := conn.WriteJSON(clientFrame{Type: frameSave}); err != nil {
		t.Fatalf("failed to send save: %v", err)
	}

	deadline := time.Now().Add(frameReadDeadline)
	for {
		stored, err := env.documents.GetDocumentByID(context.Background(), document.DocumentID)
		if err != nil {
			t.Fatalf("failed to load document: %v", err)
		}
		if stored.Content == "persisted body" {
			if stored.LastEditorID != "writer-2" {
				t.Fatalf("expected last editor writer-2, got %q", stored.LastEditorID)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("save never persisted, content is %q", stored.Content)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
