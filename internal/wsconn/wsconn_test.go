package wsconn

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/azalio/gatewayd/internal/category"
	"github.com/azalio/gatewayd/internal/identity"
	"github.com/azalio/gatewayd/internal/notify"
	"github.com/azalio/gatewayd/internal/persistence"
	"github.com/azalio/gatewayd/internal/protocol"
	"github.com/azalio/gatewayd/internal/ratelimit"
	"github.com/azalio/gatewayd/internal/session"
	"github.com/azalio/gatewayd/internal/store"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	dir := t.TempDir()
	s, err := store.Open(filepath.Join(dir, "test.db"), zerolog.Nop())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	helper := persistence.NewFallbackHelper(s, zerolog.Nop())
	bus := notify.New(s, zerolog.Nop())
	mgr := session.New(s, helper, bus, zerolog.Nop(), session.Config{MaxSessions: 10, ScrollbackLines: 100})
	t.Cleanup(mgr.Shutdown)
	cats := category.New(s, zerolog.Nop())
	limiter := ratelimit.Default()

	deps := Deps{Sessions: mgr, Cats: cats, Bus: bus, Limiter: limiter, Hub: NewHub(), Resolver: identity.New(false, nil), Log: zerolog.Nop()}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		conn := New(ws, deps)
		conn.Run(r.Context(), r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) (*websocket.Conn, context.Context) {
	t.Helper()
	ctx := context.Background()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ws, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { ws.Close(websocket.StatusNormalClosure, "") })
	return ws, ctx
}

func sendFrame(t *testing.T, ctx context.Context, ws *websocket.Conn, f protocol.Frame) {
	t.Helper()
	raw, err := protocol.Encode(f)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if err := ws.Write(ctx, websocket.MessageText, raw); err != nil {
		t.Fatalf("Write: %v", err)
	}
}

func readFrame(t *testing.T, ctx context.Context, ws *websocket.Conn) protocol.Frame {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, data, err := ws.Read(readCtx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	f, err := protocol.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return *f
}

func TestPing_RepliesWithPong(t *testing.T) {
	srv := newTestServer(t)
	ws, ctx := dial(t, srv)

	sendFrame(t, ctx, ws, protocol.Frame{Type: protocol.TypePing, ID: "1"})
	f := readFrame(t, ctx, ws)
	if f.Type != protocol.TypePong || f.ID != "1" {
		t.Errorf("got %+v, want pong/1", f)
	}
}

func TestSessionCreateAndList(t *testing.T) {
	srv := newTestServer(t)
	ws, ctx := dial(t, srv)

	payload, _ := json.Marshal(map[string]any{"name": "shell", "shell": "/bin/sh", "cwd": "/tmp"})
	sendFrame(t, ctx, ws, protocol.Frame{Type: protocol.TypeSessionCreate, ID: "c1", Payload: payload})

	created := readFrame(t, ctx, ws)
	if created.Type != protocol.TypeSessionCreated {
		t.Fatalf("got %+v, want session.created", created)
	}

	// session.create auto-attaches, so a session.attached event follows.
	attached := readFrame(t, ctx, ws)
	if attached.Type != protocol.TypeSessionAttached {
		t.Fatalf("got %+v, want session.attached", attached)
	}

	sendFrame(t, ctx, ws, protocol.Frame{Type: protocol.TypeSessionList, ID: "l1"})
	// The attached shell's own output (its prompt) is fanned out as
	// terminal.data events and may arrive ahead of the list reply.
	list := readFrame(t, ctx, ws)
	for list.Type == protocol.TypeTerminalDataReply {
		list = readFrame(t, ctx, ws)
	}
	if list.Type != protocol.TypeSessionListReply {
		t.Fatalf("got %+v, want session.list", list)
	}
}

func TestSessionCreate_AutoAttachesAndAllowsTerminalData(t *testing.T) {
	srv := newTestServer(t)
	ws, ctx := dial(t, srv)

	payload, _ := json.Marshal(map[string]any{"name": "T", "cols": 80, "rows": 24})
	sendFrame(t, ctx, ws, protocol.Frame{Type: protocol.TypeSessionCreate, ID: "c1", Payload: payload})

	created := readFrame(t, ctx, ws)
	if created.Type != protocol.TypeSessionCreated {
		t.Fatalf("got %+v, want session.created", created)
	}
	var view sessionView
	if err := json.Unmarshal(created.Payload, &view); err != nil {
		t.Fatalf("unmarshal session view: %v", err)
	}

	attached := readFrame(t, ctx, ws)
	if attached.Type != protocol.TypeSessionAttached {
		t.Fatalf("got %+v, want session.attached", attached)
	}
	var attachedPayload struct {
		SessionID  string `json:"sessionId"`
		Scrollback string `json:"scrollback"`
	}
	if err := json.Unmarshal(attached.Payload, &attachedPayload); err != nil {
		t.Fatalf("unmarshal attached payload: %v", err)
	}
	if attachedPayload.SessionID != view.ID {
		t.Errorf("attached sessionId = %q, want %q", attachedPayload.SessionID, view.ID)
	}
	if attachedPayload.Scrollback != "" {
		t.Errorf("scrollback = %q, want empty for a freshly created session", attachedPayload.Scrollback)
	}

	dataPayload, _ := json.Marshal(map[string]any{"sessionId": view.ID, "data": "aGk="})
	sendFrame(t, ctx, ws, protocol.Frame{Type: protocol.TypeTerminalData, ID: "d1", Payload: dataPayload})

	readCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	_, data, err := ws.Read(readCtx)
	if err == nil {
		if f, decErr := protocol.Decode(data); decErr == nil && f.Type == protocol.TypeError {
			t.Fatalf("terminal.data after auto-attach produced an error frame: %+v", f)
		}
	}
}

func TestUnknownMessageType_RepliesWithError(t *testing.T) {
	srv := newTestServer(t)
	ws, ctx := dial(t, srv)

	sendFrame(t, ctx, ws, protocol.Frame{Type: "bogus.type", ID: "x"})
	f := readFrame(t, ctx, ws)
	if f.Type != protocol.TypeError {
		t.Errorf("got %+v, want error", f)
	}
}

func TestTerminalData_RequiresAttachment(t *testing.T) {
	srv := newTestServer(t)
	ws, ctx := dial(t, srv)

	payload, _ := json.Marshal(map[string]any{"sessionId": "not-attached", "data": "aGk="})
	sendFrame(t, ctx, ws, protocol.Frame{Type: protocol.TypeTerminalData, ID: "d1", Payload: payload})

	f := readFrame(t, ctx, ws)
	if f.Type != protocol.TypeError {
		t.Errorf("got %+v, want error for unattached terminal.data", f)
	}
}

func TestCategoryCreateAndList(t *testing.T) {
	srv := newTestServer(t)
	ws, ctx := dial(t, srv)

	payload, _ := json.Marshal(map[string]string{"name": "Work"})
	sendFrame(t, ctx, ws, protocol.Frame{Type: protocol.TypeCategoryCreate, ID: "cc1", Payload: payload})
	created := readFrame(t, ctx, ws)
	if created.Type != protocol.TypeCategoryCreated {
		t.Fatalf("got %+v, want category.created", created)
	}
}

// TestSessionTerminate_BroadcastsToOtherConnections covers the hub
// fan-out: a second connection that never touched the session still
// learns it was terminated.
func TestSessionTerminate_BroadcastsToOtherConnections(t *testing.T) {
	srv := newTestServer(t)
	wsA, ctxA := dial(t, srv)
	wsB, ctxB := dial(t, srv)

	payload, _ := json.Marshal(map[string]any{"name": "T", "cols": 80, "rows": 24})
	sendFrame(t, ctxA, wsA, protocol.Frame{Type: protocol.TypeSessionCreate, ID: "c1", Payload: payload})
	created := readFrame(t, ctxA, wsA)
	var view sessionView
	if err := json.Unmarshal(created.Payload, &view); err != nil {
		t.Fatalf("unmarshal session view: %v", err)
	}
	readFrame(t, ctxA, wsA) // session.attached from auto-attach

	termPayload, _ := json.Marshal(map[string]string{"sessionId": view.ID})
	sendFrame(t, ctxA, wsA, protocol.Frame{Type: protocol.TypeSessionTerminate, ID: "t1", Payload: termPayload})

	reply := readFrame(t, ctxA, wsA)
	if reply.Type != protocol.TypeSessionTerminated || reply.ID != "t1" {
		t.Fatalf("got %+v, want session.terminated reply to t1", reply)
	}

	broadcast := readFrame(t, ctxB, wsB)
	if broadcast.Type != protocol.TypeSessionTerminated {
		t.Fatalf("got %+v, want session.terminated broadcast on B", broadcast)
	}
	if broadcast.ID != "" {
		t.Errorf("broadcast frame ID = %q, want empty (event, not a reply)", broadcast.ID)
	}
}

func TestWebsocket_ClosesWithUnauthorizedOnFailedResolution(t *testing.T) {
	dir := t.TempDir()
	s, err := store.Open(filepath.Join(dir, "test.db"), zerolog.Nop())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	helper := persistence.NewFallbackHelper(s, zerolog.Nop())
	bus := notify.New(s, zerolog.Nop())
	mgr := session.New(s, helper, bus, zerolog.Nop(), session.Config{MaxSessions: 10, ScrollbackLines: 100})
	t.Cleanup(mgr.Shutdown)
	cats := category.New(s, zerolog.Nop())
	limiter := ratelimit.Default()

	deps := Deps{Sessions: mgr, Cats: cats, Bus: bus, Limiter: limiter, Hub: NewHub(), Resolver: identity.New(true, nil), Log: zerolog.Nop()}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		conn := New(ws, deps)
		conn.Run(r.Context(), r)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ws, _, err := websocket.Dial(context.Background(), url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer ws.Close(websocket.StatusInternalError, "")

	readCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _, err = ws.Read(readCtx)
	if websocket.CloseStatus(err) != 4001 {
		t.Fatalf("close status = %v (err %v), want 4001", websocket.CloseStatus(err), err)
	}
}
