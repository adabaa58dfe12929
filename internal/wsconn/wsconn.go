// Package wsconn implements the Connection Handler of spec §4.H: one
// instance per accepted websocket, running the
// rate-limit -> codec-parse -> dispatch pipeline and fanning session
// output back out to the client.
package wsconn

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/azalio/gatewayd/internal/apperr"
	"github.com/azalio/gatewayd/internal/category"
	"github.com/azalio/gatewayd/internal/identity"
	"github.com/azalio/gatewayd/internal/notify"
	"github.com/azalio/gatewayd/internal/protocol"
	"github.com/azalio/gatewayd/internal/ratelimit"
	"github.com/azalio/gatewayd/internal/session"
)

// closeUnauthorized is the app-defined websocket close status for a
// Pending connection whose identity resolution failed (spec §6 close
// codes: 4001 Unauthorized).
const closeUnauthorized websocket.StatusCode = 4001

// Hub tracks every open Conn so session and category handlers can fan
// their result out to every other connected client, per spec §4.H's
// broadcast requirement. Constructed once by httpapi.New and
// shared across every accepted websocket, mirroring the Bus/Manager
// shared-collaborator pattern elsewhere in this tree.
type Hub struct {
	mu    sync.Mutex
	conns map[string]*Conn
}

// NewHub builds an empty connection registry.
func NewHub() *Hub {
	return &Hub{conns: make(map[string]*Conn)}
}

func (h *Hub) register(c *Conn) {
	h.mu.Lock()
	h.conns[c.clientID] = c
	h.mu.Unlock()
}

func (h *Hub) unregister(c *Conn) {
	h.mu.Lock()
	delete(h.conns, c.clientID)
	h.mu.Unlock()
}

// Broadcast enqueues f on every registered connection except the one
// whose clientID equals excludeClientID (pass "" to exclude none).
func (h *Hub) Broadcast(f protocol.Frame, excludeClientID string) {
	h.mu.Lock()
	targets := make([]*Conn, 0, len(h.conns))
	for id, c := range h.conns {
		if id == excludeClientID {
			continue
		}
		targets = append(targets, c)
	}
	h.mu.Unlock()

	for _, c := range targets {
		c.enqueue(f)
	}
}

// State is the Connection Handler's lifecycle state (spec §4.H table).
type State int

const (
	StatePending State = iota
	StateOpen
	StateAttached
	StateClosed
)

// outboundQueueSize bounds each connection's fan-out channel; on
// overflow the oldest queued frame is dropped rather than blocking the
// session's data callback or disconnecting a slow client (spec §9
// design note: terminal.data loss is recoverable from scrollback).
const outboundQueueSize = 256

// Conn drives one accepted websocket end to end.
type Conn struct {
	ws        *websocket.Conn
	clientID  string
	principal identity.Principal
	resolver  identity.Resolver
	log       zerolog.Logger

	sessions *session.Manager
	cats     *category.Service
	bus      *notify.Bus
	limiter  *ratelimit.Limiter
	hub      *Hub

	state State

	attachedID string // current session.attach target, "" if none
	dataSub    session.Subscription
	exitSub    session.Subscription
	notifySub  notify.Subscription

	outbound chan protocol.Frame
	done     chan struct{}
}

// Deps bundles the collaborators a Conn needs, injected rather than
// looked up globally.
type Deps struct {
	Sessions *session.Manager
	Cats     *category.Service
	Bus      *notify.Bus
	Limiter  *ratelimit.Limiter
	Hub      *Hub
	Resolver identity.Resolver
	Log      zerolog.Logger
}

// New wraps an already-accepted websocket. The connection starts in
// StatePending: no principal is resolved yet, since that happens
// inside Run per spec §4.H so a failed resolution can close with 4001
// instead of refusing the upgrade outright.
func New(ws *websocket.Conn, deps Deps) *Conn {
	clientID := uuid.NewString()
	return &Conn{
		ws:       ws,
		clientID: clientID,
		resolver: deps.Resolver,
		log:      deps.Log.With().Str("component", "wsconn").Str("clientId", clientID).Logger(),
		sessions: deps.Sessions,
		cats:     deps.Cats,
		bus:      deps.Bus,
		limiter:  deps.Limiter,
		hub:      deps.Hub,
		state:    StatePending,
		outbound: make(chan protocol.Frame, outboundQueueSize),
		done:     make(chan struct{}),
	}
}

// Run drives the connection until it closes, per spec §4.H's
// Pending -> Open -> [Attached] -> Closed lifecycle. It resolves r's
// principal first, closing with 4001 on failure without ever leaving
// Pending. It blocks until the connection ends.
func (c *Conn) Run(ctx context.Context, r *http.Request) {
	p, err := c.resolver.Resolve(r)
	if err != nil {
		c.log.Debug().Err(err).Msg("wsconn: identity resolution failed, closing")
		c.ws.Close(closeUnauthorized, "unauthorized")
		return
	}
	c.principal = p
	c.log = c.log.With().Str("userId", p.UserID).Logger()

	c.state = StateOpen
	go c.writeLoop(ctx)

	if c.hub != nil {
		c.hub.register(c)
	}

	c.notifySub = c.bus.Subscribe(c.principal.UserID, c.onNotification)
	defer c.notifySub.Cancel()

	defer c.cleanup()

	for {
		typ, data, err := c.ws.Read(ctx)
		if err != nil {
			c.log.Debug().Err(err).Msg("wsconn: read ended")
			return
		}
		if typ != websocket.MessageText {
			continue
		}
		c.handleRaw(data)
	}
}

func (c *Conn) cleanup() {
	c.state = StateClosed
	c.limiter.Remove(c.clientID)
	if c.attachedID != "" {
		c.detach()
	}
	if c.hub != nil {
		c.hub.unregister(c)
	}
	close(c.done)
}

// writeLoop drains the outbound queue and writes frames to the
// websocket. Running on its own goroutine keeps a slow client from
// blocking the session's data callback.
func (c *Conn) writeLoop(ctx context.Context) {
	for {
		select {
		case <-c.done:
			return
		case f := <-c.outbound:
			raw, err := protocol.Encode(f)
			if err != nil {
				c.log.Warn().Err(err).Msg("wsconn: encode outbound frame failed")
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err = c.ws.Write(writeCtx, websocket.MessageText, raw)
			cancel()
			if err != nil {
				c.log.Debug().Err(err).Msg("wsconn: write failed, closing")
				c.ws.Close(websocket.StatusInternalError, "write failed")
				return
			}
		}
	}
}

// enqueue drops the oldest queued frame on overflow rather than
// blocking, per the bounded-channel-with-drop-oldest policy.
func (c *Conn) enqueue(f protocol.Frame) {
	select {
	case c.outbound <- f:
		return
	default:
	}
	select {
	case <-c.outbound:
	default:
	}
	select {
	case c.outbound <- f:
	default:
	}
}

func (c *Conn) handleRaw(data []byte) {
	if !c.limiter.TryAcquire(c.clientID) {
		c.sendError("", "Rate limit exceeded")
		return
	}
	f, err := protocol.Decode(data)
	if err != nil {
		c.sendError("", err.Error())
		return
	}
	c.dispatch(*f)
}

func (c *Conn) dispatch(f protocol.Frame) {
	switch f.Type {
	case protocol.TypePing:
		c.enqueue(protocol.Frame{Type: protocol.TypePong, ID: f.ID})
	case protocol.TypeSessionList:
		c.handleSessionList(f)
	case protocol.TypeSessionCreate:
		c.handleSessionCreate(f)
	case protocol.TypeSessionAttach:
		c.handleSessionAttach(f)
	case protocol.TypeSessionDetach:
		c.handleSessionDetach(f)
	case protocol.TypeSessionTerminate:
		c.handleSessionTerminate(f)
	case protocol.TypeSessionDelete:
		c.handleSessionDelete(f)
	case protocol.TypeSessionRename:
		c.handleSessionRename(f)
	case protocol.TypeSessionMove:
		c.handleSessionMove(f)
	case protocol.TypeTerminalData:
		c.handleTerminalData(f)
	case protocol.TypeTerminalResize:
		c.handleTerminalResize(f)
	case protocol.TypeCategoryList:
		c.handleCategoryList(f)
	case protocol.TypeCategoryCreate:
		c.handleCategoryCreate(f)
	case protocol.TypeCategoryRename:
		c.handleCategoryRename(f)
	case protocol.TypeCategoryDelete:
		c.handleCategoryDelete(f)
	case protocol.TypeCategoryReorder:
		c.handleCategoryReorder(f)
	case protocol.TypeCategoryToggle:
		c.handleCategoryToggle(f)
	case protocol.TypeNotificationPreferencesGet:
		c.handlePreferencesGet(f)
	case protocol.TypeNotificationPreferencesSet:
		c.handlePreferencesSet(f)
	case protocol.TypeNotificationDismiss:
		c.handleNotificationDismiss(f)
	default:
		c.sendError(f.ID, "unknown message type")
	}
}

func (c *Conn) sendError(id, msg string) {
	c.enqueue(protocol.Frame{Type: protocol.TypeError, ID: id, Payload: mustMarshal(protocol.ErrorPayload{Message: msg})})
}

func (c *Conn) sendErr(id string, err error) {
	c.log.Debug().Err(err).Str("id", id).Msg("wsconn: request failed")
	c.sendError(id, err.Error())
}

// sendSessionErr reports a session-scoped operation failure as
// session.error rather than the generic error frame, so clients can
// tell a quota or validation failure on a session request apart from a
// transport-level protocol error.
func (c *Conn) sendSessionErr(id string, err error) {
	c.log.Debug().Err(err).Str("id", id).Msg("wsconn: session request failed")
	c.enqueue(protocol.Frame{Type: protocol.TypeSessionError, ID: id, Payload: mustMarshal(protocol.ErrorPayload{Message: err.Error()})})
}

func mustMarshal(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

func decodePayload(f protocol.Frame, v any) error {
	if len(f.Payload) == 0 {
		return apperr.InvalidInput("missing payload")
	}
	if err := json.Unmarshal(f.Payload, v); err != nil {
		return apperr.InvalidInput("invalid payload: %v", err)
	}
	return nil
}

// --- session handlers ---

type sessionListReply struct {
	Sessions []sessionView `json:"sessions"`
}

type sessionView struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Status     string  `json:"status"`
	CategoryID *string `json:"categoryId,omitempty"`
	SortOrder  int     `json:"sortOrder"`
	Attachable bool    `json:"attachable"`
}

func toView(info session.Info) sessionView {
	return sessionView{
		ID: info.ID, Name: info.Name, Status: info.Status,
		CategoryID: info.CategoryID, SortOrder: info.SortOrder,
		Attachable: info.Attachable,
	}
}

func (c *Conn) handleSessionList(f protocol.Frame) {
	list, err := c.sessions.List()
	if err != nil {
		c.sendErr(f.ID, err)
		return
	}
	views := make([]sessionView, 0, len(list))
	for _, s := range list {
		views = append(views, toView(s))
	}
	reply, _ := protocol.Reply(f.ID, protocol.TypeSessionListReply, sessionListReply{Sessions: views})
	c.enqueue(reply)
}

type sessionCreateRequest struct {
	Name       string  `json:"name"`
	Shell      string  `json:"shell"`
	CWD        string  `json:"cwd"`
	Cols       int     `json:"cols"`
	Rows       int     `json:"rows"`
	CategoryID *string `json:"categoryId,omitempty"`
}

func (c *Conn) handleSessionCreate(f protocol.Frame) {
	var req sessionCreateRequest
	if err := decodePayload(f, &req); err != nil {
		c.sendSessionErr(f.ID, err)
		return
	}
	owner := c.principal.UserID
	info, err := c.sessions.Create(session.CreateRequest{
		Name: req.Name, Shell: req.Shell, CWD: req.CWD,
		Cols: req.Cols, Rows: req.Rows, CategoryID: req.CategoryID, OwnerID: &owner,
	})
	if err != nil {
		c.sendSessionErr(f.ID, err)
		return
	}
	reply, _ := protocol.Reply(f.ID, protocol.TypeSessionCreated, toView(info))
	c.enqueue(reply)

	// session.create auto-detaches from any current session and
	// auto-attaches to the new one, so the creating client can start
	// sending terminal.data without a separate session.attach round trip.
	if c.attachedID != "" {
		c.detach()
	}
	scrollback, err := c.attachTo(info.ID)
	if err != nil {
		c.sendSessionErr(f.ID, err)
		return
	}
	attached, _ := protocol.Event(protocol.TypeSessionAttached, struct {
		SessionID  string `json:"sessionId"`
		Scrollback string `json:"scrollback"`
	}{SessionID: info.ID, Scrollback: scrollback})
	c.enqueue(attached)
}

type sessionIDPayload struct {
	SessionID string `json:"sessionId"`
}

// attachTo wires the connection's dataSub/exitSub/attachedID/state to
// sessionID and returns its scrollback. Caller must have already
// detached from any prior session.
func (c *Conn) attachTo(sessionID string) (string, error) {
	scrollback, err := c.sessions.GetScrollback(sessionID)
	if err != nil {
		return "", err
	}
	if err := c.sessions.AttachClient(sessionID, c.clientID); err != nil {
		return "", err
	}

	dataSub, err := c.sessions.SubscribeData(sessionID, func(b []byte) {
		c.enqueue(mustEvent(protocol.TypeTerminalDataReply, terminalDataPayload{
			SessionID: sessionID,
			Data:      base64.StdEncoding.EncodeToString(b),
		}))
	})
	if err != nil {
		return "", err
	}
	exitSub, err := c.sessions.SubscribeExit(sessionID, func(code int) {
		c.enqueue(mustEvent(protocol.TypeTerminalExit, terminalExitPayload{SessionID: sessionID, Code: code}))
	})
	if err != nil {
		dataSub.Cancel()
		return "", err
	}

	c.attachedID = sessionID
	c.dataSub = dataSub
	c.exitSub = exitSub
	c.state = StateAttached
	return scrollback, nil
}

func (c *Conn) handleSessionAttach(f protocol.Frame) {
	var req sessionIDPayload
	if err := decodePayload(f, &req); err != nil {
		c.sendSessionErr(f.ID, err)
		return
	}
	if c.attachedID != "" {
		c.detach()
	}

	scrollback, err := c.attachTo(req.SessionID)
	if err != nil {
		c.sendSessionErr(f.ID, err)
		return
	}

	reply, _ := protocol.Reply(f.ID, protocol.TypeSessionAttached, struct {
		SessionID  string `json:"sessionId"`
		Scrollback string `json:"scrollback"`
	}{SessionID: req.SessionID, Scrollback: scrollback})
	c.enqueue(reply)
}

func (c *Conn) detach() {
	c.dataSub.Cancel()
	c.exitSub.Cancel()
	c.sessions.DetachClient(c.attachedID, c.clientID)
	c.attachedID = ""
	c.state = StateOpen
}

func (c *Conn) handleSessionDetach(f protocol.Frame) {
	if c.attachedID == "" {
		c.sendSessionErr(f.ID, apperr.InvalidInput("no session attached"))
		return
	}
	id := c.attachedID
	c.detach()
	reply, _ := protocol.Reply(f.ID, protocol.TypeSessionDetached, sessionIDPayload{SessionID: id})
	c.enqueue(reply)
}

func (c *Conn) handleSessionTerminate(f protocol.Frame) {
	var req sessionIDPayload
	if err := decodePayload(f, &req); err != nil {
		c.sendSessionErr(f.ID, err)
		return
	}
	if _, err := c.sessions.Terminate(req.SessionID); err != nil {
		c.sendSessionErr(f.ID, err)
		return
	}
	reply, _ := protocol.Reply(f.ID, protocol.TypeSessionTerminated, req)
	c.enqueue(reply)
	c.broadcast(protocol.TypeSessionTerminated, req)
}

func (c *Conn) handleSessionDelete(f protocol.Frame) {
	var req sessionIDPayload
	if err := decodePayload(f, &req); err != nil {
		c.sendSessionErr(f.ID, err)
		return
	}
	if c.attachedID == req.SessionID {
		c.detach()
	}
	if err := c.sessions.Delete(req.SessionID); err != nil {
		c.sendSessionErr(f.ID, err)
		return
	}
	reply, _ := protocol.Reply(f.ID, protocol.TypeSessionDeleted, req)
	c.enqueue(reply)
	c.broadcast(protocol.TypeSessionDeleted, req)
}

type sessionRenameRequest struct {
	SessionID string `json:"sessionId"`
	Name      string `json:"name"`
}

func (c *Conn) handleSessionRename(f protocol.Frame) {
	var req sessionRenameRequest
	if err := decodePayload(f, &req); err != nil {
		c.sendSessionErr(f.ID, err)
		return
	}
	info, err := c.sessions.Rename(req.SessionID, req.Name)
	if err != nil {
		c.sendSessionErr(f.ID, err)
		return
	}
	reply, _ := protocol.Reply(f.ID, protocol.TypeSessionRenamed, toView(info))
	c.enqueue(reply)
}

type sessionMoveRequest struct {
	SessionID  string  `json:"sessionId"`
	CategoryID *string `json:"categoryId"`
}

func (c *Conn) handleSessionMove(f protocol.Frame) {
	var req sessionMoveRequest
	if err := decodePayload(f, &req); err != nil {
		c.sendSessionErr(f.ID, err)
		return
	}
	info, err := c.sessions.Move(req.SessionID, req.CategoryID)
	if err != nil {
		c.sendSessionErr(f.ID, err)
		return
	}
	view := toView(info)
	reply, _ := protocol.Reply(f.ID, protocol.TypeSessionMoved, view)
	c.enqueue(reply)
	c.broadcast(protocol.TypeSessionMoved, view)
}

// --- terminal handlers ---

type terminalDataPayload struct {
	SessionID string `json:"sessionId"`
	Data      string `json:"data"`
}

type terminalExitPayload struct {
	SessionID string `json:"sessionId"`
	Code      int    `json:"code"`
}

func (c *Conn) handleTerminalData(f protocol.Frame) {
	var req terminalDataPayload
	if err := decodePayload(f, &req); err != nil {
		c.sendErr(f.ID, err)
		return
	}
	if c.attachedID != req.SessionID {
		c.sendErr(f.ID, apperr.InvalidInput("not attached to session %s", req.SessionID))
		return
	}
	raw, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		c.sendErr(f.ID, apperr.InvalidInput("invalid base64 data"))
		return
	}
	if err := c.sessions.Write(req.SessionID, raw); err != nil {
		c.sendErr(f.ID, err)
	}
}

type terminalResizeRequest struct {
	SessionID string `json:"sessionId"`
	Cols      int    `json:"cols"`
	Rows      int    `json:"rows"`
}

func (c *Conn) handleTerminalResize(f protocol.Frame) {
	var req terminalResizeRequest
	if err := decodePayload(f, &req); err != nil {
		c.sendErr(f.ID, err)
		return
	}
	if c.attachedID != req.SessionID {
		// terminal.resize on a session we're not attached to is silently
		// ignored, unlike terminal.data which reports the mismatch.
		return
	}
	if err := c.sessions.Resize(req.SessionID, req.Cols, req.Rows); err != nil {
		c.sendErr(f.ID, err)
	}
}

// --- category handlers ---

type categoryView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	SortOrder int    `json:"sortOrder"`
	Collapsed bool   `json:"collapsed"`
}

func toCategoryView(c category.Category) categoryView {
	return categoryView{ID: c.ID, Name: c.Name, SortOrder: c.SortOrder, Collapsed: c.Collapsed}
}

func (c *Conn) handleCategoryList(f protocol.Frame) {
	list, err := c.cats.List(nil)
	if err != nil {
		c.sendErr(f.ID, err)
		return
	}
	views := make([]categoryView, 0, len(list))
	for _, cat := range list {
		views = append(views, toCategoryView(cat))
	}
	reply, _ := protocol.Reply(f.ID, protocol.TypeCategoryListReply, struct {
		Categories []categoryView `json:"categories"`
	}{Categories: views})
	c.enqueue(reply)
}

type categoryCreateRequest struct {
	Name string `json:"name"`
}

func (c *Conn) handleCategoryCreate(f protocol.Frame) {
	var req categoryCreateRequest
	if err := decodePayload(f, &req); err != nil {
		c.sendErr(f.ID, err)
		return
	}
	cat, err := c.cats.Create(nil, req.Name)
	if err != nil {
		c.sendErr(f.ID, err)
		return
	}
	view := toCategoryView(cat)
	reply, _ := protocol.Reply(f.ID, protocol.TypeCategoryCreated, view)
	c.enqueue(reply)
	c.broadcast(protocol.TypeCategoryCreated, view)
}

type categoryRenameRequest struct {
	CategoryID string `json:"categoryId"`
	Name       string `json:"name"`
}

func (c *Conn) handleCategoryRename(f protocol.Frame) {
	var req categoryRenameRequest
	if err := decodePayload(f, &req); err != nil {
		c.sendErr(f.ID, err)
		return
	}
	cat, err := c.cats.Rename(req.CategoryID, req.Name)
	if err != nil {
		c.sendErr(f.ID, err)
		return
	}
	view := toCategoryView(cat)
	reply, _ := protocol.Reply(f.ID, protocol.TypeCategoryRenamed, view)
	c.enqueue(reply)
	c.broadcast(protocol.TypeCategoryRenamed, view)
}

type categoryIDPayload struct {
	CategoryID string `json:"categoryId"`
}

func (c *Conn) handleCategoryDelete(f protocol.Frame) {
	var req categoryIDPayload
	if err := decodePayload(f, &req); err != nil {
		c.sendErr(f.ID, err)
		return
	}
	if err := c.cats.Delete(req.CategoryID); err != nil {
		c.sendErr(f.ID, err)
		return
	}
	reply, _ := protocol.Reply(f.ID, protocol.TypeCategoryDeleted, req)
	c.enqueue(reply)
	c.broadcast(protocol.TypeCategoryDeleted, req)
}

type categoryReorderRequest struct {
	Order map[string]int `json:"order"`
}

func (c *Conn) handleCategoryReorder(f protocol.Frame) {
	var req categoryReorderRequest
	if err := decodePayload(f, &req); err != nil {
		c.sendErr(f.ID, err)
		return
	}
	if err := c.cats.Reorder(req.Order); err != nil {
		c.sendErr(f.ID, err)
		return
	}
	reply, _ := protocol.Reply(f.ID, protocol.TypeCategoryReordered, req)
	c.enqueue(reply)
	c.broadcast(protocol.TypeCategoryReordered, req)
}

type categoryToggleRequest struct {
	CategoryID string `json:"categoryId"`
	Collapsed  bool   `json:"collapsed"`
}

func (c *Conn) handleCategoryToggle(f protocol.Frame) {
	var req categoryToggleRequest
	if err := decodePayload(f, &req); err != nil {
		c.sendErr(f.ID, err)
		return
	}
	cat, err := c.cats.Toggle(req.CategoryID, req.Collapsed)
	if err != nil {
		c.sendErr(f.ID, err)
		return
	}
	view := toCategoryView(cat)
	reply, _ := protocol.Reply(f.ID, protocol.TypeCategoryToggled, view)
	c.enqueue(reply)
	c.broadcast(protocol.TypeCategoryToggled, view)
}

// --- notification preference handlers ---

type preferencesPayload struct {
	BrowserEnabled    bool `json:"browserEnabled"`
	VisualEnabled     bool `json:"visualEnabled"`
	NotifyOnInput     bool `json:"notifyOnInput"`
	NotifyOnCompleted bool `json:"notifyOnCompleted"`
}

func toPreferencesPayload(p category.Preferences) preferencesPayload {
	return preferencesPayload(p)
}

func (c *Conn) handlePreferencesGet(f protocol.Frame) {
	prefs, err := c.cats.GetPreferences(c.principal.UserID)
	if err != nil {
		c.sendErr(f.ID, err)
		return
	}
	reply, _ := protocol.Reply(f.ID, protocol.TypeNotificationPreferences, toPreferencesPayload(prefs))
	c.enqueue(reply)
}

func (c *Conn) handlePreferencesSet(f protocol.Frame) {
	var req preferencesPayload
	if err := decodePayload(f, &req); err != nil {
		c.sendErr(f.ID, err)
		return
	}
	prefs, err := c.cats.SetPreferences(c.principal.UserID, category.Preferences(req))
	if err != nil {
		c.sendErr(f.ID, err)
		return
	}
	reply, _ := protocol.Reply(f.ID, protocol.TypeNotificationPreferencesUpdated, toPreferencesPayload(prefs))
	c.enqueue(reply)
}

func (c *Conn) handleNotificationDismiss(f protocol.Frame) {
	var req sessionIDPayload
	if err := decodePayload(f, &req); err != nil {
		c.sendErr(f.ID, err)
		return
	}
	c.bus.Dismiss(req.SessionID)
}

func (c *Conn) onNotification(n notify.Notification) {
	c.enqueue(mustEvent(protocol.TypeNotification, struct {
		SessionID string `json:"sessionId"`
		Kind      string `json:"kind"`
	}{SessionID: n.SessionID, Kind: string(n.Kind)}))
}

func mustEvent(msgType string, payload any) protocol.Frame {
	f, _ := protocol.Event(msgType, payload)
	return f
}

// broadcast fans msgType out to every other open connection via the
// hub, excluding c itself since c already received its own reply
// frame for the same operation (spec §4.H: broadcasts sent to every
// open connection, excluding the originator to prevent echo).
func (c *Conn) broadcast(msgType string, payload any) {
	if c.hub == nil {
		return
	}
	c.hub.Broadcast(mustEvent(msgType, payload), c.clientID)
}
