// Package session implements the Session Manager of spec §4.E: the
// component owning every live PTY-attached session, its scrollback
// ring, its attached-client fan-out, and the durable record that
// survives a restart. Adapted from the teacher's
// internal/sessions/manager.go, generalized from tmux/ttyd-backed
// sessions to server-owned PTY I/O.
package session

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/azalio/gatewayd/internal/apperr"
	"github.com/azalio/gatewayd/internal/notify"
	"github.com/azalio/gatewayd/internal/persistence"
	"github.com/azalio/gatewayd/internal/pty"
	"github.com/azalio/gatewayd/internal/ring"
	"github.com/azalio/gatewayd/internal/store"
)

// shellPattern bounds the characters accepted in a shell path or
// command name (spec §4.H): letters, digits, and the handful of
// punctuation marks a real executable path uses.
var shellPattern = regexp.MustCompile(`^[A-Za-z0-9/_.-]+$`)

const (
	maxNameLen = 100
	maxCWDLen  = 500
	maxDim     = 500
)

// CreateRequest carries the parameters of a Create call, mirroring the
// teacher's sessions.CreateRequest shape.
type CreateRequest struct {
	Name       string
	Shell      string
	CWD        string
	Cols       int
	Rows       int
	OwnerID    *string
	CategoryID *string
}

// Info is the client-facing snapshot of a session (spec §3 Session).
type Info struct {
	ID             string
	Name           string
	Shell          string
	CWD            string
	CreatedAt      time.Time
	LastAccessedAt time.Time
	OwnerID        *string
	Status         string
	Cols           int
	Rows           int
	CategoryID     *string
	SortOrder      int
	// Attachable is true iff a live in-memory session backs this record
	// in this process, i.e. an attach/write/resize would succeed rather
	// than fail with NotFound (spec §4.E).
	Attachable bool
}

// Subscription cancels a data or exit subscription registered against
// a live session, per spec §9's design note.
type Subscription struct {
	cancel func()
}

func (s Subscription) Cancel() {
	if s.cancel != nil {
		s.cancel()
	}
}

// liveSession is the in-memory half of a running session: the PTY
// handle, its scrollback ring, and the set of currently attached
// clients and subscribers. Every access is guarded by mu.
type liveSession struct {
	mu sync.Mutex

	id      string
	handle  *pty.Handle
	ring    *ring.Ring
	rec     store.SessionRecord
	muxName string // handle from persistence.Helper.CreateHandle, "" if none

	dataSubs map[int]pty.DataFunc
	exitSubs map[int]func(int)
	nextSub  int

	attached map[string]struct{} // clientID set

	lastTouch          time.Time // debounce point for LastAccessedAt writes
	emptyAttachedSince time.Time // when attached last became empty, for the idle reaper
}

// debounceInterval is the minimum spacing between LastAccessedAt
// persistence writes for a single session (spec §4.E: "touches are
// debounced to avoid a write per keystroke").
const debounceInterval = 5 * time.Second

// Manager owns every live session for the process. Constructed once by
// cmd/gatewayd; never a package-level global (spec §9).
type Manager struct {
	store   *store.Store
	persist persistence.Helper
	bus     *notify.Bus
	log     zerolog.Logger

	maxSessions     int
	idleTimeout     time.Duration
	scrollbackLines int

	mu       sync.Mutex
	sessions map[string]*liveSession

	terminations chan string
	stopReaper   chan struct{}
	reaperDone   chan struct{}
}

// Config bundles the tunables of spec §6 relevant to session lifecycle.
type Config struct {
	MaxSessions     int
	IdleTimeout     time.Duration
	ScrollbackLines int
}

// New constructs a Manager and starts its idle reaper goroutine.
func New(s *store.Store, helper persistence.Helper, bus *notify.Bus, log zerolog.Logger, cfg Config) *Manager {
	if cfg.MaxSessions < 1 {
		cfg.MaxSessions = 50
	}
	if cfg.ScrollbackLines < 1 {
		cfg.ScrollbackLines = 1000
	}
	m := &Manager{
		store:           s,
		persist:         helper,
		bus:             bus,
		log:             log.With().Str("component", "session").Logger(),
		maxSessions:     cfg.MaxSessions,
		idleTimeout:     cfg.IdleTimeout,
		scrollbackLines: cfg.ScrollbackLines,
		sessions:        make(map[string]*liveSession),
		terminations:    make(chan string, 64),
		stopReaper:      make(chan struct{}),
		reaperDone:      make(chan struct{}),
	}
	go m.reapLoop()
	go m.terminationWorker()
	return m
}

func toInfo(rec store.SessionRecord) Info {
	return Info{
		ID:             rec.ID,
		Name:           rec.Name,
		Shell:          rec.Shell,
		CWD:            rec.CWD,
		CreatedAt:      rec.CreatedAt,
		LastAccessedAt: rec.LastAccessedAt,
		OwnerID:        rec.OwnerID,
		Status:         rec.Status,
		Cols:           rec.Cols,
		Rows:           rec.Rows,
		CategoryID:     rec.CategoryID,
		SortOrder:      rec.SortOrder,
	}
}

// validateCreateRequest enforces spec §4.H's bounds on a session's
// requested shape before any resource is allocated. Shell and CWD are
// optional (validated only when the caller supplied one); Cols and Rows
// are optional too, 0 meaning "let Create pick a default".
func validateCreateRequest(req CreateRequest) error {
	if len(req.Name) > maxNameLen {
		return apperr.InvalidInput("name must be at most %d characters", maxNameLen)
	}
	if req.Shell != "" && !shellPattern.MatchString(req.Shell) {
		return apperr.InvalidInput("shell contains invalid characters")
	}
	if len(req.CWD) > maxCWDLen {
		return apperr.InvalidInput("cwd must be at most %d characters", maxCWDLen)
	}
	if strings.Contains(req.CWD, "..") {
		return apperr.InvalidInput("cwd must not contain '..'")
	}
	if req.Cols != 0 && (req.Cols < 1 || req.Cols > maxDim) {
		return apperr.InvalidInput("cols must be between 1 and %d", maxDim)
	}
	if req.Rows != 0 && (req.Rows < 1 || req.Rows > maxDim) {
		return apperr.InvalidInput("rows must be between 1 and %d", maxDim)
	}
	return nil
}

// defaultShell resolves the shell to spawn when a create request leaves
// it unset (spec §4.E: shell is optional, defaulting to $SHELL).
func defaultShell() string {
	if sh := os.Getenv("SHELL"); sh != "" {
		return sh
	}
	return "/bin/sh"
}

// defaultCWD resolves the working directory when a create request
// leaves it unset.
func defaultCWD() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	return "/"
}

// Create allocates a new session following the mandated ordering of
// spec §4.E: allocate an ID, prepare the persistence handle (which for
// the mux backend starts the real shell detached under tmux and hands
// back an attach command instead), spawn the PTY against whatever
// command that yields, wire the ring and callbacks, insert the durable
// record, then publish. A failure at the durable-insert step tears down
// everything allocated before it (PTY killed, mux handle released) so
// no orphaned process or handle survives a failed Create.
func (m *Manager) Create(req CreateRequest) (Info, error) {
	if err := validateCreateRequest(req); err != nil {
		return Info{}, err
	}

	m.mu.Lock()
	count, err := m.store.CountNonTerminated(req.OwnerID)
	m.mu.Unlock()
	if err != nil {
		return Info{}, apperr.TransientStore("count sessions", err)
	}
	if int(count) >= m.maxSessions {
		return Info{}, apperr.QuotaExceeded("Maximum session limit (%d) reached", m.maxSessions)
	}

	shell := req.Shell
	if shell == "" {
		shell = defaultShell()
	}
	cwd := req.CWD
	if cwd == "" {
		cwd = defaultCWD()
	}
	cols := req.Cols
	if cols < 1 {
		cols = 80
	}
	rows := req.Rows
	if rows < 1 {
		rows = 24
	}

	id := uuid.NewString()

	muxName, spawnShell, spawnArgs, err := m.persist.CreateHandle(id, shell, cwd)
	if err != nil {
		return Info{}, apperr.Wrap(apperr.KindFatal, "create persistence handle", err)
	}

	handle, err := pty.Spawn(m.log, pty.SpawnOptions{
		Shell:     spawnShell,
		Args:      spawnArgs,
		Dir:       cwd,
		Cols:      cols,
		Rows:      rows,
		SessionID: id,
	})
	if err != nil {
		m.persist.TeardownHandle(muxName)
		return Info{}, apperr.Wrap(apperr.KindFatal, "spawn pty", err)
	}

	sortOrder, err := m.store.MaxSortOrder(req.CategoryID)
	if err != nil {
		handle.Kill()
		m.persist.TeardownHandle(muxName)
		return Info{}, apperr.TransientStore("max sort order", err)
	}

	now := time.Now()
	rec := store.SessionRecord{
		ID:                id,
		Name:              req.Name,
		Shell:             shell,
		CWD:               cwd,
		CreatedAt:         now,
		LastAccessedAt:    now,
		OwnerID:           req.OwnerID,
		Status:            store.StatusActive,
		Cols:              cols,
		Rows:              rows,
		ExternalMuxHandle: muxName,
		CategoryID:        req.CategoryID,
		SortOrder:         sortOrder + 1,
	}

	ls := &liveSession{
		id:                 id,
		handle:             handle,
		ring:               ring.New(m.scrollbackLines),
		rec:                rec,
		muxName:            muxName,
		dataSubs:           make(map[int]pty.DataFunc),
		exitSubs:           make(map[int]func(int)),
		attached:           make(map[string]struct{}),
		lastTouch:          now,
		emptyAttachedSince: now,
	}

	m.wireCallbacks(ls)

	if err := m.store.InsertSession(&rec); err != nil {
		handle.Kill()
		m.persist.TeardownHandle(muxName)
		return Info{}, apperr.TransientStore("insert session", err)
	}

	m.mu.Lock()
	m.sessions[id] = ls
	m.mu.Unlock()

	m.store.AppendEvent(id, store.EventCreate, req.Name)
	m.log.Info().Str("sessionId", id).Str("shell", shell).Msg("session: created")

	info := toInfo(rec)
	info.Attachable = true
	return info, nil
}

// wireCallbacks hooks the ring and internal fan-out onto the live
// PTY handle. Must run before the session is published into m.sessions
// so no data can arrive before a subscriber could exist.
func (m *Manager) wireCallbacks(ls *liveSession) {
	ls.handle.OnData(func(b []byte) {
		ls.ring.Append(b)
		ls.mu.Lock()
		subs := make([]pty.DataFunc, 0, len(ls.dataSubs))
		for _, fn := range ls.dataSubs {
			subs = append(subs, fn)
		}
		ls.mu.Unlock()
		for _, fn := range subs {
			fn(b)
		}
	})

	ls.handle.OnExit(func(code int) {
		m.onExit(ls, code)
	})
}

// onExit runs when a live session's shell process exits on its own
// (not via an explicit Terminate, which already performs this
// bookkeeping synchronously and removes ls from m.sessions first). A
// no-op if the session was already cleaned up, so a Kill triggered by
// Terminate racing with the process's own exit never double-processes.
func (m *Manager) onExit(ls *liveSession, code int) {
	if _, stillLive := m.lookup(ls.id); !stillLive {
		return
	}

	ls.mu.Lock()
	ls.rec.Status = store.StatusTerminated
	rec := ls.rec
	content := ls.ring.Joined()
	exitSubs := make([]func(int), 0, len(ls.exitSubs))
	for _, fn := range ls.exitSubs {
		exitSubs = append(exitSubs, fn)
	}
	ls.dataSubs = make(map[int]pty.DataFunc)
	ls.exitSubs = make(map[int]func(int))
	ls.ring.Clear()
	ls.mu.Unlock()

	if err := m.store.UpdateSession(&rec); err != nil {
		m.log.Warn().Err(err).Str("sessionId", ls.id).Msg("session: persist exit status failed")
	}
	if err := m.persist.PersistScrollback(ls.id, content); err != nil {
		m.log.Warn().Err(err).Str("sessionId", ls.id).Msg("session: persist scrollback on exit failed")
	}
	m.store.AppendEvent(ls.id, store.EventExit, fmt.Sprintf("code=%d", code))

	m.mu.Lock()
	delete(m.sessions, ls.id)
	m.mu.Unlock()

	for _, fn := range exitSubs {
		fn(code)
	}

	owner := "anonymous"
	if rec.OwnerID != nil {
		owner = *rec.OwnerID
	}
	m.bus.Publish(notify.Notification{SessionID: ls.id, OwnerID: owner, Kind: notify.KindCompleted})
}

// Get returns the current Info for id. Only live sessions are
// reachable this way, so Attachable is always true on success.
func (m *Manager) Get(id string) (Info, error) {
	ls, ok := m.lookup(id)
	if !ok {
		return Info{}, apperr.NotFound("session %s not found", id)
	}
	ls.mu.Lock()
	defer ls.mu.Unlock()
	info := toInfo(ls.rec)
	info.Attachable = true
	return info, nil
}

// List returns every currently known session (live and, per spec §4.E,
// still-durable terminated ones that have not been deleted), each
// tagged with whether a live in-memory session backs it.
func (m *Manager) List() ([]Info, error) {
	recs, err := m.store.ListSessions()
	if err != nil {
		return nil, apperr.TransientStore("list sessions", err)
	}

	m.mu.Lock()
	live := make(map[string]struct{}, len(m.sessions))
	for id := range m.sessions {
		live[id] = struct{}{}
	}
	m.mu.Unlock()

	out := make([]Info, 0, len(recs))
	for _, r := range recs {
		info := toInfo(r)
		_, info.Attachable = live[r.ID]
		out = append(out, info)
	}
	return out, nil
}

func (m *Manager) lookup(id string) (*liveSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ls, ok := m.sessions[id]
	return ls, ok
}

// Write sends data to the session's shell, touching LastAccessedAt
// (debounced) per spec §4.E.
func (m *Manager) Write(id string, data []byte) error {
	ls, ok := m.lookup(id)
	if !ok {
		return apperr.NotFound("session %s not found", id)
	}
	ls.handle.Write(data)
	m.touch(ls)
	return nil
}

// Resize changes the PTY window size and persists the new dimensions.
func (m *Manager) Resize(id string, cols, rows int) error {
	ls, ok := m.lookup(id)
	if !ok {
		return apperr.NotFound("session %s not found", id)
	}
	if cols < 1 || cols > maxDim || rows < 1 || rows > maxDim {
		return apperr.InvalidInput("cols and rows must be between 1 and %d", maxDim)
	}
	ls.handle.Resize(cols, rows)

	ls.mu.Lock()
	ls.rec.Cols = cols
	ls.rec.Rows = rows
	rec := ls.rec
	ls.mu.Unlock()

	if err := m.store.UpdateSession(&rec); err != nil {
		return apperr.TransientStore("persist resize", err)
	}
	return nil
}

// touch debounces LastAccessedAt persistence to at most once per
// debounceInterval per session.
func (m *Manager) touch(ls *liveSession) {
	now := time.Now()
	ls.mu.Lock()
	if now.Sub(ls.lastTouch) < debounceInterval {
		ls.mu.Unlock()
		return
	}
	ls.lastTouch = now
	ls.rec.LastAccessedAt = now
	rec := ls.rec
	ls.mu.Unlock()

	if err := m.store.UpdateSession(&rec); err != nil {
		m.log.Warn().Err(err).Str("sessionId", ls.id).Msg("session: touch persist failed")
	}
}

// Rename updates a session's display name.
func (m *Manager) Rename(id, name string) (Info, error) {
	if name == "" {
		return Info{}, apperr.InvalidInput("name must not be empty")
	}
	ls, ok := m.lookup(id)
	if !ok {
		return Info{}, apperr.NotFound("session %s not found", id)
	}
	ls.mu.Lock()
	ls.rec.Name = name
	rec := ls.rec
	ls.mu.Unlock()

	if err := m.store.UpdateSession(&rec); err != nil {
		return Info{}, apperr.TransientStore("persist rename", err)
	}
	m.store.AppendEvent(id, store.EventRename, name)
	return toInfo(rec), nil
}

// Move reassigns a session to a different category (nil to
// uncategorize) and appends it to the destination's ordering.
func (m *Manager) Move(id string, categoryID *string) (Info, error) {
	ls, ok := m.lookup(id)
	if !ok {
		return Info{}, apperr.NotFound("session %s not found", id)
	}
	if categoryID != nil {
		cat, err := m.store.GetCategory(*categoryID)
		if err != nil {
			return Info{}, apperr.TransientStore("get category", err)
		}
		if cat == nil {
			return Info{}, apperr.NotFound("Category not found")
		}
	}
	max, err := m.store.MaxSortOrder(categoryID)
	if err != nil {
		return Info{}, apperr.TransientStore("max sort order", err)
	}
	ls.mu.Lock()
	ls.rec.CategoryID = categoryID
	ls.rec.SortOrder = max + 1
	rec := ls.rec
	ls.mu.Unlock()

	if err := m.store.UpdateSession(&rec); err != nil {
		return Info{}, apperr.TransientStore("persist move", err)
	}
	m.store.AppendEvent(id, store.EventMove, "")
	return toInfo(rec), nil
}

// Terminate kills the shell process, persists status=terminated
// synchronously, and drops the session's listeners, ring, and debounce
// state from memory (spec §4.E) — it does not wait for the PTY's own
// exit callback, which is a no-op by the time it fires since the
// session is already gone from m.sessions. Per resolved Open Question,
// terminating an unknown or already-terminated ID returns (false, nil)
// rather than an error, so idle-reaper races are harmless.
func (m *Manager) Terminate(id string) (bool, error) {
	ls, ok := m.lookup(id)
	if !ok {
		return false, nil
	}

	ls.mu.Lock()
	if ls.rec.Status == store.StatusTerminated {
		ls.mu.Unlock()
		return false, nil
	}
	ls.rec.Status = store.StatusTerminated
	rec := ls.rec
	content := ls.ring.Joined()
	muxName := ls.muxName
	ls.dataSubs = make(map[int]pty.DataFunc)
	ls.exitSubs = make(map[int]func(int))
	ls.ring.Clear()
	ls.mu.Unlock()

	ls.handle.Kill()
	m.persist.TeardownHandle(muxName)

	if err := m.store.UpdateSession(&rec); err != nil {
		m.log.Warn().Err(err).Str("sessionId", id).Msg("session: persist terminate status failed")
	}
	if err := m.persist.PersistScrollback(id, content); err != nil {
		m.log.Warn().Err(err).Str("sessionId", id).Msg("session: persist scrollback on terminate failed")
	}

	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()

	m.store.AppendEvent(id, store.EventTerminate, "")
	return true, nil
}

// Delete removes a session's durable record and any live in-memory
// state. The shell process is killed first if still running.
func (m *Manager) Delete(id string) error {
	ls, ok := m.lookup(id)
	if ok {
		ls.handle.Kill()
		m.persist.TeardownHandle(ls.muxName)
	}

	if err := m.store.DeleteSession(id); err != nil {
		return apperr.TransientStore("delete session", err)
	}

	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
	return nil
}

// SubscribeData registers fn to receive every chunk of PTY output for
// id, and immediately no history — callers wanting scrollback should
// call GetScrollback first.
func (m *Manager) SubscribeData(id string, fn pty.DataFunc) (Subscription, error) {
	ls, ok := m.lookup(id)
	if !ok {
		return Subscription{}, apperr.NotFound("session %s not found", id)
	}
	ls.mu.Lock()
	subID := ls.nextSub
	ls.nextSub++
	ls.dataSubs[subID] = fn
	ls.mu.Unlock()

	return Subscription{cancel: func() {
		ls.mu.Lock()
		delete(ls.dataSubs, subID)
		ls.mu.Unlock()
	}}, nil
}

// SubscribeExit registers fn to be invoked once when id's shell
// terminates.
func (m *Manager) SubscribeExit(id string, fn func(code int)) (Subscription, error) {
	ls, ok := m.lookup(id)
	if !ok {
		return Subscription{}, apperr.NotFound("session %s not found", id)
	}
	ls.mu.Lock()
	subID := ls.nextSub
	ls.nextSub++
	ls.exitSubs[subID] = fn
	ls.mu.Unlock()

	return Subscription{cancel: func() {
		ls.mu.Lock()
		delete(ls.exitSubs, subID)
		ls.mu.Unlock()
	}}, nil
}

// AttachClient records clientID as attached to id, per spec §3
// Connection's attached-session tracking. The first attach moves the
// session to active, durably (spec §4.E).
func (m *Manager) AttachClient(id, clientID string) error {
	ls, ok := m.lookup(id)
	if !ok {
		return apperr.NotFound("session %s not found", id)
	}
	ls.mu.Lock()
	wasEmpty := len(ls.attached) == 0
	ls.attached[clientID] = struct{}{}
	if wasEmpty && ls.rec.Status != store.StatusTerminated {
		ls.rec.Status = store.StatusActive
	}
	rec := ls.rec
	ls.mu.Unlock()

	if err := m.store.UpdateSession(&rec); err != nil {
		return apperr.TransientStore("persist attach status", err)
	}
	m.store.AppendEvent(id, store.EventAttachClient, clientID)
	m.touch(ls)
	return nil
}

// DetachClient removes clientID from id's attached set. The last
// detach moves the session to idle, durably, and starts the idle-reaper
// clock (spec §4.E).
func (m *Manager) DetachClient(id, clientID string) {
	ls, ok := m.lookup(id)
	if !ok {
		return
	}
	ls.mu.Lock()
	delete(ls.attached, clientID)
	becameEmpty := len(ls.attached) == 0
	if becameEmpty {
		ls.emptyAttachedSince = time.Now()
		if ls.rec.Status != store.StatusTerminated {
			ls.rec.Status = store.StatusIdle
		}
	}
	rec := ls.rec
	ls.mu.Unlock()

	if err := m.store.UpdateSession(&rec); err != nil {
		m.log.Warn().Err(err).Str("sessionId", id).Msg("session: persist detach status failed")
	}
	m.store.AppendEvent(id, store.EventDetachClient, clientID)
}

// GetScrollback returns the joined scrollback text for id, from the
// live ring if the session is running, or the fallback-persisted blob
// otherwise (spec §4.D).
func (m *Manager) GetScrollback(id string) (string, error) {
	if ls, ok := m.lookup(id); ok {
		ls.mu.Lock()
		content := ls.ring.Joined()
		ls.mu.Unlock()
		return content, nil
	}
	content, err := m.persist.SeedScrollback(id)
	if err != nil {
		return "", apperr.TransientStore("seed scrollback", err)
	}
	return content, nil
}

// reapInterval is the fixed cadence at which the idle reaper scans for
// sessions to terminate, independent of the configured idle timeout
// itself (spec §4.E: "every 60 seconds").
const reapInterval = 60 * time.Second

// reapLoop periodically enqueues idle sessions for termination. It
// never blocks on the terminations channel: a full channel means the
// worker is behind, and the reaper simply tries again next tick.
func (m *Manager) reapLoop() {
	defer close(m.reaperDone)
	if m.idleTimeout <= 0 {
		<-m.stopReaper
		return
	}
	ticker := time.NewTicker(reapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopReaper:
			return
		case <-ticker.C:
			m.enqueueIdleSessions()
		}
	}
}

// enqueueIdleSessions reaps sessions whose attached-client set has been
// empty longer than the configured idle timeout, per spec §4.E — not
// ones that are merely quiet while a client stays attached.
func (m *Manager) enqueueIdleSessions() {
	now := time.Now()
	m.mu.Lock()
	var idle []string
	for id, ls := range m.sessions {
		ls.mu.Lock()
		stale := ls.rec.Status != store.StatusTerminated &&
			len(ls.attached) == 0 &&
			now.Sub(ls.emptyAttachedSince) > m.idleTimeout
		ls.mu.Unlock()
		if stale {
			idle = append(idle, id)
		}
	}
	m.mu.Unlock()

	for _, id := range idle {
		select {
		case m.terminations <- id:
		default:
			m.log.Warn().Str("sessionId", id).Msg("session: reaper queue full, deferring to next tick")
		}
	}
}

func (m *Manager) terminationWorker() {
	for id := range m.terminations {
		if _, err := m.Terminate(id); err != nil {
			m.log.Warn().Err(err).Str("sessionId", id).Msg("session: idle termination failed")
		}
	}
}

// Shutdown stops the reaper, marks every live session idle durably, and
// persists their scrollback. Sessions with no external multiplexer
// handle have their PTY killed since nothing else keeps that shell
// alive across a restart; mux-backed sessions are left running under
// tmux for a later `tmux attach` to recover (spec §5).
func (m *Manager) Shutdown() {
	close(m.stopReaper)
	<-m.reaperDone
	close(m.terminations)

	m.mu.Lock()
	sessions := make([]*liveSession, 0, len(m.sessions))
	for _, ls := range m.sessions {
		sessions = append(sessions, ls)
	}
	m.mu.Unlock()

	for _, ls := range sessions {
		ls.mu.Lock()
		ls.rec.Status = store.StatusIdle
		rec := ls.rec
		content := ls.ring.Joined()
		muxName := ls.muxName
		ls.mu.Unlock()

		if err := m.store.UpdateSession(&rec); err != nil {
			m.log.Warn().Err(err).Str("sessionId", ls.id).Msg("session: shutdown status persist failed")
		}
		if err := m.persist.PersistScrollback(ls.id, content); err != nil {
			m.log.Warn().Err(err).Str("sessionId", ls.id).Msg("session: shutdown scrollback persist failed")
		}
		if muxName == "" {
			ls.handle.Kill()
		}
	}
}
