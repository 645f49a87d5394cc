// Package live serves one WebSocket per viewer. Each connection owns a
// navigation state machine, speaks the navigation message protocol and
// re-derives its state when the watcher reports a change.
package live

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/starford/deckhand/internal/apperr"
	"github.com/starford/deckhand/internal/models"
	"github.com/starford/deckhand/internal/navigation"
	"github.com/starford/deckhand/internal/prefs"
	"github.com/starford/deckhand/internal/presentation"
	"github.com/starford/deckhand/internal/sse"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 64 << 10
)

// Handler upgrades requests to live sessions.
type Handler struct {
	svc      *presentation.Service
	prefs    *prefs.Store
	broker   *sse.Broker
	log      *slog.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a live session handler.
func NewHandler(svc *presentation.Service, store *prefs.Store, broker *sse.Broker, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		svc:    svc,
		prefs:  store,
		broker: broker,
		log:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

// ServeSession runs a session for presentationID until the client
// disconnects or the request context ends.
func (h *Handler) ServeSession(w http.ResponseWriter, r *http.Request, presentationID string) {
	ctx := r.Context()
	p, err := h.svc.Get(ctx, presentationID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, apperr.ErrNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, http.StatusText(status), status)
		return
	}

	client := clientID(r)
	s := &session{
		h:      h,
		client: client,
		pres:   presentationID,
		log:    h.log.With(slog.String("client", client), slog.String("presentation", presentationID)),
	}
	s.machine = s.restore(ctx, p)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("live: upgrade failed", slog.String("error", err.Error()))
		return
	}
	s.conn = conn
	s.run(ctx)
}

// clientID returns the ?client= parameter when it is a valid UUID, else a
// new one.
func clientID(r *http.Request) string {
	if id, err := uuid.Parse(r.URL.Query().Get("client")); err == nil {
		return id.String()
	}
	return uuid.NewString()
}

type session struct {
	h      *Handler
	conn   *websocket.Conn
	client string
	pres   string
	log    *slog.Logger

	// mu guards machine, which is shared by the read loop and the change
	// pump.
	mu      sync.Mutex
	machine *navigation.Machine

	writeMu sync.Mutex
}

// restore builds the machine from stored preferences. Preference errors
// are logged and the defaults used.
func (s *session) restore(ctx context.Context, p *models.Presentation) *navigation.Machine {
	st := s.h.prefs
	warn := func(what string, err error) {
		s.log.Warn("live: "+what, slog.String("error", err.Error()))
	}

	if err := st.EnterPresentation(ctx, s.client, s.pres); err != nil {
		warn("enter presentation", err)
	}
	tab, err := st.ActiveTab(ctx, s.client, s.pres)
	if err != nil {
		warn("load active tab", err)
	}
	m := navigation.New(presentation.Input(p, tab), s.log)

	collapsed, err := st.Collapsed(ctx, s.client, s.pres)
	if err != nil {
		warn("load collapsed groups", err)
	}
	m.SetCollapsed(collapsed)

	if mode, ok, err := st.Mode(ctx, s.client, s.pres); err != nil {
		warn("load mode override", err)
	} else if ok {
		if err := m.SetModeOverride(string(mode)); err != nil {
			warn("restore mode override", err)
		}
	}
	return m
}

func (s *session) run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer s.conn.Close()

	changes, stop := s.h.broker.Listen()
	defer stop()

	s.log.Info("live: session started")
	defer s.log.Info("live: session ended")

	width, err := s.h.prefs.SidebarWidth(ctx, s.client)
	if err != nil {
		s.log.Warn("live: load sidebar width", slog.String("error", err.Error()))
	}
	if err := s.send(SessionMsg{Type: TypeSession, ClientID: s.client, Presentation: s.pres, SidebarWidth: width}); err != nil {
		return
	}
	if err := s.send(navigation.NewForwardKeysMsg()); err != nil {
		return
	}
	if err := s.sendState(); err != nil {
		return
	}

	go s.pump(ctx, changes)
	s.readLoop(ctx)
}

// pump applies library changes and keeps the connection alive.
func (s *session) pump(ctx context.Context, changes <-chan models.Change) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-changes:
			if !ok {
				// Broker closed: the server is shutting down.
				s.conn.Close()
				return
			}
			if err := s.handleChange(ctx, c); err != nil {
				s.conn.Close()
				return
			}
		case <-ticker.C:
			s.writeMu.Lock()
			err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			s.writeMu.Unlock()
			if err != nil {
				s.conn.Close()
				return
			}
		}
	}
}

func (s *session) readLoop(ctx context.Context) {
	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug("live: read failed", slog.String("error", err.Error()))
			}
			return
		}
		if err := s.handleMessage(ctx, data); err != nil {
			return
		}
	}
}

// handleMessage applies one inbound message. Only write failures are
// returned; rejected commands are reported to the client.
func (s *session) handleMessage(ctx context.Context, data []byte) error {
	if width, ok := sidebarWidth(data); ok {
		if err := s.h.prefs.SetSidebarWidth(ctx, s.client, width); err != nil {
			return s.send(ErrorMsg{Type: TypeError, Error: err.Error()})
		}
		return nil
	}

	msg, err := navigation.DecodeMessage(data)
	if err != nil {
		s.log.Debug("live: dropped message", slog.String("error", err.Error()))
		return nil
	}

	s.mu.Lock()
	changed, err := s.machine.Apply(msg)
	s.mu.Unlock()
	if err != nil {
		return s.send(ErrorMsg{Type: TypeError, Error: err.Error()})
	}
	if !changed {
		return nil
	}
	s.persist(ctx)
	return s.sendState()
}

// handleChange re-derives state after a structural change and asks the
// client to reload the displayed document after a content change.
func (s *session) handleChange(ctx context.Context, c models.Change) error {
	if c.Presentation != s.pres {
		return nil
	}

	if c.Kind == models.ChangeContent {
		s.mu.Lock()
		d := s.machine.Display()
		s.mu.Unlock()
		if d.File != "" && d.File == c.File {
			return s.send(ReloadMsg{Type: TypeReload, File: c.File})
		}
		return nil
	}

	p, err := s.h.svc.Get(ctx, s.pres)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			s.log.Info("live: presentation removed")
			return s.send(ErrorMsg{Type: TypeError, Error: err.Error()})
		}
		s.log.Error("live: reload presentation", slog.String("error", err.Error()))
		return nil
	}

	s.mu.Lock()
	s.machine.Refresh(presentation.Input(p, s.machine.ActiveTab()))
	s.mu.Unlock()
	s.persist(ctx)
	return s.sendState()
}

// persist stores the preferences the machine owns.
func (s *session) persist(ctx context.Context) {
	s.mu.Lock()
	tab := s.machine.ActiveTab()
	collapsed := s.machine.Collapsed()
	mode := s.machine.ModeOverride()
	s.mu.Unlock()

	st := s.h.prefs
	if err := st.SetActiveTab(ctx, s.client, s.pres, tab); err != nil {
		s.log.Warn("live: save active tab", slog.String("error", err.Error()))
	}
	if err := st.SetCollapsed(ctx, s.client, s.pres, collapsed); err != nil {
		s.log.Warn("live: save collapsed groups", slog.String("error", err.Error()))
	}
	if err := st.SetMode(ctx, s.client, s.pres, mode); err != nil {
		s.log.Warn("live: save mode override", slog.String("error", err.Error()))
	}
}

func (s *session) sendState() error {
	s.mu.Lock()
	snap := s.machine.Snapshot()
	s.mu.Unlock()

	if err := s.send(SnapshotMsg{Type: TypeSnapshot, Snapshot: snap}); err != nil {
		return err
	}
	return s.send(navigation.NewDisplayMsg(snap.Display))
}

func (s *session) send(v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteJSON(v); err != nil {
		s.log.Debug("live: write failed", slog.String("error", err.Error()))
		return err
	}
	return nil
}
