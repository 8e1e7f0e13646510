package observatory

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

const (
	viewerRegisterTimeout = 10 * time.Second
	viewerWriteTimeout    = 5 * time.Second
)

// viewer upgrades a request to a websocket viewer session.
//
// The first message must be a REGISTER naming the tab; later REGISTER
// messages re-point the session at another domain. The session is
// unregistered when the connection closes.
func (s *Server) viewer(rw http.ResponseWriter, req *http.Request, _ httprouter.Params) {
	conn, err := s.upgrader.Upgrade(rw, req, nil)
	if err != nil {
		slog.Debug("viewer upgrade failed", slog.Any("err", err))
		return
	}
	defer conn.Close()

	ctx := context.WithoutCancel(req.Context())

	_ = conn.SetReadDeadline(time.Now().Add(viewerRegisterTimeout))
	var register Register
	if err := conn.ReadJSON(&register); err != nil {
		slog.Debug("viewer register read failed", slog.Any("err", err))
		return
	}
	if register.Type != MessageTypeRegister {
		closeViewer(conn, websocket.ClosePolicyViolation, fmt.Sprintf("expected %s message, got %q", MessageTypeRegister, register.Type))
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	session := newViewerSession(conn, register.TabID)
	s.aggregator.Register(ctx, session, register.Domain)
	defer s.aggregator.Unregister(session)

	for {
		var next Register
		if err := conn.ReadJSON(&next); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("viewer read failed", slog.String("session_id", session.ID()), slog.Any("err", err))
			}
			return
		}
		if next.Type != MessageTypeRegister || next.TabID != session.TabID() {
			continue
		}
		s.aggregator.Register(ctx, session, next.Domain)
	}
}

func closeViewer(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(viewerWriteTimeout))
}

func newViewerSession(conn *websocket.Conn, tabID int) *viewerSession {
	return &viewerSession{
		id:    uuid.NewString(),
		tabID: tabID,
		conn:  conn,
	}
}

// viewerSession is a [Session] over a websocket connection.
type viewerSession struct {
	id    string
	tabID int

	writeMu sync.Mutex
	conn    *websocket.Conn
}

func (v *viewerSession) ID() string { return v.id }
func (v *viewerSession) TabID() int { return v.tabID }

// Send writes a message as a json text frame.
func (v *viewerSession) Send(msg Message) error {
	v.writeMu.Lock()
	defer v.writeMu.Unlock()
	_ = v.conn.SetWriteDeadline(time.Now().Add(viewerWriteTimeout))
	return v.conn.WriteJSON(msg)
}
