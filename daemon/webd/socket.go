package webd

import (
	"encoding/json"
	"net/http"

	"github.com/olahol/melody"
	"github.com/rotblauer/everystreet/conceptual"
	"github.com/rotblauer/everystreet/session"
)

type websocketAction string

const (
	websocketActionSnapshot websocketAction = "snapshot"
	websocketActionEvent    websocketAction = "event"
)

type socketMessage struct {
	Action   websocketAction   `json:"action"`
	Event    *session.Event    `json:"event,omitempty"`
	Snapshot *session.Snapshot `json:"snapshot,omitempty"`
}

const socketSessionKey = "session"

// initMelody sets up the websocket handler.
// Each socket is bound to one session, given by the ?session= query param,
// and receives that session's events as they happen.
func (d *WebDaemon) initMelody() {
	d.melodyInstance = melody.New()

	d.melodyInstance.HandleConnect(func(ms *melody.Session) {
		id := socketSession(ms)
		d.logger.Info("Socket connected", "remote", ms.Request.RemoteAddr, "session", id)
		sess, ok := d.Session(id)
		if !ok {
			return
		}
		snap := sess.Snapshot()
		b, err := json.Marshal(socketMessage{Action: websocketActionSnapshot, Snapshot: &snap})
		if err != nil {
			d.logger.Error("Failed to marshal snapshot", "error", err)
			return
		}
		_ = ms.Write(b)
	})

	// Clients drive sessions over HTTP. Socket messages are logged and dropped.
	d.melodyInstance.HandleMessage(func(ms *melody.Session, msg []byte) {
		d.logger.Debug("Socket message", "session", socketSession(ms), "message", string(msg))
	})

	d.melodyInstance.HandleDisconnect(func(ms *melody.Session) {
		d.logger.Info("Socket disconnected", "remote", ms.Request.RemoteAddr)
	})

	d.melodyInstance.HandleError(func(ms *melody.Session, e error) {
		d.logger.Warn("Socket error", "error", e, "remote", ms.Request.RemoteAddr)
	})

	events := make(chan session.Event, 64)
	sub := d.feedEvents.Subscribe(events)
	go func() {
		defer sub.Unsubscribe()
		for {
			select {
			case ev := <-events:
				if ev.Kind == session.EventLocation {
					continue
				}
				b, err := json.Marshal(socketMessage{Action: websocketActionEvent, Event: &ev})
				if err != nil {
					d.logger.Error("Failed to marshal session event", "error", err)
					continue
				}
				id := ev.Session
				err = d.melodyInstance.BroadcastFilter(b, func(ms *melody.Session) bool {
					return socketSession(ms) == id
				})
				if err != nil {
					d.logger.Warn("Failed to broadcast session event", "error", err)
				}
			case <-d.ctx.Done():
				return
			}
		}
	}()
}

func socketSession(ms *melody.Session) conceptual.SessionID {
	v, ok := ms.Get(socketSessionKey)
	if !ok {
		return ""
	}
	id, _ := v.(conceptual.SessionID)
	return id
}

func (d *WebDaemon) handleSocket(w http.ResponseWriter, r *http.Request) {
	id := conceptual.SessionID(r.URL.Query().Get("session"))
	if _, ok := d.Session(id); !ok {
		http.Error(w, "No such session", http.StatusNotFound)
		return
	}
	err := d.melodyInstance.HandleRequestWithKeys(w, r, map[string]any{socketSessionKey: id})
	if err != nil {
		d.logger.Warn("Socket upgrade failed", "error", err)
	}
}
