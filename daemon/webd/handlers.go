package webd

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rotblauer/everystreet/conceptual"
	"github.com/rotblauer/everystreet/ingest"
	"github.com/rotblauer/everystreet/metrics"
	"github.com/rotblauer/everystreet/session"
	"github.com/tidwall/gjson"
)

func newSessionID() conceptual.SessionID {
	return conceptual.SessionID(rand.Text())
}

func pingPong(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("pong"))
}

type webDaemonStatus struct {
	StartedAt time.Time      `json:"started_at"`
	Uptime    string         `json:"uptime"`
	Sessions  int            `json:"sessions"`
	WSConns   int            `json:"ws_conns"`
	CanRoute  bool           `json:"can_route"`
	Metrics   map[string]any `json:"metrics"`
}

func (d *WebDaemon) statusReport(w http.ResponseWriter, r *http.Request) {
	d.writeJSON(w, http.StatusOK, webDaemonStatus{
		StartedAt: d.started,
		Uptime:    time.Since(d.started).Round(time.Second).String(),
		Sessions:  d.sessions.Len(),
		WSConns:   d.melodyInstance.Len(),
		CanRoute:  d.provider != nil,
		Metrics:   metrics.Summary(),
	})
}

type errorResponse struct {
	Error    string            `json:"error"`
	Snapshot *session.Snapshot `json:"snapshot,omitempty"`
}

func (d *WebDaemon) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		d.logger.Warn("Failed to write response", "error", err)
	}
}

func (d *WebDaemon) writeError(w http.ResponseWriter, code int, err error, sess *session.Session) {
	resp := errorResponse{Error: err.Error()}
	if sess != nil {
		snap := sess.Snapshot()
		resp.Snapshot = &snap
	}
	d.writeJSON(w, code, resp)
}

// requestSession resolves the {session} route var, answering 404 when it is unknown.
func (d *WebDaemon) requestSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := conceptual.SessionID(mux.Vars(r)["session"])
	sess, ok := d.Session(id)
	if !ok {
		http.Error(w, "No such session", http.StatusNotFound)
		return nil, false
	}
	return sess, true
}

func (d *WebDaemon) handleNewSession(w http.ResponseWriter, r *http.Request) {
	sess := d.NewSession()
	d.writeJSON(w, http.StatusCreated, sess.Snapshot())
}

func (d *WebDaemon) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	sess, ok := d.requestSession(w, r)
	if !ok {
		return
	}
	d.writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (d *WebDaemon) handleSegments(w http.ResponseWriter, r *http.Request) {
	sess, ok := d.requestSession(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", ingest.MIMEGeoJSON)
	b, err := sess.SegmentsFeatureCollection().MarshalJSON()
	if err != nil {
		d.logger.Error("Failed to marshal segments", "error", err)
		http.Error(w, "Failed to marshal segments", http.StatusInternalServerError)
		return
	}
	_, _ = w.Write(b)
}

func (d *WebDaemon) handleRouteGeoJSON(w http.ResponseWriter, r *http.Request) {
	sess, ok := d.requestSession(w, r)
	if !ok {
		return
	}
	f := sess.RouteFeature()
	if f == nil {
		http.Error(w, "No route", http.StatusNotFound)
		return
	}
	b, err := f.MarshalJSON()
	if err != nil {
		d.logger.Error("Failed to marshal route", "error", err)
		http.Error(w, "Failed to marshal route", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", ingest.MIMEGeoJSON)
	_, _ = w.Write(b)
}

// handleFile loads a map file into the session.
// It accepts a multipart form with a "file" part, or a raw body named by ?name=.
func (d *WebDaemon) handleFile(w http.ResponseWriter, r *http.Request) {
	sess, ok := d.requestSession(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, d.Config.MaxUploadBytes)

	var name, contentType string
	var data []byte
	var err error
	if mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mt == "multipart/form-data" {
		name, contentType, data, err = readMultipartFile(r, d.Config.MaxUploadBytes)
	} else {
		name = r.URL.Query().Get("name")
		contentType = r.Header.Get("Content-Type")
		data, err = io.ReadAll(r.Body)
	}
	if errors.Is(err, http.ErrMissingFile) {
		err = ingest.ErrNoFile
	}
	if err != nil && !errors.Is(err, ingest.ErrNoFile) {
		d.logger.Warn("Failed to read upload", "error", err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			d.writeError(w, http.StatusRequestEntityTooLarge, err, nil)
			return
		}
		d.writeError(w, http.StatusBadRequest, err, nil)
		return
	}
	if errors.Is(err, ingest.ErrNoFile) {
		sess.FileError(session.FileErrorMessage("", err))
		d.writeError(w, http.StatusBadRequest, err, sess)
		return
	}

	if err := sess.LoadFile(name, contentType, data); err != nil {
		d.writeError(w, http.StatusUnprocessableEntity, err, sess)
		return
	}
	d.writeJSON(w, http.StatusOK, sess.Snapshot())
}

func readMultipartFile(r *http.Request, maxBytes int64) (name, contentType string, data []byte, err error) {
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		return "", "", nil, err
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return "", "", nil, err
	}
	defer file.Close()
	data, err = io.ReadAll(file)
	return header.Filename, header.Header.Get("Content-Type"), data, err
}

// handleFix feeds one or more NDJSON fixes to the session, in order.
// Lines like {"error":"..."} report a geolocation failure.
func (d *WebDaemon) handleFix(w http.ResponseWriter, r *http.Request) {
	sess, ok := d.requestSession(w, r)
	if !ok {
		return
	}
	events, errs := ingest.ReadFixesNDJSON(r.Context(), r.Body)
	var firstErr error
	n := 0
	for events != nil || errs != nil {
		select {
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			n++
			switch {
			case ev.Err != nil:
				sess.HandleFixError(ev.Err)
			case ev.Fix != nil:
				sess.HandleFix(*ev.Fix)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			d.logger.Warn("Bad fix", "session", sess.ID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if n == 0 {
		if firstErr == nil {
			firstErr = ingest.ErrFixLine
		}
		d.writeError(w, http.StatusBadRequest, firstErr, sess)
		return
	}
	d.writeJSON(w, http.StatusOK, sess.Snapshot())
}

// handleFixError reports a geolocation failure given as {"message":"..."}.
func (d *WebDaemon) handleFixError(w http.ResponseWriter, r *http.Request) {
	sess, ok := d.requestSession(w, r)
	if !ok {
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil {
		d.writeError(w, http.StatusBadRequest, err, nil)
		return
	}
	msg := gjson.GetBytes(body, "message").String()
	if msg == "" {
		msg = "Unknown error"
	}
	sess.HandleFixError(&ingest.LocationError{Message: msg})
	d.writeJSON(w, http.StatusOK, sess.Snapshot())
}

// handleRoute requests a route for the session.
// The route is computed in the background unless ?wait=true.
func (d *WebDaemon) handleRoute(w http.ResponseWriter, r *http.Request) {
	sess, ok := d.requestSession(w, r)
	if !ok {
		return
	}
	done, err := sess.StartRoute(d.ctx)
	if err != nil {
		d.writeError(w, http.StatusConflict, err, sess)
		return
	}
	if r.URL.Query().Get("wait") != "true" {
		d.writeJSON(w, http.StatusAccepted, sess.Snapshot())
		return
	}
	select {
	case err := <-done:
		if err != nil {
			d.writeError(w, http.StatusBadGateway, err, sess)
			return
		}
	case <-r.Context().Done():
		return
	}
	d.writeJSON(w, http.StatusOK, sess.Snapshot())
}
