// Package devserver is a simulated capture backend. It serves the same HTTP
// API as the device-side service but writes placeholder clips to a local
// directory, so sessions can be rehearsed without a phone or camera.
package devserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Options configures a Server. Only Root is required.
type Options struct {
	Root        string
	Host        string
	LogRequests bool
	Clock       func() time.Time
}

type take struct {
	name    string
	video   string
	started time.Time
	stopped time.Time
}

type sessionLog struct {
	dir    string
	active *take
	takes  []take
}

// Server holds the in-memory recording state of every session it has seen.
type Server struct {
	store       storage
	host        string
	now         func() time.Time
	logRequests bool

	mu       sync.Mutex
	sessions map[string]*sessionLog
}

func New(opts Options) (*Server, error) {
	if opts.Root == "" {
		return nil, errors.New("devserver: root directory is required")
	}
	if err := os.MkdirAll(opts.Root, 0o755); err != nil {
		return nil, fmt.Errorf("create root: %w", err)
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	return &Server{
		store:       storage{root: opts.Root},
		host:        opts.Host,
		now:         now,
		logRequests: opts.LogRequests,
		sessions:    make(map[string]*sessionLog),
	}, nil
}

// Router returns the HTTP handler for the capture API.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	if s.logRequests {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)

	r.Get("/config", s.handleConfig)
	r.Post("/start-recording", s.handleStart)
	r.Post("/stop-recording", s.handleStop)
	r.Post("/end-session", s.handleEnd)
	r.Get("/list-videos", s.handleListVideos)
	r.Get("/videos", s.handleVideo)
	r.Get("/participants", s.handleListParticipants)
	r.Post("/save-participant", s.handleSaveParticipant)
	r.Post("/capture-and-process-calibration", s.handleCalibration)
	r.Post("/run-pose-estimation", s.handlePose)
	r.Get("/play-combined", s.handleCombined)

	return r
}

// ── Responses ───────────────────

type validationItem struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("write response", "err", err)
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// requireFields writes a 422 listing every blank field and reports whether
// all were present.
func requireFields(w http.ResponseWriter, fields map[string]string) bool {
	var missing []validationItem
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if fields[name] == "" {
			missing = append(missing, validationItem{
				Loc:  []string{"body", name},
				Msg:  name + " is required",
				Type: "value_error.missing",
			})
		}
	}
	if len(missing) == 0 {
		return true
	}
	writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": missing})
	return false
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// ── Recording ───────────────────

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"host": s.host})
}

type startBody struct {
	Name      string `json:"name"`
	SessionID string `json:"session_id"`
	SavePath  string `json:"save_path"`
	StudyID   string `json:"study_id"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var body startBody
	if !decodeBody(w, r, &body) {
		return
	}
	if !requireFields(w, map[string]string{"name": body.Name, "session_id": body.SessionID, "save_path": body.SavePath}) {
		return
	}
	dir, err := s.store.resolve(body.SavePath)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid save_path")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	log := s.sessions[body.SessionID]
	if log == nil {
		log = &sessionLog{dir: dir}
		s.sessions[body.SessionID] = log
	}
	if log.active != nil {
		writeDetail(w, http.StatusConflict, fmt.Sprintf("session %s is already recording %q", body.SessionID, log.active.name))
		return
	}
	log.dir = dir
	log.active = &take{name: body.Name, started: s.now()}
	slog.Info("recording started", "session_id", body.SessionID, "trial", body.Name)
	writeJSON(w, http.StatusOK, map[string]string{"session_id": body.SessionID, "status": "recording"})
}

type stopBody struct {
	SessionID string `json:"session_id"`
	Name      string `json:"name"`
	SavePath  string `json:"save_path"`
	StudyID   string `json:"study_id"`
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	var body stopBody
	if !decodeBody(w, r, &body) {
		return
	}
	if !requireFields(w, map[string]string{"session_id": body.SessionID}) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	log := s.sessions[body.SessionID]
	if log == nil || log.active == nil {
		writeDetail(w, http.StatusConflict, fmt.Sprintf("session %s is not recording", body.SessionID))
		return
	}
	dir := log.dir
	if body.SavePath != "" {
		d, err := s.store.resolve(body.SavePath)
		if err != nil {
			writeDetail(w, http.StatusBadRequest, "invalid save_path")
			return
		}
		dir = d
	}
	name := body.Name
	if name == "" {
		name = log.active.name
	}

	t := *log.active
	t.stopped = s.now()
	payload := []byte(fmt.Sprintf("simulated clip %s %s-%s\n", name, t.started.Format(time.RFC3339), t.stopped.Format(time.RFC3339)))
	p, err := s.store.writeVideo(dir, name, payload)
	if err != nil {
		if errors.Is(err, errInvalidPath) {
			writeDetail(w, http.StatusBadRequest, "invalid trial name")
			return
		}
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	t.video = filepath.Base(p)
	log.takes = append(log.takes, t)
	log.active = nil
	slog.Info("recording stopped", "session_id", body.SessionID, "trial", name, "path", p)
	writeJSON(w, http.StatusOK, map[string]string{"path": s.store.rel(p)})
}

type endBody struct {
	SavePath  string            `json:"save_path"`
	SessionID string            `json:"session_id"`
	Notes     map[string]string `json:"notes"`
	Comment   string            `json:"comment"`
}

var csvHeader = []string{"trial", "video", "started_at", "stopped_at", "note"}

func (s *Server) handleEnd(w http.ResponseWriter, r *http.Request) {
	var body endBody
	if !decodeBody(w, r, &body) {
		return
	}
	if !requireFields(w, map[string]string{"save_path": body.SavePath, "session_id": body.SessionID}) {
		return
	}
	dir, err := s.store.resolve(body.SavePath)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid save_path")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var takes []take
	if log := s.sessions[body.SessionID]; log != nil {
		takes = log.takes
		if log.active != nil {
			t := *log.active
			t.stopped = s.now()
			takes = append(takes, t)
		}
	}

	rows := make([][]string, 0, len(takes))
	for _, t := range takes {
		rows = append(rows, []string{
			t.name,
			t.video,
			t.started.UTC().Format(time.RFC3339),
			t.stopped.UTC().Format(time.RFC3339),
			body.Notes[t.name],
		})
	}
	csvPath := filepath.Join(dir, "session.csv")
	if err := writeCSV(csvPath, csvHeader, rows); err != nil {
		writeDetail(w, http.StatusInternalServerError, "write session csv: "+err.Error())
		return
	}
	if body.Comment != "" {
		if err := os.WriteFile(filepath.Join(dir, "comment.txt"), []byte(body.Comment+"\n"), 0o644); err != nil {
			writeDetail(w, http.StatusInternalServerError, "write comment: "+err.Error())
			return
		}
	}
	delete(s.sessions, body.SessionID)
	slog.Info("session ended", "session_id", body.SessionID, "trials", len(rows))
	writeJSON(w, http.StatusOK, map[string]string{
		"message":  "Session ended",
		"csv_path": s.store.rel(csvPath),
	})
}

// ── Videos ───────────────────

func (s *Server) handleListVideos(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("session_id") == "" {
		writeJSON(w, http.StatusOK, map[string][]string{"videos": {}})
		return
	}
	dir, err := s.store.resolve(q.Get("save_path"))
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid save_path")
		return
	}
	videos, err := s.store.listVideos(dir)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"videos": videos})
}

func (s *Server) handleVideo(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	name := q.Get("video_name")
	if name == "" || q.Get("root_path") == "" {
		writeDetail(w, http.StatusBadRequest, "root_path and video_name are required")
		return
	}
	p, err := s.store.resolve(q.Get("root_path"), name)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid path")
		return
	}
	f, err := os.Open(p)
	if err != nil {
		writeDetail(w, http.StatusNotFound, "video not found")
		return
	}
	defer f.Close() //nolint:errcheck
	stat, err := f.Stat()
	if err != nil || stat.IsDir() {
		writeDetail(w, http.StatusNotFound, "video not found")
		return
	}
	w.Header().Set("Content-Type", "video/mp4")
	http.ServeContent(w, r, name, stat.ModTime(), f)
}

// ── Participants ───────────────────

type participantBody struct {
	SessionID     string  `json:"session_id"`
	StudyID       string  `json:"study_id"`
	BaseSavePath  string  `json:"base_save_path"`
	ParticipantID string  `json:"participant_id"`
	Height        float64 `json:"height"`
	Weight        float64 `json:"weight"`
	Birthday      string  `json:"birthday"`
	Sex           string  `json:"sex"`
}

var participantHeader = []string{"participant_id", "session_id", "height", "weight", "birthday", "sex"}

func (s *Server) participantsFile(base, study string) (string, error) {
	dir, err := s.store.resolve(base, study)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "participants.csv"), nil
}

func (s *Server) handleListParticipants(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("study_id") == "" {
		writeDetail(w, http.StatusBadRequest, "study_id is required")
		return
	}
	path, err := s.participantsFile(q.Get("base_save_path"), q.Get("study_id"))
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid base_save_path")
		return
	}

	s.mu.Lock()
	rows, err := readCSV(path)
	s.mu.Unlock()
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		if len(row) > 0 {
			ids = append(ids, row[0])
		}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"participant_ids": ids})
}

func (s *Server) handleSaveParticipant(w http.ResponseWriter, r *http.Request) {
	var body participantBody
	if !decodeBody(w, r, &body) {
		return
	}
	if !requireFields(w, map[string]string{"study_id": body.StudyID, "participant_id": body.ParticipantID}) {
		return
	}
	path, err := s.participantsFile(body.BaseSavePath, body.StudyID)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid base_save_path")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := readCSV(path)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	for _, row := range rows {
		if len(row) > 0 && row[0] == body.ParticipantID {
			writeDetail(w, http.StatusConflict, fmt.Sprintf("participant %s already exists", body.ParticipantID))
			return
		}
	}
	rows = append(rows, []string{
		body.ParticipantID,
		body.SessionID,
		strconv.FormatFloat(body.Height, 'f', -1, 64),
		strconv.FormatFloat(body.Weight, 'f', -1, 64),
		body.Birthday,
		body.Sex,
	})
	if err := writeCSV(path, participantHeader, rows); err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Participant " + body.ParticipantID + " saved"})
}

// ── Calibration ───────────────────

func (s *Server) handleCalibration(w http.ResponseWriter, r *http.Request) {
	writeDetail(w, http.StatusNotImplemented, "calibration is not available on the simulated backend")
}

// ── Pose estimation ───────────────────

func (s *Server) handlePose(w http.ResponseWriter, r *http.Request) {
	writeDetail(w, http.StatusNotImplemented, "pose estimation is not available on the simulated backend")
}

// No overlay is ever produced here.
func (s *Server) handleCombined(w http.ResponseWriter, r *http.Request) {
	writeDetail(w, http.StatusNotFound, "combined video not found")
}
