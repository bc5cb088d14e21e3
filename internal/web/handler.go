package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/focusnudge/focusnudge/internal/config"
	"github.com/focusnudge/focusnudge/internal/journal"
	"github.com/focusnudge/focusnudge/internal/models"
	"github.com/focusnudge/focusnudge/internal/notify"
	"github.com/focusnudge/focusnudge/internal/procsnap"
	"github.com/focusnudge/focusnudge/internal/watcher"
)

const (
	defaultTitle = "Notification"
	defaultLimit = 50
)

// ProcessSource answers "list processes now"
type ProcessSource interface {
	Snapshot(ctx context.Context) ([]procsnap.ProcessRecord, error)
}

type Notifier interface {
	Notify(ctx context.Context, title, body string, preferDialog bool) (*notify.Pending, error)
}

// Events is the notification response stream
type Events interface {
	Subscribe() (<-chan notify.Result, error)
	Unsubscribe(<-chan notify.Result)
}

type Journal interface {
	RecordManual(p *notify.Pending, title, body string) error
	Recent(limit int) ([]*models.NotificationLog, error)
	Errors(limit int) ([]*models.ErrorLog, error)
	Report(since time.Time) (*models.Report, error)
}

type WatcherStatus interface {
	Status() watcher.Status
}

// Deps are the collaborators behind the API. Journal and Watcher may be
// nil; the watcher is absent when no active-window facility was found.
type Deps struct {
	Processes ProcessSource
	Notifier  Notifier
	Events    Events
	Journal   Journal
	Watcher   WatcherStatus
}

type Handler struct {
	config  *config.Config
	deps    Deps
	started time.Time
}

func NewHandler(cfg *config.Config, deps Deps) *Handler {
	return &Handler{
		config:  cfg,
		deps:    deps,
		started: time.Now(),
	}
}

func (h *Handler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/processes", h.handleProcesses)
	mux.HandleFunc("/api/notifications", h.handleNotifications)
	mux.HandleFunc("/api/events", h.handleEvents)
	mux.HandleFunc("/api/errors", h.handleErrors)
	mux.HandleFunc("/api/report", h.handleReport)
	mux.HandleFunc("/api/status", h.handleStatus)

	mux.HandleFunc("/health", h.handleHealth)
}

// Routes returns a mux serving every endpoint
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	h.SetupRoutes(mux)
	return mux
}

type processesResponse struct {
	OK   bool                     `json:"ok"`
	List []procsnap.ProcessRecord `json:"list"`
}

type failureResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

func (h *Handler) handleProcesses(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	list, err := h.deps.Processes.Snapshot(r.Context())
	if err != nil {
		log.Printf("Process snapshot failed: %v", err)
		respondJSONStatus(w, http.StatusInternalServerError, failureResponse{OK: false, Error: err.Error()})
		return
	}

	if list == nil {
		list = []procsnap.ProcessRecord{}
	}
	respondJSON(w, processesResponse{OK: true, List: list})
}

type notificationRequest struct {
	Title     string `json:"title"`
	Body      string `json:"body"`
	UseDialog *bool  `json:"useDialog"`
}

type notificationResponse struct {
	ID       string `json:"id,omitempty"`
	Dialog   bool   `json:"dialog"`
	Response *int   `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
}

func (h *Handler) handleNotifications(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.showNotification(w, r)
	case http.MethodGet:
		h.listNotifications(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// showNotification blocks until the user answers when the dialog channel is
// used; alerts return at once and answer on /api/events
func (h *Handler) showNotification(w http.ResponseWriter, r *http.Request) {
	var req notificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	title := req.Title
	if title == "" {
		title = defaultTitle
	}
	useDialog := h.config.Notify.PreferDialog
	if req.UseDialog != nil {
		useDialog = *req.UseDialog
	}

	p, err := h.deps.Notifier.Notify(r.Context(), title, req.Body, useDialog)
	if err != nil {
		log.Printf("Notification failed: %v", err)
		respondJSONStatus(w, http.StatusBadGateway, notificationResponse{Dialog: useDialog, Error: err.Error()})
		return
	}

	if h.deps.Journal != nil {
		if err := h.deps.Journal.RecordManual(p, title, req.Body); err != nil {
			log.Printf("Failed to journal notification %s: %v", p.ID, err)
		}
	}

	resp := notificationResponse{ID: p.ID, Dialog: p.Channel == notify.ChannelDialog}
	if res, ok := p.Result(); ok {
		resp.Response = res.RawIndex
	}
	respondJSON(w, resp)
}

// queryLimit reads ?limit=, writing a 400 when it is malformed
func queryLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		return defaultLimit, true
	}

	l, err := strconv.Atoi(limitStr)
	if err != nil || l < 0 {
		http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
		return 0, false
	}
	return l, true
}

func (h *Handler) listNotifications(w http.ResponseWriter, r *http.Request) {
	if h.deps.Journal == nil {
		respondJSON(w, []*models.NotificationLog{})
		return
	}

	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}

	entries, err := h.deps.Journal.Recent(limit)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to fetch notifications: %v", err), http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []*models.NotificationLog{}
	}

	respondJSON(w, entries)
}

// handleErrors lists nudges that could not be shown, newest first
func (h *Handler) handleErrors(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.deps.Journal == nil {
		respondJSON(w, []*models.ErrorLog{})
		return
	}

	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}

	failures, err := h.deps.Journal.Errors(limit)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to fetch errors: %v", err), http.StatusInternalServerError)
		return
	}
	if failures == nil {
		failures = []*models.ErrorLog{}
	}

	respondJSON(w, failures)
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.deps.Journal == nil {
		http.Error(w, "Journal not available", http.StatusServiceUnavailable)
		return
	}

	query := r.URL.Query()
	since := h.started
	if window := query.Get("since"); window != "" {
		d, err := time.ParseDuration(window)
		if err != nil || d <= 0 {
			http.Error(w, fmt.Sprintf("invalid since duration: %q", window), http.StatusBadRequest)
			return
		}
		since = time.Now().Add(-d)
	}

	report, err := h.deps.Journal.Report(since)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to generate report: %v", err), http.StatusInternalServerError)
		return
	}

	if query.Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte(journal.FormatReportText(report)))
		return
	}

	respondJSON(w, report)
}

type statusResponse struct {
	Running       bool            `json:"running"`
	PID           int             `json:"pid"`
	StartedAt     time.Time       `json:"started_at"`
	Uptime        string          `json:"uptime"`
	WatcherActive bool            `json:"watcher_active"`
	Watcher       *watcher.Status `json:"watcher,omitempty"`
	PreferDialog  bool            `json:"prefer_dialog"`
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status := statusResponse{
		Running:      true,
		PID:          os.Getpid(),
		StartedAt:    h.started,
		Uptime:       time.Since(h.started).Truncate(time.Second).String(),
		PreferDialog: h.config.Notify.PreferDialog,
	}

	if h.deps.Watcher != nil {
		st := h.deps.Watcher.Status()
		status.WatcherActive = st.Running
		status.Watcher = &st
	}

	respondJSON(w, status)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	respondJSONStatus(w, http.StatusOK, data)
}

func respondJSONStatus(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON: %v", err)
	}
}
