package web

import (
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"studium/db"
	"studium/session"
)

// Handler exposes sessions and their analysis progress over HTTP.
type Handler struct {
	store   *db.DB
	manager *session.Manager
	hub     *Hub
	logger  *log.Logger
}

func NewHandler(
	store *db.DB,
	manager *session.Manager,
	logger *log.Logger,
) *Handler {
	return &Handler{
		store:   store,
		manager: manager,
		hub:     NewHub(),
		logger:  logger,
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.handleIndex)
	r.Get("/sessions", h.handleListSessions)
	r.Post("/sessions", h.handleCreateSession)
	r.Get("/sessions/{id}", h.handleGetSession)
	r.Post("/sessions/{id}/analyze", h.handleReanalyze)
	r.Get("/sessions/{id}/events", h.handleEvents)
}

type createSessionRequest struct {
	Title       string `json:"title"`
	Text        string `json:"text"`
	Subject     string `json:"subject"`
	DurationSec int    `json:"duration_sec"`
	Source      string `json:"source"`
}

func (h *Handler) handleCreateSession(
	w http.ResponseWriter,
	r *http.Request,
) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	classID, err := h.manager.CreateDraft(
		r.Context(),
		req.Text,
		req.Title,
		req.DurationSec,
		req.Subject,
		req.Source,
	)
	if err != nil {
		h.logger.Error("create session", "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = h.manager.StartAnalysis(
		r.Context(),
		classID,
		h.hub.Observer(classID),
	)
	if err != nil {
		h.logger.Error("start analysis", "class_id", classID, "error", err)
		http.Error(w, "failed to start analysis", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]int64{"id": classID})
}

func (h *Handler) handleReanalyze(w http.ResponseWriter, r *http.Request) {
	classID, err := classIDParam(r)
	if err != nil {
		http.Error(w, "invalid session id", http.StatusBadRequest)
		return
	}

	err = h.manager.StartAnalysis(
		r.Context(),
		classID,
		h.hub.Observer(classID),
	)
	if errors.Is(err, db.ErrNotFound) {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("restart analysis", "class_id", classID, "error", err)
		http.Error(w, "failed to start analysis", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) handleListSessions(
	w http.ResponseWriter,
	r *http.Request,
) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	classes, err := h.store.GetRecentClasses(r.Context(), limit)
	if err != nil {
		h.logger.Error("list sessions", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if classes == nil {
		classes = []db.Class{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(classes)
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	classID, err := classIDParam(r)
	if err != nil {
		http.Error(w, "invalid session id", http.StatusBadRequest)
		return
	}

	data, err := h.store.GetClassData(r.Context(), classID)
	if errors.Is(err, db.ErrNotFound) {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("get session", "class_id", classID, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// local single-user tool
		return true
	},
}

// handleEvents streams a session's progress events over a websocket until
// the run's terminal event or client disconnect.
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	classID, err := classIDParam(r)
	if err != nil {
		http.Error(w, "invalid session id", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade", "error", err)
		return
	}
	defer conn.Close()

	events := h.hub.Subscribe(classID)
	defer h.hub.Unsubscribe(classID, events)

	disconnected := make(chan struct{})
	go func() {
		defer close(disconnected)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-disconnected:
			return
		case event := <-events:
			if err := conn.WriteJSON(event); err != nil {
				return
			}
			if event.Terminal() {
				return
			}
		}
	}
}

func classIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	classes, err := h.store.GetRecentClasses(r.Context(), 50)
	if err != nil {
		h.logger.Error("failed to get classes", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	tmpl := template.Must(template.New("index").Parse(`
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Study Sessions</title>
    <script src="https://cdn.tailwindcss.com"></script>
</head>
<body class="bg-gray-100">
    <div class="container mx-auto px-4 py-8">
        <h1 class="text-3xl font-bold mb-6">Study Sessions</h1>
        <div class="space-y-4">
            {{range .}}
            <div class="bg-white shadow rounded-lg p-4">
                <p class="text-gray-600 text-sm">{{.CreatedAt.Format "2006-01-02 15:04:05"}} · {{.Subject}}{{if .Level}} · {{.Level}}{{end}}</p>
                <p class="text-lg font-semibold">{{.Title}}</p>
                {{if .Summary}}<p class="text-gray-800">{{.Summary}}</p>{{else}}<p class="text-gray-400 italic">Not analyzed yet</p>{{end}}
                <p class="text-sm mt-2"><a class="text-blue-600" href="/sessions/{{.ID}}">View data</a></p>
            </div>
            {{end}}
        </div>
    </div>
</body>
</html>
`))

	w.Header().Set("Content-Type", "text/html")
	if err := tmpl.Execute(w, classes); err != nil {
		h.logger.Error("failed to execute template", "error", err)
	}
}
