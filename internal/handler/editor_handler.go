package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	xlog "reel-editor/internal/log"
	"reel-editor/internal/models"
	"reel-editor/internal/project"
	"reel-editor/internal/service"
	"reel-editor/internal/storage"
	"reel-editor/internal/templates"
	"reel-editor/internal/validation"
)

// UserHeader carries the caller's id. The API gateway injects it in
// production; requests without it skip the ownership check.
const UserHeader = "X-User-ID"

var errBadRequest = errors.New("bad request")

type EditorHandler struct {
	Service   *service.ProjectService
	Storage   storage.Storage
	Templates *templates.Catalog
	Log       zerolog.Logger
}

func NewEditorHandler(svc *service.ProjectService, store storage.Storage, catalog *templates.Catalog, logger *zerolog.Logger) *EditorHandler {
	return &EditorHandler{
		Service:   svc,
		Storage:   store,
		Templates: catalog,
		Log:       xlog.Or(logger, "handler"),
	}
}

// Register mounts the API on r, normally the /api/v1 subrouter.
func (h *EditorHandler) Register(r *mux.Router) {
	r.HandleFunc("/projects", h.CreateProject).Methods(http.MethodPost)
	r.HandleFunc("/projects", h.ListDrafts).Methods(http.MethodGet)
	r.HandleFunc("/projects/{id}", h.GetProject).Methods(http.MethodGet)
	r.HandleFunc("/projects/{id}", h.SaveProject).Methods(http.MethodPut)
	r.HandleFunc("/projects/{id}/status", h.UpdateStatus).Methods(http.MethodPatch)
	r.HandleFunc("/projects/{id}", h.DeleteProject).Methods(http.MethodDelete)
	r.HandleFunc("/upload", h.UploadFile).Methods(http.MethodPost)
	r.HandleFunc("/templates", h.ListTemplates).Methods(http.MethodGet)
	r.HandleFunc("/templates/{id}", h.GetTemplate).Methods(http.MethodGet)
}

func (h *EditorHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
		Title  string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, r, badRequest("invalid JSON"))
		return
	}
	if req.UserID == "" {
		req.UserID = r.Header.Get(UserHeader)
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		h.fail(w, r, badRequest("user_id must be a UUID"))
		return
	}

	doc, err := h.Service.Create(r.Context(), userID, req.Title)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (h *EditorHandler) ListDrafts(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("user_id")
	if raw == "" {
		raw = r.Header.Get(UserHeader)
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		h.fail(w, r, badRequest("user_id must be a UUID"))
		return
	}

	drafts, err := h.Service.ListDrafts(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if drafts == nil {
		drafts = []models.ProjectDocument{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": drafts})
}

func (h *EditorHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	id, ok := h.projectID(w, r)
	if !ok {
		return
	}
	doc, err := h.load(r, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *EditorHandler) SaveProject(w http.ResponseWriter, r *http.Request) {
	id, ok := h.projectID(w, r)
	if !ok {
		return
	}

	var body struct {
		ProjectJSON json.RawMessage `json:"project_json"`
		Status      *models.Status  `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.fail(w, r, badRequest("invalid JSON"))
		return
	}
	pj, err := project.Decode(body.ProjectJSON)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := validation.ValidateProjectJSON(pj); err != nil {
		h.fail(w, r, err)
		return
	}
	if _, err := h.load(r, id); err != nil {
		h.fail(w, r, err)
		return
	}

	if err := h.Service.Save(r.Context(), id, pj, body.Status); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

// UpdateStatus is the partial update: only the status column changes.
func (h *EditorHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.projectID(w, r)
	if !ok {
		return
	}

	var body struct {
		Status models.Status `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.fail(w, r, badRequest("invalid JSON"))
		return
	}
	if _, err := h.load(r, id); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.Service.UpdateStatus(r.Context(), id, body.Status); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(body.Status)})
}

func (h *EditorHandler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	id, ok := h.projectID(w, r)
	if !ok {
		return
	}
	if _, err := h.load(r, id); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.Service.Delete(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *EditorHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, validation.MaxFileSize+(1<<20))
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxBytes *http.MaxBytesError
		if !errors.As(err, &maxBytes) {
			err = badRequest("invalid multipart form")
		}
		h.fail(w, r, err)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.fail(w, r, badRequest("missing file"))
		return
	}
	defer file.Close()

	contentType, class, err := validation.ValidateUpload(header)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	fileURL, err := h.Storage.Upload(r.Context(), file, header.Filename, contentType)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"file_url":     fileURL,
		"content_type": contentType,
		"media":        string(class),
	})
}

func (h *EditorHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	list := h.Templates.List(r.URL.Query().Get("category"))
	writeJSON(w, http.StatusOK, map[string]any{"templates": list})
}

func (h *EditorHandler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := h.Templates.Get(mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *EditorHandler) projectID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, badRequest("project id must be a UUID"))
		return uuid.Nil, false
	}
	return id, true
}

// load applies the ownership check when the caller identified itself.
func (h *EditorHandler) load(r *http.Request, id uuid.UUID) (*models.ProjectDocument, error) {
	raw := r.Header.Get(UserHeader)
	if raw == "" {
		return h.Service.Load(r.Context(), id)
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return nil, badRequest(UserHeader + " must be a UUID")
	}
	return h.Service.LoadOwned(r.Context(), id, userID)
}
