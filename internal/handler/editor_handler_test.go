package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reel-editor/internal/models"
	"reel-editor/internal/service"
	"reel-editor/internal/storage"
	"reel-editor/internal/templates"
)

type memStorage struct {
	files map[string][]byte
}

func (m *memStorage) Upload(_ context.Context, r io.Reader, filename, _ string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.files[filename] = data
	return "http://cdn.test/" + filename, nil
}

type fixture struct {
	router  *mux.Router
	svc     *service.ProjectService
	storage *memStorage
}

func newFixture(t *testing.T, store storage.Storage) *fixture {
	t.Helper()
	logger := zerolog.Nop()
	svc := service.NewProjectService(service.NewMemoryRepository(), service.Options{Logger: &logger})
	catalog, err := templates.Load("")
	require.NoError(t, err)

	mem := &memStorage{files: map[string][]byte{}}
	if store == nil {
		store = mem
	}
	r := mux.NewRouter()
	NewEditorHandler(svc, store, catalog, &logger).Register(r.PathPrefix("/api/v1").Subrouter())
	return &fixture{router: r, svc: svc, storage: mem}
}

func (f *fixture) do(t *testing.T, method, path, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func userHeader(id uuid.UUID) http.Header {
	return http.Header{UserHeader: []string{id.String()}}
}

func TestProjectLifecycle(t *testing.T) {
	f := newFixture(t, nil)
	user := uuid.New()

	rec := f.do(t, http.MethodPost, "/api/v1/projects", `{"user_id":"`+user.String()+`","title":"Beach"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[models.ProjectDocument](t, rec)
	assert.Equal(t, "Beach", created.Title)
	assert.Equal(t, models.StatusDraft, created.Status)
	path := "/api/v1/projects/" + created.ID.String()

	save := `{"project_json":{"tracks":[{"id":"track-video","type":"video","clips":[{"id":"v1","src":"a.mp4","start":0,"end":4}]}],"settings":{"duration":4,"resolution":{"width":1080,"height":1920}}}}`
	rec = f.do(t, http.MethodPut, path, save, userHeader(user))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodGet, path, "", userHeader(user))
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[models.ProjectDocument](t, rec)
	assert.Equal(t, 2, got.Version)
	require.Len(t, got.ProjectJSON.Tracks, 1)
	assert.Equal(t, "v1", got.ProjectJSON.Tracks[0].Clips[0].ID)

	rec = f.do(t, http.MethodGet, "/api/v1/projects?user_id="+user.String(), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Projects []models.ProjectDocument `json:"projects"`
	}](t, rec)
	assert.Len(t, list.Projects, 1)

	rec = f.do(t, http.MethodPatch, path+"/status", `{"status":"done"}`, userHeader(user))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/api/v1/projects?user_id="+user.String(), "", nil)
	list = decode[struct {
		Projects []models.ProjectDocument `json:"projects"`
	}](t, rec)
	assert.Empty(t, list.Projects, "published projects are not drafts")

	rec = f.do(t, http.MethodDelete, path, "", userHeader(user))
	require.Equal(t, http.StatusOK, rec.Code)
	rec = f.do(t, http.MethodGet, path, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestErrorMapping(t *testing.T) {
	f := newFixture(t, nil)
	owner := uuid.New()
	doc, err := f.svc.Create(context.Background(), owner, "mine")
	require.NoError(t, err)
	path := "/api/v1/projects/" + doc.ID.String()

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		header http.Header
		want   int
	}{
		{"bad id", http.MethodGet, "/api/v1/projects/nope", "", nil, http.StatusBadRequest},
		{"unknown project", http.MethodGet, "/api/v1/projects/" + uuid.NewString(), "", nil, http.StatusNotFound},
		{"other user", http.MethodGet, path, "", userHeader(uuid.New()), http.StatusForbidden},
		{"bad user header", http.MethodGet, path, "", http.Header{UserHeader: []string{"x"}}, http.StatusBadRequest},
		{"malformed json", http.MethodPut, path, `{"project_json":`, nil, http.StatusBadRequest},
		{"malformed project", http.MethodPut, path, `{"project_json":{"tracks":"x"}}`, nil, http.StatusBadRequest},
		{"invalid project", http.MethodPut, path, `{"project_json":{"tracks":[{"type":"sticker","clips":[]}]}}`, nil, http.StatusBadRequest},
		{"invalid status", http.MethodPatch, path + "/status", `{"status":"archived"}`, nil, http.StatusBadRequest},
		{"create without user", http.MethodPost, "/api/v1/projects", `{"title":"x"}`, nil, http.StatusBadRequest},
		{"foreign delete", http.MethodDelete, path, "", userHeader(uuid.New()), http.StatusForbidden},
		{"unknown template", http.MethodGet, "/api/v1/templates/nope", "", nil, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, tt.method, tt.path, tt.body, tt.header)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			body := decode[map[string]string](t, rec)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestTemplates(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/api/v1/templates", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	all := decode[struct {
		Templates []templates.Template `json:"templates"`
	}](t, rec)
	assert.Len(t, all.Templates, 4)

	rec = f.do(t, http.MethodGet, "/api/v1/templates?category=filter", "", nil)
	filters := decode[struct {
		Templates []templates.Template `json:"templates"`
	}](t, rec)
	assert.Len(t, filters.Templates, 2)

	rec = f.do(t, http.MethodGet, "/api/v1/templates/party", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "party", decode[templates.Template](t, rec).ID)
}

func multipartBody(t *testing.T, filename, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUpload(t *testing.T) {
	f := newFixture(t, nil)

	body, ct := multipartBody(t, "clip.mp4", "video/mp4", []byte("mp4 data"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decode[map[string]string](t, rec)
	assert.Equal(t, "http://cdn.test/clip.mp4", resp["file_url"])
	assert.Equal(t, "video", resp["media"])
	assert.Equal(t, []byte("mp4 data"), f.storage.files["clip.mp4"])

	body, ct = multipartBody(t, "notes.txt", "text/plain", []byte("hi"))
	req = httptest.NewRequest(http.MethodPost, "/api/v1/upload", body)
	req.Header.Set("Content-Type", ct)
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpload_S3NotConfigured(t *testing.T) {
	f := newFixture(t, storage.NewS3Storage("bucket", "eu-west-1"))

	body, ct := multipartBody(t, "song.mp3", "audio/mpeg", []byte("id3"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}
