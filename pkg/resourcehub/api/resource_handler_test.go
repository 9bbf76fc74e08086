package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/resource-hub/pkg/resourcehub"
	"github.com/tendant/resource-hub/pkg/resourcehub/repo/memory"
	memorystorage "github.com/tendant/resource-hub/pkg/resourcehub/storage/memory"
)

// setupResourceHandlerTest mounts the handler on a router backed by in-memory stores
func setupResourceHandlerTest(t *testing.T, maxUploadBytes int64) (http.Handler, *memorystorage.Backend) {
	t.Helper()
	store := memorystorage.New()
	service, err := resourcehub.New(
		resourcehub.WithRepository(memory.New()),
		resourcehub.WithBlobStore("memory", store),
	)
	require.NoError(t, err)

	router := chi.NewRouter()
	router.Mount("/api/resources", NewResourceHandler(service, maxUploadBytes).Routes())
	return router, store
}

type uploadForm struct {
	fields   map[string]string
	fileName string
	content  []byte
	noFile   bool
}

func newUploadRequest(t *testing.T, form uploadForm) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for k, v := range form.fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	if !form.noFile {
		part, err := writer.CreateFormFile("file", form.fileName)
		require.NoError(t, err)
		_, err = part.Write(form.content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/resources/upload", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func upload(t *testing.T, router http.Handler, title, subject string, semester int, fileName, content string) resourcehub.Resource {
	t.Helper()
	req := newUploadRequest(t, uploadForm{
		fields: map[string]string{
			"title":    title,
			"subject":  subject,
			"semester": fmt.Sprint(semester),
			"type":     "notes",
		},
		fileName: fileName,
		content:  []byte(content),
	})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resource resourcehub.Resource
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resource))
	return resource
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp.Error
}

func TestResourceHandler_Hello(t *testing.T) {
	router, _ := setupResourceHandlerTest(t, 0)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/resources/hello", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, HelloMessage, w.Body.String())
}

func TestResourceHandler_Upload_Success(t *testing.T) {
	router, _ := setupResourceHandlerTest(t, 0)

	req := newUploadRequest(t, uploadForm{
		fields: map[string]string{
			"title":        "Midterm Notes",
			"subject":      "Physics",
			"semester":     "2",
			"type":         "notes",
			"uploaderName": "Asha",
		},
		fileName: "notes.pdf",
		content:  []byte("%PDF-1.4"),
	})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, float64(1), body["id"])
	assert.Equal(t, "Midterm Notes", body["title"])
	assert.Equal(t, "Physics", body["subject"])
	assert.Equal(t, float64(2), body["semester"])
	assert.Equal(t, "notes", body["type"])
	assert.Equal(t, "notes.pdf", body["fileName"])
	assert.Equal(t, float64(8), body["fileSize"])
	assert.Equal(t, "Asha", body["uploaderName"])
	assert.Equal(t, float64(0), body["downloadCount"])
	assert.NotEmpty(t, body["uploadDate"])
	assert.NotContains(t, body, "storagePath")
	assert.NotContains(t, body, "StoragePath")
}

func TestResourceHandler_Upload_BadRequests(t *testing.T) {
	valid := map[string]string{"title": "T", "subject": "Math", "semester": "1", "type": "notes"}
	with := func(key, value string) map[string]string {
		fields := map[string]string{}
		for k, v := range valid {
			fields[k] = v
		}
		fields[key] = value
		return fields
	}

	tests := []struct {
		name    string
		form    uploadForm
		message string
	}{
		{"missing title", uploadForm{fields: with("title", ""), fileName: "a.pdf", content: []byte("x")}, "invalid title: is required"},
		{"missing subject", uploadForm{fields: with("subject", " "), fileName: "a.pdf", content: []byte("x")}, "invalid subject: is required"},
		{"non-numeric semester", uploadForm{fields: with("semester", "three"), fileName: "a.pdf", content: []byte("x")}, "semester must be an integer"},
		{"zero semester", uploadForm{fields: with("semester", "0"), fileName: "a.pdf", content: []byte("x")}, "invalid semester: must be a positive integer"},
		{"missing file", uploadForm{fields: valid, noFile: true}, "file is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, store := setupResourceHandlerTest(t, 0)

			w := httptest.NewRecorder()
			router.ServeHTTP(w, newUploadRequest(t, tt.form))

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.message, decodeError(t, w))
			assert.Equal(t, 0, store.Len())
		})
	}

	t.Run("not multipart", func(t *testing.T) {
		router, _ := setupResourceHandlerTest(t, 0)
		req := httptest.NewRequest(http.MethodPost, "/api/resources/upload", strings.NewReader(`{"title":"x"}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestResourceHandler_Upload_TooLarge(t *testing.T) {
	router, store := setupResourceHandlerTest(t, 1024)

	req := newUploadRequest(t, uploadForm{
		fields:   map[string]string{"title": "Big", "subject": "Math", "semester": "1"},
		fileName: "big.bin",
		content:  bytes.Repeat([]byte("a"), 4096),
	})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, 0, store.Len())
}

func TestResourceHandler_GetResource(t *testing.T) {
	router, _ := setupResourceHandlerTest(t, 0)
	created := upload(t, router, "Calculus Notes", "Math", 3, "calc.pdf", "integrals")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/resources/%d", created.ID), nil))
	require.Equal(t, http.StatusOK, w.Code)

	var got resourcehub.Resource
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "Calculus Notes", got.Title)

	t.Run("unknown id", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/resources/999", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "resource not found", decodeError(t, w))
	})

	t.Run("malformed id", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/resources/abc", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestResourceHandler_ListAndSearch(t *testing.T) {
	router, _ := setupResourceHandlerTest(t, 0)
	calc := upload(t, router, "Calculus Notes", "Math", 3, "a.pdf", "x")
	algebra := upload(t, router, "Linear Algebra", "Math", 2, "b.pdf", "x")
	quantum := upload(t, router, "Quantum Intro", "Physics", 3, "c.pdf", "x")

	tests := []struct {
		query string
		want  []int64
	}{
		{"", []int64{calc.ID, algebra.ID, quantum.ID}},
		{"?subject=Math&semester=3", []int64{calc.ID}},
		{"?subject=Math", []int64{calc.ID, algebra.ID}},
		{"?semester=3", []int64{calc.ID, quantum.ID}},
		{"?keyword=calc", []int64{calc.ID}},
		{"?subject=Biology", []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/resources/"+tt.query, nil))
			require.Equal(t, http.StatusOK, w.Code)

			var list []resourcehub.Resource
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
			ids := make([]int64, 0, len(list))
			for _, r := range list {
				ids = append(ids, r.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}

	t.Run("empty result is an empty array", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/resources/?subject=Biology", nil))
		assert.Equal(t, "[]", strings.TrimSpace(w.Body.String()))
	})

	t.Run("bad semester", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/resources/?semester=x", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestResourceHandler_Download(t *testing.T) {
	router, store := setupResourceHandlerTest(t, 0)
	content := "Newton's laws of motion"
	created := upload(t, router, "Midterm Notes", "Physics", 2, "notes.pdf", content)

	for i := 1; i <= 2; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/resources/download/%d", created.ID), nil))

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/octet-stream", w.Header().Get("Content-Type"))
		assert.Equal(t, fmt.Sprint(len(content)), w.Header().Get("Content-Length"))
		assert.NotEmpty(t, w.Header().Get("Last-Modified"))
		assert.Equal(t, content, w.Body.String())

		disposition, params, err := mime.ParseMediaType(w.Header().Get("Content-Disposition"))
		require.NoError(t, err)
		assert.Equal(t, "attachment", disposition)
		assert.Equal(t, "notes.pdf", params["filename"])
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/resources/%d", created.ID), nil))
	var got resourcehub.Resource
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, 2, got.DownloadCount)

	t.Run("unknown id", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/resources/download/999", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("missing blob", func(t *testing.T) {
		gone := upload(t, router, "Gone", "Math", 1, "gone.pdf", "x")
		// Drop the stored blob behind the record
		require.NoError(t, store.Delete(context.Background(), findStoragePath(t, store, "gone.pdf")))

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/resources/download/%d", gone.ID), nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "resource file not found", decodeError(t, w))
	})
}

func TestResourceHandler_RoutesMiddlewareSkipsDownload(t *testing.T) {
	service, err := resourcehub.New(
		resourcehub.WithRepository(memory.New()),
		resourcehub.WithBlobStore("memory", memorystorage.New()),
	)
	require.NoError(t, err)

	var wrapped []string
	mark := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped = append(wrapped, r.URL.Path)
			next.ServeHTTP(w, r)
		})
	}

	router := chi.NewRouter()
	router.Mount("/api/resources", NewResourceHandler(service, 0).Routes(mark))

	created := upload(t, router, "Midterm Notes", "Physics", 2, "notes.pdf", "kinematics")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/resources/download/%d", created.ID), nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "kinematics", w.Body.String())

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/resources/%d", created.ID), nil))
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, []string{"/api/resources/upload", fmt.Sprintf("/api/resources/%d", created.ID)}, wrapped)
}

func TestContentDisposition(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
	}{
		{"plain", "notes.pdf"},
		{"spaces", "my notes.pdf"},
		{"quotes", `say "hi".txt`},
		{"unicode", "résumé.pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			disposition, params, err := mime.ParseMediaType(contentDisposition(tt.fileName))
			require.NoError(t, err)
			assert.Equal(t, "attachment", disposition)
			assert.Equal(t, tt.fileName, params["filename"])
		})
	}
}

// findStoragePath locates the single stored blob whose key ends in suffix
func findStoragePath(t *testing.T, store *memorystorage.Backend, suffix string) string {
	t.Helper()
	keys := store.Keys()
	for _, key := range keys {
		if strings.HasSuffix(key, suffix) {
			return key
		}
	}
	t.Fatalf("no blob with suffix %q among %v", suffix, keys)
	return ""
}
