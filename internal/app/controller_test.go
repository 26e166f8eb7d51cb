package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldrec/fieldstream/internal/domain/entity"
	"github.com/fieldrec/fieldstream/internal/httprange"
	"github.com/fieldrec/fieldstream/internal/multipart"
	"github.com/fieldrec/fieldstream/internal/reassembly"
	"github.com/fieldrec/fieldstream/internal/signer"
)

type mockRecordingRepository struct {
	mu         sync.Mutex
	recordings map[string]*entity.Recording
}

func newMockRepo() *mockRecordingRepository {
	return &mockRecordingRepository{recordings: make(map[string]*entity.Recording)}
}

func (m *mockRecordingRepository) GetById(ctx context.Context, tenantID, id string) (*entity.Recording, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recordings[tenantID+"/"+id], nil
}

func (m *mockRecordingRepository) Save(ctx context.Context, recording *entity.Recording) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordings[recording.TenantId+"/"+recording.Id] = recording
	return nil
}

type fakeObjectStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	completed []entity.Part
}

func newFakeStore() *fakeObjectStore {
	return &fakeObjectStore{objects: make(map[string][]byte)}
}

func (f *fakeObjectStore) CreateMultipart(ctx context.Context, key, contentType string, metadata map[string]string) (string, error) {
	return "upload-1", nil
}

func (f *fakeObjectStore) CompleteMultipart(ctx context.Context, key, uploadID string, parts []entity.Part) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = parts
	f.objects[key] = []byte("assembled")
	return "https://store.example/" + key, "etag-final", nil
}

func (f *fakeObjectStore) AbortMultipart(ctx context.Context, key, uploadID string) error {
	return nil
}

func (f *fakeObjectStore) Put(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	return "etag-put", nil
}

func (f *fakeObjectStore) Head(ctx context.Context, key string) (*entity.ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return &entity.ObjectInfo{Key: key, Size: int64(len(data)), ContentType: "video/mp4"}, nil
}

func (f *fakeObjectStore) Get(ctx context.Context, key, rng string) (io.ReadCloser, error) {
	f.mu.Lock()
	data, ok := f.objects[key]
	f.mu.Unlock()
	if !ok {
		return nil, errors.New("no such key")
	}
	if rng == "" {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	r, err := httprange.Parse(rng, int64(len(data)))
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data[r.Start : r.End+1])), nil
}

type fakeIssuer struct{}

func (fakeIssuer) PresignPut(key, contentType string, metadata map[string]string, ttl time.Duration) (string, error) {
	return "https://store.example/signed-put/" + key, nil
}

func (fakeIssuer) PresignGet(key string, ttl time.Duration, overrides *signer.GetOverrides) (string, error) {
	return "https://store.example/signed-get/" + key, nil
}

func (fakeIssuer) PresignUploadPart(key, uploadID string, partNumber int64, ttl time.Duration) (string, error) {
	return fmt.Sprintf("https://store.example/%s?uploadId=%s&partNumber=%d", key, uploadID, partNumber), nil
}

type fixture struct {
	router *mux.Router
	repo   *mockRecordingRepository
	store  *fakeObjectStore
}

func newFixture() *fixture {
	repo := newMockRepo()
	store := newFakeStore()
	issuer := fakeIssuer{}
	c := NewController(repo, store, multipart.NewCoordinator(store, issuer), reassembly.NewManager(store), issuer)
	r := mux.NewRouter()
	c.SetupRoutes(r)
	return &fixture{router: r, repo: repo, store: store}
}

func (f *fixture) do(method, path string, body string, headers http.Header) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, path, strings.NewReader(body))
	r.Header.Set("X-Tenant-ID", "acme")
	r.Header.Set("X-Owner-ID", "worker-1")
	for key, values := range headers {
		r.Header[key] = values
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, r)
	return w
}

func uploadHeaders() http.Header {
	return http.Header{
		"X-Upload-Content-Type":   {"video/mp4"},
		"X-Upload-Content-Length": {"1024"},
	}
}

func TestCreateRecording(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		headers  http.Header
		wantCode int
	}{
		{"missing content type", "/fieldstream/v1/recordings?uploadType=media", http.Header{"X-Upload-Content-Length": {"1024"}}, http.StatusBadRequest},
		{"missing content length", "/fieldstream/v1/recordings?uploadType=media", http.Header{"X-Upload-Content-Type": {"video/mp4"}}, http.StatusBadRequest},
		{"invalid upload type", "/fieldstream/v1/recordings", uploadHeaders(), http.StatusBadRequest},
		{"media", "/fieldstream/v1/recordings?uploadType=media", uploadHeaders(), http.StatusOK},
		{"resumable", "/fieldstream/v1/recordings?uploadType=resumable", uploadHeaders(), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			w := f.do("POST", tt.path, `{"identifier":"cam-1","metadata":{"title":"patrol"}}`, tt.headers)
			assert.Equal(t, tt.wantCode, w.Code, w.Body.String())
		})
	}
}

func TestCreateRecordingMedia(t *testing.T) {
	f := newFixture()
	w := f.do("POST", "/fieldstream/v1/recordings?uploadType=media", `{"identifier":"cam-1"}`, uploadHeaders())
	require.Equal(t, http.StatusOK, w.Code)

	var resp RecordingResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Id)
	assert.Contains(t, resp.UploadUrl, "signed-put")
	assert.Empty(t, resp.UploadId)

	saved, _ := f.repo.GetById(context.Background(), "acme", resp.Id)
	require.NotNil(t, saved, "the recording must be registered")
	assert.Equal(t, entity.StatusPending, saved.Status)
}

func TestMissingTenantHeader(t *testing.T) {
	f := newFixture()
	r := httptest.NewRequest("POST", "/fieldstream/v1/recordings?uploadType=media", strings.NewReader("{}"))
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, r)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMultipartUploadFlow(t *testing.T) {
	f := newFixture()
	w := f.do("POST", "/fieldstream/v1/recordings?uploadType=resumable", `{"identifier":"cam-1"}`, uploadHeaders())
	require.Equal(t, http.StatusOK, w.Code)
	var created RecordingResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotEmpty(t, created.UploadId)

	// Per-part credential.
	w = f.do("POST", "/upload/fieldstream/v1/uploads/"+created.UploadId+"/parts/2", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var cred PartCredentialResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cred))
	assert.Contains(t, cred.Url, "partNumber=2")

	// Empty manifest is rejected before the store is called.
	w = f.do("POST", "/upload/fieldstream/v1/uploads/"+created.UploadId+"/complete", `{"parts":[]}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Completion sorts out-of-order manifests.
	w = f.do("POST", "/upload/fieldstream/v1/uploads/"+created.UploadId+"/complete",
		`{"parts":[{"partNumber":2,"etag":"e2"},{"partNumber":1,"etag":"e1"},{"partNumber":3,"etag":"e3"}]}`, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.Len(t, f.store.completed, 3)
	for i, want := range []int64{1, 2, 3} {
		assert.Equal(t, want, f.store.completed[i].PartNumber)
	}

	saved, _ := f.repo.GetById(context.Background(), "acme", created.Id)
	require.NotNil(t, saved)
	assert.Equal(t, entity.StatusUploaded, saved.Status)

	// Abort after completion still reports success.
	w = f.do("DELETE", "/upload/fieldstream/v1/uploads/"+created.UploadId, "", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	// Unknown ticket.
	w = f.do("DELETE", "/upload/fieldstream/v1/uploads/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestChunkSessionFlow(t *testing.T) {
	f := newFixture()
	w := f.do("POST", "/upload/fieldstream/v1/sessions",
		`{"identifier":"cam-1","contentType":"video/mp4","totalChunks":3,"declaredSize":64,"metadata":{"title":"patrol"}}`, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var session SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &session))

	// Chunks arrive out of order.
	w = f.do("PUT", "/upload/fieldstream/v1/sessions/"+session.Id+"/chunks/2", "charlie", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var chunk ChunkResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &chunk))
	assert.Equal(t, 1, chunk.Uploaded)
	assert.False(t, chunk.Final)

	w = f.do("GET", "/upload/fieldstream/v1/sessions/"+session.Id, "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do("PUT", "/upload/fieldstream/v1/sessions/"+session.Id+"/chunks/0", "alpha", nil)
	require.Equal(t, http.StatusOK, w.Code)

	// Out-of-range index.
	w = f.do("PUT", "/upload/fieldstream/v1/sessions/"+session.Id+"/chunks/3", "delta", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do("PUT", "/upload/fieldstream/v1/sessions/"+session.Id+"/chunks/1", "bravo", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &chunk))
	assert.True(t, chunk.Final)

	assert.Equal(t, []byte("alphabravocharlie"), f.store.objects[session.ObjectKey])
	saved, _ := f.repo.GetById(context.Background(), "acme", session.RecordingId)
	require.NotNil(t, saved)
	assert.Equal(t, entity.StatusUploaded, saved.Status)
	assert.Equal(t, int64(len("alphabravocharlie")), saved.Size)

	// The completed session is gone.
	w = f.do("GET", "/upload/fieldstream/v1/sessions/"+session.Id, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCancelSession(t *testing.T) {
	f := newFixture()
	w := f.do("POST", "/upload/fieldstream/v1/sessions",
		`{"identifier":"cam-1","totalChunks":2,"declaredSize":64}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var session SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &session))

	w = f.do("DELETE", "/upload/fieldstream/v1/sessions/"+session.Id, "", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = f.do("DELETE", "/upload/fieldstream/v1/sessions/"+session.Id, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func storedRecording(f *fixture, size int) *entity.Recording {
	recording := entity.NewRecording("rec-1", "acme", "worker-1", "patrol", "", "video/mp4", 0, nil)
	recording.Complete("acme/2026/03/07/cam-1-42", int64(size))
	f.repo.Save(context.Background(), recording)
	f.store.objects[recording.ObjectKey] = bytes.Repeat([]byte("x"), size)
	return recording
}

func TestStreamRecordingProxy(t *testing.T) {
	f := newFixture()
	storedRecording(f, 1000)

	tests := []struct {
		name         string
		rangeHeader  string
		wantCode     int
		wantLength   int
		contentRange string
	}{
		{"full object", "", http.StatusOK, 1000, ""},
		{"partial", "bytes=100-199", http.StatusPartialContent, 100, "bytes 100-199/1000"},
		{"open ended", "bytes=900-", http.StatusPartialContent, 100, "bytes 900-999/1000"},
		{"unsatisfiable", "bytes=2000-", http.StatusRequestedRangeNotSatisfiable, 0, "bytes */1000"},
		{"multi range", "bytes=0-1,5-6", http.StatusBadRequest, 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := http.Header{}
			if tt.rangeHeader != "" {
				headers.Set("Range", tt.rangeHeader)
			}
			w := f.do("GET", "/fieldstream/v1/recordings/rec-1/stream", "", headers)
			require.Equal(t, tt.wantCode, w.Code, w.Body.String())
			if tt.contentRange != "" {
				assert.Equal(t, tt.contentRange, w.Header().Get("Content-Range"))
			}
			if tt.wantCode == http.StatusOK || tt.wantCode == http.StatusPartialContent {
				assert.Equal(t, "bytes", w.Header().Get("Accept-Ranges"))
				assert.Equal(t, tt.wantLength, w.Body.Len())
			}
		})
	}
}

func TestStreamRecordingRedirect(t *testing.T) {
	f := newFixture()
	recording := storedRecording(f, 10)

	w := f.do("GET", "/fieldstream/v1/recordings/rec-1/stream?mode=redirect", "", nil)
	require.Equal(t, http.StatusTemporaryRedirect, w.Code)
	assert.Equal(t, "https://store.example/signed-get/"+recording.ObjectKey, w.Header().Get("Location"))
}

func TestStreamRecordingNotFound(t *testing.T) {
	f := newFixture()
	w := f.do("GET", "/fieldstream/v1/recordings/missing/stream", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// A registered but never-stored recording is also a miss.
	f.repo.Save(context.Background(), entity.NewRecording("rec-2", "acme", "worker-1", "", "", "video/mp4", 0, nil))
	w = f.do("GET", "/fieldstream/v1/recordings/rec-2/stream", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetRecording(t *testing.T) {
	f := newFixture()
	storedRecording(f, 10)

	w := f.do("GET", "/fieldstream/v1/recordings/rec-1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var info RecordingInfoResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, "patrol", info.Title)
	assert.Equal(t, entity.StatusUploaded, info.Status)

	// Recordings are tenant scoped.
	r := httptest.NewRequest("GET", "/fieldstream/v1/recordings/rec-1", nil)
	r.Header.Set("X-Tenant-ID", "globex")
	w2 := httptest.NewRecorder()
	f.router.ServeHTTP(w2, r)
	assert.Equal(t, http.StatusNotFound, w2.Code)
}
