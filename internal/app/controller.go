package app

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/fieldrec/fieldstream/internal/domain/entity"
	"github.com/fieldrec/fieldstream/internal/domain/repository"
	"github.com/fieldrec/fieldstream/internal/fault"
	"github.com/fieldrec/fieldstream/internal/httprange"
	"github.com/fieldrec/fieldstream/internal/multipart"
	"github.com/fieldrec/fieldstream/internal/objectkey"
	"github.com/fieldrec/fieldstream/internal/reassembly"
	"github.com/fieldrec/fieldstream/internal/signer"
)

const (
	maxRequestSize = 1 << 20
	// MaxUploadChunkSize bounds one reassembly chunk, matching the store's
	// minimum part granularity.
	MaxUploadChunkSize = 5 << 20
)

// CredentialIssuer is the slice of the signer the HTTP layer needs.
type CredentialIssuer interface {
	PresignPut(key, contentType string, metadata map[string]string, ttl time.Duration) (string, error)
	PresignGet(key string, ttl time.Duration, overrides *signer.GetOverrides) (string, error)
}

// Controller wires the HTTP surface to the upload coordinator, the session
// manager, the credential issuer and the external collaborators. All
// dependencies are injected at construction.
type Controller struct {
	recordings  repository.RecordingRepository
	store       repository.ObjectStore
	coordinator *multipart.Coordinator
	sessions    *reassembly.Manager
	signer      CredentialIssuer
}

func NewController(
	recordings repository.RecordingRepository,
	store repository.ObjectStore,
	coordinator *multipart.Coordinator,
	sessions *reassembly.Manager,
	issuer CredentialIssuer,
) *Controller {
	return &Controller{
		recordings:  recordings,
		store:       store,
		coordinator: coordinator,
		sessions:    sessions,
		signer:      issuer,
	}
}

// Create a new recording and open an upload path for it.
// - media: the client receives a presigned single-PUT credential.
// - resumable: a multipart upload ticket is initiated at the store.
func (c *Controller) createRecording(w http.ResponseWriter, r *http.Request) error {
	tenant, err := tenantID(r)
	if err != nil {
		return err
	}
	var data RecordingRequest
	if err := parseJSON(w, r, &data); err != nil {
		return &AppError{http.StatusBadRequest, fmt.Sprintf("cannot parse JSON from request body: %v", err)}
	}
	if r.Header.Get("X-Upload-Content-Type") == "" {
		return &AppError{http.StatusBadRequest, "X-Upload-Content-Type header must be required"}
	}
	if r.Header.Get("X-Upload-Content-Length") == "" {
		return &AppError{http.StatusBadRequest, "X-Upload-Content-Length header must be required"}
	}
	length, err := strconv.ParseInt(r.Header.Get("X-Upload-Content-Length"), 10, 64)
	if err != nil || length < 1 {
		return &AppError{http.StatusBadRequest, "X-Upload-Content-Length header must be a positive integer"}
	}
	contentType := r.Header.Get("X-Upload-Content-Type")

	id := uuid.New().String()
	identifier := data.Identifier
	if identifier == "" {
		identifier = id
	}
	metadata := map[string]string{
		"title":       data.Metadata.Title,
		"description": data.Metadata.Description,
		"tags":        strings.Join(data.Metadata.Tags, ","),
	}
	resp := RecordingResponse{Id: id}

	switch r.URL.Query().Get("uploadType") {
	case "media":
		key := objectkey.Derive(tenant, identifier, time.Now())
		uploadURL, err := c.signer.PresignPut(key, contentType, metadata, 0)
		if err != nil {
			return err
		}
		resp.ObjectKey = key
		resp.UploadUrl = uploadURL
	case "resumable":
		ticket, err := c.coordinator.Initiate(r.Context(), multipart.InitiateInput{
			TenantID:     tenant,
			OwnerID:      ownerID(r),
			RecordingID:  id,
			Identifier:   identifier,
			ContentType:  contentType,
			ExpectedSize: length,
			Metadata:     metadata,
		})
		if err != nil {
			return err
		}
		resp.ObjectKey = ticket.ObjectKey
		resp.UploadId = ticket.ID
	default:
		return &AppError{http.StatusBadRequest, "Invalid upload type"}
	}

	recording := entity.NewRecording(id, tenant, ownerID(r), data.Metadata.Title, data.Metadata.Description, contentType, length, data.Metadata.Tags)
	recording.ObjectKey = resp.ObjectKey
	if err := c.recordings.Save(r.Context(), recording); err != nil {
		return fault.Upstream(err, "failed to save recording %s to the registry", id)
	}
	return replyJSON(w, resp, http.StatusOK)
}

// Get the recording metadata from the registry.
func (c *Controller) getRecording(w http.ResponseWriter, r *http.Request) error {
	recording, err := c.lookup(r)
	if err != nil {
		return err
	}
	return replyJSON(w, RecordingInfoResponse{
		Id:          recording.Id,
		Title:       recording.Title,
		Description: recording.Description,
		Tags:        recording.Tags,
		ContentType: recording.ContentType,
		Size:        recording.Size,
		Status:      recording.Status,
	}, http.StatusOK)
}

// Issue a write credential scoped to one part of an in-flight upload.
func (c *Controller) partCredential(w http.ResponseWriter, r *http.Request) error {
	if _, err := tenantID(r); err != nil {
		return err
	}
	vars := mux.Vars(r)
	partNumber, err := strconv.ParseInt(vars["partNumber"], 10, 64)
	if err != nil {
		return &AppError{http.StatusBadRequest, fmt.Sprintf("cannot parse part number %q", vars["partNumber"])}
	}
	url, err := c.coordinator.PartCredential(vars["id"], partNumber, 0)
	if err != nil {
		return err
	}
	return replyJSON(w, PartCredentialResponse{PartNumber: partNumber, Url: url}, http.StatusOK)
}

// Complete the multipart upload and record the stored object in the
// registry.
func (c *Controller) completeUpload(w http.ResponseWriter, r *http.Request) error {
	if _, err := tenantID(r); err != nil {
		return err
	}
	var data CompleteUploadRequest
	if err := parseJSON(w, r, &data); err != nil {
		return &AppError{http.StatusBadRequest, fmt.Sprintf("cannot parse JSON from request body: %v", err)}
	}
	parts := make([]entity.Part, 0, len(data.Parts))
	for _, p := range data.Parts {
		parts = append(parts, entity.Part{ETag: p.ETag, PartNumber: p.PartNumber})
	}
	res, err := c.coordinator.Complete(r.Context(), mux.Vars(r)["id"], parts)
	if err != nil {
		return err
	}
	if err := c.recordCompletion(r, res.TenantID, res.RecordingID, res.Key, res.Size); err != nil {
		return err
	}
	return replyJSON(w, CompleteUploadResponse{Location: res.Location, ETag: res.ETag}, http.StatusCreated)
}

// Abort the multipart upload. Aborting an already-terminal upload succeeds.
func (c *Controller) abortUpload(w http.ResponseWriter, r *http.Request) error {
	if _, err := tenantID(r); err != nil {
		return err
	}
	if err := c.coordinator.Abort(r.Context(), mux.Vars(r)["id"]); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// Start a chunk reassembly session for clients without native multipart
// support.
func (c *Controller) startSession(w http.ResponseWriter, r *http.Request) error {
	tenant, err := tenantID(r)
	if err != nil {
		return err
	}
	var data SessionRequest
	if err := parseJSON(w, r, &data); err != nil {
		return &AppError{http.StatusBadRequest, fmt.Sprintf("cannot parse JSON from request body: %v", err)}
	}
	id := uuid.New().String()
	identifier := data.Identifier
	if identifier == "" {
		identifier = id
	}
	session, err := c.sessions.Start(reassembly.StartInput{
		TenantID:     tenant,
		OwnerID:      ownerID(r),
		RecordingID:  id,
		Identifier:   identifier,
		ContentType:  data.ContentType,
		TotalChunks:  data.TotalChunks,
		DeclaredSize: data.DeclaredSize,
	})
	if err != nil {
		return err
	}
	recording := entity.NewRecording(id, tenant, ownerID(r), data.Metadata.Title, data.Metadata.Description, data.ContentType, data.DeclaredSize, data.Metadata.Tags)
	recording.ObjectKey = session.ObjectKey
	if err := c.recordings.Save(r.Context(), recording); err != nil {
		return fault.Upstream(err, "failed to save recording %s to the registry", id)
	}
	return replyJSON(w, SessionResponse{
		Id:          session.ID,
		RecordingId: id,
		ObjectKey:   session.ObjectKey,
		ExpiresAt:   session.Deadline.Unix(),
	}, http.StatusOK)
}

// Submit one chunk of a reassembly session. The final chunk triggers the
// single store write and records completion in the registry.
func (c *Controller) submitChunk(w http.ResponseWriter, r *http.Request) error {
	if _, err := tenantID(r); err != nil {
		return err
	}
	vars := mux.Vars(r)
	index, err := strconv.Atoi(vars["index"])
	if err != nil {
		return &AppError{http.StatusBadRequest, fmt.Sprintf("cannot parse chunk index %q", vars["index"])}
	}
	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, http.MaxBytesReader(w, r.Body, MaxUploadChunkSize)); err != nil {
		return &AppError{http.StatusBadRequest, fmt.Sprintf("cannot read chunk body: %v", err)}
	}
	progress, err := c.sessions.Submit(r.Context(), vars["id"], index, buf.Bytes())
	if err != nil {
		return err
	}
	if !progress.Final {
		return replyJSON(w, ChunkResponse{Uploaded: progress.Uploaded, Total: progress.Total}, http.StatusOK)
	}
	if err := c.recordCompletion(r, progress.TenantID, progress.RecordingID, progress.ObjectKey, progress.Size); err != nil {
		return err
	}
	return replyJSON(w, ChunkResponse{Uploaded: progress.Uploaded, Total: progress.Total, Final: true}, http.StatusCreated)
}

// Report the progress of a reassembly session.
func (c *Controller) sessionStatus(w http.ResponseWriter, r *http.Request) error {
	if _, err := tenantID(r); err != nil {
		return err
	}
	progress, err := c.sessions.Status(mux.Vars(r)["id"])
	if err != nil {
		return err
	}
	return replyJSON(w, SessionStatusResponse{Uploaded: progress.Uploaded, Total: progress.Total}, http.StatusOK)
}

// Cancel a reassembly session and discard its buffered bytes.
func (c *Controller) cancelSession(w http.ResponseWriter, r *http.Request) error {
	if _, err := tenantID(r); err != nil {
		return err
	}
	if err := c.sessions.Cancel(mux.Vars(r)["id"]); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// Stream the stored recording back to the client.
// - redirect: reply with a short-lived read credential for direct fetch.
// - proxy (default): fetch and forward bytes with HTTP range support.
func (c *Controller) streamRecording(w http.ResponseWriter, r *http.Request) error {
	recording, err := c.lookup(r)
	if err != nil {
		return err
	}
	if recording.Status != entity.StatusUploaded || recording.ObjectKey == "" {
		return fault.NotFound("recording %s has no stored object", recording.Id)
	}

	switch r.URL.Query().Get("mode") {
	case "redirect":
		url, err := c.signer.PresignGet(recording.ObjectKey, 0, &signer.GetOverrides{
			ContentType:        recording.ContentType,
			ContentDisposition: signer.InlineDisposition(recording.PlaybackFilename()),
		})
		if err != nil {
			return err
		}
		http.Redirect(w, r, url, http.StatusTemporaryRedirect)
		return nil
	case "", "proxy":
		return c.proxyStream(w, r, recording)
	}
	return &AppError{http.StatusBadRequest, "Invalid stream mode"}
}

// proxyStream forwards object bytes with single-range partial-content
// support.
func (c *Controller) proxyStream(w http.ResponseWriter, r *http.Request, recording *entity.Recording) error {
	info, err := c.store.Head(r.Context(), recording.ObjectKey)
	if err != nil {
		return fault.Upstream(err, "failed to probe object %q", recording.ObjectKey)
	}
	rng, err := httprange.Parse(r.Header.Get("Range"), info.Size)
	if errors.Is(err, httprange.ErrUnsatisfiable) {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", info.Size))
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		return nil
	}
	if err != nil {
		return &AppError{http.StatusBadRequest, err.Error()}
	}

	contentType := info.ContentType
	if contentType == "" {
		contentType = recording.ContentType
	}
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Type", contentType)

	storeRange := ""
	status := http.StatusOK
	length := info.Size
	if rng != nil {
		storeRange = fmt.Sprintf("bytes=%d-%d", rng.Start, rng.End)
		status = http.StatusPartialContent
		length = rng.Length()
		w.Header().Set("Content-Range", rng.ContentRange())
	}
	body, err := c.store.Get(r.Context(), recording.ObjectKey, storeRange)
	if err != nil {
		return fault.Upstream(err, "failed to fetch object %q", recording.ObjectKey)
	}
	defer body.Close()

	w.Header().Set("Content-Length", strconv.FormatInt(length, 10))
	w.WriteHeader(status)
	if _, err := io.Copy(w, body); err != nil {
		// Headers are gone; all that is left is logging upstream.
		return fmt.Errorf("failed to stream object %q: %w", recording.ObjectKey, err)
	}
	return nil
}

// lookup resolves the recording named by the request path within the
// caller's tenant. A registry miss is a not-found condition with no store
// access.
func (c *Controller) lookup(r *http.Request) (*entity.Recording, error) {
	tenant, err := tenantID(r)
	if err != nil {
		return nil, err
	}
	id := mux.Vars(r)["id"]
	if id == "" {
		return nil, &AppError{http.StatusBadRequest, "recording ID must be required"}
	}
	recording, err := c.recordings.GetById(r.Context(), tenant, id)
	if err != nil {
		return nil, fault.Upstream(err, "failed to look up recording %s", id)
	}
	if recording == nil {
		return nil, fault.NotFound("recording %s does not exist", id)
	}
	return recording, nil
}

// recordCompletion marks the registry entry as durably stored.
func (c *Controller) recordCompletion(r *http.Request, tenant, recordingID, key string, size int64) error {
	recording, err := c.recordings.GetById(r.Context(), tenant, recordingID)
	if err != nil {
		return fault.Upstream(err, "failed to look up recording %s", recordingID)
	}
	if recording == nil {
		return fault.NotFound("recording %s does not exist", recordingID)
	}
	recording.Complete(key, size)
	if err := c.recordings.Save(r.Context(), recording); err != nil {
		return fault.Upstream(err, "failed to record completion of recording %s", recordingID)
	}
	return nil
}
