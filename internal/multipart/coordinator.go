// Package multipart coordinates native multipart uploads against the
// object store. The coordinator only brokers identity and sequencing; the
// object bytes travel from the client straight to the store through
// credentials issued per part, so memory cost is flat regardless of file
// size.
package multipart

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/google/uuid"
	"golang.org/x/exp/slices"

	"github.com/fieldrec/fieldstream/internal/domain/entity"
	"github.com/fieldrec/fieldstream/internal/domain/repository"
	"github.com/fieldrec/fieldstream/internal/fault"
	"github.com/fieldrec/fieldstream/internal/objectkey"
)

type Status int

const (
	StatusInitiated Status = iota
	StatusPartsInFlight
	StatusCompleting
	StatusCompleted
	StatusAborted
)

func (s Status) String() string {
	switch s {
	case StatusInitiated:
		return "initiated"
	case StatusPartsInFlight:
		return "parts in flight"
	case StatusCompleting:
		return "completing"
	case StatusCompleted:
		return "completed"
	case StatusAborted:
		return "aborted"
	}
	return "unknown"
}

func (s Status) terminal() bool {
	return s == StatusCompleted || s == StatusAborted
}

// Ticket is one in-flight multipart upload. All state transitions happen
// under the ticket mutex, so operations on one ticket are serialized while
// different tickets proceed in parallel.
type Ticket struct {
	ID           string
	ObjectKey    string
	TenantID     string
	OwnerID      string
	RecordingID  string
	UploadID     string
	ExpectedSize int64
	CreatedAt    time.Time

	mu     sync.Mutex
	status Status
	doneAt time.Time
}

// Status returns the ticket's current state.
func (t *Ticket) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// CredentialIssuer mints the per-part write credentials handed back to the
// client. Signing is local; implementations must not perform network I/O.
type CredentialIssuer interface {
	PresignUploadPart(key, uploadID string, partNumber int64, ttl time.Duration) (string, error)
}

// InitiateInput carries everything needed to open a multipart upload.
type InitiateInput struct {
	TenantID     string
	OwnerID      string
	RecordingID  string
	Identifier   string
	ContentType  string
	ExpectedSize int64
	Metadata     map[string]string
}

// Result reports a completed upload.
type Result struct {
	TenantID    string
	RecordingID string
	Key         string
	Location    string
	ETag        string
	Size        int64
}

// Coordinator owns the ticket table. Terminal tickets linger for a
// retention window so client retries of abort or complete observe the
// terminal state instead of an unknown-ticket error; a sweep reclaims them
// afterwards.
type Coordinator struct {
	store     repository.ObjectStore
	signer    CredentialIssuer
	retention time.Duration
	now       func() time.Time

	mu      sync.RWMutex
	tickets map[string]*Ticket
}

const defaultRetention = time.Hour

func NewCoordinator(store repository.ObjectStore, signer CredentialIssuer) *Coordinator {
	return &Coordinator{
		store:     store,
		signer:    signer,
		retention: defaultRetention,
		now:       time.Now,
		tickets:   make(map[string]*Ticket),
	}
}

// Initiate allocates an upload ID at the store and returns a fresh ticket.
// Every call creates a new ticket; resuming an earlier logical upload is
// the caller's responsibility.
func (c *Coordinator) Initiate(ctx context.Context, in InitiateInput) (*Ticket, error) {
	if in.TenantID == "" {
		return nil, fault.Validation("tenant ID must be required")
	}
	if in.Identifier == "" {
		return nil, fault.Validation("recording identifier must be required")
	}
	key := objectkey.Derive(in.TenantID, in.Identifier, c.now())
	uploadID, err := c.store.CreateMultipart(ctx, key, in.ContentType, in.Metadata)
	if err != nil {
		return nil, fault.Upstream(err, "failed to create multipart upload for %q", key)
	}
	t := &Ticket{
		ID:           uuid.New().String(),
		ObjectKey:    key,
		TenantID:     in.TenantID,
		OwnerID:      in.OwnerID,
		RecordingID:  in.RecordingID,
		UploadID:     uploadID,
		ExpectedSize: in.ExpectedSize,
		CreatedAt:    c.now(),
		status:       StatusInitiated,
	}
	c.mu.Lock()
	c.tickets[t.ID] = t
	c.mu.Unlock()
	slog.Info("initiated multipart upload", "ticket", t.ID, "key", key, "upload_id", uploadID)
	return t, nil
}

// PartCredential issues a write credential scoped to exactly one
// (key, upload ID, part number) triple. No upper bound on the part number
// is enforced here; the store applies its own limit and its rejection is
// surfaced verbatim when the credential is redeemed.
func (c *Coordinator) PartCredential(ticketID string, partNumber int64, ttl time.Duration) (string, error) {
	if partNumber < 1 {
		return "", fault.Validation("part number must be a positive integer, got %d", partNumber)
	}
	t, err := c.get(ticketID)
	if err != nil {
		return "", err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status.terminal() || t.status == StatusCompleting {
		return "", fault.Conflict("upload %s is %s", t.ID, t.status)
	}
	t.status = StatusPartsInFlight
	return c.signer.PresignUploadPart(t.ObjectKey, t.UploadID, partNumber, ttl)
}

// Complete validates and sorts the client-supplied part manifest, then
// submits it to the store. A store rejection leaves the ticket in the
// parts-in-flight state so completion can be retried with a corrected
// manifest; it never auto-aborts.
func (c *Coordinator) Complete(ctx context.Context, ticketID string, parts []entity.Part) (*Result, error) {
	if len(parts) == 0 {
		return nil, fault.Validation("parts must not be empty")
	}
	seen := make(map[int64]bool, len(parts))
	for _, p := range parts {
		if p.PartNumber < 1 {
			return nil, fault.Validation("part number must be a positive integer, got %d", p.PartNumber)
		}
		if seen[p.PartNumber] {
			return nil, fault.Validation("duplicate part number %d", p.PartNumber)
		}
		seen[p.PartNumber] = true
	}
	t, err := c.get(ticketID)
	if err != nil {
		return nil, err
	}

	// The store rejects out-of-order manifests with an opaque error, so
	// order the manifest here before submission.
	sorted := make([]entity.Part, len(parts))
	copy(sorted, parts)
	slices.SortFunc(sorted, func(a, b entity.Part) int {
		switch {
		case a.PartNumber < b.PartNumber:
			return -1
		case a.PartNumber > b.PartNumber:
			return 1
		}
		return 0
	})

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status.terminal() || t.status == StatusCompleting {
		return nil, fault.Conflict("upload %s is %s", t.ID, t.status)
	}
	t.status = StatusCompleting
	location, etag, err := c.store.CompleteMultipart(ctx, t.ObjectKey, t.UploadID, sorted)
	if err != nil {
		switch storeErrorCode(err) {
		case "InvalidPart", "InvalidPartOrder":
			t.status = StatusPartsInFlight
			return nil, &fault.Error{Kind: fault.KindConflict, Msg: "store rejected the part manifest", Err: err}
		case s3.ErrCodeNoSuchUpload:
			// The store no longer knows the upload, so no manifest can ever
			// complete it. Park the ticket terminally instead of inviting
			// retries that cannot succeed.
			t.status = StatusAborted
			t.doneAt = c.now()
			return nil, &fault.Error{Kind: fault.KindConflict, Msg: "upload no longer exists at the store", Err: err}
		}
		t.status = StatusPartsInFlight
		return nil, fault.Upstream(err, "failed to complete multipart upload %s", t.ID)
	}
	t.status = StatusCompleted
	t.doneAt = c.now()
	slog.Info("completed multipart upload", "ticket", t.ID, "key", t.ObjectKey, "parts", len(sorted))
	return &Result{
		TenantID:    t.TenantID,
		RecordingID: t.RecordingID,
		Key:         t.ObjectKey,
		Location:    location,
		ETag:        etag,
		Size:        t.ExpectedSize,
	}, nil
}

// Abort moves the ticket to the aborted state and releases store-side
// storage for uncommitted parts. Aborting an already-terminal ticket is a
// success, so client retry races stay harmless.
func (c *Coordinator) Abort(ctx context.Context, ticketID string) error {
	t, err := c.get(ticketID)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status.terminal() {
		return nil
	}
	if err := c.store.AbortMultipart(ctx, t.ObjectKey, t.UploadID); err != nil {
		// The store forgetting the upload means there is nothing left to
		// release, which is the state abort wants.
		if storeErrorCode(err) != s3.ErrCodeNoSuchUpload {
			return fault.Upstream(err, "failed to abort multipart upload %s", t.ID)
		}
	}
	t.status = StatusAborted
	t.doneAt = c.now()
	slog.Info("aborted multipart upload", "ticket", t.ID, "key", t.ObjectKey)
	return nil
}

// Run sweeps terminal tickets past their retention window until ctx ends.
func (c *Coordinator) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *Coordinator) sweep() {
	cutoff := c.now().Add(-c.retention)
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, t := range c.tickets {
		t.mu.Lock()
		expired := t.status.terminal() && t.doneAt.Before(cutoff)
		t.mu.Unlock()
		if expired {
			delete(c.tickets, id)
		}
	}
}

func (c *Coordinator) get(id string) (*Ticket, error) {
	c.mu.RLock()
	t, ok := c.tickets[id]
	c.mu.RUnlock()
	if !ok {
		return nil, fault.NotFound("upload %s does not exist", id)
	}
	return t, nil
}

func storeErrorCode(err error) string {
	var ae awserr.Error
	if errors.As(err, &ae) {
		return ae.Code()
	}
	return ""
}
