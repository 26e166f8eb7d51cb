// Package reassembly buffers fixed-index byte chunks for clients that
// cannot drive native multipart uploads, and forwards the reassembled blob
// to the object store in a single final write.
package reassembly

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fieldrec/fieldstream/internal/domain/repository"
	"github.com/fieldrec/fieldstream/internal/fault"
	"github.com/fieldrec/fieldstream/internal/objectkey"
)

const (
	// DefaultTTL is the hard ceiling on a session's lifetime, measured
	// from creation. Activity does not extend it.
	DefaultTTL = 30 * time.Minute
	// DefaultMaxSessionBytes bounds buffered memory per session.
	DefaultMaxSessionBytes = 1 << 30
)

// StartInput carries everything needed to open a session.
type StartInput struct {
	TenantID     string
	OwnerID      string
	RecordingID  string
	Identifier   string
	ContentType  string
	TotalChunks  int
	DeclaredSize int64
}

// Progress reports the state of a session after an operation.
type Progress struct {
	Uploaded int
	Total    int
	Final    bool

	// Set only when Final: the stored object and its registry entry.
	TenantID    string
	RecordingID string
	ObjectKey   string
	Size        int64
	ETag        string
}

// Session is one in-flight chunked upload. Mutations happen under the
// session mutex; the sweep acquires the same mutex, so a session can never
// be reclaimed while its final assembly is running.
type Session struct {
	ID           string
	TenantID     string
	OwnerID      string
	RecordingID  string
	ObjectKey    string
	ContentType  string
	TotalChunks  int
	DeclaredSize int64
	CreatedAt    time.Time
	Deadline     time.Time

	mu            sync.Mutex
	chunks        [][]byte
	filled        []bool
	received      int
	receivedBytes int64
	finalizing    bool
	done          bool
}

type Option func(*Manager)

func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) { m.ttl = ttl }
}

func WithByteCeiling(n int64) Option {
	return func(m *Manager) { m.maxBytes = n }
}

// Manager owns the session table.
type Manager struct {
	store    repository.ObjectStore
	ttl      time.Duration
	maxBytes int64
	now      func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager(store repository.ObjectStore, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		ttl:      DefaultTTL,
		maxBytes: DefaultMaxSessionBytes,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start opens a session expiring at an absolute deadline independent of
// later activity.
func (m *Manager) Start(in StartInput) (*Session, error) {
	if in.TenantID == "" {
		return nil, fault.Validation("tenant ID must be required")
	}
	if in.Identifier == "" {
		return nil, fault.Validation("recording identifier must be required")
	}
	if in.TotalChunks < 1 {
		return nil, fault.Validation("total chunks must be a positive integer, got %d", in.TotalChunks)
	}
	if in.DeclaredSize < 1 {
		return nil, fault.Validation("declared size must be a positive integer, got %d", in.DeclaredSize)
	}
	if in.DeclaredSize > m.maxBytes {
		return nil, fault.Validation("declared size %d exceeds the %d byte ceiling", in.DeclaredSize, m.maxBytes)
	}
	now := m.now()
	s := &Session{
		ID:           uuid.New().String(),
		TenantID:     in.TenantID,
		OwnerID:      in.OwnerID,
		RecordingID:  in.RecordingID,
		ObjectKey:    objectkey.Derive(in.TenantID, in.Identifier, now),
		ContentType:  in.ContentType,
		TotalChunks:  in.TotalChunks,
		DeclaredSize: in.DeclaredSize,
		CreatedAt:    now,
		Deadline:     now.Add(m.ttl),
		chunks:       make([][]byte, in.TotalChunks),
		filled:       make([]bool, in.TotalChunks),
	}
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	slog.Info("started reassembly session", "session", s.ID, "key", s.ObjectKey, "chunks", in.TotalChunks)
	return s, nil
}

// Submit stores one chunk, taking ownership of data. A duplicate index
// overwrites the earlier bytes. When the last missing chunk arrives the
// buffers are concatenated in strict index order and written to the store;
// a failed write keeps the session alive so the final step can be retried
// by re-submitting any chunk.
func (m *Manager) Submit(ctx context.Context, id string, index int, data []byte) (*Progress, error) {
	s, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return nil, fault.Conflict("session %s is already completed", id)
	}
	if index < 0 || index >= s.TotalChunks {
		return nil, fault.Validation("chunk index %d is out of range [0, %d)", index, s.TotalChunks)
	}
	limit := min(s.DeclaredSize, m.maxBytes)
	next := s.receivedBytes - int64(len(s.chunks[index])) + int64(len(data))
	if next > limit {
		return nil, fault.Validation("chunk would grow the session to %d bytes, above the %d byte limit", next, limit)
	}
	// A zero-byte chunk arrives as a nil slice, so presence is tracked
	// separately from the buffer itself.
	if !s.filled[index] {
		s.filled[index] = true
		s.received++
	}
	s.chunks[index] = data
	s.receivedBytes = next

	if s.received < s.TotalChunks {
		return &Progress{Uploaded: s.received, Total: s.TotalChunks}, nil
	}
	return m.finalize(ctx, s)
}

// finalize runs with s.mu held.
func (m *Manager) finalize(ctx context.Context, s *Session) (*Progress, error) {
	s.finalizing = true
	defer func() { s.finalizing = false }()

	readers := make([]io.Reader, len(s.chunks))
	for i, chunk := range s.chunks {
		readers[i] = bytes.NewReader(chunk)
	}
	etag, err := m.store.Put(ctx, s.ObjectKey, s.ContentType, io.MultiReader(readers...))
	if err != nil {
		// Keep the session so the client can retry the final write without
		// re-uploading every chunk.
		slog.Error("failed to store reassembled object", "session", s.ID, "key", s.ObjectKey, "error", err)
		return nil, fault.Upstream(err, "failed to store reassembled object for session %s", s.ID)
	}
	s.done = true
	m.remove(s.ID)
	slog.Info("completed reassembly session", "session", s.ID, "key", s.ObjectKey, "bytes", s.receivedBytes)
	return &Progress{
		Uploaded:    s.received,
		Total:       s.TotalChunks,
		Final:       true,
		TenantID:    s.TenantID,
		RecordingID: s.RecordingID,
		ObjectKey:   s.ObjectKey,
		Size:        s.receivedBytes,
		ETag:        etag,
	}, nil
}

// Status reports the session's progress without mutating it.
func (m *Manager) Status(id string) (*Progress, error) {
	s, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return &Progress{Uploaded: s.received, Total: s.TotalChunks, Final: s.done}, nil
}

// Cancel discards the session and its buffered bytes. Cancelling a session
// that already completed reports success; an unknown or expired id is a
// not-found condition.
func (m *Manager) Cancel(id string) error {
	s, err := m.lookup(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return nil
	}
	m.remove(id)
	slog.Info("cancelled reassembly session", "session", id)
	return nil
}

// Run sweeps expired sessions until ctx ends.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *Manager) sweep() {
	now := m.now()
	m.mu.RLock()
	var candidates []*Session
	for _, s := range m.sessions {
		candidates = append(candidates, s)
	}
	m.mu.RUnlock()
	for _, s := range candidates {
		s.mu.Lock()
		expired := !s.done && now.After(s.Deadline)
		s.mu.Unlock()
		if expired {
			m.remove(s.ID)
			slog.Info("expired reassembly session", "session", s.ID, "key", s.ObjectKey)
		}
	}
}

// lookup returns the live session, lazily expiring it when the deadline
// has passed.
func (m *Manager) lookup(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fault.NotFound("session %s does not exist", id)
	}
	s.mu.Lock()
	expired := !s.finalizing && !s.done && m.now().After(s.Deadline)
	s.mu.Unlock()
	if expired {
		m.remove(id)
		return nil, fault.NotFound("session %s has expired", id)
	}
	return s, nil
}

func (m *Manager) remove(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}
