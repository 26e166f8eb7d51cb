package entity

const (
	StatusPending  = "PENDING"
	StatusUploaded = "UPLOADED"
	StatusDeleted  = "DELETED"
	StatusFailed   = "FAILED"
)

// Recording is the registry entry for one field recording. The registry
// owns its schema; the core only reads and updates the fields below.
type Recording struct {
	Id          string
	TenantId    string
	OwnerId     string
	Title       string
	Description string
	ContentType string
	Tags        []string
	Metadata    map[string]string
	ObjectKey   string
	Size        int64
	Status      string
	CreatedAt   int64
}

func NewRecording(id, tenantID, ownerID, title, description, contentType string, size int64, tags []string) *Recording {
	return &Recording{
		Id:          id,
		TenantId:    tenantID,
		OwnerId:     ownerID,
		Title:       title,
		Description: description,
		ContentType: contentType,
		Size:        size,
		Status:      StatusPending,
		Tags:        tags,
	}
}

// Complete marks the recording as durably stored under key.
func (r *Recording) Complete(key string, size int64) {
	r.ObjectKey = key
	r.Size = size
	r.Status = StatusUploaded
}

// PlaybackFilename returns a friendly filename for inline playback,
// falling back to the recording id when no title was supplied.
func (r *Recording) PlaybackFilename() string {
	if r.Title != "" {
		return r.Title
	}
	return r.Id
}

// Part identifies one uploaded part of a multipart upload.
type Part struct {
	ETag       string // Entity tag returned by the store for the part.
	PartNumber int64  // Part number that identifies the part, starting at 1.
}

// ObjectInfo is the store's metadata for a stored object.
type ObjectInfo struct {
	Key         string
	Size        int64
	ContentType string
	ETag        string
}
