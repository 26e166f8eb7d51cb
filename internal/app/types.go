package app

// Explicit request and response records per operation; every body is
// validated before it reaches the coordinator or session manager.

type Metadata struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

type RecordingRequest struct {
	Identifier string   `json:"identifier"`
	Metadata   Metadata `json:"metadata"`
}

type RecordingResponse struct {
	Id        string `json:"id"`
	ObjectKey string `json:"objectKey"`
	// UploadUrl carries the presigned whole-object write credential for
	// uploadType=media.
	UploadUrl string `json:"uploadUrl,omitempty"`
	// UploadId identifies the multipart ticket for uploadType=resumable.
	UploadId string `json:"uploadId,omitempty"`
}

type RecordingInfoResponse struct {
	Id          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	ContentType string   `json:"contentType"`
	Size        int64    `json:"size"`
	Status      string   `json:"status"`
}

type PartCredentialResponse struct {
	PartNumber int64  `json:"partNumber"`
	Url        string `json:"url"`
}

type CompletedPart struct {
	PartNumber int64  `json:"partNumber"`
	ETag       string `json:"etag"`
}

type CompleteUploadRequest struct {
	Parts []CompletedPart `json:"parts"`
}

type CompleteUploadResponse struct {
	Location string `json:"location"`
	ETag     string `json:"etag"`
}

type SessionRequest struct {
	Identifier   string   `json:"identifier"`
	ContentType  string   `json:"contentType"`
	TotalChunks  int      `json:"totalChunks"`
	DeclaredSize int64    `json:"declaredSize"`
	Metadata     Metadata `json:"metadata"`
}

type SessionResponse struct {
	Id          string `json:"id"`
	RecordingId string `json:"recordingId"`
	ObjectKey   string `json:"objectKey"`
	ExpiresAt   int64  `json:"expiresAt"`
}

type ChunkResponse struct {
	Uploaded int  `json:"uploaded"`
	Total    int  `json:"total"`
	Final    bool `json:"final"`
}

type SessionStatusResponse struct {
	Uploaded int `json:"uploaded"`
	Total    int `json:"total"`
}
