package model

import "time"

// Upload types an app can be created with.
const (
	UploadTypePaste = "paste"
	UploadTypeFile  = "file"
	UploadTypeZip   = "zip"
)

// App is one published web application. It is a pure domain model with no
// database-specific dependencies or tags, usable across layers.
//
// HTMLKey is the storage key of the root document. FileManifest maps
// archive-relative paths to storage keys and is nil for paste/file uploads;
// that distinction is surfaced to callers through the pipeline's Published
// variants rather than by null-checking here.
type App struct {
	ID           string            `json:"id"`
	Title        string            `json:"title"`
	Description  string            `json:"description,omitempty"`
	Category     string            `json:"category,omitempty"`
	Tags         []string          `json:"tags,omitempty"`
	UploadType   string            `json:"upload_type"`
	HTMLKey      string            `json:"html_key"`
	FileManifest map[string]string `json:"file_manifest,omitempty"`
	ThumbnailKey string            `json:"thumbnail_key,omitempty"`
	IsPublic     bool              `json:"is_public"`
	ViewCount    int64             `json:"view_count"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}
