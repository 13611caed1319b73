package repository

import (
	"context"

	"github.com/killkli/boyo-app-share/internal/model"
)

// AppFilter narrows List results. Zero values mean "no filter".
type AppFilter struct {
	// Category matches exactly.
	Category string
	// Tags requires the app to carry every listed tag.
	Tags []string
	// Search matches title or description, case-insensitively.
	Search string
	// Sort is "latest" (default) or "popular" (view count first).
	Sort string
}

// ContentUpdate is the wholesale root/manifest/thumbnail swap the
// supersession flow commits after a re-upload's objects are confirmed
// published. The row is replaced in one statement.
type ContentUpdate struct {
	HTMLKey      string
	FileManifest map[string]string
	ThumbnailKey string
}

// MetadataUpdate carries a partial metadata edit. Nil fields keep the stored
// value; set fields overwrite it, empty strings included.
type MetadataUpdate struct {
	Title       *string
	Description *string
	Category    *string
	Tags        *[]string
	IsPublic    *bool
}

// AppRepository defines data access for apps using SQL queries only.
// No business logic here, strictly persistence operations.
type AppRepository interface {
	// Create inserts a new app record and returns the stored row.
	Create(ctx context.Context, app *model.App) (*model.App, error)

	// FindByID returns an app by its ID, manifest included.
	FindByID(ctx context.Context, id string) (*model.App, error)

	// List returns a filtered, paginated page of public apps plus the total
	// row count for the filter. List rows omit the manifest; use
	// GetManifestFor / GetManifestsFor when keys are needed.
	List(ctx context.Context, f AppFilter, pq PageQuery) (*PageResult[model.App], error)

	// UpdateContent atomically replaces the app's root key, manifest and
	// thumbnail key, bumping updated_at.
	UpdateContent(ctx context.Context, id string, upd ContentUpdate) (*model.App, error)

	// UpdateMetadata applies a partial metadata edit and returns the updated
	// row. updated_at is bumped even when the update is empty.
	UpdateMetadata(ctx context.Context, id string, upd MetadataUpdate) (*model.App, error)

	// IncrementViews bumps the view counter by one.
	IncrementViews(ctx context.Context, id string) error

	// GetManifestFor returns one app's manifest (nil for single-file apps).
	GetManifestFor(ctx context.Context, id string) (map[string]string, error)

	// GetManifestsFor returns the manifests of several apps keyed by app ID.
	// Missing IDs are simply absent from the result.
	GetManifestsFor(ctx context.Context, ids []string) (map[string]map[string]string, error)

	// Delete removes an app by ID. It returns nil if the row was deleted or did not exist.
	Delete(ctx context.Context, id string) error
}
