package service

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/killkli/boyo-app-share/internal/model"
	"github.com/killkli/boyo-app-share/internal/pipeline"
	"github.com/killkli/boyo-app-share/internal/repository"
	"github.com/killkli/boyo-app-share/internal/storage"
)

var (
	ErrIDRequired        = errors.New("id is required")
	ErrNotFound          = errors.New("app not found")
	ErrTitleRequired     = errors.New("title is required")
	ErrInvalidUploadType = errors.New("upload type must be paste, file or zip")
	ErrMissingContent    = errors.New("html or zip content is required")
	ErrInvalidBase64     = errors.New("content is not valid base64")
	ErrContentTooLarge   = errors.New("content exceeds the upload size limit")
)

// presignExpiry bounds how long a link to an unlisted app's root document
// stays valid.
const presignExpiry = time.Hour

// CreateInput is the boundary shape of a first-time upload. ZipContent and
// ThumbnailBase64 arrive base64-encoded; decoding happens here, before the
// pipeline runs, so a bad payload never reaches storage.
type CreateInput struct {
	Title           string
	Description     string
	Category        string
	Tags            []string
	UploadType      string
	HTMLContent     string
	ZipContent      string
	ThumbnailBase64 string
}

// ReuploadInput replaces an app's published content. The upload type is fixed
// at creation; a zip app re-uploads a zip, a paste/file app re-uploads HTML.
type ReuploadInput struct {
	HTMLContent     string
	ZipContent      string
	ThumbnailBase64 string
}

// UpdateMetadataInput is a partial metadata edit. Nil fields are left alone;
// set fields overwrite, so a set empty description clears it. Flipping
// IsPublic off switches the app's URL to a time-limited presigned link.
type UpdateMetadataInput struct {
	Title       *string
	Description *string
	Category    *string
	Tags        *[]string
	IsPublic    *bool
}

// AppResult pairs an app with the public URL of its root document.
type AppResult struct {
	App *model.App `json:"app"`
	URL string     `json:"url"`
}

// AppListResult is the service-level DTO for paginated app listings.
type AppListResult struct {
	Items      []model.App `json:"data"`
	Total      int         `json:"total"`
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
	TotalPages int         `json:"total_pages"`
}

// ListQuery carries the listing filters up from the HTTP layer.
type ListQuery struct {
	Page     int
	Limit    int
	Category string
	Tags     []string
	Search   string
	Sort     string
}

// AppService defines the use cases for publishing and managing apps.
type AppService interface {
	// Create publishes the uploaded content and records the app. Nothing is
	// persisted unless every object write succeeded; a failed record insert
	// rolls the published objects back.
	Create(ctx context.Context, in CreateInput) (*AppResult, error)

	// Reupload replaces an app's published content, then retires the objects
	// the new upload no longer references. Cleanup failures never fail the
	// re-upload.
	Reupload(ctx context.Context, id string, in ReuploadInput) (*AppResult, error)

	// UpdateMetadata edits an app's descriptive fields and visibility without
	// touching its published content.
	UpdateMetadata(ctx context.Context, id string, in UpdateMetadataInput) (*AppResult, error)

	// Get returns an app by ID and bumps its view counter.
	Get(ctx context.Context, id string) (*AppResult, error)

	// List returns public apps matching the query.
	List(ctx context.Context, q ListQuery) (*AppListResult, error)

	// GetManifest returns one app's path→key manifest; nil for single-file apps.
	GetManifest(ctx context.Context, id string) (map[string]string, error)

	// GetManifests returns the manifests for several apps keyed by ID.
	GetManifests(ctx context.Context, ids []string) (map[string]map[string]string, error)

	// Delete removes the app's storage objects and its record.
	Delete(ctx context.Context, id string) error
}

// appService is a concrete implementation of AppService.
type appService struct {
	store       storage.Storage
	repo        repository.AppRepository
	publisher   *pipeline.Publisher
	superseder  *pipeline.Superseder
	maxZipBytes int64
}

// Options tune the service. Namespace is the storage prefix app content is
// published under; MaxZipBytes caps decoded archive size (0 means no cap).
type Options struct {
	Namespace   string
	MaxZipBytes int64
}

// NewAppService constructs a new AppService over injected storage and
// repository capabilities.
func NewAppService(store storage.Storage, repo repository.AppRepository, opts Options) AppService {
	if opts.Namespace == "" {
		opts.Namespace = "apps"
	}
	return &appService{
		store:       store,
		repo:        repo,
		publisher:   pipeline.NewPublisher(store, opts.Namespace),
		superseder:  pipeline.NewSuperseder(store),
		maxZipBytes: opts.MaxZipBytes,
	}
}

func (s *appService) Create(ctx context.Context, in CreateInput) (*AppResult, error) {
	if in.Title == "" {
		return nil, ErrTitleRequired
	}

	appID := uuid.NewString()

	published, err := s.publishContent(ctx, appID, in.UploadType, in.HTMLContent, in.ZipContent)
	if err != nil {
		return nil, err
	}

	thumbnailKey := s.publishThumbnail(ctx, appID, in.ThumbnailBase64, "")

	app := &model.App{
		ID:           appID,
		Title:        in.Title,
		Description:  in.Description,
		Category:     in.Category,
		Tags:         in.Tags,
		UploadType:   in.UploadType,
		HTMLKey:      published.RootKey(),
		FileManifest: manifestOf(published),
		ThumbnailKey: thumbnailKey,
		IsPublic:     true,
	}
	stored, err := s.repo.Create(ctx, app)
	if err != nil {
		// Rollback: the record is the commit point, so a failed insert means
		// the just-published objects must go.
		if delErr := s.rollbackPublished(ctx, published, thumbnailKey); delErr != nil {
			return nil, fmt.Errorf("db save failed: %v; rollback delete failed: %v", err, delErr)
		}
		return nil, fmt.Errorf("db save failed: %w", err)
	}

	return &AppResult{App: stored, URL: s.urlFor(ctx, stored)}, nil
}

func (s *appService) Reupload(ctx context.Context, id string, in ReuploadInput) (*AppResult, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	app, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	old := publishedOf(app)

	next, err := s.publishContent(ctx, app.ID, app.UploadType, in.HTMLContent, in.ZipContent)
	if err != nil {
		return nil, err
	}

	thumbnailKey := s.publishThumbnail(ctx, app.ID, in.ThumbnailBase64, app.ThumbnailKey)
	s.superseder.CleanupThumbnail(ctx, app.ThumbnailKey, thumbnailKey)

	// New objects are confirmed durable; retiring the old ones can no longer
	// make the app unservable.
	s.superseder.Supersede(ctx, old, next)

	updated, err := s.repo.UpdateContent(ctx, app.ID, repository.ContentUpdate{
		HTMLKey:      next.RootKey(),
		FileManifest: manifestOf(next),
		ThumbnailKey: thumbnailKey,
	})
	if err != nil {
		return nil, fmt.Errorf("commit reupload: %w", err)
	}

	return &AppResult{App: updated, URL: s.urlFor(ctx, updated)}, nil
}

func (s *appService) UpdateMetadata(ctx context.Context, id string, in UpdateMetadataInput) (*AppResult, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	if in.Title != nil && *in.Title == "" {
		return nil, ErrTitleRequired
	}

	updated, err := s.repo.UpdateMetadata(ctx, id, repository.MetadataUpdate{
		Title:       in.Title,
		Description: in.Description,
		Category:    in.Category,
		Tags:        in.Tags,
		IsPublic:    in.IsPublic,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &AppResult{App: updated, URL: s.urlFor(ctx, updated)}, nil
}

// publishContent runs the ingestion pipeline for one upload and returns the
// committed-candidate published state. Boundary validation happens first so
// no storage write occurs for bad input.
func (s *appService) publishContent(ctx context.Context, appID, uploadType, htmlContent, zipContent string) (pipeline.Published, error) {
	switch uploadType {
	case model.UploadTypePaste, model.UploadTypeFile:
		if htmlContent == "" {
			return nil, ErrMissingContent
		}
		key, err := s.publisher.PublishSingle(ctx, appID, []byte(htmlContent), "text/html")
		if err != nil {
			return nil, err
		}
		return pipeline.SingleFile{Key: key}, nil

	case model.UploadTypeZip:
		if zipContent == "" {
			return nil, ErrMissingContent
		}
		data, err := base64.StdEncoding.DecodeString(zipContent)
		if err != nil {
			return nil, ErrInvalidBase64
		}
		if s.maxZipBytes > 0 && int64(len(data)) > s.maxZipBytes {
			return nil, ErrContentTooLarge
		}
		entries, err := pipeline.Extract(data)
		if err != nil {
			return nil, err
		}
		rootPath, ok := pipeline.SelectRoot(entries)
		if !ok {
			return nil, pipeline.ErrNoEntryPoint
		}
		manifest, err := s.publisher.PublishArchive(ctx, appID, entries)
		if err != nil {
			return nil, err
		}
		return pipeline.Archive{Root: s.publisher.ArchiveKey(appID, rootPath), Manifest: manifest}, nil

	default:
		return nil, ErrInvalidUploadType
	}
}

// publishThumbnail decodes and publishes a preview image. Thumbnails are
// cosmetic: any failure keeps the previous key and logs a warning.
func (s *appService) publishThumbnail(ctx context.Context, appID, thumbnailBase64, prevKey string) string {
	if thumbnailBase64 == "" {
		return prevKey
	}
	png, err := base64.StdEncoding.DecodeString(thumbnailBase64)
	if err != nil {
		warnJSON("thumbnail_decode_failed", appID, err)
		return prevKey
	}
	key, err := s.publisher.PublishThumbnail(ctx, appID, png)
	if err != nil {
		warnJSON("thumbnail_publish_failed", appID, err)
		return prevKey
	}
	return key
}

// rollbackPublished best-effort deletes the objects of an uncommitted publish.
func (s *appService) rollbackPublished(ctx context.Context, published pipeline.Published, thumbnailKey string) error {
	keys := []string{}
	switch p := published.(type) {
	case pipeline.Archive:
		keys = append(keys, p.Manifest.Keys()...)
	case pipeline.SingleFile:
		keys = append(keys, p.Key)
	}
	if thumbnailKey != "" {
		keys = append(keys, thumbnailKey)
	}
	var firstErr error
	for _, key := range keys {
		if err := s.store.Delete(ctx, key); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *appService) Get(ctx context.Context, id string) (*AppResult, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	app, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	// A lost view bump is not worth failing the read.
	if err := s.repo.IncrementViews(ctx, id); err != nil {
		warnJSON("view_count_increment_failed", id, err)
	}
	return &AppResult{App: app, URL: s.urlFor(ctx, app)}, nil
}

// urlFor returns the URL the app's root document is reachable at. Public apps
// get the permanent public URL; unlisted apps get a time-limited presigned
// link so their objects stay unreachable without one.
func (s *appService) urlFor(ctx context.Context, app *model.App) string {
	if app.IsPublic {
		return s.store.PublicURL(app.HTMLKey)
	}
	u, err := s.store.PresignGet(ctx, app.HTMLKey, presignExpiry)
	if err != nil {
		warnJSON("presign_failed", app.ID, err)
		return ""
	}
	return u
}

func (s *appService) List(ctx context.Context, q ListQuery) (*AppListResult, error) {
	if q.Limit <= 0 {
		q.Limit = 12
	}
	if q.Page <= 0 {
		q.Page = 1
	}

	res, err := s.repo.List(ctx, repository.AppFilter{
		Category: q.Category,
		Tags:     q.Tags,
		Search:   q.Search,
		Sort:     q.Sort,
	}, repository.PageQuery{Limit: q.Limit, Offset: (q.Page - 1) * q.Limit})
	if err != nil {
		return nil, err
	}

	return &AppListResult{
		Items:      res.Items,
		Total:      res.Total,
		Page:       q.Page,
		Limit:      q.Limit,
		TotalPages: (res.Total + q.Limit - 1) / q.Limit,
	}, nil
}

func (s *appService) GetManifest(ctx context.Context, id string) (map[string]string, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	m, err := s.repo.GetManifestFor(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return m, nil
}

func (s *appService) GetManifests(ctx context.Context, ids []string) (map[string]map[string]string, error) {
	return s.repo.GetManifestsFor(ctx, ids)
}

func (s *appService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrIDRequired
	}
	app, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}

	// Delete from storage first; if this fails, keep the row so the objects
	// stay reachable for a retry. Listing the app's prefix instead of walking
	// the manifest also sweeps objects orphaned by earlier partial cleanups.
	keys, err := s.store.ListByPrefix(ctx, s.publisher.ArchiveKey(app.ID, ""))
	if err != nil {
		return fmt.Errorf("delete storage: %w", err)
	}
	if app.ThumbnailKey != "" {
		keys = append(keys, app.ThumbnailKey)
	}
	for _, key := range keys {
		if err := s.store.Delete(ctx, key); err != nil {
			return fmt.Errorf("delete storage: %w", err)
		}
	}

	return s.repo.Delete(ctx, id)
}

// publishedOf rebuilds the tagged published state from a stored record.
func publishedOf(app *model.App) pipeline.Published {
	if app.FileManifest != nil {
		return pipeline.Archive{Root: app.HTMLKey, Manifest: pipeline.Manifest(app.FileManifest)}
	}
	return pipeline.SingleFile{Key: app.HTMLKey}
}

// manifestOf extracts the manifest for persistence; nil for single-file apps.
func manifestOf(p pipeline.Published) map[string]string {
	if a, ok := p.(pipeline.Archive); ok {
		return a.Manifest
	}
	return nil
}

func warnJSON(msg, appID string, err error) {
	entry := map[string]any{
		"ts":     time.Now().UTC().Format(time.RFC3339Nano),
		"level":  "warn",
		"msg":    msg,
		"app_id": appID,
		"error":  err.Error(),
	}
	if b, err := json.Marshal(entry); err == nil {
		log.SetFlags(0)
		log.Println(string(b))
	}
}
