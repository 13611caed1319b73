package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/killkli/boyo-app-share/internal/model"
	"github.com/killkli/boyo-app-share/internal/repository"
)

// AppPostgres is a PostgreSQL implementation of repository.AppRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type AppPostgres struct {
	db *sql.DB
}

// NewAppPostgres creates a new AppPostgres repository.
func NewAppPostgres(db *sql.DB) *AppPostgres {
	return &AppPostgres{db: db}
}

var _ repository.AppRepository = (*AppPostgres)(nil)

const appColumns = `id, title, description, category, tags, upload_type, html_key, file_manifest, thumbnail_key, is_public, view_count, created_at, updated_at`

// scanApp reads one row in appColumns order. tags and file_manifest are JSONB
// columns; NULL decodes to a nil slice/map.
func scanApp(row interface{ Scan(...any) error }) (*model.App, error) {
	var (
		a            model.App
		description  sql.NullString
		category     sql.NullString
		thumbnailKey sql.NullString
		tagsRaw      []byte
		manifestRaw  []byte
	)
	if err := row.Scan(
		&a.ID,
		&a.Title,
		&description,
		&category,
		&tagsRaw,
		&a.UploadType,
		&a.HTMLKey,
		&manifestRaw,
		&thumbnailKey,
		&a.IsPublic,
		&a.ViewCount,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	a.Description = description.String
	a.Category = category.String
	a.ThumbnailKey = thumbnailKey.String
	if len(tagsRaw) > 0 {
		if err := json.Unmarshal(tagsRaw, &a.Tags); err != nil {
			return nil, fmt.Errorf("decode tags: %w", err)
		}
	}
	if len(manifestRaw) > 0 {
		if err := json.Unmarshal(manifestRaw, &a.FileManifest); err != nil {
			return nil, fmt.Errorf("decode manifest: %w", err)
		}
	}
	return &a, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func jsonOrNil(v any, empty bool) (any, error) {
	if empty {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Create inserts a new app row and returns the stored record.
func (r *AppPostgres) Create(ctx context.Context, app *model.App) (*model.App, error) {
	tags, err := jsonOrNil(app.Tags, len(app.Tags) == 0)
	if err != nil {
		return nil, fmt.Errorf("encode tags: %w", err)
	}
	manifest, err := jsonOrNil(app.FileManifest, app.FileManifest == nil)
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}

	const q = `
		INSERT INTO apps (id, title, description, category, tags, upload_type, html_key, file_manifest, thumbnail_key, is_public)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + appColumns
	row := r.db.QueryRowContext(ctx, q,
		app.ID,
		app.Title,
		nullString(app.Description),
		nullString(app.Category),
		tags,
		app.UploadType,
		app.HTMLKey,
		manifest,
		nullString(app.ThumbnailKey),
		app.IsPublic,
	)
	return scanApp(row)
}

// FindByID fetches a single app by its ID.
func (r *AppPostgres) FindByID(ctx context.Context, id string) (*model.App, error) {
	const q = `SELECT ` + appColumns + ` FROM apps WHERE id = $1`
	return scanApp(r.db.QueryRowContext(ctx, q, id))
}

// buildFilter renders the WHERE clause for a filter, appending bind args.
// The same clause serves both the count and the page query.
func buildFilter(f repository.AppFilter, args []any) (string, []any, error) {
	clauses := []string{"is_public = true"}
	if f.Category != "" {
		args = append(args, f.Category)
		clauses = append(clauses, fmt.Sprintf("category = $%d", len(args)))
	}
	if len(f.Tags) > 0 {
		b, err := json.Marshal(f.Tags)
		if err != nil {
			return "", nil, fmt.Errorf("encode tag filter: %w", err)
		}
		args = append(args, b)
		clauses = append(clauses, fmt.Sprintf("tags @> $%d", len(args)))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		clauses = append(clauses, fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}
	return strings.Join(clauses, " AND "), args, nil
}

// List returns public apps matching the filter, newest or most viewed first.
// List rows omit file_manifest; manifests are fetched separately when needed.
func (r *AppPostgres) List(ctx context.Context, f repository.AppFilter, pq repository.PageQuery) (*repository.PageResult[model.App], error) {
	where, args, err := buildFilter(f, nil)
	if err != nil {
		return nil, err
	}

	var total int
	qCount := `SELECT COUNT(*) FROM apps WHERE ` + where
	if err := r.db.QueryRowContext(ctx, qCount, args...).Scan(&total); err != nil {
		return nil, err
	}

	order := "created_at DESC, id DESC"
	if f.Sort == "popular" {
		order = "view_count DESC, created_at DESC, id DESC"
	}

	args = append(args, pq.Limit, pq.Offset)
	qList := fmt.Sprintf(`
		SELECT id, title, description, category, tags, upload_type, html_key, NULL, thumbnail_key, is_public, view_count, created_at, updated_at
		FROM apps
		WHERE %s
		ORDER BY %s
		LIMIT $%d OFFSET $%d`, where, order, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, qList, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.App, 0)
	for rows.Next() {
		a, err := scanApp(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.App]{Items: items, Total: total}, nil
}

// UpdateContent swaps the committed published state in one statement.
func (r *AppPostgres) UpdateContent(ctx context.Context, id string, upd repository.ContentUpdate) (*model.App, error) {
	manifest, err := jsonOrNil(upd.FileManifest, upd.FileManifest == nil)
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}

	const q = `
		UPDATE apps
		SET html_key = $1,
		    file_manifest = $2,
		    thumbnail_key = $3,
		    updated_at = now()
		WHERE id = $4
		RETURNING ` + appColumns
	row := r.db.QueryRowContext(ctx, q,
		upd.HTMLKey,
		manifest,
		nullString(upd.ThumbnailKey),
		id,
	)
	return scanApp(row)
}

// UpdateMetadata applies a partial metadata edit. Only the fields set on the
// update appear in the statement; updated_at is always bumped.
func (r *AppPostgres) UpdateMetadata(ctx context.Context, id string, upd repository.MetadataUpdate) (*model.App, error) {
	var (
		sets []string
		args []any
	)
	if upd.Title != nil {
		args = append(args, *upd.Title)
		sets = append(sets, fmt.Sprintf("title = $%d", len(args)))
	}
	if upd.Description != nil {
		args = append(args, nullString(*upd.Description))
		sets = append(sets, fmt.Sprintf("description = $%d", len(args)))
	}
	if upd.Category != nil {
		args = append(args, nullString(*upd.Category))
		sets = append(sets, fmt.Sprintf("category = $%d", len(args)))
	}
	if upd.Tags != nil {
		tags, err := jsonOrNil(*upd.Tags, len(*upd.Tags) == 0)
		if err != nil {
			return nil, fmt.Errorf("encode tags: %w", err)
		}
		args = append(args, tags)
		sets = append(sets, fmt.Sprintf("tags = $%d", len(args)))
	}
	if upd.IsPublic != nil {
		args = append(args, *upd.IsPublic)
		sets = append(sets, fmt.Sprintf("is_public = $%d", len(args)))
	}
	sets = append(sets, "updated_at = now()")

	args = append(args, id)
	q := fmt.Sprintf(`UPDATE apps SET %s WHERE id = $%d RETURNING `+appColumns,
		strings.Join(sets, ", "), len(args))
	return scanApp(r.db.QueryRowContext(ctx, q, args...))
}

// IncrementViews bumps the view counter.
func (r *AppPostgres) IncrementViews(ctx context.Context, id string) error {
	const q = `UPDATE apps SET view_count = view_count + 1 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, q, id)
	return err
}

// GetManifestFor returns one app's manifest; nil for single-file apps.
func (r *AppPostgres) GetManifestFor(ctx context.Context, id string) (map[string]string, error) {
	const q = `SELECT file_manifest FROM apps WHERE id = $1`
	var raw []byte
	if err := r.db.QueryRowContext(ctx, q, id).Scan(&raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var m map[string]string
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return m, nil
}

// GetManifestsFor returns the manifests of several apps keyed by app ID.
func (r *AppPostgres) GetManifestsFor(ctx context.Context, ids []string) (map[string]map[string]string, error) {
	if len(ids) == 0 {
		return map[string]map[string]string{}, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	q := `SELECT id, file_manifest FROM apps WHERE id IN (` + strings.Join(placeholders, ", ") + `)`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]map[string]string, len(ids))
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		if len(raw) == 0 {
			out[id] = nil
			continue
		}
		var m map[string]string
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("decode manifest for %s: %w", id, err)
		}
		out[id] = m
	}
	return out, rows.Err()
}

// Delete removes an app by ID. It does not return an error if the row does not exist.
func (r *AppPostgres) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM apps WHERE id = $1`
	_, err := r.db.ExecContext(ctx, q, id)
	return err
}
