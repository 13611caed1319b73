package handler

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/killkli/boyo-app-share/internal/service"
)

// createAppRequest is the JSON body of a first-time upload. zip_content and
// thumbnail are base64-encoded.
type createAppRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
	UploadType  string   `json:"upload_type"`
	HTMLContent string   `json:"html_content"`
	ZipContent  string   `json:"zip_content"`
	Thumbnail   string   `json:"thumbnail"`
}

// updateAppRequest is the JSON body of a metadata edit. Absent fields are
// left unchanged, so all fields are pointers.
type updateAppRequest struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Category    *string   `json:"category"`
	Tags        *[]string `json:"tags"`
	IsPublic    *bool     `json:"is_public"`
}

// reuploadRequest is the JSON body of a content replacement.
type reuploadRequest struct {
	HTMLContent string `json:"html_content"`
	ZipContent  string `json:"zip_content"`
	Thumbnail   string `json:"thumbnail"`
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// Handlers stay thin: parse, delegate to the service, translate errors.
func RegisterRoutes(app *fiber.App, db *sql.DB, appSvc service.AppService, gatherer prometheus.Gatherer) {
	// Serve OpenAPI spec and Swagger UI
	app.Get("/openapi.yaml", func(c *fiber.Ctx) error {
		c.Type("yaml")
		return c.SendFile("openapi.yaml")
	})
	app.Get("/docs", func(c *fiber.Ctx) error {
		html := `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>API Docs</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    window.ui = SwaggerUIBundle({
      url: '/openapi.yaml',
      dom_id: '#swagger-ui',
      presets: [SwaggerUIBundle.presets.apis],
      layout: 'BaseLayout'
    });
  </script>
</body>
</html>`
		return c.Type("html").SendString(html)
	})

	// Health endpoint: checks DB connectivity only
	app.Get("/health", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	})

	// Simple liveness probe
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	// Prometheus scrape endpoint
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	// List public apps with filters and paging
	app.Get("/apps", func(c *fiber.Ctx) error {
		page, err := strconv.Atoi(c.Query("page", "1"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_PAGE", "invalid page")
		}
		limit, err := strconv.Atoi(c.Query("limit", "12"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}

		q := service.ListQuery{
			Page:     page,
			Limit:    limit,
			Category: c.Query("category"),
			Search:   c.Query("search"),
			Sort:     c.Query("sort"),
		}
		if tags := c.Query("tags"); tags != "" {
			q.Tags = strings.Split(tags, ",")
		}

		res, err := appSvc.List(c.UserContext(), q)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(res)
	})

	// Upload a new app (JSON body; zip and thumbnail base64-encoded)
	app.Post("/apps", func(c *fiber.Ctx) error {
		var req createAppRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "request body is not valid json")
		}

		res, err := appSvc.Create(c.UserContext(), service.CreateInput{
			Title:           req.Title,
			Description:     req.Description,
			Category:        req.Category,
			Tags:            req.Tags,
			UploadType:      req.UploadType,
			HTMLContent:     req.HTMLContent,
			ZipContent:      req.ZipContent,
			ThumbnailBase64: req.Thumbnail,
		})
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(res)
	})

	// Batch manifest lookup; registered before /apps/:id so "files" is not
	// captured as an id.
	app.Get("/apps/files", func(c *fiber.Ctx) error {
		raw := c.Query("ids")
		if raw == "" {
			return writeError(c, fiber.StatusBadRequest, "IDS_REQUIRED", "ids query parameter is required")
		}
		ids := strings.Split(raw, ",")
		for _, id := range ids {
			if _, err := uuid.Parse(id); err != nil {
				return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
			}
		}

		manifests, err := appSvc.GetManifests(c.UserContext(), ids)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(fiber.Map{"manifests": manifests})
	})

	// Get app by ID (bumps the view counter)
	app.Get("/apps/:id", func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		res, err := appSvc.Get(c.UserContext(), id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(res)
	})

	// Manifest of a single app
	app.Get("/apps/:id/files", func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		manifest, err := appSvc.GetManifest(c.UserContext(), id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(fiber.Map{"manifest": manifest})
	})

	// Edit an app's metadata (title, description, category, tags, visibility)
	app.Put("/apps/:id", func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}

		var req updateAppRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "request body is not valid json")
		}

		res, err := appSvc.UpdateMetadata(c.UserContext(), id, service.UpdateMetadataInput{
			Title:       req.Title,
			Description: req.Description,
			Category:    req.Category,
			Tags:        req.Tags,
			IsPublic:    req.IsPublic,
		})
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(res)
	})

	// Replace an app's published content
	app.Put("/apps/:id/content", func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}

		var req reuploadRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "request body is not valid json")
		}

		res, err := appSvc.Reupload(c.UserContext(), id, service.ReuploadInput{
			HTMLContent:     req.HTMLContent,
			ZipContent:      req.ZipContent,
			ThumbnailBase64: req.Thumbnail,
		})
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(res)
	})

	// Delete app by ID
	app.Delete("/apps/:id", func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		if err := appSvc.Delete(c.UserContext(), id); err != nil {
			return writeServiceError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}
