package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/killkli/boyo-app-share/internal/model"
	"github.com/killkli/boyo-app-share/internal/pipeline"
	"github.com/killkli/boyo-app-share/internal/service"
	serviceMocks "github.com/killkli/boyo-app-share/internal/service/mocks"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// newTestApp wires a Fiber app with mocked dependencies through RegisterRoutes
// so routing order and error translation are covered together.
func newTestApp(t *testing.T) (*fiber.App, sqlmock.Sqlmock, *serviceMocks.MockAppService) {
	t.Helper()
	db, dbMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mockSvc := new(serviceMocks.MockAppService)
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler()})
	RegisterRoutes(app, db, mockSvc, prometheus.NewRegistry())
	return app, dbMock, mockSvc
}

func TestHealth(t *testing.T) {
	app, dbMock, _ := newTestApp(t)

	t.Run("healthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(nil)

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]string
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "healthy", body["status"])
	})

	t.Run("unhealthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(errors.New("db error"))

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

		var body errorPayload
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "SERVICE_UNAVAILABLE", body.Error.Code)
	})
}

func TestLivenessProbe(t *testing.T) {
	app, _, _ := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	resp, _ := app.Test(req)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	app, _, _ := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp, _ := app.Test(req)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestListApps(t *testing.T) {
	app, _, mockSvc := newTestApp(t)

	t.Run("success with filters", func(t *testing.T) {
		expectedRes := &service.AppListResult{
			Items: []model.App{{ID: uuid.NewString(), Title: "Snake"}},
			Total: 1, Page: 1, Limit: 12, TotalPages: 1,
		}
		mockSvc.On("List", mock.Anything, service.ListQuery{
			Page: 1, Limit: 12, Category: "games", Tags: []string{"retro", "arcade"}, Search: "snake", Sort: "popular",
		}).Return(expectedRes, nil).Once()

		req := httptest.NewRequest(http.MethodGet,
			"/apps?category=games&tags=retro,arcade&search=snake&sort=popular", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var result service.AppListResult
		json.NewDecoder(resp.Body).Decode(&result)
		assert.Len(t, result.Items, 1)
		assert.Equal(t, 1, result.Total)
		mockSvc.AssertExpectations(t)
	})

	t.Run("invalid page", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/apps?page=abc", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var body errorPayload
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "INVALID_PAGE", body.Error.Code)
	})

	t.Run("service error", func(t *testing.T) {
		mockSvc.On("List", mock.Anything, mock.Anything).
			Return(nil, errors.New("service error")).Once()

		req := httptest.NewRequest(http.MethodGet, "/apps", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})
}

func TestCreateApp(t *testing.T) {
	app, _, mockSvc := newTestApp(t)

	t.Run("success", func(t *testing.T) {
		id := uuid.NewString()
		mockSvc.On("Create", mock.Anything, mock.MatchedBy(func(in service.CreateInput) bool {
			return in.Title == "Hello" && in.UploadType == "paste"
		})).Return(&service.AppResult{
			App: &model.App{ID: id, Title: "Hello"},
			URL: "https://cdn.example/apps/" + id + "/index.html",
		}, nil).Once()

		body, _ := json.Marshal(map[string]any{
			"title":        "Hello",
			"upload_type":  "paste",
			"html_content": "<h1>hi</h1>",
		})
		req := httptest.NewRequest(http.MethodPost, "/apps", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		var result service.AppResult
		json.NewDecoder(resp.Body).Decode(&result)
		assert.Equal(t, id, result.App.ID)
		assert.NotEmpty(t, result.URL)
		mockSvc.AssertExpectations(t)
	})

	t.Run("invalid body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/apps", bytes.NewReader([]byte("{not json")))
		req.Header.Set("Content-Type", "application/json")
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("validation errors map to 400", func(t *testing.T) {
		cases := []struct {
			name   string
			svcErr error
			code   string
			status int
		}{
			{"missing title", service.ErrTitleRequired, "TITLE_REQUIRED", http.StatusBadRequest},
			{"missing content", service.ErrMissingContent, "CONTENT_REQUIRED", http.StatusBadRequest},
			{"bad base64", service.ErrInvalidBase64, "INVALID_BASE64", http.StatusBadRequest},
			{"bad zip", pipeline.ErrMalformedArchive, "MALFORMED_ARCHIVE", http.StatusBadRequest},
			{"empty zip", pipeline.ErrEmptyArchive, "EMPTY_ARCHIVE", http.StatusBadRequest},
			{"no entry point", pipeline.ErrNoEntryPoint, "NO_ENTRY_POINT", http.StatusBadRequest},
			{"too large", service.ErrContentTooLarge, "CONTENT_TOO_LARGE", http.StatusRequestEntityTooLarge},
			{"storage outage", pipeline.ErrPublishFailed, "PUBLISH_FAILED", http.StatusBadGateway},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				mockSvc.On("Create", mock.Anything, mock.Anything).Return(nil, tc.svcErr).Once()

				body, _ := json.Marshal(map[string]any{"title": "t", "upload_type": "zip"})
				req := httptest.NewRequest(http.MethodPost, "/apps", bytes.NewReader(body))
				req.Header.Set("Content-Type", "application/json")
				resp, _ := app.Test(req)

				assert.Equal(t, tc.status, resp.StatusCode)
				var payload errorPayload
				json.NewDecoder(resp.Body).Decode(&payload)
				assert.Equal(t, tc.code, payload.Error.Code)
			})
		}
		mockSvc.AssertExpectations(t)
	})
}

func TestGetApp(t *testing.T) {
	app, _, mockSvc := newTestApp(t)

	t.Run("success", func(t *testing.T) {
		id := uuid.NewString()
		mockSvc.On("Get", mock.Anything, id).Return(&service.AppResult{
			App: &model.App{ID: id, Title: "Hello", ViewCount: 3},
			URL: "https://cdn.example/x",
		}, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/apps/"+id, nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("invalid id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/apps/not-a-uuid", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("not found", func(t *testing.T) {
		id := uuid.NewString()
		mockSvc.On("Get", mock.Anything, id).Return(nil, service.ErrNotFound).Once()

		req := httptest.NewRequest(http.MethodGet, "/apps/"+id, nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})
}

func TestUpdateApp(t *testing.T) {
	app, _, mockSvc := newTestApp(t)

	t.Run("edits metadata", func(t *testing.T) {
		id := uuid.NewString()
		mockSvc.On("UpdateMetadata", mock.Anything, id, mock.MatchedBy(func(in service.UpdateMetadataInput) bool {
			return in.Title != nil && *in.Title == "Snake II" && in.Description == nil
		})).Return(&service.AppResult{
			App: &model.App{ID: id, Title: "Snake II"},
			URL: "https://cdn.example/x",
		}, nil).Once()

		body, _ := json.Marshal(map[string]any{"title": "Snake II"})
		req := httptest.NewRequest(http.MethodPut, "/apps/"+id, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("unlists an app", func(t *testing.T) {
		id := uuid.NewString()
		mockSvc.On("UpdateMetadata", mock.Anything, id, mock.MatchedBy(func(in service.UpdateMetadataInput) bool {
			return in.IsPublic != nil && !*in.IsPublic
		})).Return(&service.AppResult{
			App: &model.App{ID: id},
			URL: "https://signed.example/x?sig=abc",
		}, nil).Once()

		body, _ := json.Marshal(map[string]any{"is_public": false})
		req := httptest.NewRequest(http.MethodPut, "/apps/"+id, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("empty title is rejected", func(t *testing.T) {
		id := uuid.NewString()
		mockSvc.On("UpdateMetadata", mock.Anything, id, mock.Anything).
			Return(nil, service.ErrTitleRequired).Once()

		body, _ := json.Marshal(map[string]any{"title": ""})
		req := httptest.NewRequest(http.MethodPut, "/apps/"+id, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("invalid id", func(t *testing.T) {
		body, _ := json.Marshal(map[string]any{"title": "x"})
		req := httptest.NewRequest(http.MethodPut, "/apps/not-a-uuid", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("not found", func(t *testing.T) {
		id := uuid.NewString()
		mockSvc.On("UpdateMetadata", mock.Anything, id, mock.Anything).
			Return(nil, service.ErrNotFound).Once()

		body, _ := json.Marshal(map[string]any{"title": "x"})
		req := httptest.NewRequest(http.MethodPut, "/apps/"+id, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})
}

func TestReuploadApp(t *testing.T) {
	app, _, mockSvc := newTestApp(t)

	t.Run("success", func(t *testing.T) {
		id := uuid.NewString()
		mockSvc.On("Reupload", mock.Anything, id, mock.MatchedBy(func(in service.ReuploadInput) bool {
			return in.HTMLContent == "<p>v2</p>"
		})).Return(&service.AppResult{
			App: &model.App{ID: id},
			URL: "https://cdn.example/x",
		}, nil).Once()

		body, _ := json.Marshal(map[string]any{"html_content": "<p>v2</p>"})
		req := httptest.NewRequest(http.MethodPut, "/apps/"+id+"/content", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("not found", func(t *testing.T) {
		id := uuid.NewString()
		mockSvc.On("Reupload", mock.Anything, id, mock.Anything).
			Return(nil, service.ErrNotFound).Once()

		body, _ := json.Marshal(map[string]any{"html_content": "<p>v2</p>"})
		req := httptest.NewRequest(http.MethodPut, "/apps/"+id+"/content", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})
}

func TestAppManifests(t *testing.T) {
	app, _, mockSvc := newTestApp(t)

	t.Run("single app manifest", func(t *testing.T) {
		id := uuid.NewString()
		mockSvc.On("GetManifest", mock.Anything, id).
			Return(map[string]string{"index.html": "apps/" + id + "/index.html"}, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/apps/"+id+"/files", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]map[string]string
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Len(t, body["manifest"], 1)
		mockSvc.AssertExpectations(t)
	})

	t.Run("batch lookup hits the files route not the id route", func(t *testing.T) {
		idA, idB := uuid.NewString(), uuid.NewString()
		mockSvc.On("GetManifests", mock.Anything, []string{idA, idB}).
			Return(map[string]map[string]string{idA: {"a": "b"}, idB: nil}, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/apps/files?ids="+idA+","+idB, nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		mockSvc.AssertExpectations(t)
		mockSvc.AssertNotCalled(t, "Get", mock.Anything, "files")
	})

	t.Run("batch lookup requires ids", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/apps/files", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var body errorPayload
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "IDS_REQUIRED", body.Error.Code)
	})
}

func TestDeleteApp(t *testing.T) {
	app, _, mockSvc := newTestApp(t)

	t.Run("success", func(t *testing.T) {
		id := uuid.NewString()
		mockSvc.On("Delete", mock.Anything, id).Return(nil).Once()

		req := httptest.NewRequest(http.MethodDelete, "/apps/"+id, nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("not found", func(t *testing.T) {
		id := uuid.NewString()
		mockSvc.On("Delete", mock.Anything, id).Return(service.ErrNotFound).Once()

		req := httptest.NewRequest(http.MethodDelete, "/apps/"+id, nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})
}
