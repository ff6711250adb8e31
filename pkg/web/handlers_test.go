package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/flowdocs/flowdocs/pkg/ratelimit"
	"github.com/flowdocs/flowdocs/pkg/storage"
	"github.com/flowdocs/flowdocs/pkg/store"
	"github.com/flowdocs/flowdocs/pkg/store/sqlite"
	"github.com/flowdocs/flowdocs/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const slackDocument = `{
	"name": "Slack Alerts",
	"active": true,
	"nodes": [
		{"name": "Webhook", "type": "n8n-nodes-base.webhook"},
		{"name": "Slack", "type": "n8n-nodes-base.slack"}
	],
	"connections": {
		"Webhook": {"main": [[{"node": "Slack"}]]}
	}
}`

type testEnv struct {
	app   *fiber.App
	store store.Store
	root  *storage.Root
}

func setupTestApp(t *testing.T, adminToken string) *testEnv {
	t.Helper()

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	root, err := storage.NewRoot(filepath.Join(t.TempDir(), "workflows"))
	require.NoError(t, err)

	s, err := sqlite.NewStore(ctx, logger, "sqlite://"+filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)

	t.Cleanup(func() {
		err := s.Close(ctx)
		require.NoError(t, err)
	})

	indexer := store.NewIndexer(s, root, logger, nil)
	validate := validator.New(validator.WithRequiredStructEnabled())
	handlers := web.NewAPIHandlers(s, indexer, root, nil, validate, logger)

	app := fiber.New()

	api := app.Group("/api")
	api.Get("/stats", handlers.GetStats)
	api.Get("/workflows", handlers.SearchWorkflows)
	api.Get("/workflows/category/:category", handlers.SearchByCategory)
	api.Get("/workflows/:filename", handlers.GetWorkflow)
	api.Get("/workflows/:filename/download", handlers.DownloadWorkflow)
	api.Get("/workflows/:filename/diagram", handlers.GetDiagram)
	api.Delete("/workflows/:filename", handlers.DeleteWorkflow)
	api.Post("/workflows/upload", handlers.UploadWorkflow)
	api.Post("/workflows/upload-json", handlers.UploadWorkflowJSON)
	api.Post("/reindex", handlers.Reindex, web.AdminOnly(adminToken, logger))
	api.Get("/categories", handlers.GetCategories)
	api.Get("/category-mappings", handlers.GetCategoryMappings)
	api.Get("/integrations", handlers.GetIntegrations)
	api.Post("/purchase-request", handlers.SubmitPurchaseRequest)

	app.Get("/health", handlers.HealthCheck)

	return &testEnv{app: app, store: s, root: root}
}

func uploadDocument(t *testing.T, env *testEnv, document string) web.WorkflowUploadResponse {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/workflows/upload-json",
		strings.NewReader(document))
	req.Header.Set("Content-Type", "application/json")

	resp, err := env.app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var uploaded web.WorkflowUploadResponse
	decodeBody(t, resp.Body, &uploaded)

	return uploaded
}

func decodeBody(t *testing.T, body io.Reader, into any) {
	t.Helper()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, into))
}

func TestHealthCheck(t *testing.T) {
	env := setupTestApp(t, "")

	resp, err := env.app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUploadWorkflowJSON(t *testing.T) {
	env := setupTestApp(t, "")

	uploaded := uploadDocument(t, env, slackDocument)

	assert.Equal(t, "Workflow uploaded successfully", uploaded.Message)
	assert.Equal(t, "Slack", uploaded.Category)
	assert.True(t, uploaded.Indexed)
	assert.True(t, strings.HasSuffix(uploaded.Filename, ".json"))

	path, err := env.root.Resolve(uploaded.Filename)
	require.NoError(t, err)

	saved, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, slackDocument, string(saved))

	summary, err := env.store.FindByFilename(context.Background(), uploaded.Filename)
	require.NoError(t, err)
	assert.Equal(t, "Slack Alerts", summary.Name)
}

func TestUploadWorkflow_Multipart(t *testing.T) {
	env := setupTestApp(t, "")

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", "alerts.json")
	require.NoError(t, err)
	_, err = part.Write([]byte(slackDocument))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/workflows/upload", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := env.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var uploaded web.WorkflowUploadResponse
	decodeBody(t, resp.Body, &uploaded)
	assert.Equal(t, "alerts.json", uploaded.Filename)
}

func TestUploadWorkflow_FormField(t *testing.T) {
	env := setupTestApp(t, "")

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	require.NoError(t, writer.WriteField("workflow_json", slackDocument))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/workflows/upload", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := env.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestUploadWorkflow_RejectsInvalidDocuments(t *testing.T) {
	env := setupTestApp(t, "")

	tests := []struct {
		name string
		body string
	}{
		{name: "empty body", body: ""},
		{name: "broken json", body: "{not json"},
		{name: "not an object", body: `[1, 2, 3]`},
		{name: "nodes is not a list", body: `{"nodes": "nope", "connections": {}}`},
		{name: "connections is not an object", body: `{"nodes": [], "connections": []}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/workflows/upload-json",
				strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")

			resp, err := env.app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestSearchWorkflows(t *testing.T) {
	env := setupTestApp(t, "")

	uploadDocument(t, env, slackDocument)
	uploadDocument(t, env, `{
		"name": "Daily Report",
		"nodes": [
			{"name": "Cron", "type": "n8n-nodes-base.scheduleTrigger"},
			{"name": "Postgres", "type": "n8n-nodes-base.postgres"}
		],
		"connections": {}
	}`)

	resp, err := env.app.Test(httptest.NewRequest(http.MethodGet, "/api/workflows?q=slack", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result web.SearchResponse
	decodeBody(t, resp.Body, &result)

	assert.Equal(t, 1, result.Total)
	assert.Equal(t, 1, result.Pages)
	assert.Equal(t, "slack", result.Query)
	require.Len(t, result.Workflows, 1)
	assert.Equal(t, "Slack Alerts", result.Workflows[0].Name)

	resp, err = env.app.Test(httptest.NewRequest(http.MethodGet, "/api/workflows?trigger=Scheduled", nil))
	require.NoError(t, err)

	decodeBody(t, resp.Body, &result)
	assert.Equal(t, 1, result.Total)
	assert.Equal(t, "Daily Report", result.Workflows[0].Name)

	resp, err = env.app.Test(httptest.NewRequest(http.MethodGet, "/api/workflows?trigger=all", nil))
	require.NoError(t, err)

	decodeBody(t, resp.Body, &result)
	assert.Equal(t, 2, result.Total)
}

func TestSearchWorkflows_InvalidPagination(t *testing.T) {
	env := setupTestApp(t, "")

	tests := []string{
		"/api/workflows?page=0",
		"/api/workflows?page=abc",
		"/api/workflows?per_page=0",
		"/api/workflows?per_page=101",
	}

	for _, target := range tests {
		resp, err := env.app.Test(httptest.NewRequest(http.MethodGet, target, nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, target)
	}
}

func TestSearchByCategory(t *testing.T) {
	env := setupTestApp(t, "")

	uploadDocument(t, env, slackDocument)

	resp, err := env.app.Test(httptest.NewRequest(http.MethodGet, "/api/workflows/category/Slack", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result web.SearchResponse
	decodeBody(t, resp.Body, &result)
	assert.Equal(t, 1, result.Total)
	assert.Equal(t, "category:Slack", result.Query)
}

func TestGetWorkflow(t *testing.T) {
	env := setupTestApp(t, "")

	uploaded := uploadDocument(t, env, slackDocument)

	resp, err := env.app.Test(httptest.NewRequest(http.MethodGet, "/api/workflows/"+uploaded.Filename, nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var detail web.WorkflowDetailResponse
	decodeBody(t, resp.Body, &detail)

	assert.Equal(t, "Slack Alerts", detail.Metadata.Name)
	assert.JSONEq(t, slackDocument, string(detail.RawJSON))
}

func TestGetWorkflow_NotFound(t *testing.T) {
	env := setupTestApp(t, "")

	resp, err := env.app.Test(httptest.NewRequest(http.MethodGet, "/api/workflows/missing.json", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetWorkflow_BlocksTraversal(t *testing.T) {
	env := setupTestApp(t, "")

	// Encoded separators are kept double-encoded so the HTTP layer's own path
	// normalization does not swallow them before the handler runs.
	tests := []string{
		"/api/workflows/a%252e%252e%252fb.json",
		"/api/workflows/bad%20name.json",
		"/api/workflows/evil%7Cpipe.json",
		"/api/workflows/notjson.txt",
	}

	for _, target := range tests {
		resp, err := env.app.Test(httptest.NewRequest(http.MethodGet, target, nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, target)
	}
}

func TestDownloadWorkflow(t *testing.T) {
	env := setupTestApp(t, "")

	uploaded := uploadDocument(t, env, slackDocument)

	resp, err := env.app.Test(httptest.NewRequest(http.MethodGet,
		"/api/workflows/"+uploaded.Filename+"/download", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Contains(t, resp.Header.Get("Content-Disposition"), "attachment")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, slackDocument, string(body))
}

func TestGetDiagram(t *testing.T) {
	env := setupTestApp(t, "")

	uploaded := uploadDocument(t, env, slackDocument)

	resp, err := env.app.Test(httptest.NewRequest(http.MethodGet,
		"/api/workflows/"+uploaded.Filename+"/diagram", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result web.DiagramResponse
	decodeBody(t, resp.Body, &result)

	assert.True(t, strings.HasPrefix(result.Diagram, "graph TD"))
	assert.Contains(t, result.Diagram, "node0 --> node1")
}

func TestDeleteWorkflow(t *testing.T) {
	env := setupTestApp(t, "")

	uploaded := uploadDocument(t, env, slackDocument)

	resp, err := env.app.Test(httptest.NewRequest(http.MethodDelete,
		"/api/workflows/"+uploaded.Filename, nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var deleted web.WorkflowDeleteResponse
	decodeBody(t, resp.Body, &deleted)
	assert.True(t, deleted.FileRemoved)

	_, err = env.root.Resolve(uploaded.Filename)
	assert.True(t, storage.IsNotFound(err))

	resp, err = env.app.Test(httptest.NewRequest(http.MethodDelete,
		"/api/workflows/"+uploaded.Filename, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestReindex_AdminToken(t *testing.T) {
	t.Run("disabled without configured token", func(t *testing.T) {
		env := setupTestApp(t, "")

		resp, err := env.app.Test(httptest.NewRequest(http.MethodPost, "/api/reindex", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})

	t.Run("rejects wrong token", func(t *testing.T) {
		env := setupTestApp(t, "sekrit")

		resp, err := env.app.Test(httptest.NewRequest(http.MethodPost,
			"/api/reindex?admin_token=wrong", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("accepts correct token", func(t *testing.T) {
		env := setupTestApp(t, "sekrit")

		resp, err := env.app.Test(httptest.NewRequest(http.MethodPost,
			"/api/reindex?admin_token=sekrit&force=true", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusAccepted, resp.StatusCode)

		var result web.ReindexResponse
		decodeBody(t, resp.Body, &result)
		assert.True(t, result.Force)
	})
}

func TestCategoriesAndMappings(t *testing.T) {
	env := setupTestApp(t, "")

	uploadDocument(t, env, slackDocument)

	resp, err := env.app.Test(httptest.NewRequest(http.MethodGet, "/api/categories", nil))
	require.NoError(t, err)

	var categories web.CategoriesResponse
	decodeBody(t, resp.Body, &categories)
	assert.Equal(t, []string{"Slack"}, categories.Categories)

	resp, err = env.app.Test(httptest.NewRequest(http.MethodGet, "/api/category-mappings", nil))
	require.NoError(t, err)

	var mappings web.CategoryMappingsResponse
	decodeBody(t, resp.Body, &mappings)
	assert.Len(t, mappings.Mappings, 1)

	resp, err = env.app.Test(httptest.NewRequest(http.MethodGet, "/api/integrations", nil))
	require.NoError(t, err)

	var integrations web.IntegrationsResponse
	decodeBody(t, resp.Body, &integrations)
	assert.Equal(t, []string{"slack", "webhook"}, integrations.Integrations)
}

func TestSubmitPurchaseRequest(t *testing.T) {
	env := setupTestApp(t, "")

	t.Run("valid request", func(t *testing.T) {
		body := `{"email": "user@example.com", "description": "Need the invoice workflow", "workflowName": "Invoices"}`

		req := httptest.NewRequest(http.MethodPost, "/api/purchase-request", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")

		resp, err := env.app.Test(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var result web.PurchaseResponse
		decodeBody(t, resp.Body, &result)
		assert.True(t, result.Success)
		assert.Equal(t, "Invoices", result.Workflow)
	})

	t.Run("invalid email", func(t *testing.T) {
		body := `{"email": "not-an-email", "description": "hello"}`

		req := httptest.NewRequest(http.MethodPost, "/api/purchase-request", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")

		resp, err := env.app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	limiter := ratelimit.NewMemory(ratelimit.Config{Window: time.Minute, Limit: 2})

	app := fiber.New()
	app.Get("/limited", func(c fiber.Ctx) error {
		return c.SendString("ok")
	}, web.RateLimit(limiter, logger))

	for i := 0; i < 2; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/limited", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/limited", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}
