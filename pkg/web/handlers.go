package web

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/flowdocs/flowdocs/pkg/classify"
	"github.com/flowdocs/flowdocs/pkg/diagram"
	"github.com/flowdocs/flowdocs/pkg/eventbus"
	"github.com/flowdocs/flowdocs/pkg/events"
	"github.com/flowdocs/flowdocs/pkg/models"
	"github.com/flowdocs/flowdocs/pkg/security"
	"github.com/flowdocs/flowdocs/pkg/storage"
	"github.com/flowdocs/flowdocs/pkg/store"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

var (
	errInvalidPage    = errors.New("page must be a positive integer")
	errInvalidPerPage = errors.New("per_page must be between 1 and 100")
)

type APIHandlers struct {
	store     store.Store
	indexer   *store.Indexer
	root      *storage.Root
	eventBus  eventbus.EventBus
	validator *validator.Validate
	logger    *slog.Logger
}

func NewAPIHandlers(
	s store.Store,
	indexer *store.Indexer,
	root *storage.Root,
	eventBus eventbus.EventBus,
	validator *validator.Validate,
	logger *slog.Logger,
) *APIHandlers {
	return &APIHandlers{
		store:     s,
		indexer:   indexer,
		root:      root,
		eventBus:  eventBus,
		validator: validator,
		logger:    logger,
	}
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	err := h.store.HealthCheck(c.Context())

	status := "healthy"
	message := "Workflow library API is running"
	httpStatus := http.StatusOK

	if err != nil {
		status = "unhealthy"
		message = "Workflow index is unreachable"
		httpStatus = http.StatusInternalServerError
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":    status,
		"message":   message,
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) GetStats(c fiber.Ctx) error {
	stats, err := h.store.Stats(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(stats)
}

func (h *APIHandlers) SearchWorkflows(c fiber.Ctx) error {
	page, perPage, err := parsePagination(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	query := c.Query("q")
	filters := SearchFilters{
		Trigger:    c.Query("trigger", "all"),
		Complexity: c.Query("complexity", "all"),
		Category:   c.Query("category", "all"),
	}

	if activeStr := c.Query("active_only"); activeStr != "" {
		filters.ActiveOnly, err = strconv.ParseBool(activeStr)
		if err != nil {
			return badRequest(c, "Invalid active_only value")
		}
	}

	opts := store.SearchOptions{
		Query:      query,
		Trigger:    filterValue(filters.Trigger),
		Complexity: filterValue(filters.Complexity),
		Category:   filterValue(filters.Category),
		ActiveOnly: filters.ActiveOnly,
		Limit:      perPage,
		Offset:     (page - 1) * perPage,
	}

	result, err := h.store.Search(c.Context(), opts)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(searchResponse(result, page, perPage, query, filters))
}

func (h *APIHandlers) SearchByCategory(c fiber.Ctx) error {
	page, perPage, err := parsePagination(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	category := c.Params("category")
	if category == "" {
		return badRequest(c, "Category is required")
	}

	opts := store.SearchOptions{
		Category: category,
		Limit:    perPage,
		Offset:   (page - 1) * perPage,
	}

	result, err := h.store.Search(c.Context(), opts)
	if err != nil {
		return internalError(c, err)
	}

	filters := SearchFilters{Trigger: "all", Complexity: "all", Category: category}

	return c.JSON(searchResponse(result, page, perPage, "category:"+category, filters))
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	filename, ok := h.requestedFilename(c)
	if !ok {
		return badRequest(c, "Invalid filename format")
	}

	summary, err := h.store.FindByFilename(c.Context(), filename)
	if err != nil {
		return handleLookupError(c, err)
	}

	path, err := h.resolveFile(c, filename)
	if err != nil {
		return handleLookupError(c, err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(WorkflowDetailResponse{Metadata: summary, RawJSON: raw})
}

func (h *APIHandlers) DownloadWorkflow(c fiber.Ctx) error {
	filename, ok := h.requestedFilename(c)
	if !ok {
		return badRequest(c, "Invalid filename format")
	}

	path, err := h.resolveFile(c, filename)
	if err != nil {
		return handleLookupError(c, err)
	}

	c.Set(fiber.HeaderContentType, "application/json")

	return c.Download(path, filename)
}

func (h *APIHandlers) GetDiagram(c fiber.Ctx) error {
	filename, ok := h.requestedFilename(c)
	if !ok {
		return badRequest(c, "Invalid filename format")
	}

	path, err := h.resolveFile(c, filename)
	if err != nil {
		return handleLookupError(c, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return internalError(c, err)
	}

	workflow, err := models.ParseWorkflow(data)
	if err != nil {
		return badRequest(c, "Workflow file is not a valid document")
	}

	return c.JSON(DiagramResponse{
		Filename: filename,
		Diagram:  diagram.Render(workflow.Nodes, workflow.Connections),
	})
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	filename, ok := h.requestedFilename(c)
	if !ok {
		return badRequest(c, "Invalid filename format")
	}

	err := h.store.DeleteByFilename(c.Context(), filename)
	if err != nil {
		return handleLookupError(c, err)
	}

	fileRemoved := true

	err = h.root.Remove(filename)
	if err != nil {
		fileRemoved = false

		if !storage.IsNotFound(err) {
			h.logger.WarnContext(c.Context(), "Failed to remove workflow file",
				"filename", filename, "error", err)
		}
	}

	h.publish(c.Context(), filename, events.WorkflowDeleted{
		BaseEvent:   events.NewBaseEvent(events.WorkflowDeletedEvent),
		Filename:    filename,
		FileRemoved: fileRemoved,
	})

	return c.JSON(WorkflowDeleteResponse{
		Message:     "Workflow deleted successfully",
		Filename:    filename,
		FileRemoved: fileRemoved,
	})
}

func (h *APIHandlers) UploadWorkflow(c fiber.Ctx) error {
	var (
		data     []byte
		provided string
	)

	file, err := c.FormFile("file")

	switch {
	case err == nil:
		if !strings.HasSuffix(file.Filename, ".json") {
			return badRequest(c, "File must be a JSON file (.json extension)")
		}

		provided = filepath.Base(file.Filename)

		reader, err := file.Open()
		if err != nil {
			return badRequest(c, "Cannot read uploaded file")
		}

		data, err = io.ReadAll(reader)

		_ = reader.Close()

		if err != nil {
			return badRequest(c, "Cannot read uploaded file")
		}
	case c.FormValue("workflow_json") != "":
		data = []byte(c.FormValue("workflow_json"))
	default:
		data = c.Body()
	}

	return h.saveUpload(c, data, provided)
}

func (h *APIHandlers) UploadWorkflowJSON(c fiber.Ctx) error {
	return h.saveUpload(c, c.Body(), "")
}

func (h *APIHandlers) saveUpload(c fiber.Ctx, data []byte, provided string) error {
	if len(data) == 0 {
		return badRequest(c,
			"No workflow data provided. Send JSON in body, file upload, or workflow_json form field.")
	}

	err := models.ValidateDocument(data)
	if err != nil {
		return badRequest(c, err.Error())
	}

	workflow, err := models.ParseWorkflow(data)
	if err != nil {
		return badRequest(c, "Invalid workflow document")
	}

	category := classify.Classify(workflow)
	filename := deriveFilename(workflow, provided)

	_, err = h.root.Save(category, filename, data)
	if err != nil {
		return internalError(c, err)
	}

	summary := models.Summarize(filename, category, workflow)
	sum := sha256.Sum256(data)
	summary.FileHash = hex.EncodeToString(sum[:])

	err = h.store.Upsert(c.Context(), summary)
	if err != nil {
		// File is saved; the next reindex picks it up.
		h.logger.ErrorContext(c.Context(), "Failed to index uploaded workflow",
			"filename", filename, "error", err)
	}

	h.publish(c.Context(), filename, events.WorkflowUploaded{
		BaseEvent: events.NewBaseEvent(events.WorkflowUploadedEvent),
		Filename:  filename,
		Category:  category,
	})

	return c.Status(fiber.StatusCreated).JSON(WorkflowUploadResponse{
		Message:  "Workflow uploaded successfully",
		Filename: filename,
		Category: category,
		Indexed:  err == nil,
	})
}

func (h *APIHandlers) Reindex(c fiber.Ctx) error {
	force := false

	if forceStr := c.Query("force"); forceStr != "" {
		parsed, err := strconv.ParseBool(forceStr)
		if err != nil {
			return badRequest(c, "Invalid force value")
		}

		force = parsed
	}

	requestedBy := c.IP()

	h.publish(c.Context(), requestedBy, events.ReindexStarted{
		BaseEvent:   events.NewBaseEvent(events.ReindexStartedEvent),
		Force:       force,
		RequestedBy: requestedBy,
	})

	ctx := context.WithoutCancel(c.Context())

	go func() {
		start := time.Now()

		result, err := h.indexer.ReindexAll(ctx, force)
		if err != nil {
			h.logger.ErrorContext(ctx, "Reindex failed", "error", err)

			return
		}

		h.publish(ctx, requestedBy, events.ReindexFinished{
			BaseEvent: events.NewBaseEvent(events.ReindexFinishedEvent),
			Processed: result.Processed,
			Skipped:   result.Skipped,
			Errors:    result.Errors,
			Duration:  time.Since(start),
		})
	}()

	return c.Status(fiber.StatusAccepted).JSON(ReindexResponse{
		Message:     "Reindexing started in background",
		RequestedBy: requestedBy,
		Force:       force,
	})
}

func (h *APIHandlers) GetCategories(c fiber.Ctx) error {
	categories, err := h.store.Categories(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(CategoriesResponse{Categories: categories})
}

func (h *APIHandlers) GetCategoryMappings(c fiber.Ctx) error {
	mappings, err := h.store.CategoryMappings(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(CategoryMappingsResponse{Mappings: mappings})
}

func (h *APIHandlers) GetIntegrations(c fiber.Ctx) error {
	integrations, err := h.store.Integrations(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(IntegrationsResponse{Integrations: integrations})
}

func (h *APIHandlers) SubmitPurchaseRequest(c fiber.Ctx) error {
	var body PurchaseRequestBody
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(body); err != nil {
		return badRequest(c, err.Error())
	}

	h.logger.InfoContext(c.Context(), "Purchase request received",
		"email", body.Email,
		"workflow", body.WorkflowName,
		"role", body.UserRole)

	h.publish(c.Context(), body.Email, events.PurchaseRequested{
		BaseEvent:        events.NewBaseEvent(events.PurchaseRequestedEvent),
		Email:            body.Email,
		Description:      body.Description,
		WorkflowName:     body.WorkflowName,
		WorkflowFilename: body.WorkflowFilename,
		UserRole:         body.UserRole,
	})

	return c.JSON(PurchaseResponse{
		Success:  true,
		Message:  "Purchase request submitted successfully. Admin will be notified.",
		Email:    body.Email,
		Workflow: body.WorkflowName,
	})
}

// requestedFilename unescapes and validates the filename path parameter,
// logging rejected traversal attempts.
func (h *APIHandlers) requestedFilename(c fiber.Ctx) (string, bool) {
	raw := c.Params("filename")

	filename, err := url.PathUnescape(raw)
	if err != nil {
		filename = raw
	}

	if !security.ValidFilename(filename) {
		h.logger.WarnContext(c.Context(), "Security: blocked path traversal attempt",
			"filename", raw, "ip", c.IP())

		return "", false
	}

	return filename, true
}

func (h *APIHandlers) resolveFile(c fiber.Ctx, filename string) (string, error) {
	path, err := h.root.Resolve(filename)
	if err != nil && storage.IsForbidden(err) {
		h.logger.WarnContext(c.Context(), "Security: blocked access outside workflows root",
			"filename", filename, "ip", c.IP())
	}

	return path, err
}

func (h *APIHandlers) publish(ctx context.Context, key string, event eventbus.Event) {
	if h.eventBus == nil {
		return
	}

	err := h.eventBus.Publish(ctx, key, event)
	if err != nil {
		h.logger.WarnContext(ctx, "Failed to publish event",
			"event_type", event.GetType(), "error", err)
	}
}

func parsePagination(c fiber.Ctx) (int, int, error) {
	page := 1
	perPage := defaultPerPage

	if pageStr := c.Query("page"); pageStr != "" {
		parsed, err := strconv.Atoi(pageStr)
		if err != nil || parsed < 1 {
			return 0, 0, errInvalidPage
		}

		page = parsed
	}

	if perPageStr := c.Query("per_page"); perPageStr != "" {
		parsed, err := strconv.Atoi(perPageStr)
		if err != nil || parsed < 1 || parsed > maxPerPage {
			return 0, 0, errInvalidPerPage
		}

		perPage = parsed
	}

	return page, perPage, nil
}

func searchResponse(result *store.SearchResult, page, perPage int, query string, filters SearchFilters) SearchResponse {
	return SearchResponse{
		Workflows: result.Workflows,
		Total:     result.Total,
		Page:      page,
		PerPage:   perPage,
		Pages:     (result.Total + perPage - 1) / perPage,
		Query:     query,
		Filters:   filters,
	}
}

// filterValue turns the API's "all" sentinel into an empty (no-op) filter.
func filterValue(value string) string {
	if value == "all" {
		return ""
	}

	return value
}

var (
	filenameCleaner  = regexp.MustCompile(`[^\w\s-]`)
	filenameSpacer   = regexp.MustCompile(`[-\s]+`)
	filenameFallback = regexp.MustCompile(`[^\w\-.]`)
)

// deriveFilename picks the stored filename for an uploaded document: the
// provided name when there is one, otherwise a name built from the document's
// id and name. The result always passes filename validation.
func deriveFilename(workflow *models.Workflow, provided string) string {
	filename := provided

	if filename == "" {
		name := workflow.Name
		if name == "" {
			name = "workflow"
		}

		clean := filenameCleaner.ReplaceAllString(name, "")
		clean = strings.TrimSpace(clean)
		clean = filenameSpacer.ReplaceAllString(clean, "_")

		if workflow.ID != "" {
			filename = workflow.ID + "_" + clean + ".json"
		} else {
			filename = time.Now().Format("20060102_150405") + "_" + clean + ".json"
		}
	}

	if !strings.HasSuffix(filename, ".json") {
		filename += ".json"
	}

	if !security.ValidFilename(filename) {
		filename = filenameFallback.ReplaceAllString(filename, "_")

		if !strings.HasSuffix(filename, ".json") {
			filename += ".json"
		}
	}

	if !security.ValidFilename(filename) {
		filename = uuid.New().String() + ".json"
	}

	return filename
}
