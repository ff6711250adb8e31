// Package web provides HTTP request and response types for the workflow
// library API.
package web

import (
	"encoding/json"

	"github.com/flowdocs/flowdocs/pkg/models"
)

// SearchFilters echoes the filters a search was run with.
type SearchFilters struct {
	Trigger    string `json:"trigger"`
	Complexity string `json:"complexity"`
	Category   string `json:"category"`
	ActiveOnly bool   `json:"active_only"`
}

// SearchResponse is one page of workflow summaries with pagination metadata.
type SearchResponse struct {
	Workflows []*models.Summary `json:"workflows"`
	Total     int               `json:"total"`
	Page      int               `json:"page"`
	PerPage   int               `json:"per_page"`
	Pages     int               `json:"pages"`
	Query     string            `json:"query"`
	Filters   SearchFilters     `json:"filters"`
}

// WorkflowDetailResponse pairs the indexed metadata with the raw document.
type WorkflowDetailResponse struct {
	Metadata *models.Summary `json:"metadata"`
	RawJSON  json.RawMessage `json:"raw_json"`
}

// DiagramResponse carries the rendered Mermaid flowchart text.
type DiagramResponse struct {
	Filename string `json:"filename"`
	Diagram  string `json:"diagram"`
}

// WorkflowUploadResponse represents the result of a workflow upload.
type WorkflowUploadResponse struct {
	Message  string `json:"message"`
	Filename string `json:"filename"`
	Category string `json:"category"`
	Indexed  bool   `json:"indexed"`
}

// WorkflowDeleteResponse represents the result of a workflow deletion.
type WorkflowDeleteResponse struct {
	Message     string `json:"message"`
	Filename    string `json:"filename"`
	FileRemoved bool   `json:"file_removed"`
}

// ReindexResponse acknowledges a background reindex.
type ReindexResponse struct {
	Message     string `json:"message"`
	RequestedBy string `json:"requested_by"`
	Force       bool   `json:"force"`
}

// PurchaseRequestBody represents the request body for a purchase request.
type PurchaseRequestBody struct {
	Email            string `json:"email"            validate:"required,email"`
	Description      string `json:"description"      validate:"required"`
	WorkflowName     string `json:"workflowName"`
	WorkflowFilename string `json:"workflowFilename"`
	UserRole         string `json:"userRole"`
}

// PurchaseResponse acknowledges a submitted purchase request.
type PurchaseResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Email    string `json:"email"`
	Workflow string `json:"workflow"`
}

// CategoriesResponse lists the known workflow categories.
type CategoriesResponse struct {
	Categories []string `json:"categories"`
}

// CategoryMappingsResponse maps filenames to their categories for client-side
// filtering.
type CategoryMappingsResponse struct {
	Mappings map[string]string `json:"mappings"`
}

// IntegrationsResponse lists the distinct integrations across the catalog.
type IntegrationsResponse struct {
	Integrations []string `json:"integrations"`
}
