package models

import (
	"fmt"
	"strings"
	"time"
)

// Trigger type labels derived at index time.
const (
	TriggerManual    = "Manual"
	TriggerWebhook   = "Webhook"
	TriggerScheduled = "Scheduled"
	TriggerComplex   = "Complex"
)

// Complexity labels derived from node count.
const (
	ComplexityLow    = "low"
	ComplexityMedium = "medium"
	ComplexityHigh   = "high"
)

// Summary is the indexed metadata of one workflow file. It is what the search
// store persists and what list endpoints return.
type Summary struct {
	ID           int64     `json:"id,omitempty"`
	Filename     string    `json:"filename"`
	Name         string    `json:"name"`
	Active       bool      `json:"active"`
	Description  string    `json:"description"`
	TriggerType  string    `json:"trigger_type"`
	Complexity   string    `json:"complexity"`
	NodeCount    int       `json:"node_count"`
	Integrations []string  `json:"integrations"`
	Tags         []string  `json:"tags"`
	Category     string    `json:"category"`
	FileHash     string    `json:"-"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

// Summarize derives the indexed metadata for a workflow document stored under
// the given filename and category. Total over its input: missing names and
// types degrade to defaults, never errors.
func Summarize(filename, category string, workflow *Workflow) *Summary {
	name := workflow.Name
	if name == "" {
		name = strings.TrimSuffix(filename, ".json")
	}

	integrations := integrationsOf(workflow.Nodes)

	return &Summary{
		Filename:     filename,
		Name:         name,
		Active:       workflow.Active,
		Description:  describe(name, len(workflow.Nodes), integrations),
		TriggerType:  triggerTypeOf(workflow.Nodes),
		Complexity:   complexityOf(len(workflow.Nodes)),
		NodeCount:    len(workflow.Nodes),
		Integrations: integrations,
		Tags:         workflow.TagNames(),
		Category:     category,
	}
}

// StripVendorPrefix removes the editor's node type namespace and returns the
// leading segment of what remains ("n8n-nodes-base.slack" -> "slack").
func StripVendorPrefix(nodeType string) string {
	stripped := strings.ReplaceAll(nodeType, VendorPrefix, "")
	if idx := strings.IndexByte(stripped, '.'); idx >= 0 {
		stripped = stripped[:idx]
	}

	return stripped
}

func triggerTypeOf(nodes []Node) string {
	webhooks := 0
	schedules := 0

	for _, node := range nodes {
		loweredType := strings.ToLower(node.Type)

		switch {
		case strings.Contains(loweredType, "webhook"):
			webhooks++
		case strings.Contains(loweredType, "cron"), strings.Contains(loweredType, "schedule"):
			schedules++
		}
	}

	switch {
	case webhooks > 0 && schedules > 0:
		return TriggerComplex
	case webhooks > 0:
		return TriggerWebhook
	case schedules > 0:
		return TriggerScheduled
	default:
		return TriggerManual
	}
}

func complexityOf(nodeCount int) string {
	switch {
	case nodeCount <= 5:
		return ComplexityLow
	case nodeCount <= 15:
		return ComplexityMedium
	default:
		return ComplexityHigh
	}
}

func integrationsOf(nodes []Node) []string {
	seen := make(map[string]bool)
	integrations := make([]string, 0)

	for _, node := range nodes {
		service := StripVendorPrefix(node.Type)
		if service == "" || seen[service] {
			continue
		}

		seen[service] = true

		integrations = append(integrations, service)
	}

	return integrations
}

func describe(name string, nodeCount int, integrations []string) string {
	if len(integrations) == 0 {
		return fmt.Sprintf("%s: workflow with %d nodes", name, nodeCount)
	}

	shown := integrations
	if len(shown) > 5 {
		shown = shown[:5]
	}

	return fmt.Sprintf("%s: workflow with %d nodes using %s", name, nodeCount, strings.Join(shown, ", "))
}
