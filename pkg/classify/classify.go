// Package classify deterministically picks the storage category for a
// workflow document. Precedence lives in an ordered rule table, not control
// flow, so identical documents always classify identically.
package classify

import (
	"strings"

	"github.com/flowdocs/flowdocs/pkg/models"
)

// DefaultCategory is used for empty documents and unrecognized first nodes.
const DefaultCategory = "Manual"

// Generic placeholder labels. A specific service label replaces a placeholder;
// nothing replaces a specific label.
var placeholders = map[string]bool{
	DefaultCategory: true,
	"Webhook":       true,
	"Schedule":      true,
}

type rule struct {
	keyword string
	label   string
}

// serviceRules is scanned in order against each node's lowercase type and
// name; the first keyword found proposes its label. The order is part of the
// classification contract.
var serviceRules = []rule{
	{"telegram", "Telegram"},
	{"discord", "Discord"},
	{"slack", "Slack"},
	{"gmail", "Gmail"},
	{"googlesheets", "Googlesheets"},
	{"googledrive", "Googledrive"},
	{"webhook", "Webhook"},
	{"http", "Http"},
	{"schedule", "Schedule"},
	{"cron", "Cron"},
	{"postgres", "Postgres"},
	{"mysql", "Mysqltool"},
	{"mongodb", "Mongodbtool"},
	{"airtable", "Airtable"},
	{"github", "Github"},
	{"gitlab", "Gitlab"},
	{"jira", "Jira"},
	{"openai", "Openai"},
	{"notion", "Notion"},
	{"shopify", "Shopify"},
	{"stripe", "Stripe"},
	{"twitter", "Twitter"},
	{"linkedin", "Linkedin"},
	{"facebook", "Facebook"},
	{"instagram", "Instagram"},
	{"whatsapp", "Whatsapp"},
	{"trello", "Trello"},
	{"asana", "Asana"},
	{"mondaycom", "Mondaycom"},
	{"dropbox", "Dropbox"},
	{"onedrive", "Microsoftonedrive"},
	{"outlook", "Microsoftoutlook"},
	{"calendly", "Calendly"},
	{"typeform", "Typeform"},
	{"youtube", "Youtube"},
	{"wordpress", "Wordpress"},
	{"woocommerce", "Woocommerce"},
}

// Classify returns the storage category label for a workflow document.
// Total and deterministic: missing names and types are treated as empty
// strings, and the same document always yields the same label.
func Classify(workflow *models.Workflow) string {
	if workflow == nil || len(workflow.Nodes) == 0 {
		return DefaultCategory
	}

	best := ""

	for _, node := range workflow.Nodes {
		nodeType := strings.ToLower(node.Type)
		nodeName := strings.ToLower(node.Name)

		if strings.Contains(nodeType, "webhook") || strings.Contains(nodeName, "webhook") {
			if best == "" || best == DefaultCategory {
				best = "Webhook"
			}
		}

		if strings.Contains(nodeType, "cron") || strings.Contains(nodeType, "schedule") {
			if best == "" || best == DefaultCategory {
				best = "Schedule"
			}
		}

		for _, r := range serviceRules {
			if strings.Contains(nodeType, r.keyword) || strings.Contains(nodeName, r.keyword) {
				if best == "" || placeholders[best] {
					best = r.label
				}

				break
			}
		}

		if best != "" && !placeholders[best] {
			break
		}
	}

	if best == "" || best == DefaultCategory {
		return deriveFromFirstNode(workflow.Nodes[0].Type)
	}

	return best
}

// deriveFromFirstNode falls back to the first node's type with the vendor
// namespace stripped and the first letter capitalized.
func deriveFromFirstNode(nodeType string) string {
	if !strings.Contains(nodeType, models.VendorPrefix) {
		return DefaultCategory
	}

	service := models.StripVendorPrefix(nodeType)
	if service == "" {
		return DefaultCategory
	}

	return strings.ToUpper(service[:1]) + strings.ToLower(service[1:])
}
