// Package diagram compiles a workflow's node graph into Mermaid flowchart
// text. Pure over its input: no state survives between calls and malformed
// connection shapes are skipped, never rejected.
package diagram

import (
	"fmt"
	"strings"

	"github.com/flowdocs/flowdocs/pkg/models"
)

// Node style classes, first matching rule wins against the lowercase type.
const (
	styleTrigger     = "fill:#b3e0ff,stroke:#0066cc"
	styleConditional = "fill:#ffffb3,stroke:#e6e600"
	styleCode        = "fill:#d9b3ff,stroke:#6600cc"
	styleError       = "fill:#ffb3b3,stroke:#cc0000"
	styleDefault     = "fill:#d9d9d9,stroke:#666666"
)

const emptyDiagram = "graph TD\n  EmptyWorkflow[No nodes found in workflow]"

// Render produces Mermaid flowchart code for the given nodes and connections.
// Identifiers node0, node1, ... are assigned in input order and keyed by node
// name; duplicate names are last-write-wins, an observed quirk of the format
// that is preserved deliberately. Edges referencing unknown source or target
// names are dropped.
func Render(nodes []models.Node, connections models.Connections) string {
	if len(nodes) == 0 {
		return emptyDiagram
	}

	ids := make(map[string]string, len(nodes))
	for i, node := range nodes {
		ids[node.Name] = fmt.Sprintf("node%d", i)
	}

	var b strings.Builder

	b.WriteString("graph TD")

	for _, node := range nodes {
		// Declarations go through the identifier table too, so duplicate
		// names collapse onto the surviving identifier.
		id := ids[node.Name]
		nodeType := strings.ReplaceAll(node.Type, models.VendorPrefix, "")

		cleanName := strings.ReplaceAll(node.Name, `"`, "'")
		cleanType := strings.ReplaceAll(nodeType, `"`, "'")

		b.WriteString(fmt.Sprintf("\n  %s[\"%s<br>(%s)\"]", id, cleanName, cleanType))
		b.WriteString(fmt.Sprintf("\n  style %s %s", id, styleFor(nodeType)))
	}

	// Sources are visited in node declaration order, which keeps the output
	// deterministic; a source name absent from the identifier table can never
	// emit an edge, so nothing is lost by not walking the connection map keys.
	emitted := make(map[string]bool, len(nodes))

	for _, node := range nodes {
		sourceID, ok := ids[node.Name]
		if !ok || emitted[node.Name] {
			continue
		}

		emitted[node.Name] = true

		outputs, ok := connections[node.Name]
		if !ok {
			continue
		}

		for portIndex, targets := range outputs.Main {
			for _, target := range targets {
				targetID, ok := ids[target.Node]
				if !ok {
					continue
				}

				arrow := " --> "
				if len(outputs.Main) > 1 {
					arrow = fmt.Sprintf(" -->|%d| ", portIndex)
				}

				b.WriteString(fmt.Sprintf("\n  %s%s%s", sourceID, arrow, targetID))
			}
		}
	}

	return b.String()
}

func styleFor(nodeType string) string {
	lowered := strings.ToLower(nodeType)

	switch {
	case containsAny(lowered, "trigger", "webhook", "cron"):
		return styleTrigger
	case containsAny(lowered, "if", "switch"):
		return styleConditional
	case containsAny(lowered, "function", "code"):
		return styleCode
	case strings.Contains(lowered, "error"):
		return styleError
	default:
		return styleDefault
	}
}

func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}

	return false
}
