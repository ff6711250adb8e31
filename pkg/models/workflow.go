// Package models defines the n8n-style workflow document shapes served by the
// documentation API. Documents are received as input and never retained; the
// types here are deliberately tolerant of malformed or partial input.
package models

import "encoding/json"

// VendorPrefix is the node type namespace used by the upstream editor.
const VendorPrefix = "n8n-nodes-base."

// Workflow is a parsed workflow definition document.
type Workflow struct {
	ID          string      `json:"id,omitempty"`
	Name        string      `json:"name,omitempty"`
	Active      bool        `json:"active,omitempty"`
	Nodes       []Node      `json:"nodes"`
	Connections Connections `json:"connections,omitempty"`
	Tags        []Tag       `json:"tags,omitempty"`
}

// Node is one vertex in the workflow graph. Name uniqueness within a document
// is expected but not enforced; lookup tables built from nodes are
// last-write-wins on duplicate names.
type Node struct {
	Name       string         `json:"name,omitempty"`
	Type       string         `json:"type,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Disabled   bool           `json:"disabled,omitempty"`
}

// Connections maps a source node name to its output port lists. References to
// unknown node names are tolerated; they are dropped at render time.
type Connections map[string]NodeOutputs

// NodeOutputs holds the ordered output ports of one source node.
type NodeOutputs struct {
	Main [][]ConnectionTarget `json:"main,omitempty"`
}

// ConnectionTarget references a target node by name.
type ConnectionTarget struct {
	Node string `json:"node,omitempty"`
}

// Tag is a workflow tag. The upstream editor serializes tags either as plain
// strings or as objects with a name field; both are accepted.
type Tag struct {
	Name string
}

func (t *Tag) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		t.Name = s

		return nil
	}

	var obj struct {
		Name string `json:"name"`
	}

	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}

	t.Name = obj.Name

	return nil
}

func (t Tag) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Name)
}

// TagNames returns the non-empty tag names of the workflow.
func (w *Workflow) TagNames() []string {
	names := make([]string, 0, len(w.Tags))

	for _, tag := range w.Tags {
		if tag.Name != "" {
			names = append(names, tag.Name)
		}
	}

	return names
}

// ParseWorkflow decodes a workflow document.
func ParseWorkflow(data []byte) (*Workflow, error) {
	var workflow Workflow
	if err := json.Unmarshal(data, &workflow); err != nil {
		return nil, err
	}

	return &workflow, nil
}
