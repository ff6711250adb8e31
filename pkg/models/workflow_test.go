package models_test

import (
	"encoding/json"
	"testing"

	"github.com/flowdocs/flowdocs/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWorkflow(t *testing.T) {
	workflow, err := models.ParseWorkflow([]byte(`{
		"id": "wf-1",
		"name": "Alerts",
		"active": true,
		"nodes": [
			{"name": "Webhook", "type": "n8n-nodes-base.webhook", "parameters": {"path": "/hook"}},
			{"name": "Slack", "type": "n8n-nodes-base.slack", "disabled": true}
		],
		"connections": {
			"Webhook": {"main": [[{"node": "Slack"}]]}
		}
	}`))
	require.NoError(t, err)

	assert.Equal(t, "wf-1", workflow.ID)
	assert.Equal(t, "Alerts", workflow.Name)
	assert.True(t, workflow.Active)
	require.Len(t, workflow.Nodes, 2)
	assert.Equal(t, "/hook", workflow.Nodes[0].Parameters["path"])
	assert.True(t, workflow.Nodes[1].Disabled)

	outputs := workflow.Connections["Webhook"]
	require.Len(t, outputs.Main, 1)
	require.Len(t, outputs.Main[0], 1)
	assert.Equal(t, "Slack", outputs.Main[0][0].Node)
}

func TestParseWorkflow_InvalidJSON(t *testing.T) {
	_, err := models.ParseWorkflow([]byte("{nope"))
	assert.Error(t, err)
}

func TestTag_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		data string
		want []string
	}{
		{name: "string tags", data: `{"tags": ["ops", "billing"]}`, want: []string{"ops", "billing"}},
		{name: "object tags", data: `{"tags": [{"name": "ops", "id": "1"}]}`, want: []string{"ops"}},
		{name: "mixed tags", data: `{"tags": ["ops", {"name": "billing"}]}`, want: []string{"ops", "billing"}},
		{name: "empty names dropped", data: `{"tags": [{"id": "1"}, "ops"]}`, want: []string{"ops"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			workflow, err := models.ParseWorkflow([]byte(tc.data))
			require.NoError(t, err)
			assert.Equal(t, tc.want, workflow.TagNames())
		})
	}
}

func TestTag_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(models.Tag{Name: "ops"})
	require.NoError(t, err)
	assert.Equal(t, `"ops"`, string(data))
}
