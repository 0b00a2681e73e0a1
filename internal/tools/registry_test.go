package tools

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colintoh/clicky-mcp/pkg/clicky"
)

func TestDescriptorsShape(t *testing.T) {
	byName := map[string]Descriptor{}
	for _, d := range Descriptors() {
		_, dup := byName[d.Name]
		require.False(t, dup, "duplicate operation %s", d.Name)
		byName[d.Name] = d
		assert.NotEmpty(t, d.Description)
		assert.Equal(t, "object", d.InputSchema.Type)
		for _, field := range d.InputSchema.Required {
			assert.Contains(t, d.InputSchema.Properties, field, "%s requires undeclared %s", d.Name, field)
		}
	}

	required := map[string][]string{
		"get_total_visitors":  {"start_date", "end_date"},
		"get_domain_visitors": {"domain", "start_date", "end_date"},
		"get_top_pages":       {"start_date", "end_date"},
		"get_traffic_sources": {"start_date", "end_date"},
		"get_page_traffic":    {"url", "start_date", "end_date"},
	}
	for name, want := range required {
		d, ok := byName[name]
		require.True(t, ok, name)
		assert.ElementsMatch(t, want, d.InputSchema.Required, name)
	}

	domain := byName["get_domain_visitors"].InputSchema
	assert.Equal(t, []string{"pages", "visitors"}, domain.Properties["segments"].Items.Enum)
	assert.Equal(t, 1.0, *domain.Properties["limit"].Minimum)
	assert.Equal(t, 1000.0, *domain.Properties["limit"].Maximum)
	assert.Equal(t, `^\d{4}-\d{2}-\d{2}$`, domain.Properties["start_date"].Pattern)
}

func TestDescriptorsJSON(t *testing.T) {
	data, err := json.Marshal(Descriptors()[2])
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"name": "get_top_pages",
		"description": "Get top pages for a date range from Clicky analytics",
		"inputSchema": {
			"type": "object",
			"properties": {
				"start_date": {"type": "string", "pattern": "^\\d{4}-\\d{2}-\\d{2}$", "description": "Start date in YYYY-MM-DD format"},
				"end_date": {"type": "string", "pattern": "^\\d{4}-\\d{2}-\\d{2}$", "description": "End date in YYYY-MM-DD format"},
				"limit": {"type": "number", "minimum": 1, "maximum": 1000, "description": "Maximum number of pages to return (default: API default, max: 1000)"}
			},
			"required": ["start_date", "end_date"]
		}
	}`, string(data))
}

func TestDescriptorsIsolated(t *testing.T) {
	list := Descriptors()
	list[0].Name = "mutated"
	list[0].InputSchema.Properties["start_date"].Pattern = "changed"
	list[0].InputSchema.Required[0] = "changed"
	*list[1].InputSchema.Properties["limit"].Maximum = 5
	list[1].InputSchema.Properties["segments"].Items.Enum[0] = "changed"

	fresh := Descriptors()
	assert.Equal(t, "get_total_visitors", fresh[0].Name)
	assert.Equal(t, datePattern, fresh[0].InputSchema.Properties["start_date"].Pattern)
	assert.Equal(t, "start_date", fresh[0].InputSchema.Required[0])
	assert.Equal(t, 1000.0, *fresh[1].InputSchema.Properties["limit"].Maximum)
	assert.Equal(t, clicky.SegmentPages, fresh[1].InputSchema.Properties["segments"].Items.Enum[0])
}
