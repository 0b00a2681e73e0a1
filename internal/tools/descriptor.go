package tools

import "slices"

// Schema is the subset of JSON Schema used to describe operation arguments.
type Schema struct {
	Type        string             `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Pattern     string             `json:"pattern,omitempty"`
	Enum        []string           `json:"enum,omitempty"`
	Minimum     *float64           `json:"minimum,omitempty"`
	Maximum     *float64           `json:"maximum,omitempty"`
}

func (s Schema) clone() Schema {
	if s.Properties != nil {
		props := make(map[string]*Schema, len(s.Properties))
		for name, prop := range s.Properties {
			c := prop.clone()
			props[name] = &c
		}
		s.Properties = props
	}
	if s.Items != nil {
		items := s.Items.clone()
		s.Items = &items
	}
	s.Required = slices.Clone(s.Required)
	s.Enum = slices.Clone(s.Enum)
	if s.Minimum != nil {
		lo := *s.Minimum
		s.Minimum = &lo
	}
	if s.Maximum != nil {
		hi := *s.Maximum
		s.Maximum = &hi
	}
	return s
}

// Descriptor advertises one callable operation.
type Descriptor struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema Schema `json:"inputSchema"`
}

// Content is a single block of a call result.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// CallResult is the envelope returned for every call.
type CallResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError"`
}

// TextResult wraps text in a successful CallResult.
func TextResult(text string) CallResult {
	return CallResult{Content: []Content{{Type: "text", Text: text}}}
}

// ErrorResult wraps text in a failed CallResult.
func ErrorResult(text string) CallResult {
	return CallResult{Content: []Content{{Type: "text", Text: text}}, IsError: true}
}

const datePattern = `^\d{4}-\d{2}-\d{2}$`

func dateProperty(description string) *Schema {
	return &Schema{Type: "string", Pattern: datePattern, Description: description}
}

func limitProperty(description string) *Schema {
	lo, hi := 1.0, 1000.0
	return &Schema{Type: "number", Minimum: &lo, Maximum: &hi, Description: description}
}

func objectSchema(properties map[string]*Schema, required ...string) Schema {
	return Schema{Type: "object", Properties: properties, Required: required}
}
