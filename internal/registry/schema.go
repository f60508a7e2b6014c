// internal/registry/schema.go
package registry

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// ParamType is the declared JSON type of a tool parameter.
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeNumber  ParamType = "number"
	TypeInteger ParamType = "integer"
	TypeBoolean ParamType = "boolean"
	TypeArray   ParamType = "array"
	TypeObject  ParamType = "object"
)

// Param declares one tool parameter.
type Param struct {
	Name        string
	Type        ParamType
	Description string
	Required    bool
	Enum        []string // allowed values for string params, optional
}

// Schema is the declared input schema of a tool: the ordered parameter list.
type Schema []Param

// jsonProperty mirrors one property in a JSON Schema object.
type jsonProperty struct {
	Type        string          `json:"type"`
	Description string          `json:"description,omitempty"`
	Enum        []string        `json:"enum,omitempty"`
	Items       json.RawMessage `json:"items,omitempty"`
}

// JSON renders the schema as a JSON Schema object for the model.
func (s Schema) JSON() json.RawMessage {
	properties := make(map[string]jsonProperty, len(s))
	var required []string
	for _, p := range s {
		prop := jsonProperty{
			Type:        string(p.Type),
			Description: p.Description,
			Enum:        p.Enum,
		}
		if p.Type == TypeArray {
			prop.Items = json.RawMessage(`{"type":"object"}`)
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	out, _ := json.Marshal(struct {
		Type       string                  `json:"type"`
		Properties map[string]jsonProperty `json:"properties"`
		Required   []string                `json:"required,omitempty"`
	}{
		Type:       "object",
		Properties: properties,
		Required:   required,
	})
	return out
}

// Validate checks that args satisfy the schema: required parameters present
// and every supplied value type-compatible with its declaration. It must be
// called before any tool side effect.
func (s Schema) Validate(toolName string, args json.RawMessage) error {
	values := map[string]any{}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &values); err != nil {
			return &SchemaError{Tool: toolName, Problems: []string{
				fmt.Sprintf("arguments are not a JSON object: %v", err),
			}}
		}
	}

	var problems []string
	for _, p := range s {
		value, ok := values[p.Name]
		if !ok {
			if p.Required {
				problems = append(problems, fmt.Sprintf("missing required parameter %q", p.Name))
			}
			continue
		}
		if problem := checkType(p, value); problem != "" {
			problems = append(problems, problem)
		}
	}

	if len(problems) > 0 {
		return &SchemaError{Tool: toolName, Problems: problems}
	}
	return nil
}

func checkType(p Param, value any) string {
	switch p.Type {
	case TypeString:
		str, ok := value.(string)
		if !ok {
			return fmt.Sprintf("parameter %q must be a string", p.Name)
		}
		if len(p.Enum) > 0 {
			for _, allowed := range p.Enum {
				if str == allowed {
					return ""
				}
			}
			return fmt.Sprintf("parameter %q must be one of [%s]", p.Name, strings.Join(p.Enum, ", "))
		}
	case TypeNumber:
		if _, ok := value.(float64); !ok {
			return fmt.Sprintf("parameter %q must be a number", p.Name)
		}
	case TypeInteger:
		num, ok := value.(float64)
		if !ok || num != math.Trunc(num) {
			return fmt.Sprintf("parameter %q must be an integer", p.Name)
		}
	case TypeBoolean:
		if _, ok := value.(bool); !ok {
			return fmt.Sprintf("parameter %q must be a boolean", p.Name)
		}
	case TypeArray:
		if _, ok := value.([]any); !ok {
			return fmt.Sprintf("parameter %q must be an array", p.Name)
		}
	case TypeObject:
		if _, ok := value.(map[string]any); !ok {
			return fmt.Sprintf("parameter %q must be an object", p.Name)
		}
	}
	return ""
}
