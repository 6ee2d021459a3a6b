package server

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// assessRequestSchema gates the request shape: malformed requests fail fast
// with a client error, everything past this gate is handled best-effort by
// the pipeline.
const assessRequestSchema = `{
	"type": "object",
	"required": ["fields", "line_items"],
	"properties": {
		"bill_id": {"type": "string"},
		"fields": {"type": "object"},
		"line_items": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"description": {},
					"quantity": {},
					"unit_price": {},
					"amount": {},
					"page": {}
				},
				"additionalProperties": false
			}
		},
		"image_signals": {
			"type": "object",
			"properties": {
				"whitened_regions": {
					"type": "array",
					"items": {
						"type": "object",
						"required": ["region", "confidence"],
						"properties": {
							"region": {"$ref": "#/$defs/region"},
							"confidence": {"type": "number", "minimum": 0, "maximum": 1}
						}
					}
				},
				"text_regions": {
					"type": "array",
					"items": {
						"type": "object",
						"required": ["region", "field"],
						"properties": {
							"region": {"$ref": "#/$defs/region"},
							"field": {"type": "string"},
							"font_cluster_id": {"type": "string"}
						}
					}
				}
			}
		}
	},
	"additionalProperties": false,
	"$defs": {
		"region": {
			"type": "object",
			"required": ["x0", "y0", "x1", "y1"],
			"properties": {
				"x0": {"type": "number"},
				"y0": {"type": "number"},
				"x1": {"type": "number"},
				"y1": {"type": "number"}
			}
		}
	}
}`

func compileAssessSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("assess-request.json", bytes.NewReader([]byte(assessRequestSchema))); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("assess-request.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// validateShape checks raw JSON against the compiled schema.
func validateShape(schema *jsonschema.Schema, data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("request is not valid JSON: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("request does not match schema: %w", err)
	}
	return nil
}
