package schema

import (
	"github.com/goccy/go-yaml"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// metaSchema constrains the declaration format itself: leaves are type tags,
// tables carry an items block, everything else nests.
const metaSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "minProperties": 1,
  "additionalProperties": {"$ref": "#/$defs/field"},
  "$defs": {
    "tag": {"type": "string", "enum": ["string", "number", "boolean"]},
    "field": {
      "anyOf": [
        {"$ref": "#/$defs/tag"},
        {
          "type": "object",
          "required": ["items"],
          "properties": {
            "type": {"const": "array-of-object"},
            "items": {
              "type": "object",
              "minProperties": 1,
              "additionalProperties": {"$ref": "#/$defs/tag"}
            }
          },
          "additionalProperties": false
        },
        {
          "type": "object",
          "minProperties": 1,
          "additionalProperties": {"$ref": "#/$defs/field"}
        }
      ]
    }
  }
}`

var compiledMeta = jsonschema.MustCompileString("declaration.schema.json", metaSchema)

func validateDeclaration(raw []byte) error {
	var v any
	if err := yaml.Unmarshal(raw, &v); err != nil {
		return err
	}
	return compiledMeta.Validate(v)
}
