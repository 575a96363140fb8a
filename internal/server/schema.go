package server

import (
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Request body schemas for the inventory write endpoints. The wire contract
// knows two generations of field names (device_name vs name, partition_name
// vs name); the schemas admit both and normalization (see normalize.go)
// folds them into the canonical form. Validation errors surface as one
// joined message under validation.failed.

const deviceSchema = `{
	"type": "object",
	"properties": {
		"name":        {"type": "string", "minLength": 1, "maxLength": 64},
		"device_name": {"type": "string", "minLength": 1, "maxLength": 64},
		"type":        {"type": "string", "minLength": 1, "maxLength": 32},
		"device_type": {"type": "string", "minLength": 1, "maxLength": 32},
		"capacity":    {"type": "string", "minLength": 1, "maxLength": 32},
		"status":      {"type": "string", "enum": ["active", "inactive"]}
	},
	"required": ["capacity"],
	"allOf": [
		{"anyOf": [{"required": ["name"]}, {"required": ["device_name"]}]},
		{"anyOf": [{"required": ["type"]}, {"required": ["device_type"]}]}
	],
	"additionalProperties": false
}`

const partitionSchema = `{
	"type": "object",
	"properties": {
		"device_id":      {"type": "string", "minLength": 1},
		"name":           {"type": "string", "minLength": 1, "maxLength": 64},
		"partition_name": {"type": "string", "minLength": 1, "maxLength": 64},
		"size":           {"type": "string", "minLength": 1, "maxLength": 32},
		"format":         {"type": "string", "enum": ["NTFS", "exFAT", "FAT32", "ext4"]},
		"status":         {"type": "string", "enum": ["active", "inactive"]}
	},
	"required": ["device_id", "size", "format"],
	"allOf": [
		{"anyOf": [{"required": ["name"]}, {"required": ["partition_name"]}]}
	],
	"additionalProperties": false
}`

var (
	deviceSchemaLoader    = gojsonschema.NewStringLoader(deviceSchema)
	partitionSchemaLoader = gojsonschema.NewStringLoader(partitionSchema)
)

// validateBody checks a raw JSON body against a schema and returns a
// human-readable message when it does not conform.
func validateBody(schema gojsonschema.JSONLoader, body []byte) (string, bool) {
	result, err := gojsonschema.Validate(schema, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return "invalid JSON body", false
	}
	if result.Valid() {
		return "", true
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return strings.Join(msgs, "; "), false
}
