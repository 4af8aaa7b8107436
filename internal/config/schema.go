package config

import (
	"strings"

	dserrors "github.com/notorios/meli-token-manager/internal/errors"
	"github.com/xeipuuv/gojsonschema"
)

// documentSchema constrains the config document: only known keys, scalar
// values, a closed origin set, and a positive rotation interval. Requiredness
// is deliberately not expressed here; which keys are required depends on the
// command and origin, and is enforced by Snapshot.Require.
const documentSchema = `{
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "MELI_APP_ID":             {"type": ["string", "integer"]},
    "MELI_CLIENT_SECRET":      {"type": "string"},
    "MELI_REDIRECT_URI":       {"type": "string"},
    "MELI_TOKENS_SECRET_NAME": {"type": "string"},
    "GCP_PROJECT_ID":          {"type": "string"},
    "MELI_REFRESH_TOKEN":      {"type": "string"},
    "MELI_TOKEN_FILE":         {"type": "string"},
    "ROTATION_INTERVAL_SECONDS": {"type": ["integer", "string"]},
    "SECRET_ORIGIN":           {"type": "string", "enum": ["gcp", "local", "keyring"]},
    "LOCAL_SECRET_DIR":        {"type": "string"}
  }
}`

// validateDocument checks the parsed YAML document against the schema and
// converts failures into a single ConfigError.
func validateDocument(doc map[string]interface{}) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(documentSchema),
		gojsonschema.NewGoLoader(doc),
	)
	if err != nil {
		return dserrors.ConfigError{
			Key:        "schema",
			Message:    "failed to validate config document: " + err.Error(),
			Suggestion: "Check the config file structure",
		}
	}
	if result.Valid() {
		return nil
	}

	var problems []string
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}
	return dserrors.ConfigError{
		Key:        "schema",
		Message:    strings.Join(problems, "; "),
		Suggestion: "Remove unknown keys and check value types in the config file",
	}
}
