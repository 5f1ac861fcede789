package jobs

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed schemas/job_schema.json
var jobSchemaJSON string

// Compiled once and cached; the schema ships inside the binary.
var (
	jobSchemaOnce  sync.Once
	compiledSchema *jsonschema.Schema
	jobSchemaError error
)

const jobSchemaURL = "https://deepwork.dev/schemas/job.json"

// getCompiledJobSchema returns the compiled job schema, compiling it once and caching
func getCompiledJobSchema() (*jsonschema.Schema, error) {
	jobSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()

		var schemaDoc any
		if err := json.Unmarshal([]byte(jobSchemaJSON), &schemaDoc); err != nil {
			jobSchemaError = fmt.Errorf("failed to parse embedded job schema: %w", err)
			return
		}

		if err := compiler.AddResource(jobSchemaURL, schemaDoc); err != nil {
			jobSchemaError = fmt.Errorf("failed to add job schema resource: %w", err)
			return
		}

		compiledSchema, jobSchemaError = compiler.Compile(jobSchemaURL)
	})
	return compiledSchema, jobSchemaError
}

// validateAgainstSchema validates a decoded job.yml document against the
// embedded draft-7 schema. The document is normalized through JSON first so
// YAML types (map[string]any with int keys etc.) match what the validator
// expects.
func validateAgainstSchema(doc map[string]any) error {
	schema, err := getCompiledJobSchema()
	if err != nil {
		return err
	}

	if doc == nil {
		doc = map[string]any{}
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to normalize job document: %w", err)
	}

	var normalized any
	if err := json.Unmarshal(raw, &normalized); err != nil {
		return fmt.Errorf("failed to normalize job document: %w", err)
	}

	if err := schema.Validate(normalized); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	return nil
}

// GetJobSchema returns the embedded job schema JSON
func GetJobSchema() string {
	return jobSchemaJSON
}
