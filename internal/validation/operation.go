package validation

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"flowsync/internal/models"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// opSchemas maps each operation type to its compiled payload schema.
// Payload shape is dynamic JSON keyed by op_type; schemas pin down the
// required-field set before the applier ever sees a payload.
var opSchemas = map[string]*jsonschema.Schema{
	models.OpCreateFlow:  mustCompile("schemas/create_flow.json"),
	models.OpUpdateFlow:  mustCompile("schemas/update_flow.json"),
	models.OpDeleteFlow:  mustCompile("schemas/delete_flow.json"),
	models.OpCreateEntry: mustCompile("schemas/create_entry.json"),
	models.OpUpdateEntry: mustCompile("schemas/update_entry.json"),
	models.OpDeleteEntry: mustCompile("schemas/delete_entry.json"),
}

func mustCompile(path string) *jsonschema.Schema {
	data, err := schemaFS.ReadFile(path)
	if err != nil {
		panic(fmt.Sprintf("read schema %s: %v", path, err))
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource(path, bytes.NewReader(data)); err != nil {
		panic(fmt.Sprintf("add schema %s: %v", path, err))
	}

	schema, err := c.Compile(path)
	if err != nil {
		panic(fmt.Sprintf("compile schema %s: %v", path, err))
	}

	return schema
}

// ValidateOperation checks a sync operation before it reaches the applier:
// known op type, non-empty idempotency key, temp id on creates, a valid
// storage preference, and a payload matching the op type's schema.
func ValidateOperation(op *models.Operation) error {
	if op.IdempotencyKey == "" {
		return fmt.Errorf("idempotency_key is required")
	}

	schema, ok := opSchemas[op.OpType]
	if !ok {
		return fmt.Errorf("unknown op_type %q", op.OpType)
	}

	switch op.StoragePreference {
	case "", models.StorageLocal, models.StorageCloud:
	default:
		return fmt.Errorf("invalid storage_preference %q", op.StoragePreference)
	}

	if (op.OpType == models.OpCreateFlow || op.OpType == models.OpCreateEntry) && op.TempID == "" {
		return fmt.Errorf("temp_id is required for %s", op.OpType)
	}

	if len(op.Payload) == 0 {
		return fmt.Errorf("payload is required")
	}

	var doc any
	if err := json.Unmarshal(op.Payload, &doc); err != nil {
		return fmt.Errorf("payload is not valid JSON: %w", err)
	}

	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("invalid %s payload: %w", op.OpType, err)
	}

	return nil
}
