package schema

import (
	_ "embed"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed checkpoint.schema.json
var checkpointSchema []byte

// Validate checks doc against the JSON schema file at schemaPath.
func Validate(schemaPath string, doc any) ([]string, error) {
	return validate(gojsonschema.NewReferenceLoader("file://"+schemaPath), gojsonschema.NewGoLoader(doc), schemaPath)
}

// ValidateCheckpoint checks raw checkpoint JSON against the embedded deck
// schema: a non-empty array of slide-shaped objects.
func ValidateCheckpoint(raw []byte) ([]string, error) {
	return validate(gojsonschema.NewBytesLoader(checkpointSchema), gojsonschema.NewBytesLoader(raw), "checkpoint schema")
}

func validate(schemaLoader, docLoader gojsonschema.JSONLoader, name string) ([]string, error) {
	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return nil, fmt.Errorf("validate %s: %w", name, err)
	}
	if result.Valid() {
		return nil, nil
	}

	errs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		errs = append(errs, e.String())
	}
	return errs, nil
}
