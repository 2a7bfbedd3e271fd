package registry

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// InputSignature returns the JSON schema describing the value's shape. It
// is stored with each model version so consumers can check what the
// strategy expects without instantiating it.
func InputSignature(value any) (string, error) {
	r := new(jsonschema.Reflector)
	r.DoNotReference = true
	schema := r.Reflect(value)

	schemaBytes, err := json.Marshal(schema)
	if err != nil {
		return "", err
	}

	return string(schemaBytes), nil
}
