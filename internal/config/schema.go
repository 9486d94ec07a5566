// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dayplan Contributors

package config

import (
	"bytes"
	"encoding/json"
	"sync"

	"github.com/invopop/jsonschema"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"

	"github.com/dayplan/dayplan/pkg/errutil"
)

// SchemaID is the $id of the configuration schema.
const SchemaID = "https://dayplan.dev/schemas/config.schema.json"

var compiled = sync.OnceValues(compileSchema)

// GenerateSchema returns the JSON Schema of the configuration file.
func GenerateSchema() ([]byte, error) {
	r := jsonschema.Reflector{
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	schema := r.Reflect(&Config{})
	schema.ID = jsonschema.ID(SchemaID)
	schema.Title = "dayplan configuration"
	schema.Description = "Schema for dayplan YAML configuration files"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, oops.Code("CONFIG_SCHEMA_FAILED").Wrap(err)
	}
	return data, nil
}

// ValidateYAML checks a configuration document against the schema. Unknown
// keys are rejected.
func ValidateYAML(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return oops.Code("CONFIG_PARSE_FAILED").Wrapf(errutil.ErrValidation, "invalid YAML: %v", err)
	}
	if doc == nil {
		return nil
	}

	// Round-trip through JSON so numbers and maps take the shapes the
	// validator expects.
	raw, err := json.Marshal(doc)
	if err != nil {
		return oops.Code("CONFIG_PARSE_FAILED").Wrapf(errutil.ErrValidation, "config is not JSON-compatible: %v", err)
	}
	inst, err := jschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return oops.Code("CONFIG_PARSE_FAILED").Wrap(err)
	}

	sch, err := compiled()
	if err != nil {
		return err
	}
	if err := sch.Validate(inst); err != nil {
		return oops.Code("CONFIG_SCHEMA_VIOLATION").Wrapf(errutil.ErrValidation, "%v", err)
	}
	return nil
}

func compileSchema() (*jschema.Schema, error) {
	data, err := GenerateSchema()
	if err != nil {
		return nil, err
	}
	doc, err := jschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, oops.Code("CONFIG_SCHEMA_FAILED").Wrap(err)
	}
	c := jschema.NewCompiler()
	if err := c.AddResource("config.schema.json", doc); err != nil {
		return nil, oops.Code("CONFIG_SCHEMA_FAILED").Wrap(err)
	}
	sch, err := c.Compile("config.schema.json")
	if err != nil {
		return nil, oops.Code("CONFIG_SCHEMA_FAILED").Wrap(err)
	}
	return sch, nil
}
