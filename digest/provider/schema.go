package provider

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/invopop/jsonschema"
)

// GenerateSchema reflects T into the strict subset both providers accept. Objects are closed and
// require every property they declare. Reflection failures are programming errors and panic.
func GenerateSchema[T any]() map[string]interface{} {
	r := jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	var zero T
	m, err := toMap(r.Reflect(zero))
	if err != nil {
		panic(fmt.Sprintf("provider: reflect schema for %T: %v", zero, err))
	}
	closeObjects(m)
	delete(m, "$schema")
	delete(m, "$id")
	return m
}

// toMap round-trips a reflected schema through JSON so request bodies can embed it as plain data.
func toMap(s *jsonschema.Schema) (map[string]interface{}, error) {
	raw, err := s.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

const (
	propertiesKey           = "properties"
	additionalPropertiesKey = "additionalProperties"
	requiredKey             = "required"
)

// closeObjects walks node and every nested schema beneath it. Each object gets
// additionalProperties=false and a sorted required list naming all of its properties.
func closeObjects(node map[string]interface{}) {
	if node["type"] == "object" {
		node[additionalPropertiesKey] = false
		if props := Properties(node); len(props) > 0 {
			names := make([]string, 0, len(props))
			for name := range props {
				names = append(names, name)
			}
			sort.Strings(names)
			node[requiredKey] = names
		}
	}
	for _, child := range childSchemas(node) {
		closeObjects(child)
	}
}

// childSchemas lists the sub-schemas of node that can themselves describe objects.
func childSchemas(node map[string]interface{}) []map[string]interface{} {
	var out []map[string]interface{}
	for _, prop := range Properties(node) {
		if m, ok := prop.(map[string]interface{}); ok {
			out = append(out, m)
		}
	}
	for _, key := range []string{"items", additionalPropertiesKey} {
		if m, ok := node[key].(map[string]interface{}); ok {
			out = append(out, m)
		}
	}
	return out
}

// RequiredFields returns the top-level required property names of a schema produced by GenerateSchema.
func RequiredFields(schema map[string]interface{}) []string {
	switch v := schema[requiredKey].(type) {
	case []string:
		return append([]string(nil), v...)
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, s := range v {
			if str, ok := s.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}

// Properties returns the top-level properties map of a schema.
func Properties(schema map[string]interface{}) map[string]interface{} {
	props, _ := schema[propertiesKey].(map[string]interface{})
	return props
}
