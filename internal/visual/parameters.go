package visual

import (
	"github.com/praeparo-labs/praeparo/internal/templating"
)

// templateCapable lists, per discriminator, the raw-document fields that
// accept `${param}` substitution. Substitution is a capability of the field,
// not the document: structured fields are never substituted, so a parameter
// value can never change the document's shape or its schema variant.
var templateCapable = map[string][]string{
	"matrix": {
		"title",
		"description",
		"rows.*",
		"rows.*.template",
		"rows.*.label",
		"values.*.label",
		"filters.*.expression",
		"filters.*.include.*",
		"define.*.expression",
	},
	"frame": {
		"title",
		"description",
	},
}

// SubstituteParameters renders params into the template-capable string
// fields of doc, returning a new document and the names of parameters that
// were referenced but not supplied. Non-capable fields are left untouched.
func SubstituteParameters(doc map[string]any, params map[string]string) (map[string]any, []string) {
	kind, _ := doc["type"].(string)
	paths := templateCapable[kind]
	if len(paths) == 0 {
		return doc, nil
	}

	var missing []string
	out := substituteNode(doc, "", paths, params, &missing)
	result, _ := out.(map[string]any)
	return result, missing
}

func substituteNode(node any, path string, paths []string, params map[string]string, missing *[]string) any {
	switch typed := node.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, value := range typed {
			out[key] = substituteNode(value, childPath(path, key), paths, params, missing)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, value := range typed {
			out[i] = substituteNode(value, childPath(path, "*"), paths, params, missing)
		}
		return out
	case string:
		if !pathCapable(path, paths) || !templating.HasParams(typed) {
			return typed
		}
		rendered, absent := templating.SubstituteParams(typed, params)
		*missing = append(*missing, absent...)
		return rendered
	default:
		return typed
	}
}

func childPath(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}

func pathCapable(path string, paths []string) bool {
	for _, candidate := range paths {
		if candidate == path {
			return true
		}
	}
	return false
}
