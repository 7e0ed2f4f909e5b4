// Package merge implements the deep-merge semantics used when resolving
// visual configuration documents. The merge is a pure function over trees of
// maps, sequences, and scalars: maps merge key by key with the right-hand
// side winning at leaves, while sequences and scalars are replaced wholesale.
package merge

// Maps merges overlay onto base and returns a new map. Neither input is
// mutated. Nested maps are merged recursively; every other value kind
// (sequences included) is replaced by the overlay's value.
func Maps(base, overlay map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(overlay))
	for key, value := range base {
		out[key] = cloneValue(value)
	}
	for key, value := range overlay {
		existing, ok := out[key]
		if !ok {
			out[key] = cloneValue(value)
			continue
		}
		baseMap, baseOK := asMap(existing)
		overlayMap, overlayOK := asMap(value)
		if baseOK && overlayOK {
			out[key] = Maps(baseMap, overlayMap)
			continue
		}
		out[key] = cloneValue(value)
	}
	return out
}

// Chain merges an ordered sequence of documents, later entries winning.
// An empty chain yields an empty map.
func Chain(documents ...map[string]any) map[string]any {
	out := map[string]any{}
	for _, doc := range documents {
		out = Maps(out, doc)
	}
	return out
}

// asMap normalizes the map shapes produced by yaml.v3 decoding.
func asMap(value any) (map[string]any, bool) {
	switch typed := value.(type) {
	case map[string]any:
		return typed, true
	case map[any]any:
		converted := make(map[string]any, len(typed))
		for key, item := range typed {
			name, ok := key.(string)
			if !ok {
				return nil, false
			}
			converted[name] = item
		}
		return converted, true
	default:
		return nil, false
	}
}

func cloneValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return Maps(nil, typed)
	case map[any]any:
		converted, ok := asMap(typed)
		if !ok {
			return typed
		}
		return Maps(nil, converted)
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return typed
	}
}
