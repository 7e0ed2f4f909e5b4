package visual

import (
	"fmt"
	"reflect"

	"github.com/go-viper/mapstructure/v2"
)

// Decode dispatches a raw document to the schema variant selected by its
// `type` discriminator, decodes it strictly (unknown fields are rejected),
// and validates field constraints.
func Decode(doc map[string]any) (Config, error) {
	rawType, ok := doc["type"]
	if !ok {
		return nil, &ValidationError{Field: "type", Reason: "missing discriminator"}
	}
	kind, ok := rawType.(string)
	if !ok {
		return nil, &ValidationError{Field: "type", Reason: fmt.Sprintf("discriminator must be a string, got %T", rawType)}
	}

	switch kind {
	case KindMatrix:
		matrix := &Matrix{AutoHeight: true}
		if err := decodeInto(kind, doc, matrix); err != nil {
			return nil, err
		}
		matrix.normalize()
		if err := matrix.validate(); err != nil {
			return nil, err
		}
		return matrix, nil
	case KindFrame:
		frame := &Frame{AutoHeight: true}
		if err := decodeInto(kind, doc, frame); err != nil {
			return nil, err
		}
		frame.normalize()
		if err := frame.validate(); err != nil {
			return nil, err
		}
		return frame, nil
	default:
		return nil, &ValidationError{Kind: kind, Field: "type", Reason: fmt.Sprintf("unknown visual type %q", kind)}
	}
}

func decodeInto(kind string, doc map[string]any, target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      target,
		ErrorUnused: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			rowTemplateShorthandHook,
			childRefHook,
		),
	})
	if err != nil {
		return fmt.Errorf("building decoder: %w", err)
	}
	if err := decoder.Decode(doc); err != nil {
		return &ValidationError{Kind: kind, Reason: err.Error()}
	}
	return nil
}

// rowTemplateShorthandHook accepts the scalar form of a row declaration:
// `- "{{ dim.City }}"` becomes `{template: "{{ dim.City }}"}`.
func rowTemplateShorthandHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(RowTemplate{}) || from.Kind() != reflect.String {
		return data, nil
	}
	return map[string]any{"template": data}, nil
}

// childRefHook builds a ChildRef from its raw mapping: `ref` and
// `parameters` are extracted, every remaining key becomes an override.
func childRefHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(ChildRef{}) {
		return data, nil
	}
	raw, ok := data.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("frame child must be a mapping, got %T", data)
	}

	child := ChildRef{Parameters: map[string]string{}, Overrides: map[string]any{}}
	for key, value := range raw {
		switch key {
		case "ref":
			ref, ok := value.(string)
			if !ok {
				return nil, fmt.Errorf("frame child ref must be a string, got %T", value)
			}
			child.Ref = ref
		case "parameters":
			params, ok := value.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("frame child parameters must be a mapping, got %T", value)
			}
			for name, item := range params {
				child.Parameters[name] = fmt.Sprint(item)
			}
		default:
			child.Overrides[key] = value
		}
	}
	return child, nil
}
