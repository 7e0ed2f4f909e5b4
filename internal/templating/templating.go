// Package templating handles the two flat substitution syntaxes used by
// visual configurations: `{{ table.column }}` field references inside row
// templates, and `${name}` parameter placeholders inside template-capable
// string fields. Neither syntax supports expressions.
package templating

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	fieldPattern = regexp.MustCompile(`\{\{\s*([^}]+?)\s*\}\}`)
	paramPattern = regexp.MustCompile(`\$\{([A-Za-z0-9_.-]+)\}`)
)

// FieldReference is a data field referenced within a row template.
type FieldReference struct {
	Expression string
	Table      string
	Column     string
}

// DaxReference returns the DAX column reference for the field.
func (f FieldReference) DaxReference() string {
	if f.Table != "" {
		return fmt.Sprintf("%s[%s]", f.Table, f.Column)
	}
	return fmt.Sprintf("[%s]", f.Column)
}

// Placeholder returns the canonical placeholder key used in result rows.
func (f FieldReference) Placeholder() string {
	if f.Table != "" {
		return f.Table + "." + f.Column
	}
	return f.Column
}

func parseField(expression string) (FieldReference, error) {
	// Strip a trailing filter clause, e.g. "fact.metric | default(0)".
	base := strings.TrimSpace(strings.SplitN(expression, "|", 2)[0])
	if base == "" {
		return FieldReference{}, fmt.Errorf("empty field placeholder")
	}

	table, column := "", base
	if idx := strings.Index(base, "."); idx >= 0 {
		table = strings.TrimSpace(base[:idx])
		column = strings.TrimSpace(base[idx+1:])
	}
	if column == "" {
		return FieldReference{}, fmt.Errorf("invalid field expression %q", expression)
	}
	return FieldReference{Expression: base, Table: table, Column: column}, nil
}

// FieldReferences extracts the field references appearing in template.
func FieldReferences(template string) ([]FieldReference, error) {
	var refs []FieldReference
	for _, match := range fieldPattern.FindAllStringSubmatch(template, -1) {
		ref, err := parseField(match[1])
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// UniqueFieldReferences extracts the unique field references across templates,
// preserving first-appearance order.
func UniqueFieldReferences(templates []string) ([]FieldReference, error) {
	seen := map[string]struct{}{}
	var ordered []FieldReference
	for _, template := range templates {
		refs, err := FieldReferences(template)
		if err != nil {
			return nil, err
		}
		for _, ref := range refs {
			if _, ok := seen[ref.Expression]; ok {
				continue
			}
			seen[ref.Expression] = struct{}{}
			ordered = append(ordered, ref)
		}
	}
	return ordered, nil
}

// RenderFields substitutes field placeholders in template with the matching
// values from record, keyed by canonical placeholder. Missing fields render
// as an empty string.
func RenderFields(template string, record map[string]any) string {
	return fieldPattern.ReplaceAllStringFunc(template, func(match string) string {
		sub := fieldPattern.FindStringSubmatch(match)
		ref, err := parseField(sub[1])
		if err != nil {
			return match
		}
		value, ok := record[ref.Placeholder()]
		if !ok || value == nil {
			return ""
		}
		return fmt.Sprint(value)
	})
}

// Label derives a column header from a row template: a template that is a
// bare field reference is labelled by its column name, anything else keeps
// its literal text with placeholders stripped to column names.
func Label(template string) string {
	trimmed := strings.TrimSpace(template)
	if loc := fieldPattern.FindStringIndex(trimmed); loc != nil && loc[0] == 0 && loc[1] == len(trimmed) {
		refs, err := FieldReferences(trimmed)
		if err == nil && len(refs) == 1 {
			return refs[0].Column
		}
	}
	return fieldPattern.ReplaceAllStringFunc(trimmed, func(match string) string {
		sub := fieldPattern.FindStringSubmatch(match)
		ref, err := parseField(sub[1])
		if err != nil {
			return match
		}
		return ref.Column
	})
}

// SubstituteParams replaces `${name}` placeholders in value with entries from
// params. Unknown names are reported so the resolver can fail before
// validation. Substitution is purely textual: a parameter value is inserted
// as-is into the surrounding string.
func SubstituteParams(value string, params map[string]string) (string, []string) {
	var missing []string
	out := paramPattern.ReplaceAllStringFunc(value, func(match string) string {
		name := paramPattern.FindStringSubmatch(match)[1]
		replacement, ok := params[name]
		if !ok {
			missing = append(missing, name)
			return match
		}
		return replacement
	})
	return out, missing
}

// HasParams reports whether value contains at least one parameter placeholder.
func HasParams(value string) bool {
	return paramPattern.MatchString(value)
}
