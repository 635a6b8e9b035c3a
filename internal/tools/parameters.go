// ABOUTME: Typed parameter model with validation, coercion, and JSON Schema emission
// ABOUTME: Supports recursive array item schemas and maps with scalar value types

package tools

import (
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ParameterType enumerates the supported parameter types.
type ParameterType string

const (
	TypeString  ParameterType = "string"
	TypeInteger ParameterType = "integer"
	TypeNumber  ParameterType = "number"
	TypeBoolean ParameterType = "boolean"
	TypeArray   ParameterType = "array"
	TypeObject  ParameterType = "object"
	TypeMap     ParameterType = "map"
)

func (t ParameterType) valid() bool {
	switch t {
	case TypeString, TypeInteger, TypeNumber, TypeBoolean, TypeArray, TypeObject, TypeMap:
		return true
	}
	return false
}

// scalar reports whether the type is usable as a map value type.
func (t ParameterType) scalar() bool {
	switch t {
	case TypeString, TypeInteger, TypeNumber, TypeBoolean:
		return true
	}
	return false
}

// ParameterConfig is the YAML authoring shape for one parameter.
// Required defaults to true when omitted.
type ParameterConfig struct {
	Name        string           `yaml:"name"`
	Type        string           `yaml:"type"`
	Description string           `yaml:"description"`
	Required    *bool            `yaml:"required"`
	Default     any              `yaml:"default"`
	Enum        []any            `yaml:"enum"`
	Minimum     *float64         `yaml:"minimum"`
	Maximum     *float64         `yaml:"maximum"`
	MinLength   *int             `yaml:"minLength"`
	MaxLength   *int             `yaml:"maxLength"`
	Pattern     string           `yaml:"pattern"`
	ValueType   string           `yaml:"valueType"`
	Items       *ParameterConfig `yaml:"items"`
}

// Parameter is an immutable, validated parameter definition. Build one from a
// ParameterConfig; all constraint knowledge (enum membership, bounds, length,
// pattern, recursive item schemas) lives here.
type Parameter struct {
	name        string
	typ         ParameterType
	description string
	required    bool
	def         any
	enum        []any
	minimum     *float64
	maximum     *float64
	minLength   *int
	maxLength   *int
	pattern     string
	re          *regexp.Regexp
	items       *Parameter
	valueType   ParameterType
}

// typeDefault returns the zero-ish default for optional parameters of the
// given type. Maps deliberately default to nil.
func typeDefault(t ParameterType) any {
	switch t {
	case TypeString:
		return ""
	case TypeInteger:
		return 0
	case TypeNumber:
		return 0.0
	case TypeBoolean:
		return false
	case TypeArray:
		return []any{}
	case TypeObject:
		return map[string]any{}
	}
	return nil
}

// buildParameter turns a config into a runtime Parameter, failing on any
// invalid field. nameFallback is used for nested item schemas without a name.
func buildParameter(cfg ParameterConfig, nameFallback string) (*Parameter, error) {
	name := cfg.Name
	if name == "" {
		name = nameFallback
	}

	typ := ParameterType(cfg.Type)
	if !typ.valid() {
		return nil, fmt.Errorf("parameter %q: unknown type %q", name, cfg.Type)
	}

	p := &Parameter{
		name:        name,
		typ:         typ,
		description: cfg.Description,
		required:    cfg.Required == nil || *cfg.Required,
		def:         cfg.Default,
		minimum:     cfg.Minimum,
		maximum:     cfg.Maximum,
		minLength:   cfg.MinLength,
		maxLength:   cfg.MaxLength,
		pattern:     cfg.Pattern,
	}

	if cfg.Pattern != "" {
		// Matches at the start of the value, like common schema validators.
		re, err := regexp.Compile(`\A(?:` + cfg.Pattern + `)`)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: invalid pattern: %w", name, err)
		}
		p.re = re
	}

	if cfg.ValueType != "" {
		vt := ParameterType(cfg.ValueType)
		if !vt.scalar() {
			return nil, fmt.Errorf("parameter %q has unsupported valueType %q", name, cfg.ValueType)
		}
		p.valueType = vt
	}

	if typ == TypeArray && cfg.Items != nil {
		itemName := cfg.Items.Name
		if itemName == "" {
			itemName = name + "_item"
		}
		items, err := buildParameter(*cfg.Items, itemName)
		if err != nil {
			return nil, err
		}
		p.items = items
	}

	// Enum members must coerce to the declared type so runtime membership
	// checks compare like with like.
	for _, e := range cfg.Enum {
		coerced, err := p.coerce(e)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: enum value %v: %w", name, e, err)
		}
		p.enum = append(p.enum, coerced)
	}

	if !p.required {
		if p.def == nil {
			p.def = typeDefault(typ)
		} else {
			def, err := p.Validate(p.def)
			if err != nil {
				return nil, fmt.Errorf("parameter %q: invalid default: %w", name, err)
			}
			p.def = def
		}
	}

	return p, nil
}

// Name returns the parameter name.
func (p *Parameter) Name() string { return p.name }

// Type returns the declared parameter type.
func (p *Parameter) Type() ParameterType { return p.typ }

// Required reports whether a value must be supplied by the caller.
func (p *Parameter) Required() bool { return p.required }

// Default returns the resolved default, which is always type-appropriate for
// optional parameters (except maps, which default to nil).
func (p *Parameter) Default() any { return p.def }

// Validate coerces value to the declared type and checks constraints.
// A nil value resolves to the default for optional parameters and is an
// error for required ones. The returned value is the coerced form.
func (p *Parameter) Validate(value any) (any, error) {
	if value == nil {
		if p.required {
			return nil, fmt.Errorf("parameter %q is required", p.name)
		}
		return p.def, nil
	}

	coerced, err := p.coerce(value)
	if err != nil {
		return nil, err
	}
	if err := p.checkConstraints(coerced); err != nil {
		return nil, err
	}
	return coerced, nil
}

func (p *Parameter) coerce(value any) (any, error) {
	switch p.typ {
	case TypeString:
		return stringify(value), nil

	case TypeInteger:
		return p.coerceInteger(value)

	case TypeNumber:
		return p.coerceNumber(value)

	case TypeBoolean:
		return p.coerceBoolean(value)

	case TypeArray:
		seq, ok := value.([]any)
		if !ok {
			return nil, fmt.Errorf("parameter %q must be an array", p.name)
		}
		if p.items == nil {
			return seq, nil
		}
		out := make([]any, len(seq))
		for i, v := range seq {
			coerced, err := p.items.Validate(v)
			if err != nil {
				return nil, err
			}
			out[i] = coerced
		}
		return out, nil

	case TypeMap:
		m, ok := value.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("parameter %q must be a map/object", p.name)
		}
		if p.valueType == "" {
			return m, nil
		}
		valueParam := &Parameter{
			name:     p.name + "_value",
			typ:      p.valueType,
			required: true,
		}
		out := make(map[string]any, len(m))
		for k, v := range m {
			coerced, err := valueParam.Validate(v)
			if err != nil {
				return nil, err
			}
			out[k] = coerced
		}
		return out, nil

	case TypeObject:
		m, ok := value.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("parameter %q must be an object", p.name)
		}
		return m, nil
	}

	return value, nil
}

func (p *Parameter) coerceInteger(value any) (any, error) {
	switch v := value.(type) {
	case bool:
		return nil, fmt.Errorf("parameter %q must be an integer, got boolean", p.name)
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case float32:
		return p.coerceInteger(float64(v))
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
			return nil, fmt.Errorf("parameter %q must be an integer, got float %v", p.name, v)
		}
		return int(v), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("parameter %q must be an integer, got %q", p.name, v)
		}
		return n, nil
	}
	return nil, fmt.Errorf("parameter %q must be an integer", p.name)
}

func (p *Parameter) coerceNumber(value any) (any, error) {
	switch v := value.(type) {
	case bool:
		return nil, fmt.Errorf("parameter %q must be a number, got boolean", p.name)
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("parameter %q must be a number, got %q", p.name, v)
		}
		return f, nil
	}
	return nil, fmt.Errorf("parameter %q must be a number", p.name)
}

func (p *Parameter) coerceBoolean(value any) (any, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		switch strings.ToLower(v) {
		case "true", "1", "yes", "on":
			return true, nil
		case "false", "0", "no", "off":
			return false, nil
		}
		return nil, fmt.Errorf("parameter %q must be a boolean, got %q", p.name, v)
	case int:
		return v != 0, nil
	case int32:
		return v != 0, nil
	case int64:
		return v != 0, nil
	case float32:
		return v != 0, nil
	case float64:
		return v != 0, nil
	}
	return nil, fmt.Errorf("parameter %q must be a boolean", p.name)
}

func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		if v {
			return "true"
		}
		return "false"
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	}
	return fmt.Sprintf("%v", value)
}

// checkConstraints runs after coercion: enum membership first, then numeric
// bounds, then string length/pattern, then array length. First failure wins.
func (p *Parameter) checkConstraints(value any) error {
	if p.enum != nil && !enumContains(p.enum, value) {
		return fmt.Errorf("parameter %q must be one of %v, got %v", p.name, p.enum, value)
	}

	if p.typ == TypeInteger || p.typ == TypeNumber {
		f := asFloat(value)
		if p.minimum != nil && f < *p.minimum {
			return fmt.Errorf("parameter %q must be >= %v, got %v", p.name, *p.minimum, value)
		}
		if p.maximum != nil && f > *p.maximum {
			return fmt.Errorf("parameter %q must be <= %v, got %v", p.name, *p.maximum, value)
		}
	}

	if p.typ == TypeString {
		s := value.(string)
		n := utf8.RuneCountInString(s)
		if p.minLength != nil && n < *p.minLength {
			return fmt.Errorf("parameter %q must be at least %d characters", p.name, *p.minLength)
		}
		if p.maxLength != nil && n > *p.maxLength {
			return fmt.Errorf("parameter %q must be at most %d characters", p.name, *p.maxLength)
		}
		if p.re != nil && !p.re.MatchString(s) {
			return fmt.Errorf("parameter %q does not match pattern %s", p.name, p.pattern)
		}
	}

	if p.typ == TypeArray {
		n := len(value.([]any))
		if p.minLength != nil && n < *p.minLength {
			return fmt.Errorf("parameter %q must have at least %d items", p.name, *p.minLength)
		}
		if p.maxLength != nil && n > *p.maxLength {
			return fmt.Errorf("parameter %q must have at most %d items", p.name, *p.maxLength)
		}
	}

	return nil
}

// Enum members for array and map parameters coerce to slices and maps, so
// membership needs structural comparison rather than ==.
func enumContains(enum []any, value any) bool {
	for _, e := range enum {
		if reflect.DeepEqual(e, value) {
			return true
		}
	}
	return false
}

func asFloat(value any) float64 {
	switch v := value.(type) {
	case int:
		return float64(v)
	case float64:
		return v
	}
	return 0
}

// Schema emits the JSON Schema fragment for this parameter. Maps render as
// objects with additionalProperties; arrays carry their item schema.
func (p *Parameter) Schema() map[string]any {
	jsonType := string(p.typ)
	if p.typ == TypeMap {
		jsonType = "object"
	}

	schema := map[string]any{
		"type":        jsonType,
		"description": p.description,
	}

	if p.enum != nil {
		schema["enum"] = p.enum
	}
	if p.minimum != nil {
		schema["minimum"] = *p.minimum
	}
	if p.maximum != nil {
		schema["maximum"] = *p.maximum
	}
	if p.minLength != nil {
		switch p.typ {
		case TypeString:
			schema["minLength"] = *p.minLength
		case TypeArray:
			schema["minItems"] = *p.minLength
		}
	}
	if p.maxLength != nil {
		switch p.typ {
		case TypeString:
			schema["maxLength"] = *p.maxLength
		case TypeArray:
			schema["maxItems"] = *p.maxLength
		}
	}
	if p.pattern != "" {
		schema["pattern"] = p.pattern
	}

	if p.typ == TypeArray && p.items != nil {
		schema["items"] = p.items.Schema()
	}

	if p.typ == TypeMap {
		if p.valueType == "" {
			schema["additionalProperties"] = true
		} else {
			schema["additionalProperties"] = map[string]any{"type": string(p.valueType)}
		}
	}

	return schema
}

// ParameterSet is an ordered collection of parameters with unique names.
type ParameterSet struct {
	list   []*Parameter
	byName map[string]*Parameter
}

// NewParameterSet builds a set from configs, preserving declaration order.
func NewParameterSet(configs []ParameterConfig) (*ParameterSet, error) {
	params := make([]*Parameter, 0, len(configs))
	for _, cfg := range configs {
		p, err := buildParameter(cfg, "")
		if err != nil {
			return nil, err
		}
		params = append(params, p)
	}
	return newParameterSet(params)
}

func newParameterSet(params []*Parameter) (*ParameterSet, error) {
	byName := make(map[string]*Parameter, len(params))
	for _, p := range params {
		if _, exists := byName[p.name]; exists {
			return nil, fmt.Errorf("duplicate parameter name %q", p.name)
		}
		byName[p.name] = p
	}
	return &ParameterSet{list: params, byName: byName}, nil
}

// Parameters returns the members in declaration order.
func (s *ParameterSet) Parameters() []*Parameter { return s.list }

// ValidateValues checks a flat argument map against the set in one pass.
// Unknown keys are an error, missing required keys are an error, and missing
// optional keys are filled with their defaults.
func (s *ParameterSet) ValidateValues(values map[string]any) (map[string]any, error) {
	validated := make(map[string]any, len(s.list))

	for name, value := range values {
		p, ok := s.byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown parameter: %s", name)
		}
		coerced, err := p.Validate(value)
		if err != nil {
			return nil, err
		}
		validated[name] = coerced
	}

	for _, p := range s.list {
		if _, ok := validated[p.name]; ok {
			continue
		}
		if p.required {
			return nil, fmt.Errorf("required parameter %q not provided", p.name)
		}
		validated[p.name] = p.def
	}

	return validated, nil
}

// Schema emits the JSON Schema object advertised in tool manifests.
func (s *ParameterSet) Schema() map[string]any {
	properties := make(map[string]any, len(s.list))
	required := []string{}

	for _, p := range s.list {
		properties[p.name] = p.Schema()
		if p.required {
			required = append(required, p.name)
		}
	}

	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

// Manifests returns a compact per-parameter description for client SDKs.
func (s *ParameterSet) Manifests() []map[string]any {
	manifests := make([]map[string]any, 0, len(s.list))
	for _, p := range s.list {
		m := map[string]any{
			"name":        p.name,
			"type":        string(p.typ),
			"description": p.description,
			"required":    p.required,
		}
		if p.def != nil {
			m["default"] = p.def
		}
		if p.enum != nil {
			m["enum"] = p.enum
		}
		manifests = append(manifests, m)
	}
	return manifests
}
