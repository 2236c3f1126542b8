package validate

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// ErrInvalid marks every parameter validation failure. Callers classify with
// errors.Is.
var ErrInvalid = errors.New("parameter validation failed")

// maxInputBytes caps the serialized size of an incoming parameter map,
// checked before any per-field rule.
const maxInputBytes = 1 << 20

// SanitizeInput validates params against schema and returns the sanitized
// map: defaults filled in, values coerced to their declared types. The first
// violation aborts validation; there is no partial result.
func SanitizeInput(params map[string]any, schema Schema) (map[string]any, error) {
	if params == nil {
		params = map[string]any{}
	}

	if err := checkInputSize(params); err != nil {
		return nil, err
	}

	out := make(map[string]any, len(params))

	// Declared parameters first, in name order so the first violation is
	// deterministic.
	names := make([]string, 0, len(schema.Parameters))
	for name := range schema.Parameters {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		rule := schema.Parameters[name]
		raw, present := params[name]

		if !present {
			if rule.Default != nil {
				out[name] = rule.Default
				continue
			}
			if rule.Required {
				return nil, fmt.Errorf("%w: missing required parameter %q", ErrInvalid, name)
			}
			continue
		}

		value, err := sanitizeValue(name, raw, rule)
		if err != nil {
			return nil, err
		}
		out[name] = value
	}

	// Unrecognized top-level keys.
	var unexpected []string
	for name, raw := range params {
		if _, declared := schema.Parameters[name]; declared {
			continue
		}
		if schema.allowAdditional() {
			out[name] = raw
			continue
		}
		unexpected = append(unexpected, name)
	}
	if len(unexpected) > 0 {
		sort.Strings(unexpected)
		return nil, fmt.Errorf("%w: unexpected parameters: %s", ErrInvalid, strings.Join(unexpected, ", "))
	}

	return out, nil
}

func checkInputSize(params map[string]any) error {
	data, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("%w: parameters are not serializable: %v", ErrInvalid, err)
	}
	if len(data) > maxInputBytes {
		return fmt.Errorf("%w: parameters exceed %d byte limit (%d bytes)", ErrInvalid, maxInputBytes, len(data))
	}
	return nil
}

// sanitizeValue coerces raw to the rule's declared type, then applies the
// length, range, pattern and enum checks in that order.
func sanitizeValue(name string, raw any, rule Rule) (any, error) {
	value, err := coerce(name, raw, rule.Type)
	if err != nil {
		return nil, err
	}

	if err := checkLength(name, value, rule); err != nil {
		return nil, err
	}
	if err := checkRange(name, value, rule); err != nil {
		return nil, err
	}
	if err := checkPattern(name, value, rule); err != nil {
		return nil, err
	}
	if err := checkEnum(name, value, rule); err != nil {
		return nil, err
	}

	switch rule.Type {
	case TypeArray:
		return sanitizeArray(name, value.([]any), rule)
	case TypeObject:
		return sanitizeObject(name, value.(map[string]any), rule)
	}
	return value, nil
}

func sanitizeArray(name string, items []any, rule Rule) ([]any, error) {
	if rule.Items == nil {
		return items, nil
	}
	out := make([]any, len(items))
	for i, item := range items {
		v, err := sanitizeValue(fmt.Sprintf("%s[%d]", name, i), item, *rule.Items)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func sanitizeObject(name string, obj map[string]any, rule Rule) (map[string]any, error) {
	if rule.Properties == nil {
		return obj, nil
	}

	out := make(map[string]any, len(obj))

	keys := make([]string, 0, len(rule.Properties))
	for k := range rule.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		propRule := rule.Properties[key]
		raw, present := obj[key]
		qualified := name + "." + key

		if !present {
			if propRule.Default != nil {
				out[key] = propRule.Default
				continue
			}
			if propRule.Required {
				return nil, fmt.Errorf("%w: missing required parameter %q", ErrInvalid, qualified)
			}
			continue
		}

		v, err := sanitizeValue(qualified, raw, propRule)
		if err != nil {
			return nil, err
		}
		out[key] = v
	}

	var unexpected []string
	for key, raw := range obj {
		if _, declared := rule.Properties[key]; declared {
			continue
		}
		if rule.allowAdditionalProperties() {
			out[key] = raw
			continue
		}
		unexpected = append(unexpected, name+"."+key)
	}
	if len(unexpected) > 0 {
		sort.Strings(unexpected)
		return nil, fmt.Errorf("%w: unexpected parameters: %s", ErrInvalid, strings.Join(unexpected, ", "))
	}

	return out, nil
}

// coerce converts raw to the declared type. Already-correctly-typed values
// pass through unchanged, so coercion is idempotent. An empty declared type
// accepts anything.
func coerce(name string, raw any, declared string) (any, error) {
	switch declared {
	case "":
		return raw, nil

	case TypeString:
		switch v := raw.(type) {
		case string:
			return v, nil
		case float64, int, int64, bool:
			return fmt.Sprint(v), nil
		}

	case TypeInteger:
		switch v := raw.(type) {
		case int64:
			return v, nil
		case int:
			return int64(v), nil
		case float64:
			if v == math.Trunc(v) {
				return int64(v), nil
			}
		case json.Number:
			if n, err := v.Int64(); err == nil {
				return n, nil
			}
		case string:
			if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
				return n, nil
			}
		}

	case TypeFloat:
		switch v := raw.(type) {
		case float64:
			return v, nil
		case int:
			return float64(v), nil
		case int64:
			return float64(v), nil
		case json.Number:
			if f, err := v.Float64(); err == nil {
				return f, nil
			}
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return f, nil
			}
		}

	case TypeBoolean:
		switch v := raw.(type) {
		case bool:
			return v, nil
		case string:
			switch strings.ToLower(strings.TrimSpace(v)) {
			case "true", "1", "yes":
				return true, nil
			case "false", "0", "no":
				return false, nil
			}
		}

	case TypeArray:
		if v, ok := raw.([]any); ok {
			return v, nil
		}

	case TypeObject:
		if v, ok := raw.(map[string]any); ok {
			return v, nil
		}

	default:
		return nil, fmt.Errorf("%w: parameter %q declares unknown type %q", ErrInvalid, name, declared)
	}

	return nil, fmt.Errorf("%w: parameter %q must be of type %s, got %T", ErrInvalid, name, declared, raw)
}

func checkLength(name string, value any, rule Rule) error {
	if rule.MinLength == nil && rule.MaxLength == nil {
		return nil
	}

	var length int
	switch v := value.(type) {
	case string:
		length = len(v)
	case []any:
		length = len(v)
	case map[string]any:
		length = len(v)
	default:
		return nil
	}

	if rule.MinLength != nil && length < *rule.MinLength {
		return fmt.Errorf("%w: parameter %q length %d is below minimum %d", ErrInvalid, name, length, *rule.MinLength)
	}
	if rule.MaxLength != nil && length > *rule.MaxLength {
		return fmt.Errorf("%w: parameter %q length %d exceeds maximum %d", ErrInvalid, name, length, *rule.MaxLength)
	}
	return nil
}

func checkRange(name string, value any, rule Rule) error {
	if rule.Min == nil && rule.Max == nil {
		return nil
	}

	var n float64
	switch v := value.(type) {
	case int64:
		n = float64(v)
	case float64:
		n = v
	default:
		return nil
	}

	if rule.Min != nil && n < *rule.Min {
		return fmt.Errorf("%w: parameter %q value %v is below minimum %v", ErrInvalid, name, value, *rule.Min)
	}
	if rule.Max != nil && n > *rule.Max {
		return fmt.Errorf("%w: parameter %q value %v exceeds maximum %v", ErrInvalid, name, value, *rule.Max)
	}
	return nil
}

func checkPattern(name string, value any, rule Rule) error {
	if rule.Pattern == "" {
		return nil
	}
	s, ok := value.(string)
	if !ok {
		return nil
	}
	re, err := regexp.Compile(rule.Pattern)
	if err != nil {
		return fmt.Errorf("%w: parameter %q has invalid pattern %q: %v", ErrInvalid, name, rule.Pattern, err)
	}
	if !re.MatchString(s) {
		return fmt.Errorf("%w: parameter %q does not match pattern %q", ErrInvalid, name, rule.Pattern)
	}
	return nil
}

func checkEnum(name string, value any, rule Rule) error {
	if len(rule.Enum) == 0 {
		return nil
	}
	for _, allowed := range rule.Enum {
		if enumEqual(value, allowed) {
			return nil
		}
	}
	return fmt.Errorf("%w: parameter %q value %v is not one of the allowed values", ErrInvalid, name, value)
}

// enumEqual compares across the numeric representations coercion can
// produce (int64 vs float64 vs untyped YAML ints).
func enumEqual(a, b any) bool {
	if a == b {
		return true
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	return aok && bok && af == bf
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
