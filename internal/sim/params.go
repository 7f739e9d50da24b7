package sim

import "fmt"

// Params is an untyped parameter bag, as decoded from JSON/YAML requests or
// produced by batch sweep expansion. Numeric values may arrive as int,
// int64 or float64 depending on the decoder.
type Params map[string]any

func (p Params) Clone() Params {
	if p == nil {
		return nil
	}
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Int reads an integral parameter. Float values with a fractional part are
// rejected rather than truncated.
func (p Params) Int(key string) (int, bool, error) {
	raw, ok := p[key]
	if !ok {
		return 0, false, nil
	}
	switch v := raw.(type) {
	case int:
		return v, true, nil
	case int64:
		return int(v), true, nil
	case float64:
		if v != float64(int(v)) {
			return 0, false, fmt.Errorf("parameter %s: %v is not an integer", key, v)
		}
		return int(v), true, nil
	default:
		return 0, false, fmt.Errorf("parameter %s: unsupported type %T", key, raw)
	}
}

func (p Params) Float64(key string) (float64, bool, error) {
	raw, ok := p[key]
	if !ok {
		return 0, false, nil
	}
	switch v := raw.(type) {
	case float64:
		return v, true, nil
	case int:
		return float64(v), true, nil
	case int64:
		return float64(v), true, nil
	default:
		return 0, false, fmt.Errorf("parameter %s: unsupported type %T", key, raw)
	}
}

func (p Params) Bool(key string) (bool, bool, error) {
	raw, ok := p[key]
	if !ok {
		return false, false, nil
	}
	v, isBool := raw.(bool)
	if !isBool {
		return false, false, fmt.Errorf("parameter %s: unsupported type %T", key, raw)
	}
	return v, true, nil
}

func (p Params) String(key string) (string, bool, error) {
	raw, ok := p[key]
	if !ok {
		return "", false, nil
	}
	v, isString := raw.(string)
	if !isString {
		return "", false, fmt.Errorf("parameter %s: unsupported type %T", key, raw)
	}
	return v, true, nil
}
