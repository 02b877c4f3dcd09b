package evaluator

import (
	"encoding/json"
	"math"
)

// ValueToJSON marshals a Value to JSON bytes. Integral numbers are written
// without a decimal point; functions are written as their display form.
func ValueToJSON(v Value) ([]byte, error) {
	return json.Marshal(valueToRaw(v))
}

func valueToRaw(v Value) any {
	switch val := v.(type) {
	case nil:
		return nil

	case Boolean:
		return val.Value

	case Number:
		if math.IsNaN(val.Value) || math.IsInf(val.Value, 0) {
			// JSON has no encoding for these.
			return val.String()
		}
		if val.Value == math.Trunc(val.Value) && math.Abs(val.Value) < 1<<53 {
			return int64(val.Value)
		}
		return val.Value

	case String:
		return val.Value

	case Array:
		items := make([]any, len(val.Items))
		for i, item := range val.Items {
			items[i] = valueToRaw(item)
		}
		return items

	case Function:
		return val.String()
	}

	return nil
}

// ValueToJSONString is a convenience that returns a string.
func ValueToJSONString(v Value) string {
	b, err := ValueToJSON(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

// FrameToJSON marshals a frame's bindings as a JSON object with sorted keys.
func FrameToJSON(f Frame) ([]byte, error) {
	raw := make(map[string]any, len(f))
	for name, v := range f {
		raw[name] = valueToRaw(v)
	}
	return json.Marshal(raw)
}
