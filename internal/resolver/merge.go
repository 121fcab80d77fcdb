package resolver

// DeepMerge returns base with override applied on top.
//
// Keys whose values are objects on both sides merge recursively. Any other
// override value, arrays included, replaces the base value. Neither input
// is modified and the result shares no maps or slices with them.
func DeepMerge(base, override map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		out[k] = cloneValue(v)
	}
	for k, v := range override {
		baseObj, baseIsObj := out[k].(map[string]any)
		overObj, overIsObj := v.(map[string]any)
		if baseIsObj && overIsObj {
			out[k] = DeepMerge(baseObj, overObj)
			continue
		}
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, inner := range t {
			m[k] = cloneValue(inner)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, inner := range t {
			s[i] = cloneValue(inner)
		}
		return s
	default:
		return v
	}
}
