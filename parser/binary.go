package parser

// placeholderKey marks a spot in the data tree where a binary attachment was
// extracted during encoding. The companion "num" field indexes into the
// attachment frames that follow the text frame.
const placeholderKey = "_placeholder"

// HasBinary reports whether v contains a []byte anywhere in its tree.
func HasBinary(v interface{}) bool {
	switch t := v.(type) {
	case []byte:
		return true
	case []interface{}:
		for _, e := range t {
			if HasBinary(e) {
				return true
			}
		}
	case map[string]interface{}:
		for _, e := range t {
			if HasBinary(e) {
				return true
			}
		}
	}
	return false
}

// deconstruct replaces every []byte in v with a placeholder object and
// appends the extracted buffer to buffers. Returns the rewritten value.
func deconstruct(v interface{}, buffers *[][]byte) interface{} {
	switch t := v.(type) {
	case []byte:
		num := len(*buffers)
		*buffers = append(*buffers, t)
		return map[string]interface{}{placeholderKey: true, "num": num}
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = deconstruct(e, buffers)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, e := range t {
			out[k] = deconstruct(e, buffers)
		}
		return out
	default:
		return v
	}
}

// reconstruct resolves placeholder objects in v back to the buffers captured
// during decoding.
func reconstruct(v interface{}, buffers [][]byte) interface{} {
	switch t := v.(type) {
	case []interface{}:
		for i, e := range t {
			t[i] = reconstruct(e, buffers)
		}
		return t
	case map[string]interface{}:
		if ph, ok := t[placeholderKey].(bool); ok && ph {
			if num, ok := asInt(t["num"]); ok && num >= 0 && num < len(buffers) {
				return buffers[num]
			}
			return nil
		}
		for k, e := range t {
			t[k] = reconstruct(e, buffers)
		}
		return t
	default:
		return v
	}
}

// asInt widens the numeric types jsoniter may produce for the "num" field.
func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	}
	return 0, false
}
