package audit

import (
	"encoding/json"
	"reflect"
)

// Diff returns the fields whose values differ between old and new. Values are
// compared after a JSON round trip so 3 and 3.0 are equal.
func Diff(old, new map[string]any) map[string]Change {
	o := normalize(old)
	n := normalize(new)
	out := make(map[string]Change)
	for k, ov := range o {
		nv, ok := n[k]
		if !ok || !reflect.DeepEqual(ov, nv) {
			out[k] = Change{From: ov, To: nv}
		}
	}
	for k, nv := range n {
		if _, ok := o[k]; !ok {
			out[k] = Change{From: nil, To: nv}
		}
	}
	return out
}

func normalize(m map[string]any) map[string]any {
	if len(m) == 0 {
		return map[string]any{}
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return m
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return m
	}
	return out
}
