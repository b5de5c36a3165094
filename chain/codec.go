package chain

import "encoding/json"

// decodeJSON is a small local alias so verifier.go doesn't need to spell
// out encoding/json at every call site.
func decodeJSON(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
