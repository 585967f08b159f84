package beauty

import gojson "github.com/goccy/go-json"

// jsonMarshal centralizes JSON encoding so the whole package goes through
// goccy/go-json rather than encoding/json.
func jsonMarshal(v interface{}) ([]byte, error) {
	return gojson.Marshal(v)
}
