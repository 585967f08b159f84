package beauty

import (
	"strings"
	"testing"
)

func TestJsonMarshalEncodesStruct(t *testing.T) {
	v := struct {
		Name string `json:"name"`
	}{Name: "beauty"}

	data, err := jsonMarshal(v)
	if err != nil {
		t.Fatalf("jsonMarshal: %v", err)
	}
	if !strings.Contains(string(data), `"name":"beauty"`) {
		t.Fatalf("unexpected json: %s", data)
	}
}

func TestJsonMarshalPropagatesError(t *testing.T) {
	if _, err := jsonMarshal(make(chan int)); err == nil {
		t.Fatal("expected an error marshaling an unsupported type")
	}
}
