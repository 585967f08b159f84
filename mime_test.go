package beauty

import "testing"

func TestExtensionToTypeKnown(t *testing.T) {
	cases := map[string]string{
		"html": "text/html",
		"HTML": "text/html",
		"json": "application/json",
		"css":  "text/css",
	}
	for ext, want := range cases {
		if got := extensionToType(ext); got != want {
			t.Errorf("extensionToType(%q) = %q, want %q", ext, got, want)
		}
	}
}

func TestExtensionToTypeUnknownDefaultsToPlainText(t *testing.T) {
	if got := extensionToType("unknownextension"); got != "text/plain" {
		t.Fatalf("expected text/plain default, got %q", got)
	}
}
