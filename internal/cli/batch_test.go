package cli

import "testing"

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://en.wikipedia.org/wiki/Eiffel_Tower", "en.wikipedia.org_wiki_Eiffel_Tower"},
		{"http://example.com/", "example.com"},
		{"./docs/my notes.txt", "docs_my-notes.txt"},
		{"a:b*c?d", "a_b_c_d"},
		{"///", "document"},
	}
	for _, tt := range tests {
		if got := sanitizeFilename(tt.in); got != tt.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeFilename_Length(t *testing.T) {
	long := make([]byte, 300)
	for i := range long {
		long[i] = 'a'
	}
	if got := sanitizeFilename(string(long)); len(got) != 100 {
		t.Errorf("Expected 100 characters, got %d", len(got))
	}
}

func TestMask(t *testing.T) {
	if mask("") != "" {
		t.Error("Empty secret should stay empty")
	}
	if mask("short") != "****" {
		t.Error("Short secrets should be fully masked")
	}
	if got := mask("sk-abcdefghijkl"); got != "sk-a****kl" {
		t.Errorf("Unexpected mask: %s", got)
	}
}
