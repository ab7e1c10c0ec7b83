package util

import (
	"net/http"
	"testing"
)

func TestNewProxyFunc_ExplicitProxies(t *testing.T) {
	proxy := NewProxyFunc("http://proxy.local:3128", "http://secure.local:3129", "internal.example")

	tests := []struct {
		url  string
		want string
	}{
		{url: "http://example.com/page", want: "http://proxy.local:3128"},
		{url: "https://example.com/page", want: "http://secure.local:3129"},
		{url: "https://internal.example/page", want: ""},
	}

	for _, tt := range tests {
		req, err := http.NewRequest(http.MethodGet, tt.url, nil)
		if err != nil {
			t.Fatalf("new request: %v", err)
		}
		got, err := proxy(req)
		if err != nil {
			t.Fatalf("proxy(%s): %v", tt.url, err)
		}
		if tt.want == "" {
			if got != nil {
				t.Errorf("proxy(%s) = %v, want direct", tt.url, got)
			}
			continue
		}
		if got == nil || got.String() != tt.want {
			t.Errorf("proxy(%s) = %v, want %s", tt.url, got, tt.want)
		}
	}
}
