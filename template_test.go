package talon

import (
	"reflect"
	"testing"
)

func TestExtractPlaceholders(t *testing.T) {
	tests := []struct {
		name          string
		template      string
		want          []string
		wantMalformed bool
	}{
		{
			name:     "no placeholders",
			template: "/users",
			want:     nil,
		},
		{
			name:     "single placeholder",
			template: "/users/{id}",
			want:     []string{"id"},
		},
		{
			name:     "multiple placeholders",
			template: "/repos/{owner}/{repo}/issues/{number}",
			want:     []string{"owner", "repo", "number"},
		},
		{
			name:     "duplicate placeholder preserved",
			template: "/{id}/copies/{id}",
			want:     []string{"id", "id"},
		},
		{
			name:     "empty braces skipped",
			template: "/users/{}/posts/{id}",
			want:     []string{"id"},
		},
		{
			name:          "unclosed brace",
			template:      "/users/{id",
			wantMalformed: true,
		},
		{
			name:          "unclosed after valid",
			template:      "/users/{id}/{rest",
			want:          []string{"id"},
			wantMalformed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, malformed := extractPlaceholders(tt.template)
			if malformed != tt.wantMalformed {
				t.Errorf("expected malformed %v, got %v", tt.wantMalformed, malformed)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestUniquePlaceholders(t *testing.T) {
	got := uniquePlaceholders([]string{"id", "owner", "id", "repo", "owner"})
	want := []string{"id", "owner", "repo"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestEscapePathSegment(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "plain value untouched",
			input: "alice",
			want:  "alice",
		},
		{
			name:  "space",
			input: "a b",
			want:  "a%20b",
		},
		{
			name:  "slashes",
			input: "a/b\\c",
			want:  "a%2Fb%5Cc",
		},
		{
			name:  "percent not double decoded",
			input: "50%",
			want:  "50%25",
		},
		{
			name:  "url metacharacters",
			input: `a?b#c"d<e>f` + "`" + "g{h}",
			want:  "a%3Fb%23c%22d%3Ce%3Ef%60g%7Bh%7D",
		},
		{
			name:  "controls",
			input: "a\nb\x00c",
			want:  "a%0Ab%00c",
		},
		{
			name:  "delete",
			input: "a\x7fb",
			want:  "a%7Fb",
		},
		{
			name:  "sub-delimiters pass through",
			input: "a&b=c+d,e;f",
			want:  "a&b=c+d,e;f",
		},
		{
			name:  "non-ascii left to url layer",
			input: "café",
			want:  "café",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := escapePathSegment(tt.input); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestExpandTemplate(t *testing.T) {
	tests := []struct {
		name     string
		template string
		values   map[string]string
		want     string
	}{
		{
			name:     "single substitution",
			template: "/users/{id}",
			values:   map[string]string{"id": "42"},
			want:     "/users/42",
		},
		{
			name:     "repeated placeholder",
			template: "/{id}/copies/{id}",
			values:   map[string]string{"id": "7"},
			want:     "/7/copies/7",
		},
		{
			name:     "missing value left verbatim",
			template: "/users/{id}/posts/{post}",
			values:   map[string]string{"id": "1"},
			want:     "/users/1/posts/{post}",
		},
		{
			name:     "no placeholders",
			template: "/health",
			values:   map[string]string{"id": "1"},
			want:     "/health",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := expandTemplate(tt.template, tt.values); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestJoinURL(t *testing.T) {
	tests := []struct {
		name string
		base string
		path string
		want string
	}{
		{
			name: "bare host",
			base: "https://api.example.com",
			path: "/users/42",
			want: "https://api.example.com/users/42",
		},
		{
			name: "base path prefix preserved",
			base: "https://api.example.com/v2",
			path: "/repos/x",
			want: "https://api.example.com/v2/repos/x",
		},
		{
			name: "trailing slash on base",
			base: "https://api.example.com/v2/",
			path: "/repos/x",
			want: "https://api.example.com/v2/repos/x",
		},
		{
			name: "path without leading slash",
			base: "https://api.example.com",
			path: "users",
			want: "https://api.example.com/users",
		},
		{
			name: "query carried through",
			base: "https://api.example.com/v2",
			path: "/search?q=go&page=2",
			want: "https://api.example.com/v2/search?q=go&page=2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base, err := parseBaseURL(tt.base)
			if err != nil {
				t.Fatalf("parseBaseURL(%q): %v", tt.base, err)
			}
			u, err := joinURL(base, tt.path)
			if err != nil {
				t.Fatalf("joinURL: %v", err)
			}
			if got := u.String(); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestParseBaseURL_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantMsg string
	}{
		{
			name:    "relative",
			input:   "/v2",
			wantMsg: "base URL must be absolute (scheme and host)",
		},
		{
			name:    "missing host",
			input:   "https://",
			wantMsg: "base URL must be absolute (scheme and host)",
		},
		{
			name:    "query",
			input:   "https://api.example.com?x=1",
			wantMsg: "base URL must not carry a query or fragment",
		},
		{
			name:    "fragment",
			input:   "https://api.example.com#top",
			wantMsg: "base URL must not carry a query or fragment",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseBaseURL(tt.input)
			if err == nil {
				t.Fatalf("expected error, got nil")
			}
			if err.Error() != tt.wantMsg {
				t.Errorf("expected %q, got %q", tt.wantMsg, err.Error())
			}
		})
	}
}
