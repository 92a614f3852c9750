package orchestrator

import "testing"

func TestNormalizeError(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"whitespace only", "   \t", ""},
		{"literal null", "null", ""},
		{"uppercase null", "NULL", ""},
		{"padded null", "  null  ", ""},
		{"real error", "connection refused", "connection refused"},
		{"padded error", "  exit status 1 ", "exit status 1"},
		{"null inside text survives", "null pointer dereference", "null pointer dereference"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeError(tt.input); got != tt.want {
				t.Errorf("NormalizeError(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
