package domain

import "testing"

func TestRegistrable(t *testing.T) {
	tests := []struct{ in, want string }{
		{"https://www.Cal.com/pricing", "cal.com"},
		{"app.notion.so", "notion.so"},
		{"http://shop.example.co.uk:8080/x", "example.co.uk"},
		{"localhost", "localhost"},
		{"", ""},
		{"https://", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Registrable(tt.in); got != tt.want {
				t.Errorf("Registrable(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
