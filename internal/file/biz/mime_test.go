package biz

import "testing"

func TestDisplayContentType(t *testing.T) {
	tests := []struct {
		contentType string
		want        string
	}{
		{"application/pdf", "PDF"},
		{"image/jpeg", "JPEG Image"},
		{"image/png", "PNG Image"},
		{"text/plain", "Text File"},
		{"application/msword", "Word Document"},
		{"application/vnd.openxmlformats-officedocument.wordprocessingml.document", "Word Document"},
		{"application/x-unknown", "application/x-unknown"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := DisplayContentType(tt.contentType); got != tt.want {
			t.Errorf("DisplayContentType(%q) = %q, want %q", tt.contentType, got, tt.want)
		}
	}
}
