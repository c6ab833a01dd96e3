package util

import (
	"strings"
	"testing"
)

func TestSanitizeFileName(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "resume.pdf", want: "resume.pdf"},
		{in: "  cv final.docx ", want: "cv final.docx"},
		{in: "dir/sub\\cv.pdf", want: "dir_sub_cv.pdf"},
		{in: "cv\x00\tname.pdf", want: "cvname.pdf"},
		{in: strings.Repeat("a", 120) + ".pdf", want: strings.Repeat("a", 96) + ".pdf"},
		{in: "../etc/passwd", wantErr: true},
		{in: "   ", wantErr: true},
		{in: "\x01\x02", wantErr: true},
	}
	for _, tc := range cases {
		got, err := SanitizeFileName(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("SanitizeFileName(%q) expected error, got %q", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("SanitizeFileName(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("SanitizeFileName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
