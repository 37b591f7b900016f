package attach

import (
	"errors"
	"testing"
)

func TestAllowedType(t *testing.T) {
	allowed := []string{"image/png", "image/jpeg", "image/webp", "application/pdf"}
	for _, mt := range allowed {
		if !AllowedType(mt) {
			t.Errorf("AllowedType(%q) = false", mt)
		}
	}
	rejected := []string{"text/plain", "application/zip", "video/mp4", "image/", ""}
	for _, mt := range rejected {
		if AllowedType(mt) {
			t.Errorf("AllowedType(%q) = true", mt)
		}
	}
}

func TestValidate(t *testing.T) {
	if err := Validate("image/png", 1024); err != nil {
		t.Errorf("valid image: %v", err)
	}
	if err := Validate("application/pdf", MaxSize); err != nil {
		t.Errorf("pdf at exact limit: %v", err)
	}
	if err := Validate("application/pdf", MaxSize+1); !errors.Is(err, ErrTooLarge) {
		t.Errorf("oversize: err = %v, want ErrTooLarge", err)
	}
	if err := Validate("text/plain", 10); !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("bad type: err = %v, want ErrUnsupportedType", err)
	}
}

func TestSanitizeObjectName(t *testing.T) {
	cases := map[string]string{
		"offer letter.pdf": "offer-letter.pdf",
		"../../etc/passwd": "....etcpasswd",
		"":                 "attachment",
		"scan_01.png":      "scan_01.png",
	}
	for in, want := range cases {
		if got := sanitizeObjectName(in); got != want {
			t.Errorf("sanitizeObjectName(%q) = %q, want %q", in, got, want)
		}
	}
}
