package qr

import (
	"strings"
	"testing"
)

func TestPermitURL(t *testing.T) {
	got := PermitURL("http://localhost:5173/", "abc def")
	want := "http://localhost:5173/viewPermit/?token=abc+def"
	if got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestDataURL(t *testing.T) {
	got, err := DataURL("http://localhost:5173/viewPermit/?token=x")
	if err != nil {
		t.Fatalf("encode error: %v", err)
	}
	if !strings.HasPrefix(got, "data:image/png;base64,") {
		t.Fatalf("expected png data url, got %.40s", got)
	}
}
