package storage

import (
	"errors"
	"testing"
	"time"
)

func TestContentType(t *testing.T) {
	cases := []struct {
		name    string
		want    string
		wantErr error
	}{
		{name: "photo.JPG", want: "image/jpeg"},
		{name: "scan.jpeg", want: "image/jpeg"},
		{name: "logo.png", want: "image/png"},
		{name: "anim.gif", want: "image/gif"},
		{name: "report.pdf", want: "application/pdf"},
		{name: "script.js", wantErr: ErrUnsupportedType},
		{name: "noext", wantErr: ErrUnsupportedType},
	}
	for _, tc := range cases {
		got, err := ContentType(tc.name)
		if !errors.Is(err, tc.wantErr) || got != tc.want {
			t.Fatalf("ContentType(%q) = %q, %v; want %q, %v", tc.name, got, err, tc.want, tc.wantErr)
		}
	}
}

func TestObjectName(t *testing.T) {
	at := time.UnixMilli(1714550400123)
	cases := map[string]struct {
		field, filename string
	}{
		"image-1714550400123.png":   {"image", "Truck Photo.PNG"},
		"upload-1714550400123.pdf":  {"../../", "report.pdf"},
		"cover_2-1714550400123.gif": {"cover_2", "a.gif"},
	}
	for want, in := range cases {
		if got := ObjectName(in.field, in.filename, at); got != want {
			t.Fatalf("ObjectName(%q, %q) = %q, want %q", in.field, in.filename, got, want)
		}
	}
}

func TestValidName(t *testing.T) {
	for _, name := range []string{"", "../secret", "a/b.png", ".env"} {
		if err := validName(name); !errors.Is(err, ErrInvalidName) {
			t.Fatalf("validName(%q) = %v", name, err)
		}
	}
	if err := validName("image-1.png"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
