package filestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/igolaizola/mixtape/pkg/filestore/s3"
)

func TestLocal(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := New("local", filepath.Join(dir, "store"), false)
	if err != nil {
		t.Fatal(err)
	}
	src := filepath.Join(dir, "playlist.json")
	if err := os.WriteFile(src, []byte(`[{"title":"A","artist":"B"}]`), 0644); err != nil {
		t.Fatal(err)
	}
	if err := store.SetPlaylist(ctx, src, "p1.json"); err != nil {
		t.Fatalf("SetPlaylist() = %v", err)
	}
	dst := filepath.Join(dir, "copy.json")
	if err := store.GetPlaylist(ctx, dst, "p1.json"); err != nil {
		t.Fatalf("GetPlaylist() = %v", err)
	}
	b, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `[{"title":"A","artist":"B"}]` {
		t.Errorf("unexpected content %q", b)
	}
	if err := store.GetPlaylist(ctx, dst, "missing.json"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLocalSameFile(t *testing.T) {
	dir := t.TempDir()
	store, err := New("local", dir, false)
	if err != nil {
		t.Fatal(err)
	}
	src := filepath.Join(dir, "p.json")
	if err := os.WriteFile(src, []byte("[]"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := store.SetPlaylist(context.Background(), src, "p.json"); err != nil {
		t.Fatal(err)
	}
	b, _ := os.ReadFile(src)
	if string(b) != "[]" {
		t.Errorf("file truncated: %q", b)
	}
}

func TestNewInvalid(t *testing.T) {
	tests := []struct {
		typ, conn string
	}{
		{"ftp", "x"},
		{"local", ""},
		{"s3", "nope"},
		{"s3", "key@bucket.region"},
		{"s3", "key:secret@bucket"},
	}
	for _, tt := range tests {
		if _, err := New(tt.typ, tt.conn, false); err == nil {
			t.Errorf("New(%q, %q) should fail", tt.typ, tt.conn)
		}
	}
}

func TestContentType(t *testing.T) {
	tests := map[string]string{
		"a.json": "application/json",
		"a.yaml": "application/yaml",
		"a.yml":  "application/yaml",
	}
	for in, want := range tests {
		got, err := s3.ContentType(in)
		if err != nil || got != want {
			t.Errorf("ContentType(%q) = %q, %v, want %q", in, got, err, want)
		}
	}
	if _, err := s3.ContentType("a.mp3"); err == nil {
		t.Error("ContentType(a.mp3) should fail")
	}
}
