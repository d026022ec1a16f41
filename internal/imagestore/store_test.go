package imagestore

import (
	"context"
	"errors"
	"io"
	"testing"
)

func TestFileStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(t.TempDir(), "http://localhost:8080/")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	url, err := s.Upload(ctx, []byte("png-bytes"), "alice", "chart-1")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if url != "http://localhost:8080/charts/alice/chart-1.png" {
		t.Errorf("unexpected url: %s", url)
	}

	f, err := s.Open("alice", "chart-1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	data, _ := io.ReadAll(f)
	f.Close()
	if string(data) != "png-bytes" {
		t.Errorf("unexpected content: %q", data)
	}

	keys, err := s.Keys(ctx)
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	if len(keys) != 1 || keys[0].OwnerID != "alice" || keys[0].Key != "chart-1" {
		t.Errorf("unexpected keys: %+v", keys)
	}

	if err := s.Delete(ctx, "alice", "chart-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(ctx, "alice", "chart-1"); err != nil {
		t.Errorf("deleting a missing chart should succeed, got %v", err)
	}
	keys, _ = s.Keys(ctx)
	if len(keys) != 0 {
		t.Errorf("want no keys, got %+v", keys)
	}
}

func TestFileStore_RejectsTraversal(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), "")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	for _, name := range []string{"../etc", "a/b", "", "a.png"} {
		if _, err := s.Upload(context.Background(), nil, name, "k"); !errors.Is(err, ErrInvalidName) {
			t.Errorf("owner %q: want ErrInvalidName, got %v", name, err)
		}
	}
}
