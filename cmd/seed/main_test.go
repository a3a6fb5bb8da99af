package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/natep/cinesearch/internal/domain"
)

type fakeStore struct {
	objects map[string][]byte
	uploads int
}

func (f *fakeStore) EnsureBucket(context.Context) error { return nil }

func (f *fakeStore) Upload(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if f.objects == nil {
		f.objects = make(map[string][]byte)
	}
	f.objects[key] = data
	f.uploads++
	return nil
}

func (f *fakeStore) GetURL(key string) string { return "http://posters.test/" + key }

func (f *fakeStore) Exists(_ context.Context, key string) (bool, error) {
	_, ok := f.objects[key]
	return ok, nil
}

func TestUploadPoster(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "p1.jpg"), []byte("jpegdata"), 0o644); err != nil {
		t.Fatal(err)
	}
	store := &fakeStore{}

	uploaded, err := uploadPoster(context.Background(), store, dir, "p1.jpg")
	if err != nil {
		t.Fatalf("uploadPoster failed: %v", err)
	}
	if !uploaded || string(store.objects["p1.jpg"]) != "jpegdata" {
		t.Fatalf("poster not stored: uploaded=%v objects=%v", uploaded, store.objects)
	}

	// Rerunning skips keys the bucket already holds.
	uploaded, err = uploadPoster(context.Background(), store, dir, "p1.jpg")
	if err != nil {
		t.Fatalf("uploadPoster rerun failed: %v", err)
	}
	if uploaded || store.uploads != 1 {
		t.Errorf("existing poster re-uploaded: uploaded=%v uploads=%d", uploaded, store.uploads)
	}

	// A poster key with no local file surfaces the error.
	if _, err := uploadPoster(context.Background(), store, dir, "missing.jpg"); err == nil {
		t.Error("expected error for missing poster file")
	}
}

func TestEmbeddingText(t *testing.T) {
	m := &domain.Movie{
		Title:  "Inception",
		Genres: domain.StringArray{"Sci-Fi", "Thriller"},
		Plot:   "A thief steals secrets through dream-sharing technology.",
	}
	got := embeddingText(m)
	want := "Inception. Sci-Fi Thriller. A thief steals secrets through dream-sharing technology."
	if got != want {
		t.Errorf("embeddingText = %q, want %q", got, want)
	}
}
