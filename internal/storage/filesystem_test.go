package storage

import (
	"context"
	"testing"
)

func TestWriteAndRead(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx := context.Background()

	key, err := store.Write(ctx, "job-1/narration.mp3", []byte("mp3-bytes"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if key != "job-1/narration.mp3" {
		t.Fatalf("key = %q", key)
	}

	data, err := store.Read(ctx, key)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(data) != "mp3-bytes" {
		t.Fatalf("data = %q", data)
	}
}

func TestWriteRejectsTraversal(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if _, err := store.Write(context.Background(), "../outside.txt", []byte("x")); err == nil {
		t.Fatal("expected traversal key to be rejected")
	}
	if _, err := store.Write(context.Background(), "  ", []byte("x")); err == nil {
		t.Fatal("expected empty key to be rejected")
	}
}

func TestReadMissingKey(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if _, err := store.Read(context.Background(), "missing/file.bin"); err == nil {
		t.Fatal("expected error for missing key")
	}
}

func TestURLFor(t *testing.T) {
	got := URLFor("https://assets.example.com/", "/job-1/scene.png")
	if got != "https://assets.example.com/job-1/scene.png" {
		t.Fatalf("URLFor = %q", got)
	}
}
