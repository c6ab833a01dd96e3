package local

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestStoreSaveOpenDelete(t *testing.T) {
	dir := t.TempDir()
	store := New(dir)
	ctx := context.Background()

	key, size, mime, err := store.Save(ctx, "user-1", "resume.txt", strings.NewReader("Go developer"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if size != int64(len("Go developer")) {
		t.Fatalf("expected size %d, got %d", len("Go developer"), size)
	}
	if !strings.HasPrefix(mime, "text/plain") {
		t.Fatalf("expected sniffed text/plain, got %q", mime)
	}
	if !strings.HasSuffix(key, "_resume.txt") {
		t.Fatalf("unexpected key %q", key)
	}

	rc, err := store.Open(ctx, key)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	body, _ := io.ReadAll(rc)
	rc.Close()
	if string(body) != "Go developer" {
		t.Fatalf("unexpected body %q", body)
	}

	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, filepath.FromSlash(key))); !os.IsNotExist(err) {
		t.Fatalf("expected file removed, stat err=%v", err)
	}
	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("second Delete should be a no-op: %v", err)
	}
}

func TestStoreRejectsTraversal(t *testing.T) {
	store := New(t.TempDir())
	ctx := context.Background()

	if _, err := store.Open(ctx, "../etc/passwd"); err == nil {
		t.Fatalf("expected traversal to be rejected on Open")
	}
	if err := store.Delete(ctx, "/abs/path"); err == nil {
		t.Fatalf("expected absolute key to be rejected on Delete")
	}
	if _, _, _, err := store.Save(ctx, "user-1", "../x.pdf", strings.NewReader("x")); err == nil {
		t.Fatalf("expected traversal file name to be rejected on Save")
	}
}

func TestStoreHonoursCancelledContext(t *testing.T) {
	store := New(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, _, _, err := store.Save(ctx, "u", "a.txt", strings.NewReader("x")); err == nil {
		t.Fatalf("expected Save to fail on cancelled context")
	}
}

func TestStoreSaveAnonymousNamespace(t *testing.T) {
	store := New(t.TempDir())
	key, _, _, err := store.Save(context.Background(), "", "cv.txt", strings.NewReader("text"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !strings.HasPrefix(filepath.ToSlash(key), "anonymous/") {
		t.Fatalf("expected anonymous namespace, got %q", key)
	}
}
