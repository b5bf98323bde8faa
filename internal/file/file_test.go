package file

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAppendCreatesFileWhenAbsent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "log.txt")

	if err := Append(path, []byte("hello\n")); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "hello\n" {
		t.Fatalf("content = %q, want %q", got, "hello\n")
	}
}

func TestAppendAddsToExistingContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "log.txt")

	if err := Append(path, []byte("first\n")); err != nil {
		t.Fatalf("Append first: %v", err)
	}
	if err := Append(path, []byte("second\n")); err != nil {
		t.Fatalf("Append second: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "first\nsecond\n" {
		t.Fatalf("content = %q, want %q", got, "first\nsecond\n")
	}
}

func TestExistsReflectsFileState(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "maybe.txt")

	if Exists(path) {
		t.Fatalf("Exists(%q) = true before file is created", path)
	}

	if err := Append(path, []byte("x")); err != nil {
		t.Fatalf("Append: %v", err)
	}

	if !Exists(path) {
		t.Fatalf("Exists(%q) = false after file is created", path)
	}
}
