package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

type collected struct {
	lines []string
	sizes []int64
}

func (c *collected) fn(line string, size int64) error {
	c.lines = append(c.lines, line)
	c.sizes = append(c.sizes, size)
	return nil
}

func TestReadLines_OffsetsCountTerminators(t *testing.T) {
	path := writeFile(t, "a.log", "one\r\ntwo\n\nthree\n")

	var c collected
	end, err := ReadLines(context.Background(), path, 0, c.fn)
	if err != nil {
		t.Fatalf("ReadLines() error = %v", err)
	}

	want := []string{"one", "two", "", "three"}
	if strings.Join(c.lines, "|") != strings.Join(want, "|") {
		t.Errorf("lines = %q, want %q", c.lines, want)
	}
	if end != 16 {
		t.Errorf("end offset = %d, want 16", end)
	}
	var sum int64
	for _, s := range c.sizes {
		sum += s
	}
	if sum != end {
		t.Errorf("sum of sizes = %d, want %d", sum, end)
	}
}

func TestReadLines_ResumeFromOffset(t *testing.T) {
	path := writeFile(t, "a.log", "first\nsecond\nthird\n")

	var c collected
	end, err := ReadLines(context.Background(), path, int64(len("first\n")), c.fn)
	if err != nil {
		t.Fatalf("ReadLines() error = %v", err)
	}
	if len(c.lines) != 2 || c.lines[0] != "second" {
		t.Errorf("lines = %q, want [second third]", c.lines)
	}
	if end != 19 {
		t.Errorf("end offset = %d, want 19", end)
	}
}

func TestReadLines_LeavesUnterminatedFragment(t *testing.T) {
	path := writeFile(t, "a.log", "done\nhalf-writ")

	var first collected
	end, err := ReadLines(context.Background(), path, 0, first.fn)
	if err != nil {
		t.Fatal(err)
	}
	if len(first.lines) != 1 || end != 5 {
		t.Fatalf("lines=%q end=%d, want [done] 5", first.lines, end)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString("ten\n"); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	var rest collected
	end, err = ReadLines(context.Background(), path, end, rest.fn)
	if err != nil {
		t.Fatal(err)
	}
	if len(rest.lines) != 1 || rest.lines[0] != "half-written" || end != 18 {
		t.Errorf("lines=%q end=%d, want [half-written] 18", rest.lines, end)
	}
}

func TestReadLines_Errors(t *testing.T) {
	if _, err := ReadLines(context.Background(), filepath.Join(t.TempDir(), "missing.log"), 0, func(string, int64) error { return nil }); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file error = %v, want ErrNotExist", err)
	}

	if _, err := ReadLines(context.Background(), t.TempDir(), 0, func(string, int64) error { return nil }); err == nil {
		t.Error("reading a directory should fail")
	}

	path := writeFile(t, "a.log", "a\nb\n")
	stop := errors.New("stop")
	end, err := ReadLines(context.Background(), path, 0, func(line string, _ int64) error {
		if line == "b" {
			return stop
		}
		return nil
	})
	if !errors.Is(err, stop) {
		t.Errorf("callback error = %v, want stop", err)
	}
	if end != 2 {
		t.Errorf("offset after failing line = %d, want 2", end)
	}
}

func TestReadLines_Cancelled(t *testing.T) {
	path := writeFile(t, "a.log", "a\nb\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := ReadLines(ctx, path, 0, func(string, int64) error { return nil }); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestStat(t *testing.T) {
	path := writeFile(t, "a.log", "12345")
	meta, err := Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if meta.Size != 5 {
		t.Errorf("Size = %d, want 5", meta.Size)
	}
	if meta.Created.IsZero() || meta.Modified.IsZero() {
		t.Error("Created and Modified should be set")
	}
}

func TestScanDir(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) {
		t.Helper()
		full := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	plot := "Starting plotting progress into temporary dirs: /a and /b\nID: abc\n"
	write("b.log", plot)
	write("a.txt", plot)
	write("debug.log", "2021-05-22T15:38:49.837 harvester chia: INFO hello\n")
	write("notes.md", plot)
	write(".hidden/c.log", plot)
	write("nested/d.log", plot)

	files, err := ScanDir(dir)
	if err != nil {
		t.Fatalf("ScanDir() error = %v", err)
	}

	var names []string
	for _, f := range files {
		names = append(names, f.Name)
	}
	if got, want := strings.Join(names, ","), "a,b,d"; got != want {
		t.Errorf("ScanDir() names = %s, want %s", got, want)
	}
}

func TestScanDir_Missing(t *testing.T) {
	files, err := ScanDir(filepath.Join(t.TempDir(), "nope"))
	if err != nil || files != nil {
		t.Errorf("ScanDir(missing) = %v, %v; want nil, nil", files, err)
	}
}

func TestWatcher_SignalsOnWrite(t *testing.T) {
	path := writeFile(t, "grow.log", "a\n")
	w, err := NewWatcher(path, 50*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer func() { _ = w.Close() }()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = f.WriteString("b\n")
	_ = f.Close()

	select {
	case <-w.Changes():
	case <-time.After(5 * time.Second):
		t.Fatal("no change signal after write")
	}

	if err := w.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}
