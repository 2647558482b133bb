package source

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// plotMarker is the first line every plotter log starts its preamble with.
var plotMarker = []byte("Starting plotting progress into temporary dirs")

// sniffBytes bounds how much of each candidate is read to recognise it.
const sniffBytes = 64 * 1024

// ScanDir walks a plotter log directory and discovers all plot log files.
// Files are recognised by extension (.log, .txt) and by the plotter preamble
// appearing near the top of the file. Results are sorted by path.
func ScanDir(dir string) ([]DiscoveredFile, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, nil
	}

	var files []DiscoveredFile

	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr // intentionally skip unreadable entries
		}
		name := d.Name()
		if d.IsDir() {
			if path != dir && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		ext := filepath.Ext(name)
		if ext != ".log" && ext != ".txt" {
			return nil
		}
		if !IsPlotLog(path) {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return nil //nolint:nilerr // file vanished between readdir and stat
		}
		files = append(files, DiscoveredFile{
			Path:    path,
			Name:    strings.TrimSuffix(name, ext),
			Size:    fi.Size(),
			ModTime: fi.ModTime(),
		})
		return nil
	})

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, err
}

// IsPlotLog reports whether the head of path contains the plotter preamble.
func IsPlotLog(path string) bool {
	f, err := os.Open(path) // #nosec G304 -- paths come from a directory walk
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()

	head := make([]byte, sniffBytes)
	n, _ := io.ReadFull(f, head)
	return bytes.Contains(head[:n], plotMarker)
}
