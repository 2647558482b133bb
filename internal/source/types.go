package source

import "time"

// FileMeta is the file metadata recorded on a parse session.
type FileMeta struct {
	Path     string
	Created  time.Time
	Modified time.Time
	Size     int64
}

// DiscoveredFile represents a plot log found during directory scanning.
type DiscoveredFile struct {
	Path    string
	Name    string // base name without extension
	Size    int64
	ModTime time.Time
}
