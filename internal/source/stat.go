package source

import (
	"fmt"
	"os"
)

// Stat returns the metadata of path. Created is the file birth time where
// the platform records one, otherwise the modification time.
func Stat(path string) (FileMeta, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileMeta{}, fmt.Errorf("stat %s: %w", path, err)
	}
	created, ok := birthTime(info)
	if !ok {
		created = info.ModTime()
	}
	return FileMeta{
		Path:     path,
		Created:  created,
		Modified: info.ModTime(),
		Size:     info.Size(),
	}, nil
}
