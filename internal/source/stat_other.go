//go:build !darwin

package source

import (
	"os"
	"time"
)

func birthTime(_ os.FileInfo) (time.Time, bool) {
	return time.Time{}, false
}
