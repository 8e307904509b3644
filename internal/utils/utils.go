package utils

import (
	"fmt"
	"os"
	"regexp"

	"github.com/dustin/go-humanize"
)

var unsafeNameChars = regexp.MustCompile(`[^\p{L}\p{N}._-]+`)

// HumanSize formats a byte count for chat replies, e.g. "50 MiB".
func HumanSize(size int64) string {
	if size < 0 {
		size = 0
	}
	return humanize.IBytes(uint64(size))
}

func SanitizeFileName(name string) string {
	return unsafeNameChars.ReplaceAllString(name, "_")
}

// FileSize returns the size of a regular file. Directories and other non-regular files are an error.
func FileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if !info.Mode().IsRegular() {
		return 0, fmt.Errorf("%s is not a regular file", path)
	}
	return info.Size(), nil
}
