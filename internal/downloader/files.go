package downloader

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	tvgerrors "github.com/NikitaDmitryuk/telegram-video-grabber/internal/core/errors"
)

// ErrNoOutput means the tool exited cleanly but left no media file behind.
var ErrNoOutput = errors.New("downloader produced no output file")

var tempSuffixes = []string{".part", ".ytdl", ".ytdlp", ".temp", ".tmp"}

// IsTempFile reports whether name looks like an unfinished download artefact.
func IsTempFile(name string) bool {
	lower := strings.ToLower(name)
	for _, s := range tempSuffixes {
		if strings.HasSuffix(lower, s) || strings.Contains(lower, s+"-") {
			return true
		}
	}
	return strings.Contains(lower, ".part-frag")
}

// FindOutputFile returns the largest finished file in dir.
func FindOutputFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	var (
		best     string
		bestSize int64 = -1
	)
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") || IsTempFile(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.Size() > bestSize {
			best, bestSize = filepath.Join(dir, e.Name()), info.Size()
		}
	}
	if best == "" {
		return "", ErrNoOutput
	}
	return best, nil
}

// ErrLimitExceeded is returned by LimitedCopy when the source is larger than the limit.
var ErrLimitExceeded = errors.New("size limit exceeded")

// LimitedCopy copies at most limit bytes from src to dst and fails with ErrLimitExceeded beyond that.
func LimitedCopy(dst io.Writer, src io.Reader, limit int64, progress func(written int64)) (int64, error) {
	buf := make([]byte, 64*1024)
	var written int64
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			if written+int64(n) > limit {
				return written, ErrLimitExceeded
			}
			w, werr := dst.Write(buf[:n])
			written += int64(w)
			if werr != nil {
				return written, werr
			}
			if progress != nil {
				progress(written)
			}
		}
		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			return written, rerr
		}
	}
}

// StreamError converts a direct HTTP download failure into a domain error.
func StreamError(err error, size, limit int64) error {
	if errors.Is(err, ErrLimitExceeded) {
		return tvgerrors.NewFileTooLargeError(size, limit)
	}
	return tvgerrors.AsNetworkError(err)
}

// ClearDir removes everything inside dir but keeps dir itself.
func ClearDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	var errs []error
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
