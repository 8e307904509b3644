package sizeguard

import (
	"errors"
	"path/filepath"
	"testing"

	tvgerrors "github.com/NikitaDmitryuk/telegram-video-grabber/internal/core/errors"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/testutils"
)

func TestCheck(t *testing.T) {
	const limit = 50 * 1024 * 1024
	dir := t.TempDir()
	guard := New(limit)

	tests := []struct {
		name    string
		size    int64
		wantErr error
	}{
		{"small", 1024, nil},
		{"exactly at limit", limit, nil},
		{"one byte over", limit + 1, tvgerrors.ErrFileTooLarge},
		{"80 MiB", 80 * 1024 * 1024, tvgerrors.ErrFileTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := testutils.CreateSparseFile(t, dir, tt.name+".mp4", tt.size)
			size, err := guard.Check(path)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("Check() error = %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("Check() error = %v, want %v", err, tt.wantErr)
			}
			if size != tt.size {
				t.Errorf("Check() size = %d, want %d", size, tt.size)
			}
		})
	}
}

func TestCheckRecordsSizes(t *testing.T) {
	path := testutils.CreateSparseFile(t, t.TempDir(), "big.mp4", 2048)
	_, err := New(1024).Check(path)

	var de *tvgerrors.DomainError
	if !errors.As(err, &de) {
		t.Fatalf("Check() error = %v, want DomainError", err)
	}
	if de.Details["size"] != int64(2048) || de.Details["limit"] != int64(1024) {
		t.Errorf("Details = %v", de.Details)
	}
}

func TestCheckMissingFile(t *testing.T) {
	_, err := New(1024).Check(filepath.Join(t.TempDir(), "missing.mp4"))
	if !errors.Is(err, tvgerrors.ErrInternal) {
		t.Errorf("Check() error = %v, want ErrInternal", err)
	}
}

func TestCheckDirectory(t *testing.T) {
	_, err := New(1024).Check(t.TempDir())
	if !errors.Is(err, tvgerrors.ErrInternal) {
		t.Errorf("Check() error = %v, want ErrInternal", err)
	}
}
