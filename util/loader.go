// Package util - Helpers for loading image corpora from disk.
package util

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/nvr-ai/go-detect/images"
	"github.com/pkg/errors"
)

// ImageFile represents an image file.
type ImageFile struct {
	// Path is the path to the image file.
	Path string
	// Data is the raw bytes of the image file.
	Data []byte
	// Format is the format implied by the file extension.
	Format images.ImageFormat
	// Frame is the frame number of the image file.
	Frame int
}

// LoadDirectoryImageFiles reads all image files from a directory.
//
// Files named frame-<n>.<ext> are ordered by n. Other files sort after them by
// name and are numbered in that order.
//
// Arguments:
// - dir: Directory path containing image files.
//
// Returns:
// - []ImageFile: Slice of ImageFile, each containing the raw bytes of an image file.
// - error: Error if loading fails.
func LoadDirectoryImageFiles(dir string) ([]ImageFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", dir)
	}

	var numbered, named []ImageFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		ext := filepath.Ext(entry.Name())
		format, err := images.ParseFormat(ext)
		if err != nil {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read %s", path)
		}

		file := ImageFile{Path: path, Data: data, Format: format, Frame: -1}
		if frame, ok := frameNumber(entry.Name(), ext); ok {
			file.Frame = frame
			numbered = append(numbered, file)
		} else {
			named = append(named, file)
		}
	}

	sort.Slice(numbered, func(i, j int) bool {
		return numbered[i].Frame < numbered[j].Frame
	})
	sort.Slice(named, func(i, j int) bool {
		return named[i].Path < named[j].Path
	})

	next := 0
	if len(numbered) > 0 {
		next = numbered[len(numbered)-1].Frame + 1
	}
	for i := range named {
		named[i].Frame = next + i
	}

	return append(numbered, named...), nil
}

func frameNumber(name, ext string) (int, bool) {
	if !strings.HasPrefix(name, "frame-") {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, "frame-"), ext))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
