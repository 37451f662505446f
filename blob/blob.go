// Package blob stores catalog logos and hands out presigned URLs for them.
package blob

import (
	"errors"
	"path"
	"strings"
)

// ErrEmptyFile is returned when an upload carries no content.
var ErrEmptyFile = errors.New("file is empty")

// File is an uploaded logo.
type File struct {
	Name        string
	ContentType string
	Content     []byte
}

// Empty reports whether the upload carries nothing to store.
func (f File) Empty() bool {
	return len(f.Content) == 0
}

func (f File) baseName() string {
	name := path.Base(strings.ReplaceAll(f.Name, "\\", "/"))
	if name == "." || name == "/" {
		return "file"
	}
	return name
}
