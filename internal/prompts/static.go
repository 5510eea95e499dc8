package prompts

import (
	"context"
	"fmt"
	"maps"
)

// Static serves prompts from memory, keyed by file name.
type Static map[string]string

// NewStatic copies files into a Static fetcher.
func NewStatic(files map[string]string) Static {
	return Static(maps.Clone(files))
}

func (s Static) Fetch(_ context.Context, file string) (string, error) {
	text, ok := s[file]
	if !ok {
		return "", fmt.Errorf("%s: %w", file, ErrNotFound)
	}
	return text, nil
}
