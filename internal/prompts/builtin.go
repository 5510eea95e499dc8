package prompts

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
)

//go:embed builtin/*.md
var builtinFS embed.FS

// Builtin returns the prompts shipped with the binary.
func Builtin() Static {
	files := make(map[string]string)
	entries, _ := fs.ReadDir(builtinFS, "builtin")
	for _, e := range entries {
		data, err := fs.ReadFile(builtinFS, path.Join("builtin", e.Name()))
		if err != nil {
			continue
		}
		files[e.Name()] = string(data)
	}
	return Static(files)
}

// Chain tries each fetcher in order and returns the first prompt found. When
// none has it, the first error other than ErrNotFound is reported.
type Chain []Fetcher

func (c Chain) Fetch(ctx context.Context, file string) (string, error) {
	var failure error
	for _, f := range c {
		text, err := f.Fetch(ctx, file)
		if err == nil {
			return text, nil
		}
		if failure == nil && !errors.Is(err, ErrNotFound) {
			failure = err
		}
	}
	if failure != nil {
		return "", failure
	}
	return "", fmt.Errorf("%s: %w", file, ErrNotFound)
}
