package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"slices"
)

// readText returns the content of the file at p inside fsys.
func readText(fsys fs.FS, p string) (string, error) {
	if fsys == nil {
		return "", fmt.Errorf("%s: %w", p, ErrNotFound)
	}
	data, err := fs.ReadFile(fsys, p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%s: %w", p, ErrNotFound)
		}
		return "", fmt.Errorf("read %s: %w", p, err)
	}
	return string(data), nil
}

// readDisplayText reads the file at p and pretty-prints it when its
// extension is one of jsonExts. Content that does not parse as JSON is
// returned as is.
func readDisplayText(fsys fs.FS, p string, jsonExts ...string) (string, error) {
	text, err := readText(fsys, p)
	if err != nil {
		return "", err
	}
	if !slices.Contains(jsonExts, path.Ext(p)) {
		return text, nil
	}
	return PrettyJSON(text), nil
}

// PrettyJSON indents a JSON document with two spaces, keeping key order.
// Input that is not valid JSON is returned unchanged.
func PrettyJSON(text string) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(text), "", "  "); err != nil {
		return text
	}
	return buf.String()
}
