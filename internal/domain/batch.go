package domain

import (
	"strings"
)

// SeparatorWidth is the number of consecutive dashes that turns a batch file
// line into a section separator.
const SeparatorWidth = 50

var separator = strings.Repeat("-", SeparatorWidth)

// Batch is a named list of source-file identifiers read from a single file in
// the batches directory of the annotation repository. Lines starting with "#"
// hold comments and metadata, every other non-blank line is an identifier.
type Batch struct {
	Node

	// Content is the full text of the batch file.
	Content string `json:"content"`

	// Files lists the identifiers in file order with duplicates removed.
	Files []string `json:"files"`

	// Comment is the descriptive header of the batch file.
	Comment string `json:"comment"`

	fileSet map[string]struct{}
}

// ParseBatch builds a Batch from the repository path and the text of a batch
// definition file. Formatting quirks never produce an error; an empty or
// comment-only file yields a batch without identifiers.
func ParseBatch(p, content string) *Batch {
	b := &Batch{
		Node:    NewNode(p),
		Content: content,
		fileSet: make(map[string]struct{}),
	}
	for _, line := range b.Lines() {
		id := strings.TrimSpace(line)
		if id == "" || strings.HasPrefix(id, "#") {
			continue
		}
		if _, seen := b.fileSet[id]; seen {
			continue
		}
		b.fileSet[id] = struct{}{}
		b.Files = append(b.Files, id)
	}
	b.Comment = extractComment(content)
	return b
}

// Lines returns the raw lines of the batch file in order.
func (b *Batch) Lines() []string {
	if b.Content == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(b.Content, "\n"), "\n")
}

// Len returns the number of distinct identifiers in the batch.
func (b *Batch) Len() int { return len(b.Files) }

// FileSet returns the identifiers as a set. The map is shared and must not
// be modified.
func (b *Batch) FileSet() map[string]struct{} { return b.fileSet }

// Contains reports whether id is listed in the batch.
func (b *Batch) Contains(id string) bool {
	_, ok := b.fileSet[id]
	return ok
}

// extractComment returns the leading comment block of a batch file. The
// block ends at the second separator line or at the first line that is not a
// comment, whichever comes first. The first separator itself is skipped.
func extractComment(content string) string {
	var sb strings.Builder
	separators := 0
	for _, line := range strings.Split(content, "\n") {
		if strings.Contains(line, separator) {
			separators++
			if separators == 2 {
				break
			}
			continue
		}
		if !strings.HasPrefix(line, "#") {
			break
		}
		sb.WriteString(strings.TrimSpace(strings.TrimLeft(line, "#")))
		sb.WriteByte('\n')
	}
	return sb.String()
}
