package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sep = strings.Repeat("-", SeparatorWidth)

// TestParseBatch_Files verifies that identifiers are every trimmed line that
// is neither blank nor a comment, with duplicates collapsed.
func TestParseBatch_Files(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{
			name:    "empty file",
			content: "",
			want:    nil,
		},
		{
			name:    "comments only",
			content: "# title\n#\n# more\n",
			want:    nil,
		},
		{
			name:    "identifiers with surrounding whitespace",
			content: "  cpb-aacip-1  \n\tcpb-aacip-2\n",
			want:    []string{"cpb-aacip-1", "cpb-aacip-2"},
		},
		{
			name:    "blank lines and indented comments are skipped",
			content: "a\n\n   \n  # indented comment\nb\n",
			want:    []string{"a", "b"},
		},
		{
			name:    "duplicates collapse to first occurrence",
			content: "b\na\nb\na\nc\n",
			want:    []string{"b", "a", "c"},
		},
		{
			name:    "separator lines are not identifiers when commented",
			content: "# x\n# " + sep + "\nid1\n",
			want:    []string{"id1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := ParseBatch("batches/test.txt", tt.content)
			assert.Equal(t, tt.want, b.Files)
			assert.Equal(t, len(tt.want), b.Len())
			assert.Len(t, b.FileSet(), len(tt.want))
			for _, id := range tt.want {
				assert.True(t, b.Contains(id), "batch should contain %q", id)
			}
		})
	}
}

// TestParseBatch_Identity checks that a batch is identified by the stem of
// its defining file.
func TestParseBatch_Identity(t *testing.T) {
	b := ParseBatch("batches/2022-jun.txt", "x\n")
	assert.Equal(t, "2022-jun.txt", b.Name)
	assert.Equal(t, "2022-jun", b.Stem)
	assert.Equal(t, "batches/2022-jun.txt", b.Path)
}

// TestParseBatch_Comment covers the separator and early-exit rules of the
// comment extraction.
func TestParseBatch_Comment(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "stops before first identifier after one separator",
			content: "# Title\n# desc\n" + sep + "\nfile1\n" + sep + "\nfile2\n",
			want:    "Title\ndesc\n",
		},
		{
			name:    "stops at second separator",
			content: "# Title\n" + sep + "\n# Section\n# notes\n" + sep + "\n# hidden\nfile1\n",
			want:    "Title\nSection\nnotes\n",
		},
		{
			name:    "commented separators count as separators",
			content: "# " + sep + "\n# Title\n# " + sep + "\n# after\n",
			want:    "Title\n",
		},
		{
			name:    "no separators stops at first identifier",
			content: "# one\n## two\nid\n# three\n",
			want:    "one\ntwo\n",
		},
		{
			name:    "identifier on first line yields empty comment",
			content: "id\n# late comment\n",
			want:    "",
		},
		{
			name:    "blank comment lines are kept as empty lines",
			content: "# Title\n#\n#   \n# body\nid\n",
			want:    "Title\n\n\nbody\n",
		},
		{
			name:    "blank raw line ends the comment",
			content: "# Title\n\n# unreachable\n",
			want:    "Title\n",
		},
		{
			name:    "empty content",
			content: "",
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := ParseBatch("batches/b", tt.content)
			assert.Equal(t, tt.want, b.Comment)
		})
	}
}

// TestBatch_Lines verifies that raw content lines are preserved in order.
func TestBatch_Lines(t *testing.T) {
	b := ParseBatch("batches/b", "# c\n\na\n")
	require.Equal(t, []string{"# c", "", "a"}, b.Lines())
	assert.Nil(t, ParseBatch("batches/empty", "").Lines())
}
