package domain

import (
	"strings"
	"testing"
)

// FuzzParseBatch checks the batch invariants on arbitrary content: every
// identifier is a trimmed, non-comment line, identifiers are unique and the
// parser never fails.
func FuzzParseBatch(f *testing.F) {
	testcases := []string{
		"",
		"a\nb\n",
		"# Title\n# " + strings.Repeat("-", SeparatorWidth) + "\n# desc\nx\n",
		"  a  \n\n#c\na\r\n",
		"#\n#\n#\n",
	}
	for _, tc := range testcases {
		f.Add(tc)
	}

	f.Fuzz(func(t *testing.T, content string) {
		b := ParseBatch("batches/fuzz.txt", content)

		seen := make(map[string]struct{}, len(b.Files))
		for _, id := range b.Files {
			if id == "" || id != strings.TrimSpace(id) || strings.HasPrefix(id, "#") {
				t.Fatalf("invalid identifier %q", id)
			}
			if _, dup := seen[id]; dup {
				t.Fatalf("duplicate identifier %q", id)
			}
			seen[id] = struct{}{}
			if !b.Contains(id) {
				t.Fatalf("Contains(%q) = false", id)
			}
		}
		if b.Len() != len(b.FileSet()) {
			t.Fatalf("Len() = %d, set has %d", b.Len(), len(b.FileSet()))
		}

		task := NewTask(TaskParams{Path: "t", GoldFiles: []GoldFile{NewGoldFile("x.json")}})
		c := Compare(task, b)
		if c.InBoth+c.InFirst != len(task.GoldIDSet()) || c.InBoth+c.InSecond != b.Len() {
			t.Fatalf("comparison %+v does not partition the sets", c)
		}
	})
}
