package domain

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestStem covers extension stripping for gold identifiers.
func TestStem(t *testing.T) {
	tests := map[string]string{
		"a.json":     "a",
		"x.tar.gz":   "x.tar",
		"noext":      "noext",
		".gitignore": ".gitignore",
		"cpb-1.mmif": "cpb-1",
	}
	for in, want := range tests {
		assert.Equal(t, want, Stem(in), "Stem(%q)", in)
	}
}

// TestNewGoldFile verifies identifiers for flat and nested gold files.
func TestNewGoldFile(t *testing.T) {
	gf := NewGoldFile("drop1/b.json")
	assert.Equal(t, GoldFile{Name: "b.json", RelPath: "drop1/b.json", ID: "b"}, gf)
}

// TestTask_DuplicateIdentifiers checks that Len counts files while the
// identifier set collapses duplicates.
func TestTask_DuplicateIdentifiers(t *testing.T) {
	task := NewTask(TaskParams{
		Path: "ner",
		GoldFiles: []GoldFile{
			NewGoldFile("a.json"),
			NewGoldFile("drop1/a.tsv"),
			NewGoldFile("drop1/b.tsv"),
		},
	})

	assert.Equal(t, 3, task.Len())
	assert.Equal(t, []string{"a", "a", "b"}, task.GoldIDs())
	assert.Len(t, task.GoldIDSet(), 2)
}

// TestTask_Content reads gold files and data drop files lazily.
func TestTask_Content(t *testing.T) {
	fsys := fstest.MapFS{
		"ner/golds/a.txt":        {Data: []byte("gold a")},
		"ner/golds/drop1/b.txt":  {Data: []byte("gold b")},
		"ner/230101/doc.json":    {Data: []byte(`{"b":1,"a":[1,2]}`)},
		"ner/230101/notes.txt":   {Data: []byte("raw {not json}")},
		"ner/230101/broken.json": {Data: []byte(`{"open":`)},
	}
	dd := NewDataDrop(fsys, "ner/230101", []string{"broken.json", "doc.json", "notes.txt"})
	task := NewTask(TaskParams{
		Path:          "ner",
		GoldDirectory: "ner/golds",
		GoldFiles:     []GoldFile{NewGoldFile("a.txt"), NewGoldFile("drop1/b.txt")},
		DataDrops:     []*DataDrop{dd},
		FS:            fsys,
	})

	content, err := task.GoldContent("drop1/b.txt")
	require.NoError(t, err)
	assert.Equal(t, "gold b", content)

	content, err = task.GoldContent("")
	require.NoError(t, err)
	assert.Empty(t, content)

	_, err = task.GoldContent("missing.txt")
	require.ErrorIs(t, err, ErrNotFound)

	got, ok := task.DataDrop("230101")
	require.True(t, ok)
	assert.Equal(t, 3, got.Len())
	assert.Equal(t, []string{"230101"}, task.DataDropNames())

	pretty, err := got.FileContent("doc.json")
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"b\": 1,\n  \"a\": [\n    1,\n    2\n  ]\n}", pretty)

	raw, err := got.FileContent("notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "raw {not json}", raw)

	broken, err := got.FileContent("broken.json")
	require.NoError(t, err)
	assert.Equal(t, `{"open":`, broken)

	_, err = got.FileContent("absent.json")
	require.ErrorIs(t, err, ErrNotFound)

	_, ok = task.DataDrop("999999")
	assert.False(t, ok)
}
