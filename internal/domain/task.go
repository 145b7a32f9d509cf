package domain

import (
	"io/fs"
	"path"
)

// Qualification records why a directory was indexed as a task or an
// evaluation. It is resolved once at scan time.
type Qualification int

const (
	// ByConvention means the directory matched the layout heuristic: a golds
	// subdirectory for tasks, the name suffix for evaluations.
	ByConvention Qualification = iota
	// ByManifest means the directory carries an explicit manifest file.
	ByManifest
)

// String implements fmt.Stringer.
func (q Qualification) String() string {
	if q == ByManifest {
		return "manifest"
	}
	return "convention"
}

// Manifest holds the optional descriptive metadata of a task or evaluation
// manifest file.
type Manifest struct {
	Title       string   `yaml:"title" json:"title,omitempty"`
	Description string   `yaml:"description" json:"description,omitempty"`
	Tags        []string `yaml:"tags" json:"tags,omitempty"`
	// Ignore excludes a directory that would otherwise match the layout
	// heuristic.
	Ignore bool `yaml:"ignore" json:"-"`
}

// GoldFile is a reference annotation file inside a task's golds directory.
type GoldFile struct {
	// Name is the base name of the file.
	Name string `json:"name"`
	// RelPath is the path relative to the golds directory, for example
	// "drop1/b.json" for a nested gold file.
	RelPath string `json:"rel_path"`
	// ID is the identifier used for batch comparison: Name without extension.
	ID string `json:"id"`
}

// NewGoldFile creates a GoldFile from its path relative to the golds
// directory.
func NewGoldFile(relPath string) GoldFile {
	name := path.Base(relPath)
	return GoldFile{Name: name, RelPath: relPath, ID: Stem(name)}
}

// Task is one annotation task directory. Gold files, data drops and the
// optional readme and process script are all read at construction time;
// only gold and data-drop file contents are read on demand.
type Task struct {
	Node

	Readme        string        `json:"readme"`
	Process       string        `json:"process"`
	GoldDirectory string        `json:"gold_directory"`
	GoldFiles     []GoldFile    `json:"gold_files"`
	Qualification Qualification `json:"qualification"`
	Manifest      *Manifest     `json:"manifest,omitempty"`

	DataDrops map[string]*DataDrop `json:"-"`

	goldIDSet map[string]struct{}
	fsys      fs.FS
}

// TaskParams collects everything a loader resolves for a task directory.
type TaskParams struct {
	Path          string
	Readme        string
	Process       string
	GoldDirectory string
	GoldFiles     []GoldFile
	DataDrops     []*DataDrop
	Qualification Qualification
	Manifest      *Manifest
	FS            fs.FS
}

// NewTask assembles a Task and computes its derived identifier set.
func NewTask(p TaskParams) *Task {
	t := &Task{
		Node:          NewNode(p.Path),
		Readme:        p.Readme,
		Process:       p.Process,
		GoldDirectory: p.GoldDirectory,
		GoldFiles:     p.GoldFiles,
		Qualification: p.Qualification,
		Manifest:      p.Manifest,
		DataDrops:     make(map[string]*DataDrop, len(p.DataDrops)),
		goldIDSet:     make(map[string]struct{}, len(p.GoldFiles)),
		fsys:          p.FS,
	}
	for _, dd := range p.DataDrops {
		t.DataDrops[dd.Name] = dd
	}
	for _, gf := range p.GoldFiles {
		t.goldIDSet[gf.ID] = struct{}{}
	}
	return t
}

// Len returns the number of gold files. Files that share an identifier are
// each counted.
func (t *Task) Len() int { return len(t.GoldFiles) }

// GoldIDs returns the identifier of every gold file in order, duplicates
// included.
func (t *Task) GoldIDs() []string {
	ids := make([]string, len(t.GoldFiles))
	for i, gf := range t.GoldFiles {
		ids[i] = gf.ID
	}
	return ids
}

// GoldIDSet returns the distinct gold identifiers. The map is shared and
// must not be modified.
func (t *Task) GoldIDSet() map[string]struct{} { return t.goldIDSet }

// DataDropNames returns the data drop names in ascending order.
func (t *Task) DataDropNames() []string { return sortedKeys(t.DataDrops) }

// DataDrop looks up a data drop by name.
func (t *Task) DataDrop(name string) (*DataDrop, bool) {
	dd, ok := t.DataDrops[name]
	return dd, ok
}

// GoldContent reads a gold file given its path relative to the golds
// directory. An empty relPath yields an empty string.
func (t *Task) GoldContent(relPath string) (string, error) {
	if relPath == "" {
		return "", nil
	}
	return readText(t.fsys, path.Join(t.GoldDirectory, relPath))
}

// DataDrop is a dated delivery directory inside a task. Its name starts with
// six digits; the digits are not interpreted as a date.
type DataDrop struct {
	Node

	// Files lists the member file names in ascending order.
	Files []string `json:"files"`

	fsys fs.FS
}

// NewDataDrop creates a DataDrop for the directory at p with the given
// member file names, which must already be sorted.
func NewDataDrop(fsys fs.FS, p string, files []string) *DataDrop {
	return &DataDrop{Node: NewNode(p), Files: files, fsys: fsys}
}

// Len returns the number of member files.
func (d *DataDrop) Len() int { return len(d.Files) }

// FileNames returns the member file names.
func (d *DataDrop) FileNames() []string { return d.Files }

// FileContent reads a member file. JSON files are pretty-printed.
func (d *DataDrop) FileContent(name string) (string, error) {
	return readDisplayText(d.fsys, path.Join(d.Path, name), ".json")
}
