package testutils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
)

// Batch and task names used by the standard fixtures.
const (
	SceneTask   = "scene-recognition"
	ChyronTask  = "newshour-chyron"
	JuneBatch   = "2022-jun"
	SceneEval   = "sr-eval"
	GoodPreds   = "preds@swt-v1@2022-jun"
	ShortPreds  = "preds@onlytwo"
	GoodReport  = "report-2023@swt@2022-jun.md"
	TypoReport  = "report-2023@swt@2022-jn.md"
	DataDrop    = "230314-aapb"
	EmptyTask   = "no-golds"
	IgnoredTask = "ignored"

	// ManifestTask has a task manifest but no golds directory.
	ManifestTask = "manifest-only"
)

// SceneGoldIDs are the twelve gold identifiers of the scene task. The first
// eight appear in the June batch.
func SceneGoldIDs() []string {
	ids := make([]string, 12)
	for i := range ids {
		ids[i] = fmt.Sprintf("cpb-aacip-%03d", i)
	}
	return ids
}

// JuneBatchIDs are the ten identifiers of the June batch: eight shared with
// the scene task and two of its own.
func JuneBatchIDs() []string {
	return append(SceneGoldIDs()[:8:8], "cpb-aacip-900", "cpb-aacip-901")
}

// AnnotationTree returns an in-memory annotation repository with two tasks
// and one batch. The scene task keeps its gold files flat; the chyron task
// nests them one level deep per data drop.
func AnnotationTree() fstest.MapFS {
	fsys := fstest.MapFS{}
	add := func(name, data string) { fsys[name] = &fstest.MapFile{Data: []byte(data)} }

	add("README.md", "# AAPB annotations\n")
	add("batches/2022-jun.txt", "# June batch\n"+
		"# "+strings.Repeat("-", 50)+"\n"+
		"# author: someone\n"+
		strings.Join(JuneBatchIDs(), "\n")+"\n"+
		JuneBatchIDs()[0]+"\n")

	add(SceneTask+"/readme.md", "# Scene recognition\n")
	add(SceneTask+"/process.py", "print('process')\n")
	for _, id := range SceneGoldIDs() {
		add(SceneTask+"/golds/"+id+".csv", id+"\n")
	}
	add(SceneTask+"/"+DataDrop+"/cpb-aacip-000.json", `{"frames":[1,2]}`)
	add(SceneTask+"/"+DataDrop+"/notes.txt", "raw notes")
	add(SceneTask+"/not-a-drop/x.txt", "x")

	add(ChyronTask+"/golds/c-0.tsv", "a\tb\n")
	add(ChyronTask+"/golds/drop1/c-1.tsv", "a\tb\n")
	add(ChyronTask+"/golds/drop1/c-2.tsv", "a\tb\n")
	add(ChyronTask+"/golds/drop2/c-3.tsv", "a\tb\n")

	add(EmptyTask+"/readme.md", "not a task\n")

	add(IgnoredTask+"/golds/x.txt", "x")
	add(IgnoredTask+"/task.yaml", "ignore: true\n")

	add(ManifestTask+"/task.yaml", "title: Manifest only\ntags: [new]\n")
	add(ManifestTask+"/readme.md", "declared by manifest\n")

	add(".git/HEAD", "ref: refs/heads/main\n")
	return fsys
}

// EvaluationTree returns an in-memory evaluation repository with one
// evaluation holding a well-formed and a malformed prediction batch, a
// report for the June batch and a report for a misspelled batch.
func EvaluationTree() fstest.MapFS {
	fsys := fstest.MapFS{}
	add := func(name, data string) { fsys[name] = &fstest.MapFile{Data: []byte(data)} }

	add("README.md", "# AAPB evaluations\n")
	add(SceneEval+"/README.md", "# SR evaluation\n")
	add(SceneEval+"/evaluate.py", "print('eval')\n")
	add(SceneEval+"/helper.sh", "echo\n")

	add(SceneEval+"/"+GoodPreds+"/README.md", "produced by swt v1\n")
	add(SceneEval+"/"+GoodPreds+"/cpb-aacip-000.mmif", `{"views":[]}`)
	add(SceneEval+"/"+GoodPreds+"/cpb-aacip-001.mmif", `{"views":[]}`)
	add(SceneEval+"/"+GoodPreds+"/log.txt", "ignored")
	add(SceneEval+"/"+ShortPreds+"/x.mmif", "{}")

	add(SceneEval+"/"+GoodReport, "| metric | value |\n")
	add(SceneEval+"/"+TypoReport, "| metric | value |\n")

	add("scratch/notes.md", "not an evaluation\n")
	return fsys
}

// WriteTree materializes an in-memory tree under dir.
func WriteTree(t testing.TB, dir string, fsys fstest.MapFS) {
	t.Helper()
	for name, f := range fsys {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("create %s: %v", filepath.Dir(p), err)
		}
		if err := os.WriteFile(p, f.Data, 0o644); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}
}
