package main

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/clamsproject/dashboard/internal/testutils"
)

// workspace writes both fixture repositories to fresh directories.
func workspace(t *testing.T) (annotations, evaluations string) {
	t.Helper()
	annotations = filepath.Join(t.TempDir(), "annotations")
	evaluations = filepath.Join(t.TempDir(), "evaluations")
	testutils.WriteTree(t, annotations, testutils.AnnotationTree())
	testutils.WriteTree(t, evaluations, testutils.EvaluationTree())
	return annotations, evaluations
}

// run executes the CLI with a silent logger and returns its output.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	a := &app{newLogger: func(bool) (*zap.Logger, error) { return zap.NewNop(), nil }}
	cmd := newRootCmdWith(a)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSummary(t *testing.T) {
	ann, eval := workspace(t)
	out, err := run(t, "--annotations", ann, "--evaluations", eval, "summary")
	require.NoError(t, err)

	assert.Contains(t, out, "not under version control")
	assert.Contains(t, out, testutils.JuneBatch)
	assert.Contains(t, out, "10 files")
	assert.Contains(t, out, testutils.SceneTask)
	assert.Contains(t, out, "12 gold files")
	assert.Contains(t, out, testutils.SceneEval)
	assert.Contains(t, out, "2022-jn")
}

func TestCompare(t *testing.T) {
	ann, eval := workspace(t)
	out, err := run(t, "--annotations", ann, "--evaluations", eval, "compare", testutils.SceneTask, testutils.JuneBatch)
	require.NoError(t, err)

	assert.Regexp(t, `in both\s+8\n`, out)
	assert.Regexp(t, `only in task scene-recognition\s+4\n`, out)
	assert.Regexp(t, `only in batch 2022-jun\s+2\n`, out)

	_, err = run(t, "--annotations", ann, "--evaluations", eval, "compare", "nope", testutils.JuneBatch)
	assert.Error(t, err)

	_, err = run(t, "--annotations", ann, "--evaluations", eval, "compare", testutils.SceneTask)
	assert.Error(t, err, "two arguments are required")
}

func TestUsage(t *testing.T) {
	ann, eval := workspace(t)

	t.Run("known batch", func(t *testing.T) {
		out, err := run(t, "--annotations", ann, "--evaluations", eval, "usage", testutils.JuneBatch)
		require.NoError(t, err)
		assert.Contains(t, out, "Usage in system predictions:")
		assert.Contains(t, out, testutils.GoodPreds)
		assert.Contains(t, out, "Usage in system reports:")
		assert.NotContains(t, out, "is not in the annotation repository")
	})

	t.Run("dangling batch", func(t *testing.T) {
		out, err := run(t, "--annotations", ann, "--evaluations", eval, "usage", "2022-jn")
		require.NoError(t, err)
		assert.Contains(t, out, `batch "2022-jn" is not in the annotation repository (did you mean: 2022-jun)`)
		assert.Contains(t, out, testutils.SceneEval)
	})
}

func TestCheck_Clean(t *testing.T) {
	ann, eval := workspace(t)
	out, err := run(t, "--annotations", ann, "--evaluations", eval, "check")
	require.NoError(t, err, "naming warnings never fail the check")
	assert.Contains(t, out, "WARNING:")
	assert.Contains(t, out, `"2022-jn"`)
}

// TestCheck_DirtyWorkingTree needs a git binary to build a real working
// copy with an uncommitted change.
func TestCheck_DirtyWorkingTree(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	ann, eval := workspace(t)
	git := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", append([]string{"-c", "user.name=test", "-c", "user.email=test@example.com", "-c", "commit.gpgsign=false"}, args...)...)
		cmd.Dir = ann
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, string(out))
	}
	git("init", "--quiet")
	git("add", ".")
	git("commit", "--quiet", "-m", "fixtures")
	require.NoError(t, os.WriteFile(filepath.Join(ann, "README.md"), []byte("changed\n"), 0o644))

	out, err := run(t, "--annotations", ann, "--evaluations", eval, "check")
	require.Error(t, err)
	assert.ErrorIs(t, err, errFatalWarnings)
	assert.Contains(t, out, "INFO: using")
	assert.Contains(t, out, "README.md")
}

func TestExport(t *testing.T) {
	ann, eval := workspace(t)
	out := t.TempDir()

	stdout, err := run(t, "--annotations", ann, "--evaluations", eval, "export", "--out", out, "--html")
	require.NoError(t, err)
	assert.Contains(t, stdout, "files to "+out)

	for _, name := range []string{
		"index.md",
		"index.html",
		filepath.Join("tasks", testutils.SceneTask, "index.md"),
		filepath.Join("batches", testutils.JuneBatch, "index.md"),
		filepath.Join("evaluations", testutils.SceneEval, "index.md"),
	} {
		assert.FileExists(t, filepath.Join(out, name))
	}
}

func TestReadme(t *testing.T) {
	ann, eval := workspace(t)

	out, err := run(t, "--annotations", ann, "--evaluations", eval, "readme", "--raw", testutils.SceneTask)
	require.NoError(t, err)
	assert.Equal(t, "# Scene recognition\n", out)

	out, err = run(t, "--annotations", ann, "--evaluations", eval, "readme")
	require.NoError(t, err)
	assert.Contains(t, out, "AAPB annotations")

	_, err = run(t, "--annotations", ann, "--evaluations", eval, "readme", "nope")
	assert.Error(t, err)
}

func TestConfigErrors(t *testing.T) {
	ann, _ := workspace(t)

	_, err := run(t, "--annotations", ann, "--evaluations", ann, "summary")
	assert.ErrorContains(t, err, "must differ")

	_, err = run(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "summary")
	assert.Error(t, err)

	cfg := filepath.Join(t.TempDir(), "dashboard.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("unknown_key: 1\n"), 0o644))
	_, err = run(t, "--config", cfg, "summary")
	assert.Error(t, err)
}
