package patch

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, string) {
	t.Helper()
	workDir := t.TempDir()
	return New(func() string { return workDir }), workDir
}

func writeFile(t *testing.T, workDir, name, content string) string {
	t.Helper()
	target := filepath.Join(workDir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(target), 0o755))
	require.NoError(t, os.WriteFile(target, []byte(content), 0o644))
	return target
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestService_StrReplace(t *testing.T) {
	service, workDir := newTestService(t)
	target := writeFile(t, workDir, "main.txt", "alpha\nbeta\ngamma\n")

	var output EditOutput
	err := service.Edit(context.Background(), &EditInput{
		Path: "main.txt", Command: CommandStrReplace, OldStr: "beta", NewStr: "delta",
	}, &output)
	require.NoError(t, err)
	assert.True(t, output.OK)
	assert.Equal(t, "alpha\ndelta\ngamma\n", readFile(t, target))
	assert.Contains(t, output.Diff, "-beta")
	assert.Contains(t, output.Diff, "+delta")
}

func TestService_StrReplaceSoftFailures(t *testing.T) {
	service, workDir := newTestService(t)
	writeFile(t, workDir, "main.txt", "alpha\n")

	testCases := []struct {
		description string
		input       *EditInput
		expect      string
	}{
		{
			description: "missing file",
			input:       &EditInput{Path: "absent.txt", Command: CommandStrReplace, OldStr: "x", NewStr: "y"},
			expect:      "File not found",
		},
		{
			description: "no match",
			input:       &EditInput{Path: "main.txt", Command: CommandStrReplace, OldStr: "zeta", NewStr: "y"},
			expect:      "oldStr not found",
		},
		{
			description: "empty oldStr",
			input:       &EditInput{Path: "main.txt", Command: CommandStrReplace, NewStr: "y"},
			expect:      "oldStr is required",
		},
		{
			description: "unknown command",
			input:       &EditInput{Path: "main.txt", Command: "rewrite"},
			expect:      "Unsupported edit command",
		},
	}
	for _, testCase := range testCases {
		var output EditOutput
		err := service.Edit(context.Background(), testCase.input, &output)
		require.NoError(t, err, testCase.description)
		assert.False(t, output.OK, testCase.description)
		assert.Contains(t, output.Content, testCase.expect, testCase.description)
	}
}

func TestService_ApplyScript(t *testing.T) {
	service, workDir := newTestService(t)
	writeFile(t, workDir, "config.yaml", "name: old\nport: 8000\n")

	script := `*** Begin Patch
*** Update File: config.yaml
@@
-name: old
+name: new
*** Add File: notes.txt
+first line
+second line
*** End Patch`

	var output EditOutput
	err := service.Edit(context.Background(), &EditInput{Command: CommandApplyPatch, Patch: script}, &output)
	require.NoError(t, err)
	assert.True(t, output.OK)
	assert.Len(t, output.Changed, 2)
	assert.Equal(t, "name: new\nport: 8000\n", readFile(t, filepath.Join(workDir, "config.yaml")))
	assert.Equal(t, "first line\nsecond line\n", readFile(t, filepath.Join(workDir, "notes.txt")))
}

func TestService_ApplyScriptDeleteAndMove(t *testing.T) {
	service, workDir := newTestService(t)
	writeFile(t, workDir, "stale.txt", "old\n")
	writeFile(t, workDir, "renamed.txt", "keep\nchange\n")

	script := `*** Begin Patch
*** Delete File: stale.txt
*** Update File: renamed.txt
*** Move to: fresh.txt
@@
-change
+changed
*** End Patch`

	var output EditOutput
	err := service.Edit(context.Background(), &EditInput{Command: CommandApplyPatch, Patch: script}, &output)
	require.NoError(t, err)
	assert.True(t, output.OK)
	_, statErr := os.Stat(filepath.Join(workDir, "stale.txt"))
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(filepath.Join(workDir, "renamed.txt"))
	assert.True(t, os.IsNotExist(statErr))
	assert.Equal(t, "keep\nchanged\n", readFile(t, filepath.Join(workDir, "fresh.txt")))
}

func TestService_ApplyUnifiedDiff(t *testing.T) {
	service, workDir := newTestService(t)
	writeFile(t, workDir, "app.go", "package app\n\nvar value = 1\n")

	patch := `--- a/app.go
+++ b/app.go
@@ -1,3 +1,3 @@
 package app

-var value = 1
+var value = 2
`
	var output EditOutput
	err := service.Edit(context.Background(), &EditInput{Command: CommandApplyPatch, Patch: patch}, &output)
	require.NoError(t, err)
	assert.True(t, output.OK, output.Content)
	assert.Equal(t, "package app\n\nvar value = 2\n", readFile(t, filepath.Join(workDir, "app.go")))
}

func TestService_ApplyPatchMalformed(t *testing.T) {
	service, _ := newTestService(t)
	var output EditOutput
	err := service.Edit(context.Background(), &EditInput{Command: CommandApplyPatch, Patch: "*** Begin Patch\n*** Bogus"}, &output)
	require.NoError(t, err)
	assert.False(t, output.OK)
	assert.Contains(t, output.Content, "Error applying patch")
}

func TestParseScript(t *testing.T) {
	ops, err := ParseScript(`*** Begin Patch
*** Add File: a.txt
+hello
*** Delete File: b.txt
*** Update File: c.txt
@@ section
-old
+new
*** End Patch`)
	require.NoError(t, err)
	require.Len(t, ops, 3)

	add, ok := ops[0].(AddOp)
	require.True(t, ok)
	assert.Equal(t, "a.txt", add.Path)
	assert.Equal(t, "hello\n", add.Contents)

	del, ok := ops[1].(DeleteOp)
	require.True(t, ok)
	assert.Equal(t, "b.txt", del.Path)

	update, ok := ops[2].(UpdateOp)
	require.True(t, ok)
	assert.Equal(t, "c.txt", update.Path)
	require.Len(t, update.Chunks, 1)
	assert.Equal(t, "section", update.Chunks[0].Context)
	assert.Equal(t, []string{"old"}, update.Chunks[0].OldLines)
	assert.Equal(t, []string{"new"}, update.Chunks[0].NewLines)
}

func TestParseScript_MissingEnd(t *testing.T) {
	_, err := ParseScript("*** Begin Patch\n*** Add File: a.txt\n+hi\n")
	assert.Error(t, err)
}

func TestApplyUpdate_FuzzyWhitespace(t *testing.T) {
	content := []byte("func main() {\n\tvalue := 1\n}\n")
	op := UpdateOp{Chunks: []Chunk{{
		OldLines: []string{"    value := 1"},
		NewLines: []string{"\tvalue := 2"},
	}}}
	lines := applyUpdate(content, op)
	assert.Equal(t, []string{"func main() {", "\tvalue := 2", "}"}, lines)
}
