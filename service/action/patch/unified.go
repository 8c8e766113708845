package patch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	sgdiff "github.com/sourcegraph/go-diff/diff"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
)

// Unified-diff application. Scripts that do not use the edit-script format
// are treated as standard multi-file unified diffs.

// applyUnified applies patchText to the filesystem and returns the affected
// resolved paths.
func applyUnified(ctx context.Context, fs afs.Service, resolve func(string) string, patchText string) ([]string, error) {
	fileDiffs, err := sgdiff.ParseMultiFileDiff([]byte(patchText))
	if err != nil {
		return nil, fmt.Errorf("failed to parse patch: %w", err)
	}
	var changed []string
	for _, fileDiff := range fileDiffs {
		origName := strings.TrimPrefix(fileDiff.OrigName, "a/")
		newName := strings.TrimPrefix(fileDiff.NewName, "b/")

		switch {
		case fileDiff.OrigName == "/dev/null":
			var content bytes.Buffer
			if err = patchLines(nil, fileDiff.Hunks, &content); err != nil {
				return changed, err
			}
			target := resolve(newName)
			if err = fs.Upload(ctx, target, file.DefaultFileOsMode, bytes.NewReader(content.Bytes())); err != nil {
				return changed, fmt.Errorf("failed to create %v: %w", target, err)
			}
			changed = append(changed, target)
		case fileDiff.NewName == "/dev/null":
			target := resolve(origName)
			if err = fs.Delete(ctx, target); err != nil {
				return changed, fmt.Errorf("failed to delete %v: %w", target, err)
			}
			changed = append(changed, target)
		default:
			source := resolve(origName)
			original, err := fs.DownloadWithURL(ctx, source)
			if err != nil {
				return changed, fmt.Errorf("failed to read %v: %w", source, err)
			}
			var content bytes.Buffer
			if err = patchLines(original, fileDiff.Hunks, &content); err != nil {
				return changed, fmt.Errorf("%v: %w", source, err)
			}
			target := source
			if origName != newName {
				target = resolve(newName)
			}
			if err = fs.Upload(ctx, target, file.DefaultFileOsMode, bytes.NewReader(content.Bytes())); err != nil {
				return changed, fmt.Errorf("failed to write %v: %w", target, err)
			}
			if target != source {
				_ = fs.Delete(ctx, source)
			}
			changed = append(changed, target)
		}
	}
	return changed, nil
}

// patchLines walks the original content sequentially, verifies every context
// and delete line, and emits additions. A mismatch aborts rather than
// producing a silently corrupted file.
func patchLines(original []byte, hunks []*sgdiff.Hunk, writer io.Writer) error {
	lines := strings.SplitAfter(string(original), "\n")
	index := 0

	sameLine := func(a, b string) bool {
		if a == b {
			return true
		}
		// newline-at-EOF equivalence between the trailing empty split
		// element and a bare "\n" context line
		return (a == "" && b == "\n") || (a == "\n" && b == "")
	}

	for _, hunk := range hunks {
		for index < int(hunk.OrigStartLine)-1 && index < len(lines) {
			if _, err := io.WriteString(writer, lines[index]); err != nil {
				return err
			}
			index++
		}
		for _, bodyLine := range strings.SplitAfter(string(hunk.Body), "\n") {
			if bodyLine == "" {
				continue
			}
			tag, text := bodyLine[0], bodyLine[1:]
			switch tag {
			case ' ':
				if index >= len(lines) || !sameLine(lines[index], text) {
					return fmt.Errorf("context mismatch at line %d", index+1)
				}
				if !(lines[index] == "" && text == "\n") {
					if _, err := io.WriteString(writer, text); err != nil {
						return err
					}
				}
				index++
			case '-':
				if index >= len(lines) || !sameLine(lines[index], text) {
					return fmt.Errorf("delete mismatch at line %d", index+1)
				}
				index++
			case '+':
				if _, err := io.WriteString(writer, text); err != nil {
					return err
				}
			}
		}
	}
	for ; index < len(lines); index++ {
		if _, err := io.WriteString(writer, lines[index]); err != nil {
			return err
		}
	}
	return nil
}
