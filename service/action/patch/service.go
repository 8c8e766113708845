// Package patch implements workspace file editing: single-string replacement
// and multi-file patch application in either the "*** Begin Patch" edit
// script format or standard unified diff. Predictable failures (missing
// file, no match, malformed patch) are reported as descriptive content
// inside a successful result.
package patch

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/viant/afs"
	"github.com/viant/afs/file"

	"github.com/runbox/runbox/model/types"
)

const Name = "workspace/patch"

const (
	// CommandStrReplace replaces OldStr with NewStr in one file.
	CommandStrReplace = "str_replace"
	// CommandApplyPatch applies a multi-file patch script.
	CommandApplyPatch = "apply_patch"
)

// Service provides workspace file editing.
type Service struct {
	fs  afs.Service
	cwd func() string
}

// New creates a patch service; cwd supplies the directory relative paths
// resolve against.
func New(cwd func() string) *Service {
	return &Service{fs: afs.New(), cwd: cwd}
}

func (s *Service) Name() string {
	return Name
}

func (s *Service) Methods() types.Signatures {
	return []types.Signature{
		{
			Name: "edit",
			Description: `Edits workspace files.
Use command "str_replace" with path, oldStr and newStr to replace a string in one file.
Use command "apply_patch" with patch to apply a multi-file patch, either a
"*** Begin Patch" edit script or a unified diff.`,
			Input:  reflect.TypeOf(&EditInput{}),
			Output: reflect.TypeOf(&EditOutput{}),
		},
	}
}

func (s *Service) Method(name string) (types.Executable, error) {
	switch strings.ToLower(name) {
	case "edit":
		return s.edit, nil
	default:
		return nil, types.NewMethodNotFoundError(name)
	}
}

func (s *Service) edit(ctx context.Context, in, out interface{}) error {
	input, ok := in.(*EditInput)
	if !ok {
		return types.NewInvalidInputError(in)
	}
	output, ok := out.(*EditOutput)
	if !ok {
		return types.NewInvalidOutputError(out)
	}
	return s.Edit(ctx, input, output)
}

// EditInput defines parameters for an edit operation
type EditInput struct {
	Path    string `json:"path,omitempty" description:"File to edit; required for str_replace"`
	Command string `json:"command" required:"true" description:"str_replace or apply_patch"`
	OldStr  string `json:"oldStr,omitempty" description:"Text to replace (str_replace)"`
	NewStr  string `json:"newStr,omitempty" description:"Replacement text (str_replace)"`
	Patch   string `json:"patch,omitempty" description:"Patch text (apply_patch)"`
}

// EditOutput reports the edit outcome
type EditOutput struct {
	Content string   `json:"content" description:"Status message or failure description"`
	Path    string   `json:"path,omitempty" description:"Resolved path for single-file edits"`
	Changed []string `json:"changed,omitempty" description:"Paths affected by a patch"`
	Diff    string   `json:"diff,omitempty" description:"Unified diff of the applied change"`
	OK      bool     `json:"ok" description:"Whether the edit was applied"`
}

// Edit dispatches on input.Command.
func (s *Service) Edit(ctx context.Context, input *EditInput, output *EditOutput) error {
	switch strings.ToLower(input.Command) {
	case CommandStrReplace:
		return s.strReplace(ctx, input, output)
	case CommandApplyPatch:
		return s.applyPatch(ctx, input, output)
	default:
		output.Content = fmt.Sprintf("Unsupported edit command: %v. Use %v or %v", input.Command, CommandStrReplace, CommandApplyPatch)
		return nil
	}
}

func (s *Service) strReplace(ctx context.Context, input *EditInput, output *EditOutput) error {
	location := s.resolve(input.Path)
	output.Path = location
	if input.OldStr == "" {
		output.Content = "oldStr is required for str_replace"
		return nil
	}
	if exists, err := s.fs.Exists(ctx, location); err == nil && !exists {
		output.Content = fmt.Sprintf("File not found: %v", location)
		return nil
	}
	original, err := s.fs.DownloadWithURL(ctx, location)
	if err != nil {
		output.Content = fmt.Sprintf("Error reading file %v: %v", location, err)
		return nil
	}
	if !bytes.Contains(original, []byte(input.OldStr)) {
		output.Content = fmt.Sprintf("oldStr not found in %v", location)
		return nil
	}
	updated := bytes.ReplaceAll(original, []byte(input.OldStr), []byte(input.NewStr))
	if err = s.fs.Upload(ctx, location, file.DefaultFileOsMode, bytes.NewReader(updated)); err != nil {
		output.Content = fmt.Sprintf("Error writing file %v: %v", location, err)
		return nil
	}
	output.Diff = unifiedDiff(original, updated, input.Path)
	output.Content = "File edited successfully"
	output.OK = true
	return nil
}

func (s *Service) applyPatch(ctx context.Context, input *EditInput, output *EditOutput) error {
	if strings.TrimSpace(input.Patch) == "" {
		output.Content = "patch is required for apply_patch"
		return nil
	}
	var changed []string
	var err error
	if IsScript(input.Patch) {
		changed, err = s.applyScript(ctx, input.Patch)
	} else {
		changed, err = applyUnified(ctx, s.fs, s.resolve, input.Patch)
	}
	output.Changed = changed
	if err != nil {
		output.Content = fmt.Sprintf("Error applying patch: %v", err)
		return nil
	}
	output.Content = fmt.Sprintf("Patch applied: %d file(s) changed", len(changed))
	output.OK = true
	return nil
}

// applyScript executes a parsed edit script against the filesystem.
func (s *Service) applyScript(ctx context.Context, script string) ([]string, error) {
	ops, err := ParseScript(script)
	if err != nil {
		return nil, err
	}
	var changed []string
	for _, op := range ops {
		switch actual := op.(type) {
		case AddOp:
			target := s.resolve(actual.Path)
			if err = s.fs.Upload(ctx, target, file.DefaultFileOsMode, strings.NewReader(actual.Contents)); err != nil {
				return changed, fmt.Errorf("failed to create %v: %w", target, err)
			}
			changed = append(changed, target)
		case DeleteOp:
			target := s.resolve(actual.Path)
			if err = s.fs.Delete(ctx, target); err != nil {
				return changed, fmt.Errorf("failed to delete %v: %w", target, err)
			}
			changed = append(changed, target)
		case UpdateOp:
			source := s.resolve(actual.Path)
			original, err := s.fs.DownloadWithURL(ctx, source)
			if err != nil {
				return changed, fmt.Errorf("failed to read %v: %w", source, err)
			}
			updated := strings.Join(applyUpdate(original, actual), "\n") + "\n"
			target := source
			if actual.MovePath != "" {
				target = s.resolve(actual.MovePath)
			}
			if err = s.fs.Upload(ctx, target, file.DefaultFileOsMode, strings.NewReader(updated)); err != nil {
				return changed, fmt.Errorf("failed to write %v: %w", target, err)
			}
			if target != source {
				_ = s.fs.Delete(ctx, source)
			}
			changed = append(changed, target)
		}
	}
	return changed, nil
}

func (s *Service) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(s.cwd(), path)
}

// unifiedDiff renders the before/after change for reporting.
func unifiedDiff(before, after []byte, path string) string {
	if path == "" {
		path = "file"
	}
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(before)),
		B:        difflib.SplitLines(string(after)),
		FromFile: "a/" + path,
		ToFile:   "b/" + path,
		Context:  3,
	})
	if err != nil {
		return ""
	}
	return diff
}
