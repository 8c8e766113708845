package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/viant/afs/file"
)

// WriteInput defines parameters for writing a workspace file
type WriteInput struct {
	Path    string `json:"path" required:"true" description:"File path; relative paths resolve against the shell working directory"`
	Content string `json:"content" description:"Content to write"`
}

// WriteOutput reports the write outcome
type WriteOutput struct {
	Content string `json:"content" description:"Status message"`
	Path    string `json:"path" description:"Resolved absolute path"`
	OK      bool   `json:"ok" description:"Whether the file was actually written"`
}

// Write stores input.Content at input.Path, creating parent directories.
// Write failures produce a descriptive Content with OK=false instead of an
// error.
func (s *Service) Write(ctx context.Context, input *WriteInput, output *WriteOutput) error {
	location := s.resolve(input.Path, s.cwd())
	output.Path = location
	if err := s.fs.Upload(ctx, location, file.DefaultFileOsMode, strings.NewReader(input.Content)); err != nil {
		output.Content = fmt.Sprintf("Error writing file %v: %v", location, err)
		return nil
	}
	output.Content = "File written successfully"
	output.OK = true
	return nil
}
