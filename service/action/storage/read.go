package storage

import (
	"context"
	"fmt"
	"path/filepath"
)

// ReadInput defines parameters for reading a workspace file
type ReadInput struct {
	Path string `json:"path" required:"true" description:"File path; relative paths resolve against the shell working directory"`
}

// ReadOutput contains the file content or a descriptive failure message
type ReadOutput struct {
	Content string `json:"content" description:"File content, or a description of why it could not be read"`
	Path    string `json:"path" description:"Resolved absolute path"`
	OK      bool   `json:"ok" description:"Whether the file was actually read"`
}

// Read loads the file at input.Path. Missing files, directories and
// permission failures produce a descriptive Content with OK=false instead of
// an error.
func (s *Service) Read(ctx context.Context, input *ReadInput, output *ReadOutput) error {
	workingDir := s.cwd()
	location := s.resolve(input.Path, workingDir)
	output.Path = location

	exists, err := s.fs.Exists(ctx, location)
	if err == nil && !exists {
		output.Content = fmt.Sprintf("File not found: %v. Your current working directory is %v.", location, workingDir)
		return nil
	}
	if err == nil {
		if object, objErr := s.fs.Object(ctx, location); objErr == nil && object.IsDir() {
			output.Content = fmt.Sprintf("Path is a directory: %v. You can only read files", location)
			return nil
		}
	}
	data, err := s.fs.DownloadWithURL(ctx, location)
	if err != nil {
		output.Content = fmt.Sprintf("Error reading file %v: %v", location, err)
		return nil
	}
	output.Content = string(data)
	output.OK = true
	return nil
}

func (s *Service) resolve(path, workingDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(workingDir, path)
}
