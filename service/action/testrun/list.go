package testrun

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// ListInput defines parameters for test discovery
type ListInput struct {
	Dir string `json:"dir,omitempty" description:"Test directory relative to the workspace; defaults to tests"`
}

// TestFile describes one discovered test file
type TestFile struct {
	File      string   `json:"file" description:"Base file name"`
	Path      string   `json:"path" description:"Full path"`
	Functions []string `json:"functions,omitempty" description:"Discovered test function names"`
	Count     int      `json:"count" description:"Number of test functions"`
	Error     string   `json:"error,omitempty" description:"Read failure, if any"`
}

// ListOutput reports discovered tests
type ListOutput struct {
	Directory  string      `json:"directory" description:"Resolved test directory"`
	TotalFiles int         `json:"totalFiles" description:"Number of test files"`
	TotalTests int         `json:"totalTests" description:"Number of test functions"`
	Tests      []*TestFile `json:"tests,omitempty" description:"Per-file details"`
	Content    string      `json:"content,omitempty" description:"Failure description when discovery could not run"`
}

var testFunctionExpr = regexp.MustCompile(`def\s+(test_\w+)`)

// List discovers test_*.py / *_test.py files and their test functions. A
// missing test directory is reported in Content rather than as an error.
func (s *Service) List(ctx context.Context, input *ListInput, output *ListOutput) error {
	testDir := s.resolveDir(input.Dir)
	output.Directory = testDir

	if exists, err := s.fs.Exists(ctx, testDir); err == nil && !exists {
		output.Content = fmt.Sprintf("Tests directory not found: %v", testDir)
		return nil
	}
	objects, err := s.fs.List(ctx, testDir)
	if err != nil {
		output.Content = fmt.Sprintf("Failed to list %v: %v", testDir, err)
		return nil
	}

	var paths []string
	for _, object := range objects {
		if object.IsDir() {
			continue
		}
		name := object.Name()
		if strings.HasPrefix(name, "test_") && strings.HasSuffix(name, ".py") ||
			strings.HasSuffix(name, "_test.py") {
			paths = append(paths, filepath.Join(testDir, name))
		}
	}
	sort.Strings(paths)

	for _, path := range paths {
		entry := &TestFile{File: filepath.Base(path), Path: path}
		data, err := s.fs.DownloadWithURL(ctx, path)
		if err != nil {
			entry.Error = err.Error()
			output.Tests = append(output.Tests, entry)
			continue
		}
		for _, match := range testFunctionExpr.FindAllStringSubmatch(string(data), -1) {
			entry.Functions = append(entry.Functions, match[1])
		}
		entry.Count = len(entry.Functions)
		output.TotalTests += entry.Count
		output.Tests = append(output.Tests, entry)
	}
	output.TotalFiles = len(paths)
	return nil
}
