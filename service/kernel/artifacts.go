package kernel

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"path"

	"github.com/google/uuid"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
)

// artifactStore persists rich display artifacts under the workspace so they
// can be referenced by URL instead of being embedded in transcripts.
type artifactStore struct {
	fs      afs.Service
	baseURL string
}

func newArtifactStore(workDir string) *artifactStore {
	return &artifactStore{
		fs:      afs.New(),
		baseURL: path.Join(workDir, ".runbox", "images"),
	}
}

// SavePNG decodes a base64 PNG payload and writes it under the artifact
// directory, returning the stored location.
func (s *artifactStore) SavePNG(ctx context.Context, encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("invalid image payload: %w", err)
	}
	location := path.Join(s.baseURL, uuid.New().String()+".png")
	if err = s.fs.Upload(ctx, location, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("failed to store image: %w", err)
	}
	return location, nil
}
