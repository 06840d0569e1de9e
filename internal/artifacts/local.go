package artifacts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/wraith/internal/interfaces"
)

// LocalStore writes artifacts to the filesystem under a root directory.
// Logical paths map directly to relative file paths; writes go through a
// temp file and rename so readers never observe partial content.
type LocalStore struct {
	root   string
	logger arbor.ILogger
}

// NewLocalStore creates a filesystem-backed artifact store
func NewLocalStore(root string, logger arbor.ILogger) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}
	return &LocalStore{
		root:   root,
		logger: logger,
	}, nil
}

func (s *LocalStore) Save(ctx context.Context, data []byte, namespace, filename string) (string, error) {
	logicalPath := Join(namespace, filename)

	fullPath, err := s.resolve(logicalPath)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create namespace directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(fullPath), ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to close artifact: %w", err)
	}
	if err := os.Rename(tmpName, fullPath); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to finalize artifact: %w", err)
	}

	s.logger.Debug().Str("path", logicalPath).Int("bytes", len(data)).Msg("Artifact saved")
	return logicalPath, nil
}

func (s *LocalStore) Get(ctx context.Context, logicalPath string) ([]byte, error) {
	fullPath, err := s.resolve(logicalPath)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, interfaces.ErrArtifactNotFound
		}
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}
	return data, nil
}

func (s *LocalStore) Delete(ctx context.Context, logicalPath string) (bool, error) {
	fullPath, err := s.resolve(logicalPath)
	if err != nil {
		return false, err
	}

	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to delete artifact: %w", err)
	}
	return true, nil
}

func (s *LocalStore) Exists(ctx context.Context, logicalPath string) (bool, error) {
	fullPath, err := s.resolve(logicalPath)
	if err != nil {
		return false, err
	}

	if _, err := os.Stat(fullPath); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat artifact: %w", err)
	}
	return true, nil
}

// resolve maps a logical path onto the root, rejecting traversal out of it
func (s *LocalStore) resolve(logicalPath string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(logicalPath))
	if cleaned == "." || strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("invalid artifact path: %s", logicalPath)
	}
	return filepath.Join(s.root, cleaned), nil
}
