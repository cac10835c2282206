// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// stage is a private staging directory for one pipeline invocation.
// Cleanup removes it exactly once no matter how often it is called.
type stage struct {
	root string
	// tempRoot is set when this stage created the staging root, which Cleanup
	// then removes once it is empty.
	tempRoot string
	once     sync.Once
	err      error
}

func newStage(tempRoot string) (*stage, error) {
	_, statErr := os.Stat(tempRoot)
	created := errors.Is(statErr, fs.ErrNotExist)
	if err := os.MkdirAll(tempRoot, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create staging root: %w", err)
	}
	dir, err := os.MkdirTemp(tempRoot, "stage-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	st := &stage{root: dir}
	if created {
		st.tempRoot = tempRoot
	}
	return st, nil
}

func (s *stage) path(elem ...string) string {
	return filepath.Join(append([]string{s.root}, elem...)...)
}

// Cleanup removes the staging directory, and the staging root if this stage
// created it and nothing else is staged there.
func (s *stage) Cleanup() error {
	s.once.Do(func() {
		s.err = os.RemoveAll(s.root)
		if s.err == nil && s.tempRoot != "" {
			// Fails harmlessly while another invocation still stages there.
			_ = os.Remove(s.tempRoot)
		}
	})
	return s.err
}
