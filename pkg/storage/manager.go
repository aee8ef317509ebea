package storage

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	errs "dscraper/pkg/errors"
)

const tempSuffix = ".part"

// ErrEmptyBody is returned by Save when the reader yields no bytes
var ErrEmptyBody = errs.New(errs.ErrorTypeTransport, "attachment body is empty")

type fileState int

const (
	stateClaimed fileState = iota + 1
	stateStored
)

// Manager owns one destination folder. It guarantees that at most one
// writer ever holds a given filename and that a file only appears under its
// final name once it is complete.
type Manager struct {
	outputDir  string
	bufferSize int
	files      map[string]fileState
	mu         sync.Mutex
}

// NewManager creates the folder if needed, indexes files already present and
// removes temp files left by an interrupted run
func NewManager(outputDir string, bufferSize int) (*Manager, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeFilesystem, "failed to create output directory", err)
	}
	if bufferSize <= 0 {
		bufferSize = 32 * 1024
	}

	m := &Manager{
		outputDir:  outputDir,
		bufferSize: bufferSize,
		files:      make(map[string]fileState),
	}
	if err := m.scanExistingFiles(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) scanExistingFiles() error {
	entries, err := os.ReadDir(m.outputDir)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeFilesystem, "failed to read directory", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") && strings.HasSuffix(name, tempSuffix) {
			_ = os.Remove(filepath.Join(m.outputDir, name))
			continue
		}
		m.files[name] = stateStored
	}
	return nil
}

// Claim reserves filename for the caller. It returns false when the file
// already exists on disk or another caller holds the claim.
func (m *Manager) Claim(filename string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.files[filename]; taken {
		return false
	}
	if _, err := os.Stat(m.Path(filename)); err == nil {
		m.files[filename] = stateStored
		return false
	}
	m.files[filename] = stateClaimed
	return true
}

// Release drops a claim that did not produce a file
func (m *Manager) Release(filename string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.files[filename] == stateClaimed {
		delete(m.files, filename)
	}
}

// Save streams r into a temp file beside the destination and renames it
// into place. On any failure, including an empty body, the temp file is
// removed and nothing appears under filename.
func (m *Manager) Save(r io.Reader, filename string) (int64, error) {
	tmp, err := os.CreateTemp(m.outputDir, "."+filename+".*"+tempSuffix)
	if err != nil {
		return 0, errs.Wrap(errs.ErrorTypeFilesystem, "failed to create temporary file", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	src := &trackingReader{r: r}
	n, err := io.CopyBuffer(tmp, src, make([]byte, m.bufferSize))
	closeErr := tmp.Close()

	switch {
	case err != nil && src.err != nil:
		cleanup()
		return 0, errs.Wrap(errs.ErrorTypeTransport, "failed to read attachment", err)
	case err != nil:
		cleanup()
		return 0, errs.Wrap(errs.ErrorTypeFilesystem, "failed to write attachment", err)
	case closeErr != nil:
		cleanup()
		return 0, errs.Wrap(errs.ErrorTypeFilesystem, "failed to close file", closeErr)
	case n == 0:
		cleanup()
		return 0, ErrEmptyBody
	}

	if err := os.Rename(tmpName, m.Path(filename)); err != nil {
		cleanup()
		return 0, errs.Wrap(errs.ErrorTypeFilesystem, "failed to rename temporary file", err)
	}

	m.mu.Lock()
	m.files[filename] = stateStored
	m.mu.Unlock()
	return n, nil
}

// Path returns the absolute destination of filename
func (m *Manager) Path(filename string) string {
	return filepath.Join(m.outputDir, filename)
}

// OutputDir returns the folder this manager owns
func (m *Manager) OutputDir() string {
	return m.outputDir
}

// StoredCount returns the number of complete files known in the folder
func (m *Manager) StoredCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, s := range m.files {
		if s == stateStored {
			n++
		}
	}
	return n
}

type trackingReader struct {
	r   io.Reader
	err error
}

func (t *trackingReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		t.err = err
	}
	return n, err
}

// Registry hands out one Manager per folder so targets that resolve to the
// same directory share claims
type Registry struct {
	bufferSize int
	managers   map[string]*Manager
	mu         sync.Mutex
}

// NewRegistry creates an empty registry
func NewRegistry(bufferSize int) *Registry {
	return &Registry{bufferSize: bufferSize, managers: make(map[string]*Manager)}
}

// Open returns the manager for dir, creating it on first use
func (r *Registry) Open(dir string) (*Manager, error) {
	dir = filepath.Clean(dir)

	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.managers[dir]; ok {
		return m, nil
	}
	m, err := NewManager(dir, r.bufferSize)
	if err != nil {
		return nil, err
	}
	r.managers[dir] = m
	return m, nil
}
