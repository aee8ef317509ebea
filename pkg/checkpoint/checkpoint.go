package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dscraper/pkg/logger"
)

const version = 1

// Checkpoint is the last clean scan of one target
type Checkpoint struct {
	Target     string    `json:"target"`
	// Through is the newest day of the scan, YYYY-MM-DD. Everything from
	// Through back to the floor year has been searched at least once.
	Through    string    `json:"through"`
	RunID      string    `json:"run_id"`
	Days       int       `json:"days"`
	Queued     int       `json:"queued"`
	UpdatedAt  time.Time `json:"updated_at"`
	Version    int       `json:"version"`
}

// Manager reads and writes checkpoints in one directory
type Manager struct {
	dir    string
	logger logger.Logger
}

// NewManager stores checkpoints under dir, creating it if needed
func NewManager(dir string, log logger.Logger) (*Manager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoints directory: %w", err)
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Manager{dir: dir, logger: log.WithField("component", "checkpoint")}, nil
}

// Dir returns the checkpoint directory
func (m *Manager) Dir() string {
	return m.dir
}

func (m *Manager) path(target string) string {
	name := strings.NewReplacer(":", "_", "/", "_", `\`, "_").Replace(target)
	return filepath.Join(m.dir, name+".checkpoint.json")
}

// Load returns the checkpoint of target, or nil when there is none
func (m *Manager) Load(target string) (*Checkpoint, error) {
	data, err := os.ReadFile(m.path(target))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	if cp.Version != version || cp.Target != target {
		m.logger.WarnWithFields("Ignoring incompatible checkpoint", map[string]interface{}{
			"target":  target,
			"version": cp.Version,
		})
		return nil, nil
	}

	m.logger.DebugWithFields("Checkpoint loaded", map[string]interface{}{
		"target":  target,
		"through": cp.Through,
		"run_id":  cp.RunID,
	})
	return &cp, nil
}

// Save writes cp atomically
func (m *Manager) Save(cp *Checkpoint) error {
	cp.UpdatedAt = time.Now()
	cp.Version = version

	final := m.path(cp.Target)
	tmp := final + ".tmp"

	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create temporary checkpoint file: %w", err)
	}

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(cp); err != nil {
		file.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to sync checkpoint file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close checkpoint file: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}

	m.logger.DebugWithFields("Checkpoint saved", map[string]interface{}{
		"target":  cp.Target,
		"through": cp.Through,
	})
	return nil
}

// Delete removes the checkpoint of target so the next run scans everything
func (m *Manager) Delete(target string) error {
	if err := os.Remove(m.path(target)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}

// Reached reports whether an incremental scan of cp's target can stop
// before day. A nil checkpoint never stops the scan.
func (cp *Checkpoint) Reached(day string) bool {
	return cp != nil && cp.Through != "" && day < cp.Through
}
