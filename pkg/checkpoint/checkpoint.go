package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"tokenimages/pkg/logger"
)

// Version is bumped whenever the on-disk layout changes
const Version = 1

// Entry is one collected token as stored in a checkpoint
type Entry struct {
	TokenID  string `json:"token_id"`
	ImageURL string `json:"image_url"`
}

// Checkpoint is the resumable state of a collection run
type Checkpoint struct {
	Contract  string    `json:"contract"`
	Chain     string    `json:"chain"`
	Cursor    string    `json:"cursor"`
	Attempts  int       `json:"attempts"`
	Entries   []Entry   `json:"entries"`
	Done      bool      `json:"done"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int       `json:"version"`
}

// Manager handles checkpoint operations for one chain and contract
type Manager struct {
	checkpointPath string
	logger         logger.Logger
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// NewManager creates a checkpoint manager storing its file under dir
func NewManager(dir, chain, contract string, log logger.Logger) (*Manager, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoints directory: %w", err)
	}

	name := fmt.Sprintf("%s_%s.checkpoint.json",
		unsafeChars.ReplaceAllString(chain, "_"),
		unsafeChars.ReplaceAllString(strings.ToLower(contract), "_"))

	return &Manager{
		checkpointPath: filepath.Join(dir, name),
		logger:         log,
	}, nil
}

// Path returns the checkpoint file location
func (m *Manager) Path() string {
	return m.checkpointPath
}

// Create creates and persists an empty checkpoint
func (m *Manager) Create(chain, contract string) (*Checkpoint, error) {
	now := time.Now()
	cp := &Checkpoint{
		Contract:  contract,
		Chain:     chain,
		Entries:   []Entry{},
		CreatedAt: now,
		UpdatedAt: now,
		Version:   Version,
	}

	if err := m.Save(cp); err != nil {
		return nil, fmt.Errorf("failed to save initial checkpoint: %w", err)
	}

	m.logger.InfoWithFields("Checkpoint created", map[string]interface{}{
		"chain":    chain,
		"contract": contract,
		"path":     m.checkpointPath,
	})

	return cp, nil
}

// Load reads the checkpoint. It returns nil, nil when none exists.
func (m *Manager) Load() (*Checkpoint, error) {
	data, err := os.ReadFile(m.checkpointPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read checkpoint file: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint %s: %w", m.checkpointPath, err)
	}
	if cp.Version != Version {
		return nil, fmt.Errorf("checkpoint %s has version %d, expected %d", m.checkpointPath, cp.Version, Version)
	}

	m.logger.InfoWithFields("Checkpoint loaded", map[string]interface{}{
		"chain":      cp.Chain,
		"collected":  len(cp.Entries),
		"attempts":   cp.Attempts,
		"cursor":     cp.Cursor,
		"updated_at": cp.UpdatedAt,
	})

	return &cp, nil
}

// Save writes the checkpoint to disk atomically
func (m *Manager) Save(cp *Checkpoint) error {
	cp.UpdatedAt = time.Now()

	tempPath := m.checkpointPath + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary checkpoint file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(cp); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync checkpoint file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close checkpoint file: %w", err)
	}

	if err := os.Rename(tempPath, m.checkpointPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}

	m.logger.DebugWithFields("Checkpoint saved", map[string]interface{}{
		"collected": len(cp.Entries),
		"cursor":    cp.Cursor,
	})

	return nil
}

// UpdateProgress records the state after a page and saves it
func (m *Manager) UpdateProgress(cp *Checkpoint, cursor string, attempts int, added []Entry) error {
	cp.Cursor = cursor
	cp.Attempts = attempts
	cp.Entries = append(cp.Entries, added...)
	return m.Save(cp)
}

// MarkDone flags the run as finished so the next run starts over
func (m *Manager) MarkDone(cp *Checkpoint) error {
	cp.Done = true
	return m.Save(cp)
}

// Delete removes the checkpoint file
func (m *Manager) Delete() error {
	if err := os.Remove(m.checkpointPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}

	m.logger.Debug("Checkpoint deleted")
	return nil
}

// Exists checks if a checkpoint file exists
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.checkpointPath)
	return err == nil
}
