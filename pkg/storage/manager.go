package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
)

// TokenImagesHeader is the header row of every token image file
var TokenImagesHeader = []string{"tokenId", "imageUrl"}

// Manager writes collection output files into one directory
type Manager struct {
	outputDir string
}

// NewManager creates a new storage manager, creating outputDir if needed
func NewManager(outputDir string) (*Manager, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	return &Manager{outputDir: outputDir}, nil
}

// Path returns where filename lives inside the output directory
func (m *Manager) Path(filename string) string {
	return filepath.Join(m.outputDir, filename)
}

// GetOutputDir returns the output directory path
func (m *Manager) GetOutputDir() string {
	return m.outputDir
}

// SaveCSV writes header followed by rows to filename and returns the full
// path. The file is written to a temporary sibling and renamed into place,
// so readers never see a partial file.
func (m *Manager) SaveCSV(filename string, header []string, rows [][]string) (string, error) {
	path := m.Path(filename)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	tempFile := path + ".tmp"
	out, err := os.Create(tempFile)
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}

	w := csv.NewWriter(out)
	if err := w.Write(header); err != nil {
		out.Close()
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to write header: %w", err)
	}
	if err := w.WriteAll(rows); err != nil {
		out.Close()
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to write rows: %w", err)
	}

	if err := out.Close(); err != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to close file: %w", err)
	}

	if err := os.Rename(tempFile, path); err != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to rename temporary file: %w", err)
	}

	return path, nil
}

// SaveTokenImages writes rows under the tokenId,imageUrl header
func (m *Manager) SaveTokenImages(filename string, rows [][]string) (string, error) {
	return m.SaveCSV(filename, TokenImagesHeader, rows)
}

// Exists reports whether filename is already present in the output directory
func (m *Manager) Exists(filename string) bool {
	_, err := os.Stat(m.Path(filename))
	return err == nil
}
