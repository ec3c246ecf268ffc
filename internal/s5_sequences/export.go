package s5_sequences

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Dataset file names inside a run directory
const (
	TrainFile      = "train.json"
	ValidationFile = "validation.json"
	TestFile       = "test.json"
	ManifestFile   = "manifest.json"
)

// Shape describes one exported dataset
type Shape struct {
	Count    int `json:"count"`
	Steps    int `json:"steps"`
	Features int `json:"features"`
}

func shapeOf(d Dataset) Shape {
	count, steps, features := d.Shape()
	return Shape{Count: count, Steps: steps, Features: features}
}

// Manifest tells the training job how to read a run directory
type Manifest struct {
	RunID          string    `json:"run_id"`
	CreatedAt      time.Time `json:"created_at"`
	SequenceLength int       `json:"sequence_length"`
	Columns        []string  `json:"columns"`
	LabelColumn    string    `json:"label_column"`
	TrainRatio     float64   `json:"train_ratio"`
	ValRatio       float64   `json:"val_ratio"`
	Train          Shape     `json:"train"`
	Validation     Shape     `json:"validation"`
	Test           Shape     `json:"test"`
}

// Export writes the three datasets and a manifest under dir/<run id>.
// A missing RunID gets a fresh uuid. Returns the completed manifest and
// the run directory.
func Export(dir string, split Split, manifest Manifest) (Manifest, string, error) {
	if manifest.RunID == "" {
		manifest.RunID = uuid.New().String()
	}
	if manifest.CreatedAt.IsZero() {
		manifest.CreatedAt = time.Now().UTC()
	}
	if manifest.LabelColumn == "" {
		manifest.LabelColumn = LabelColumn
	}
	manifest.Train = shapeOf(split.Train)
	manifest.Validation = shapeOf(split.Validation)
	manifest.Test = shapeOf(split.Test)

	runDir := filepath.Join(dir, manifest.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return manifest, "", fmt.Errorf("failed to create dataset dir: %w", err)
	}

	files := []struct {
		name string
		data interface{}
	}{
		{TrainFile, split.Train},
		{ValidationFile, split.Validation},
		{TestFile, split.Test},
		{ManifestFile, manifest},
	}
	for _, f := range files {
		if err := writeJSON(filepath.Join(runDir, f.name), f.data); err != nil {
			return manifest, "", err
		}
	}

	return manifest, runDir, nil
}

// LoadManifest reads a run directory's manifest
func LoadManifest(runDir string) (Manifest, error) {
	var m Manifest
	data, err := os.ReadFile(filepath.Join(runDir, ManifestFile))
	if err != nil {
		return m, fmt.Errorf("failed to read manifest: %w", err)
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return m, nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to finalize %s: %w", filepath.Base(path), err)
	}
	return nil
}
