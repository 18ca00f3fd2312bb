package export

import (
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/brightpath/tutorsim/internal/model"
)

// ManifestName is the manifest file written next to the CSV tables.
const ManifestName = "run_manifest.yaml"

// Manifest describes one exported run: the exact inputs needed to reproduce
// it plus what came out. It deliberately carries no wall-clock timestamps so
// re-running with the same parameters produces an identical file.
type Manifest struct {
	Seed           int64       `yaml:"seed"`
	Tutors         int         `yaml:"tutors"`
	Days           int         `yaml:"days"`
	SessionsPerDay int         `yaml:"sessions_per_day"`
	ReferenceTime  time.Time   `yaml:"reference_time"`
	Files          []string    `yaml:"files"`
	Stats          model.Stats `yaml:"stats"`
}

// WriteManifest writes the run manifest into dir.
func WriteManifest(dir string, m Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return eris.Wrap(err, "export: marshal manifest")
	}
	path := filepath.Join(dir, ManifestName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "export: write %s", path)
	}
	return nil
}
