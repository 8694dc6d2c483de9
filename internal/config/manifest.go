package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/vatsal3003/webp-batch/pkg/models"
	"gopkg.in/yaml.v3"
)

const DefaultQuality = 80

// Manifest lists the images to re-encode and the settings they share.
type Manifest struct {
	BaseDir  string          `yaml:"base_dir"`
	Defaults JobSettings     `yaml:"defaults"`
	Images   []ManifestImage `yaml:"images"`

	dir string
}

// JobSettings uses pointers so an explicit 0 in an image entry overrides
// a non-zero default.
type JobSettings struct {
	Width    *int  `yaml:"width"`
	Height   *int  `yaml:"height"`
	Quality  *int  `yaml:"quality"`
	Lossless *bool `yaml:"lossless"`
}

type ManifestImage struct {
	Name        string `yaml:"name"`
	JobSettings `yaml:",inline"`
}

func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	m.dir = filepath.Dir(path)

	if len(m.Images) == 0 {
		return nil, fmt.Errorf("manifest %s lists no images", path)
	}

	return &m, nil
}

// SourcePath resolves an image name against base_dir, which is itself
// relative to the manifest file.
func (m *Manifest) SourcePath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	base := m.BaseDir
	if !filepath.IsAbs(base) {
		base = filepath.Join(m.dir, base)
	}
	return filepath.Join(base, name)
}

// Jobs builds one validated job per image, in manifest order.
func (m *Manifest) Jobs() ([]models.ImageJob, error) {
	jobs := make([]models.ImageJob, 0, len(m.Images))
	for i, img := range m.Images {
		if img.Name == "" {
			return nil, fmt.Errorf("images[%d]: name is required", i)
		}

		job := models.NewImageJob(
			m.SourcePath(img.Name),
			pick(img.Width, m.Defaults.Width, 0),
			pick(img.Height, m.Defaults.Height, 0),
			pick(img.Quality, m.Defaults.Quality, DefaultQuality),
		)
		job.Lossless = pick(img.Lossless, m.Defaults.Lossless, false)

		if err := job.Validate(); err != nil {
			return nil, fmt.Errorf("images[%d]: %w", i, err)
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func pick[T any](override, def *T, fallback T) T {
	if override != nil {
		return *override
	}
	if def != nil {
		return *def
	}
	return fallback
}
