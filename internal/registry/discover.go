package registry

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// manifestFileName is the per-plugin manifest file looked for during
// discovery.
const manifestFileName = "plugin.yaml"

// Discover walks dir for plugin.yaml manifests and registers each one.
// A malformed manifest is logged and skipped; it never aborts discovery.
// Returns the number of plugins registered.
func (s *MemoryStore) Discover(dir string) (int, error) {
	if dir == "" {
		return 0, nil
	}
	info, err := os.Stat(dir)
	if err != nil {
		return 0, fmt.Errorf("plugin directory: %w", err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("plugin directory %q is not a directory", dir)
	}

	count := 0
	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() != manifestFileName {
			return nil
		}

		manifest, err := loadManifest(path)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("skipping invalid plugin manifest")
			return nil
		}

		if _, err := s.Register(*manifest, filepath.Dir(path)); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("skipping unregistrable plugin")
			return nil
		}

		log.Info().
			Str("plugin", manifest.Name).
			Str("version", manifest.Version).
			Str("entry_point", manifest.EntryPoint).
			Msg("plugin discovered")
		count++
		return nil
	})
	if walkErr != nil {
		return count, fmt.Errorf("walking plugin directory: %w", walkErr)
	}
	return count, nil
}

func loadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Clean(path)) // #nosec G304 -- path comes from directory walk under the configured plugin dir
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	if err := manifest.Validate(); err != nil {
		return nil, err
	}
	return &manifest, nil
}
