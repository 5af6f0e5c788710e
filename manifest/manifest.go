// Package manifest loads the per-build asset manifest: the generation name,
// the static asset list and the offline page. One manifest describes one
// Cache Generation; the generation name must change whenever the asset
// contents change.
package manifest

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/phyarch/shellcache"
)

type Manifest struct {
	// Generation names this build's cache partition,
	// e.g. "phyarch-nexus-v1.1".
	Generation string `yaml:"generation"`

	// OfflinePage is the fallback document for failed navigations. It must
	// be a member of Assets so it is guaranteed present after Install.
	OfflinePage string `yaml:"offline_page"`

	// Assets lists every path required for offline operation.
	Assets []string `yaml:"assets"`
}

// Load reads and validates a manifest file.
func Load(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks the manifest invariants.
func (m *Manifest) Validate() error {
	if strings.TrimSpace(m.Generation) == "" {
		return fmt.Errorf("manifest: generation is required")
	}
	if len(m.Assets) == 0 {
		return fmt.Errorf("manifest: at least one asset is required")
	}
	if strings.TrimSpace(m.OfflinePage) == "" {
		return fmt.Errorf("manifest: offline_page is required")
	}
	set := m.AssetSet()
	if !set.Contains(m.OfflinePage) {
		return fmt.Errorf("manifest: offline_page %q must be listed in assets", m.OfflinePage)
	}
	return nil
}

// AssetSet returns the normalized static asset set.
func (m *Manifest) AssetSet() shellcache.AssetSet {
	return shellcache.NewAssetSet(m.Assets...)
}
