package ingestor

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/internal/content"
)

// ManifestFile is the optional per-directory file that tags assets.
const ManifestFile = "assets.yaml"

// Manifest annotates the files of one directory.
type Manifest struct {
	Assets []ManifestEntry `yaml:"assets"`
}

// ManifestEntry annotates one file, named relative to the manifest's
// directory.
type ManifestEntry struct {
	File     string           `yaml:"file"`
	Title    string           `yaml:"title"`
	Kind     string           `yaml:"kind"`
	Families []content.Family `yaml:"families"`
}

// loadManifest reads dir's manifest. A missing manifest yields an empty one.
func loadManifest(dir string) (map[string]ManifestEntry, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading manifest in %s: %w", dir, err)
	}
	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing manifest in %s: %w", dir, err)
	}
	entries := make(map[string]ManifestEntry, len(m.Assets))
	for _, e := range m.Assets {
		if e.Kind != "" {
			if _, ok := parseKind(e.Kind); !ok {
				return nil, fmt.Errorf("manifest in %s: unknown kind %q for %s", dir, e.Kind, e.File)
			}
		}
		entries[filepath.Clean(e.File)] = e
	}
	return entries, nil
}

func parseKind(s string) (content.AssetKind, bool) {
	switch k := content.AssetKind(s); k {
	case content.AssetLogo, content.AssetPhoto, content.AssetTestimonial, content.AssetPriorArtifact:
		return k, true
	}
	return "", false
}
