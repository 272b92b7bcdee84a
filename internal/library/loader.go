package library

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFile reads one YAML show definition. The slug defaults to the file's
// base name.
func LoadFile(path string) (*Show, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading show file: %w", err)
	}

	var show Show
	if err := yaml.Unmarshal(data, &show); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}

	if show.Slug == "" {
		base := filepath.Base(path)
		show.Slug = GenerateSlug(strings.TrimSuffix(base, filepath.Ext(base)))
	}
	if show.Name == "" {
		show.Name = show.Slug
	}
	if show.Cues == nil {
		show.Cues = []Cue{}
	}

	if err := ValidateShow(&show); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return &show, nil
}

// LoadDir reads every *.yaml and *.yml file in dir, sorted by file name.
// A missing directory yields no shows.
func LoadDir(dir string) ([]*Show, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading shows directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	shows := make([]*Show, 0, len(names))
	seen := make(map[string]string, len(names))
	for _, name := range names {
		show, err := LoadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[show.Slug]; dup {
			return nil, fmt.Errorf("%w: slug %q used by %s and %s", ErrShowExists, show.Slug, prev, name)
		}
		seen[show.Slug] = name
		shows = append(shows, show)
	}
	return shows, nil
}
