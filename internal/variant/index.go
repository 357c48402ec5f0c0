package variant

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// IndexEntry summarises one variant in index.json
type IndexEntry struct {
	CreatedAt  string `json:"created_at"`
	GitCommit  string `json:"git_commit"`
	GitDirty   bool   `json:"git_dirty"`
	Manifest   string `json:"manifest"`
	Name       string `json:"name"`
	Notes      string `json:"notes"`
	OutputDir  string `json:"output_dir"`
	Profile    string `json:"profile"`
	SnapshotAt string `json:"snapshot_at"`
}

// Index is the content of variants/index.json
type Index struct {
	GeneratedAt string       `json:"generated_at"`
	Variants    []IndexEntry `json:"variants"`
}

// BuildIndex rewrites variants/index.json and variants/INDEX.md from every readable manifest
func (m *Manager) BuildIndex(ctx context.Context) (*Index, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	variantsDir := m.VariantsDir()
	if err := os.MkdirAll(variantsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create variants dir: %w", err)
	}

	paths, err := filepath.Glob(filepath.Join(variantsDir, "*", "variant.json"))
	if err != nil {
		return nil, fmt.Errorf("glob manifests: %w", err)
	}
	sort.Strings(paths)

	index := &Index{GeneratedAt: m.timestamp(), Variants: []IndexEntry{}}
	for _, path := range paths {
		manifest, err := LoadManifest(path)
		if err != nil {
			m.log.WithError(err).Warn("Skipping unreadable manifest")
			continue
		}
		index.Variants = append(index.Variants, IndexEntry{
			Name:       manifest.Variant.Name,
			CreatedAt:  manifest.Variant.CreatedAt,
			SnapshotAt: manifest.Variant.SnapshotAt,
			Profile:    manifest.Variant.Profile,
			OutputDir:  manifest.Variant.OutputDir,
			GitCommit:  manifest.Git.Commit,
			GitDirty:   manifest.Git.Dirty,
			Manifest:   m.rel(path),
			Notes:      manifest.Notes,
		})
	}

	if err := writeJSON(filepath.Join(variantsDir, "index.json"), index); err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(variantsDir, "INDEX.md"), []byte(index.Markdown()), 0o644); err != nil {
		return nil, fmt.Errorf("write INDEX.md: %w", err)
	}

	m.log.WithField("variants", len(index.Variants)).Info("Variant index rebuilt")
	return index, nil
}

// Markdown renders INDEX.md
func (idx *Index) Markdown() string {
	lines := []string{
		"# Variants Index",
		"",
		"Generated: " + idx.GeneratedAt,
		"",
		"| Variant | Created | Snapshot | Profile | Output | Git | Notes |",
		"| --- | --- | --- | --- | --- | --- | --- |",
	}

	if len(idx.Variants) == 0 {
		lines = append(lines, "| _none_ |  |  |  |  |  |  |")
	}
	for _, v := range idx.Variants {
		git := v.GitCommit
		if v.GitDirty {
			git += " (dirty)"
		}
		lines = append(lines, fmt.Sprintf("| %s | %s | %s | %s | %s | %s | %s |",
			v.Name, v.CreatedAt, v.SnapshotAt, v.Profile, v.OutputDir, git, v.Notes))
	}

	return strings.Join(lines, "\n")
}
