package variant

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)

type fakeGit struct {
	info GitInfo
}

func (f fakeGit) Info(string) GitInfo { return f.info }

type memCache struct {
	data map[string]string
	gets int
	hits int
}

func newMemCache() *memCache {
	return &memCache{data: map[string]string{}}
}

func (c *memCache) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	c.gets++
	v, ok := c.data[key]
	if !ok {
		return false, nil
	}
	c.hits++
	*(dest.(*string)) = v
	return true, nil
}

func (c *memCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	c.data[key] = value.(string)
	return nil
}

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// setupProject lays out project/manuscript_quarto with one variant
func setupProject(t *testing.T) (project, manuscript string) {
	t.Helper()
	project = t.TempDir()
	manuscript = filepath.Join(project, "manuscript_quarto")

	write(t, filepath.Join(manuscript, "_quarto.yml"), `
project:
  type: book
  output-dir: _output
bibliography: references.bib
csl: style.csl
book:
  title: Base Title
  chapters:
    - index.qmd
    - methods.qmd
format:
  html: default
  pdf: default
`)
	write(t, filepath.Join(manuscript, "_quarto-variant-short.yml"), `
project:
  output-dir: _output/short
book:
  title: Short Paper
  chapters:
    - index.qmd
format:
  docx: default
`)
	write(t, filepath.Join(manuscript, "references.bib"), "@article{a, title={A}}\n")
	write(t, filepath.Join(manuscript, "style.csl"), "<style/>\n")
	write(t, filepath.Join(manuscript, "code", "setup.R"), "library(x)\n")
	write(t, filepath.Join(manuscript, "variants", "short", "index.qmd"), "# Intro\n")
	write(t, filepath.Join(manuscript, "variants", "short", "appendix", "extra.qmd"), "# Extra\n")
	write(t, filepath.Join(manuscript, "variants", "short", "notes.txt"), "ignored\n")
	write(t, filepath.Join(manuscript, "data", "table1.csv"), "a,b\n1,2\n")
	write(t, filepath.Join(manuscript, "figures", "fig1.png"), "png")
	write(t, filepath.Join(project, "data_work", "diagnostics", "table1.csv"), "a,b\n1,2\n")
	write(t, filepath.Join(project, "figures", "fig1.png"), "png")
	return project, manuscript
}

func newTestManager(manuscript string, opts ...Option) *Manager {
	base := []Option{
		WithClock(func() time.Time { return fixedNow }),
		WithGitProbe(fakeGit{GitInfo{InRepo: true, Commit: "abc123", Dirty: true, Status: []string{" M src/a.py"}}}),
	}
	return NewManager(manuscript, append(base, opts...)...)
}

func TestSnapshot(t *testing.T) {
	_, manuscript := setupProject(t)
	notes := "first draft"

	m, err := newTestManager(manuscript).Snapshot(context.Background(), "short", SnapshotOptions{
		CreatedBy: "analyst",
		Notes:     &notes,
	})
	require.NoError(t, err)

	assert.Equal(t, SchemaVersion, m.SchemaVersion)
	assert.Equal(t, "short", m.Variant.Name)
	assert.Equal(t, "manuscript_quarto/variants/short", m.Variant.Path)
	assert.Equal(t, "variant-short", m.Variant.Profile)
	assert.Equal(t, "manuscript_quarto/_quarto-variant-short.yml", m.Variant.ProfilePath)
	assert.Equal(t, "manuscript_quarto/_output/short", m.Variant.OutputDir)
	assert.Equal(t, "2026-02-01T08:00:00Z", m.Variant.CreatedAt)
	assert.Equal(t, "analyst", m.Variant.CreatedBy)
	assert.Equal(t, "first draft", m.Notes)

	var paths []string
	for _, f := range m.ManuscriptFiles {
		paths = append(paths, f.Path)
		assert.Equal(t, "manuscript", f.Category)
		assert.Len(t, f.SHA256, 64)
	}
	assert.Equal(t, []string{
		"manuscript_quarto/variants/short/appendix/extra.qmd",
		"manuscript_quarto/variants/short/index.qmd",
	}, paths)

	require.Len(t, m.CodeFiles, 1)
	assert.Equal(t, "code", m.CodeFiles[0].Category)

	require.Len(t, m.SupportFiles, 2)
	assert.Equal(t, "bibliography", m.SupportFiles[0].Category)
	assert.Equal(t, "csl", m.SupportFiles[1].Category)

	dp := m.DataProvenance
	assert.Equal(t, "manuscript_quarto/data", dp.DataDir)
	assert.Equal(t, "data_work/diagnostics", dp.DiagnosticsDir)
	assert.Equal(t, "figures", dp.FiguresExportDir)
	require.Len(t, dp.Files, 2)
	assert.Equal(t, "manuscript_quarto/data/table1.csv", dp.Files[0].Path)
	assert.Equal(t, []string{"data_work/diagnostics/table1.csv"}, dp.Files[0].SourceHints)
	assert.Equal(t, []string{"figures/fig1.png"}, dp.Files[1].SourceHints)

	summary := m.Quarto.Summary
	assert.Equal(t, "_output/short", summary.OutputDir)
	assert.Equal(t, "Short Paper", summary.BookTitle)
	assert.Equal(t, []any{"index.qmd"}, summary.Chapters)
	assert.Equal(t, []string{"docx", "html", "pdf"}, summary.Formats)
	assert.Equal(t, "references.bib", summary.Bibliography)
	require.NotNil(t, m.Quarto.BaseConfig)
	require.NotNil(t, m.Quarto.ProfileConfig)

	variantDir := filepath.Join(manuscript, "variants", "short")
	data, err := os.ReadFile(filepath.Join(variantDir, "variant.json"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "{\n  \"code_files\""))

	md, err := os.ReadFile(filepath.Join(variantDir, "variant.md"))
	require.NoError(t, err)
	assert.Contains(t, string(md), "# Manuscript Variant: short")
	assert.Contains(t, string(md), "- Git dirty: True")
	assert.Contains(t, string(md), "- Formats: docx, html, pdf")
	assert.Contains(t, string(md), "| Path | Size (bytes) | SHA256 | Source hints |")
	assert.Contains(t, string(md), "first draft")
}

func TestSnapshot_KeepsCreationMetadata(t *testing.T) {
	_, manuscript := setupProject(t)
	ctx := context.Background()

	notes := "keep me"
	_, err := newTestManager(manuscript).Snapshot(ctx, "short", SnapshotOptions{CreatedBy: "first", Notes: &notes})
	require.NoError(t, err)

	later := fixedNow.Add(48 * time.Hour)
	m, err := newTestManager(manuscript, WithClock(func() time.Time { return later })).
		Snapshot(ctx, "short", SnapshotOptions{})
	require.NoError(t, err)

	assert.Equal(t, "2026-02-01T08:00:00Z", m.Variant.CreatedAt)
	assert.Equal(t, "2026-02-03T08:00:00Z", m.Variant.SnapshotAt)
	assert.Equal(t, "first", m.Variant.CreatedBy)
	assert.Equal(t, "keep me", m.Notes)
}

func TestSnapshot_NotFound(t *testing.T) {
	_, manuscript := setupProject(t)

	_, err := newTestManager(manuscript).Snapshot(context.Background(), "long", SnapshotOptions{})
	assert.ErrorIs(t, err, ErrVariantNotFound)
}

func TestSnapshot_OutputDirFromText(t *testing.T) {
	project := t.TempDir()
	manuscript := filepath.Join(project, "manuscript_quarto")
	// broken YAML; the line scan still finds output-dir
	write(t, filepath.Join(manuscript, "_quarto.yml"), "project:\n  output-dir: rendered\n  title: [unclosed\n")
	write(t, filepath.Join(manuscript, "variants", "v1", "index.qmd"), "x")

	m, err := newTestManager(manuscript, WithGitProbe(fakeGit{})).Snapshot(context.Background(), "v1", SnapshotOptions{})
	require.NoError(t, err)

	assert.Equal(t, "rendered", m.Quarto.Summary.OutputDir)
	assert.Equal(t, "manuscript_quarto/rendered", m.Variant.OutputDir)
	assert.Empty(t, m.DataProvenance.DiagnosticsDir)

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"git":{}`)
}

func TestBuildIndex(t *testing.T) {
	_, manuscript := setupProject(t)
	ctx := context.Background()
	mgr := newTestManager(manuscript)

	idx, err := mgr.BuildIndex(ctx)
	require.NoError(t, err)
	assert.Empty(t, idx.Variants)
	assert.Contains(t, idx.Markdown(), "| _none_ |  |  |  |  |  |  |")

	_, err = mgr.Snapshot(ctx, "short", SnapshotOptions{})
	require.NoError(t, err)
	write(t, filepath.Join(manuscript, "variants", "broken", "variant.json"), "{not json")

	idx, err = mgr.BuildIndex(ctx)
	require.NoError(t, err)
	require.Len(t, idx.Variants, 1)
	assert.Equal(t, "short", idx.Variants[0].Name)
	assert.Equal(t, "manuscript_quarto/variants/short/variant.json", idx.Variants[0].Manifest)

	md, err := os.ReadFile(filepath.Join(manuscript, "variants", "INDEX.md"))
	require.NoError(t, err)
	assert.Contains(t, string(md), "# Variants Index")
	assert.Contains(t, string(md), "| abc123 (dirty) |")

	_, err = os.Stat(filepath.Join(manuscript, "variants", "index.json"))
	assert.NoError(t, err)
}

func TestCompare(t *testing.T) {
	_, manuscript := setupProject(t)
	ctx := context.Background()
	mgr := newTestManager(manuscript)

	write(t, filepath.Join(manuscript, "variants", "long", "index.qmd"), "# Intro, expanded\n")
	write(t, filepath.Join(manuscript, "variants", "long", "results.qmd"), "# Results\n")

	_, err := mgr.Snapshot(ctx, "short", SnapshotOptions{})
	require.NoError(t, err)
	_, err = mgr.Snapshot(ctx, "long", SnapshotOptions{})
	require.NoError(t, err)

	cmp, err := mgr.Compare("short", "long")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"manuscript_quarto/variants/short/appendix/extra.qmd",
		"manuscript_quarto/variants/short/index.qmd",
	}, cmp.Manuscript.LeftOnly)
	assert.Equal(t, []string{
		"manuscript_quarto/variants/long/index.qmd",
		"manuscript_quarto/variants/long/results.qmd",
	}, cmp.Manuscript.RightOnly)
	assert.Empty(t, cmp.Data.Changed)
	assert.Equal(t, "manuscript_quarto/_output/short", cmp.OutputDir[0])

	md := cmp.Markdown()
	assert.Contains(t, md, "# Variant Comparison: short vs long")
	assert.Contains(t, md, "## Data Inputs\n\n- Only in short: none")

	_, err = mgr.Compare("short", "missing")
	assert.ErrorIs(t, err, ErrManifestNotFound)
}

func TestRecordChanged(t *testing.T) {
	tests := []struct {
		name    string
		a, b    FileRecord
		changed bool
	}{
		{"same hash", FileRecord{SHA256: "x", SizeBytes: 1}, FileRecord{SHA256: "x", SizeBytes: 2}, false},
		{"different hash", FileRecord{SHA256: "x"}, FileRecord{SHA256: "y"}, true},
		{"no hash same stat", FileRecord{SizeBytes: 3, MTime: "t"}, FileRecord{SHA256: "y", SizeBytes: 3, MTime: "t"}, false},
		{"no hash different mtime", FileRecord{SizeBytes: 3, MTime: "t"}, FileRecord{SizeBytes: 3, MTime: "u"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.changed, recordChanged(tt.a, tt.b))
		})
	}
}

func TestDigester_Cache(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	write(t, path, "hello")
	info, err := os.Stat(path)
	require.NoError(t, err)

	cache := newMemCache()
	d := NewDigester(cache, time.Hour)

	first, err := d.Digest(context.Background(), path, info)
	require.NoError(t, err)
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", first)
	assert.Equal(t, 0, cache.hits)

	second, err := d.Digest(context.Background(), path, info)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, cache.hits)
}

func TestGitInspector_OutsideRepo(t *testing.T) {
	info := GitInspector{}.Info(t.TempDir())
	assert.False(t, info.InRepo)
	assert.Empty(t, info.Commit)
}

func TestGitInfo_JSON(t *testing.T) {
	data, err := json.Marshal(GitInfo{})
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))

	in := GitInfo{InRepo: true, Commit: "abc", Status: []string{}}
	data, err = json.Marshal(in)
	require.NoError(t, err)

	var out GitInfo
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}
