package variant

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/wonny/paperflow/pkg/logger"
)

// Manager snapshots, indexes and compares manuscript variants under <manuscript>/variants
// ⭐ SSOT: variant.json / index.json 작성은 여기서만
type Manager struct {
	manuscriptRoot string
	projectRoot    string
	digester       *Digester
	git            GitProbe
	log            *logger.Logger
	now            func() time.Time
}

// Option configures a Manager
type Option func(*Manager)

// WithDigester sets the digester (e.g. one backed by the Redis cache)
func WithDigester(d *Digester) Option {
	return func(m *Manager) {
		m.digester = d
	}
}

// WithGitProbe overrides the repository inspector
func WithGitProbe(g GitProbe) Option {
	return func(m *Manager) {
		m.git = g
	}
}

// WithLogger sets the logger
func WithLogger(log *logger.Logger) Option {
	return func(m *Manager) {
		m.log = log
	}
}

// WithClock overrides the timestamp source
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a manager for the manuscript directory. Its parent is the project root.
func NewManager(manuscriptRoot string, opts ...Option) *Manager {
	root := filepath.Clean(manuscriptRoot)
	m := &Manager{
		manuscriptRoot: root,
		projectRoot:    filepath.Dir(root),
		digester:       NewDigester(nil, 0),
		git:            GitInspector{},
		log:            logger.Nop(),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.WithComponent("variant")
	return m
}

// VariantsDir returns <manuscript>/variants
func (m *Manager) VariantsDir() string {
	return filepath.Join(m.manuscriptRoot, "variants")
}

func (m *Manager) timestamp() string {
	return m.now().UTC().Format(time.RFC3339Nano)
}

// rel returns path relative to the project root in slash form, or path itself when outside it
func (m *Manager) rel(path string) string {
	r, err := filepath.Rel(m.projectRoot, path)
	if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(r)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (m *Manager) record(ctx context.Context, path, category string) (FileRecord, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileRecord{}, err
	}

	rec := FileRecord{
		Path:      m.rel(path),
		SizeBytes: info.Size(),
		MTime:     info.ModTime().UTC().Format(time.RFC3339Nano),
		Category:  category,
	}

	sum, err := m.digester.Digest(ctx, path, info)
	if err != nil {
		return FileRecord{}, err
	}
	rec.SHA256 = sum
	return rec, nil
}

type collectOptions struct {
	category     string
	sourceDirs   []string
	includeExts  []string
	excludeNames []string
}

// collect records every regular file under dir, sorted by path
func (m *Manager) collect(ctx context.Context, dir string, opts collectOptions) ([]FileRecord, error) {
	if !exists(dir) {
		return []FileRecord{}, nil
	}

	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	sort.Slice(paths, func(i, j int) bool {
		return filepath.ToSlash(paths[i]) < filepath.ToSlash(paths[j])
	})

	records := []FileRecord{}
	for _, path := range paths {
		name := filepath.Base(path)
		if len(opts.includeExts) > 0 && !contains(opts.includeExts, filepath.Ext(path)) {
			continue
		}
		if contains(opts.excludeNames, name) {
			continue
		}

		rec, err := m.record(ctx, path, opts.category)
		if err != nil {
			return nil, err
		}
		for _, src := range opts.sourceDirs {
			if candidate := filepath.Join(src, name); exists(candidate) {
				rec.SourceHints = append(rec.SourceHints, m.rel(candidate))
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

func contains(items []string, s string) bool {
	for _, it := range items {
		if it == s {
			return true
		}
	}
	return false
}

// SnapshotOptions carries optional snapshot metadata.
// Empty CreatedBy and nil Notes keep the values of an existing manifest.
type SnapshotOptions struct {
	CreatedBy string
	Notes     *string
}

// Snapshot captures the current state of variants/<name> into variant.json and variant.md
func (m *Manager) Snapshot(ctx context.Context, name string, opts SnapshotOptions) (*Manifest, error) {
	variantDir := filepath.Join(m.VariantsDir(), name)
	if info, err := os.Stat(variantDir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrVariantNotFound, variantDir)
	}

	profileName := "variant-" + name
	profileFile := filepath.Join(m.manuscriptRoot, "_quarto-"+profileName+".yml")
	baseFile := filepath.Join(m.manuscriptRoot, "_quarto.yml")

	var existing Manifest
	if prev, err := LoadManifest(filepath.Join(variantDir, "variant.json")); err == nil {
		existing = *prev
	}

	now := m.timestamp()
	createdAt := existing.Variant.CreatedAt
	if createdAt == "" {
		createdAt = now
	}
	createdBy := opts.CreatedBy
	if createdBy == "" {
		createdBy = existing.Variant.CreatedBy
	}
	if createdBy == "" {
		createdBy = os.Getenv("USER")
	}
	notes := existing.Notes
	if opts.Notes != nil {
		notes = *opts.Notes
	}

	baseCfg := loadYAML(baseFile)
	profileCfg := loadYAML(profileFile)
	summary := summarize(baseCfg, profileCfg)
	if summary.OutputDir == defaultOutputDir && len(baseCfg) == 0 && len(profileCfg) == 0 {
		if override := outputDirFromText(profileFile); override != "" {
			summary.OutputDir = override
		} else if override := outputDirFromText(baseFile); override != "" {
			summary.OutputDir = override
		}
	}
	outDir := summary.OutputDir
	if !filepath.IsAbs(outDir) {
		outDir = filepath.Join(m.manuscriptRoot, outDir)
	}

	manuscriptFiles, err := m.collect(ctx, variantDir, collectOptions{
		category:     "manuscript",
		includeExts:  []string{".qmd"},
		excludeNames: []string{"variant.json", "variant.md"},
	})
	if err != nil {
		return nil, err
	}

	codeFiles, err := m.collect(ctx, filepath.Join(m.manuscriptRoot, "code"), collectOptions{category: "code"})
	if err != nil {
		return nil, err
	}

	supportFiles := []FileRecord{}
	if refs := filepath.Join(m.manuscriptRoot, "references.bib"); exists(refs) {
		rec, err := m.record(ctx, refs, "bibliography")
		if err != nil {
			return nil, err
		}
		supportFiles = append(supportFiles, rec)
	}
	if csl, ok := summary.CSL.(string); ok {
		if cslPath := filepath.Join(m.manuscriptRoot, csl); exists(cslPath) {
			rec, err := m.record(ctx, cslPath, "csl")
			if err != nil {
				return nil, err
			}
			supportFiles = append(supportFiles, rec)
		}
	}

	dataDir := filepath.Join(m.manuscriptRoot, "data")
	figuresDir := filepath.Join(m.manuscriptRoot, "figures")
	diagnosticsDir := filepath.Join(m.projectRoot, "data_work", "diagnostics")
	exportDir := filepath.Join(m.projectRoot, "figures")

	provenance := DataProvenance{
		DataDir:    m.rel(dataDir),
		FiguresDir: m.rel(figuresDir),
	}
	dataOpts := collectOptions{category: "data"}
	if exists(diagnosticsDir) {
		dataOpts.sourceDirs = []string{diagnosticsDir}
		provenance.DiagnosticsDir = m.rel(diagnosticsDir)
	}
	figureOpts := collectOptions{category: "figure"}
	if exists(exportDir) {
		figureOpts.sourceDirs = []string{exportDir}
		provenance.FiguresExportDir = m.rel(exportDir)
	}

	dataFiles, err := m.collect(ctx, dataDir, dataOpts)
	if err != nil {
		return nil, err
	}
	figureFiles, err := m.collect(ctx, figuresDir, figureOpts)
	if err != nil {
		return nil, err
	}
	provenance.Files = append(dataFiles, figureFiles...)
	sort.SliceStable(provenance.Files, func(i, j int) bool {
		return provenance.Files[i].Path < provenance.Files[j].Path
	})

	quarto := Quarto{Summary: summary}
	if exists(baseFile) {
		rec, err := m.record(ctx, baseFile, "config")
		if err != nil {
			return nil, err
		}
		quarto.BaseConfig = &rec
	}
	profilePath := ""
	if exists(profileFile) {
		rec, err := m.record(ctx, profileFile, "config")
		if err != nil {
			return nil, err
		}
		quarto.ProfileConfig = &rec
		profilePath = m.rel(profileFile)
	}

	manifest := &Manifest{
		SchemaVersion: SchemaVersion,
		Variant: Info{
			Name:        name,
			Path:        m.rel(variantDir),
			Profile:     profileName,
			ProfilePath: profilePath,
			OutputDir:   m.rel(filepath.Clean(outDir)),
			CreatedAt:   createdAt,
			SnapshotAt:  now,
			CreatedBy:   createdBy,
		},
		Git:             m.git.Info(m.projectRoot),
		Quarto:          quarto,
		ManuscriptFiles: manuscriptFiles,
		CodeFiles:       codeFiles,
		SupportFiles:    supportFiles,
		DataProvenance:  provenance,
		Notes:           notes,
	}

	if err := writeJSON(filepath.Join(variantDir, "variant.json"), manifest); err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(variantDir, "variant.md"), []byte(manifest.Markdown()), 0o644); err != nil {
		return nil, fmt.Errorf("write variant.md: %w", err)
	}

	m.log.WithFields(map[string]interface{}{
		"variant":    name,
		"manuscript": len(manuscriptFiles),
		"data":       len(provenance.Files),
		"dirty":      manifest.Git.Dirty,
	}).Info("Variant snapshot written")

	return manifest, nil
}
