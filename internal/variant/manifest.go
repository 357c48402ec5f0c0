package variant

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// SchemaVersion of variant.json
const SchemaVersion = 1

var (
	// ErrVariantNotFound is returned when variants/<name> does not exist
	ErrVariantNotFound = errors.New("variant directory not found")

	// ErrManifestNotFound is returned when a variant has no readable variant.json
	ErrManifestNotFound = errors.New("missing manifest for variant")
)

// Struct fields are declared in JSON key order so encoded manifests have sorted keys.

// FileRecord describes one file captured in a manifest
type FileRecord struct {
	Category    string   `json:"category,omitempty"`
	MTime       string   `json:"mtime"`
	Path        string   `json:"path"`
	SHA256      string   `json:"sha256,omitempty"`
	SizeBytes   int64    `json:"size_bytes"`
	SourceHints []string `json:"source_hints,omitempty"`
}

// Info identifies a variant and when it was captured
type Info struct {
	CreatedAt   string `json:"created_at"`
	CreatedBy   string `json:"created_by"`
	Name        string `json:"name"`
	OutputDir   string `json:"output_dir"`
	Path        string `json:"path"`
	Profile     string `json:"profile"`
	ProfilePath string `json:"profile_path"`
	SnapshotAt  string `json:"snapshot_at"`
}

// GitInfo is the repository state at snapshot time. Outside a repository it encodes as {}.
type GitInfo struct {
	InRepo bool     `json:"-"`
	Commit string   `json:"commit"`
	Dirty  bool     `json:"dirty"`
	Status []string `json:"status"`
}

type gitInfoJSON struct {
	Commit *string  `json:"commit,omitempty"`
	Dirty  *bool    `json:"dirty,omitempty"`
	Status []string `json:"status,omitempty"`
}

// MarshalJSON encodes an empty object outside a repository
func (g GitInfo) MarshalJSON() ([]byte, error) {
	if !g.InRepo {
		return []byte("{}"), nil
	}
	status := g.Status
	if status == nil {
		status = []string{}
	}
	return json.Marshal(struct {
		Commit string   `json:"commit"`
		Dirty  bool     `json:"dirty"`
		Status []string `json:"status"`
	}{g.Commit, g.Dirty, status})
}

// UnmarshalJSON treats any populated object as inside a repository
func (g *GitInfo) UnmarshalJSON(data []byte) error {
	var raw gitInfoJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*g = GitInfo{Status: raw.Status}
	if raw.Commit != nil {
		g.Commit = *raw.Commit
		g.InRepo = true
	}
	if raw.Dirty != nil {
		g.Dirty = *raw.Dirty
		g.InRepo = true
	}
	return nil
}

// QuartoSummary is the subset of Quarto configuration worth recording
type QuartoSummary struct {
	Appendices   []any    `json:"appendices"`
	Bibliography any      `json:"bibliography"`
	BookTitle    any      `json:"book_title"`
	Chapters     []any    `json:"chapters"`
	CSL          any      `json:"csl"`
	Formats      []string `json:"formats"`
	OutputDir    string   `json:"output_dir"`
}

// Quarto records the base and profile config files and their merged summary
type Quarto struct {
	BaseConfig    *FileRecord   `json:"base_config,omitempty"`
	ProfileConfig *FileRecord   `json:"profile_config,omitempty"`
	Summary       QuartoSummary `json:"summary"`
}

// DataProvenance lists data and figure inputs with hints to where they came from
type DataProvenance struct {
	DataDir          string       `json:"data_dir"`
	DiagnosticsDir   string       `json:"diagnostics_dir"`
	Files            []FileRecord `json:"files"`
	FiguresDir       string       `json:"figures_dir"`
	FiguresExportDir string       `json:"figures_export_dir"`
}

// Manifest is the content of variants/<name>/variant.json
type Manifest struct {
	CodeFiles       []FileRecord   `json:"code_files"`
	DataProvenance  DataProvenance `json:"data_provenance"`
	Git             GitInfo        `json:"git"`
	ManuscriptFiles []FileRecord   `json:"manuscript_files"`
	Notes           string         `json:"notes"`
	Quarto          Quarto         `json:"quarto"`
	SchemaVersion   int            `json:"schema_version"`
	SupportFiles    []FileRecord   `json:"support_files"`
	Variant         Info           `json:"variant"`
}

// LoadManifest reads a manifest; a missing or unparsable file yields ErrManifestNotFound
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrManifestNotFound, path)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrManifestNotFound, path, err)
	}
	return &m, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func pyBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

func displayValue(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// Markdown renders the human-readable variant.md
func (m *Manifest) Markdown() string {
	dirty := ""
	if m.Git.InRepo {
		dirty = pyBool(m.Git.Dirty)
	}

	lines := []string{
		"# Manuscript Variant: " + m.Variant.Name,
		"",
		"- Created: " + m.Variant.CreatedAt,
		"- Snapshot: " + m.Variant.SnapshotAt,
		"- Profile: " + m.Variant.Profile,
		"- Output dir: " + m.Variant.OutputDir,
		"- Git commit: " + m.Git.Commit,
		"- Git dirty: " + dirty,
		"",
		"## Manuscript Files",
		"",
	}
	lines = appendFileTable(lines, m.ManuscriptFiles, false)

	dp := m.DataProvenance
	lines = append(lines,
		"## Data Inputs",
		"",
		"- Data dir: "+dp.DataDir,
		"- Figures dir: "+dp.FiguresDir,
		"- Diagnostics dir: "+dp.DiagnosticsDir,
		"- Figures export dir: "+dp.FiguresExportDir,
		"",
	)
	lines = appendFileTable(lines, dp.Files, true)

	lines = append(lines,
		"## Quarto Configuration",
		"",
		"- Base config: "+recordField(m.Quarto.BaseConfig, func(r *FileRecord) string { return r.Path }),
		"- Base config sha256: "+recordField(m.Quarto.BaseConfig, func(r *FileRecord) string { return r.SHA256 }),
		"- Profile config: "+recordField(m.Quarto.ProfileConfig, func(r *FileRecord) string { return r.Path }),
		"- Profile config sha256: "+recordField(m.Quarto.ProfileConfig, func(r *FileRecord) string { return r.SHA256 }),
		"- Formats: "+strings.Join(m.Quarto.Summary.Formats, ", "),
		"- CSL: "+displayValue(m.Quarto.Summary.CSL),
		"- Bibliography: "+displayValue(m.Quarto.Summary.Bibliography),
		"",
		"## Supporting Files",
		"",
	)
	support := append(append([]FileRecord(nil), m.CodeFiles...), m.SupportFiles...)
	lines = appendFileTable(lines, support, false)

	notes := m.Notes
	if notes == "" {
		notes = "_None._"
	}
	lines = append(lines, "## Notes", "", notes, "")

	return strings.Join(lines, "\n")
}

func appendFileTable(lines []string, files []FileRecord, withHints bool) []string {
	if len(files) == 0 {
		return append(lines, "_None detected._\n")
	}

	if withHints {
		lines = append(lines, "| Path | Size (bytes) | SHA256 | Source hints |", "| --- | --- | --- | --- |")
	} else {
		lines = append(lines, "| Path | Size (bytes) | SHA256 |", "| --- | --- | --- |")
	}
	for _, f := range files {
		row := fmt.Sprintf("| %s | %s | %s |", f.Path, strconv.FormatInt(f.SizeBytes, 10), f.SHA256)
		if withHints {
			row += " " + strings.Join(f.SourceHints, ", ") + " |"
		}
		lines = append(lines, row)
	}
	return append(lines, "")
}

func recordField(r *FileRecord, get func(*FileRecord) string) string {
	if r == nil {
		return ""
	}
	return get(r)
}
