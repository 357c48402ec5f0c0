package variant

import (
	"path/filepath"
	"sort"
	"strings"
)

// FileDiff lists paths present on one side only and paths whose content changed
type FileDiff struct {
	LeftOnly  []string `json:"left_only"`
	RightOnly []string `json:"right_only"`
	Changed   []string `json:"changed"`
}

// Comparison is the difference between two variant manifests
type Comparison struct {
	Left                string    `json:"left"`
	Right               string    `json:"right"`
	LeftSnapshot        string    `json:"left_snapshot"`
	RightSnapshot       string    `json:"right_snapshot"`
	LeftGit             string    `json:"left_git"`
	RightGit            string    `json:"right_git"`
	Manuscript          FileDiff  `json:"manuscript_files"`
	Data                FileDiff  `json:"data_inputs"`
	BaseConfigSHA256    [2]string `json:"base_config_sha256"`
	ProfileConfigSHA256 [2]string `json:"profile_config_sha256"`
	OutputDir           [2]string `json:"output_dir"`
}

// Compare diffs the manifests of two variants
func (m *Manager) Compare(left, right string) (*Comparison, error) {
	lm, err := LoadManifest(filepath.Join(m.VariantsDir(), left, "variant.json"))
	if err != nil {
		return nil, err
	}
	rm, err := LoadManifest(filepath.Join(m.VariantsDir(), right, "variant.json"))
	if err != nil {
		return nil, err
	}

	return &Comparison{
		Left:          left,
		Right:         right,
		LeftSnapshot:  lm.Variant.SnapshotAt,
		RightSnapshot: rm.Variant.SnapshotAt,
		LeftGit:       lm.Git.Commit,
		RightGit:      rm.Git.Commit,
		Manuscript:    diffFiles(lm.ManuscriptFiles, rm.ManuscriptFiles),
		Data:          diffFiles(lm.DataProvenance.Files, rm.DataProvenance.Files),
		BaseConfigSHA256: [2]string{
			recordField(lm.Quarto.BaseConfig, sha),
			recordField(rm.Quarto.BaseConfig, sha),
		},
		ProfileConfigSHA256: [2]string{
			recordField(lm.Quarto.ProfileConfig, sha),
			recordField(rm.Quarto.ProfileConfig, sha),
		},
		OutputDir: [2]string{lm.Variant.OutputDir, rm.Variant.OutputDir},
	}, nil
}

func sha(r *FileRecord) string { return r.SHA256 }

func byPath(files []FileRecord) map[string]FileRecord {
	out := make(map[string]FileRecord, len(files))
	for _, f := range files {
		if f.Path != "" {
			out[f.Path] = f
		}
	}
	return out
}

// recordChanged compares by sha256 when both sides have one, otherwise by size and mtime
func recordChanged(a, b FileRecord) bool {
	if a.SHA256 != "" && b.SHA256 != "" {
		return a.SHA256 != b.SHA256
	}
	return a.SizeBytes != b.SizeBytes || a.MTime != b.MTime
}

func diffFiles(left, right []FileRecord) FileDiff {
	l, r := byPath(left), byPath(right)
	diff := FileDiff{LeftOnly: []string{}, RightOnly: []string{}, Changed: []string{}}

	for path, lf := range l {
		rf, ok := r[path]
		switch {
		case !ok:
			diff.LeftOnly = append(diff.LeftOnly, path)
		case recordChanged(lf, rf):
			diff.Changed = append(diff.Changed, path)
		}
	}
	for path := range r {
		if _, ok := l[path]; !ok {
			diff.RightOnly = append(diff.RightOnly, path)
		}
	}

	sort.Strings(diff.LeftOnly)
	sort.Strings(diff.RightOnly)
	sort.Strings(diff.Changed)
	return diff
}

func listOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}

// Markdown renders the comparison report
func (c *Comparison) Markdown() string {
	lines := []string{
		"# Variant Comparison: " + c.Left + " vs " + c.Right,
		"",
		"- Left snapshot: " + c.LeftSnapshot,
		"- Right snapshot: " + c.RightSnapshot,
		"- Left git: " + c.LeftGit,
		"- Right git: " + c.RightGit,
		"",
		"## Manuscript Files",
		"",
		"- Only in " + c.Left + ": " + listOrNone(c.Manuscript.LeftOnly),
		"- Only in " + c.Right + ": " + listOrNone(c.Manuscript.RightOnly),
		"- Changed: " + listOrNone(c.Manuscript.Changed),
		"",
		"## Data Inputs",
		"",
		"- Only in " + c.Left + ": " + listOrNone(c.Data.LeftOnly),
		"- Only in " + c.Right + ": " + listOrNone(c.Data.RightOnly),
		"- Changed: " + listOrNone(c.Data.Changed),
		"",
		"## Quarto Configuration",
		"",
		"- Base config sha256: " + c.BaseConfigSHA256[0] + " vs " + c.BaseConfigSHA256[1],
		"- Profile config sha256: " + c.ProfileConfigSHA256[0] + " vs " + c.ProfileConfigSHA256[1],
		"- Output dir: " + c.OutputDir[0] + " vs " + c.OutputDir[1],
		"",
	}
	return strings.Join(lines, "\n")
}
