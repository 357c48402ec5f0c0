package audit

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/wonny/paperflow/internal/contracts"
	"github.com/wonny/paperflow/internal/tabular"
	"github.com/wonny/paperflow/pkg/logger"
)

// ErrUnknownStage is returned when a stage name is not in the configured map
var ErrUnknownStage = errors.New("stage not found")

// Source loads datasets and counts rows for stage files
type Source interface {
	Load(path string) (*tabular.Dataset, error)
	CountRows(path string) (int, error)
}

// Pipeline audits the configured stage files under a project root
// ⭐ SSOT: 스테이지 감사는 여기서만 (CLI, 스케줄러, API 모두 이 타입 사용)
type Pipeline struct {
	root   string
	stages []contracts.Stage
	source Source
	log    *logger.Logger
	now    func() time.Time
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithStages overrides the stage map. An empty list keeps the defaults.
func WithStages(stages []contracts.Stage) Option {
	return func(p *Pipeline) {
		if len(stages) > 0 {
			p.stages = append([]contracts.Stage(nil), stages...)
		}
	}
}

// WithSource overrides the dataset source
func WithSource(src Source) Option {
	return func(p *Pipeline) {
		p.source = src
	}
}

// WithLogger sets the logger
func WithLogger(log *logger.Logger) Option {
	return func(p *Pipeline) {
		p.log = log
	}
}

// WithClock overrides the report timestamp source
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// New creates a pipeline audit rooted at root.
// Stage names must be unique and every stage needs a path.
func New(root string, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		root:   root,
		stages: contracts.DefaultStages(),
		source: tabular.NewLoader(),
		log:    logger.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if err := contracts.ValidateStages(p.stages); err != nil {
		return nil, err
	}
	p.log = p.log.WithComponent("audit")
	return p, nil
}

// Root returns the project root
func (p *Pipeline) Root() string {
	return p.root
}

// Stages returns a copy of the configured stages in order
func (p *Pipeline) Stages() []contracts.Stage {
	return append([]contracts.Stage(nil), p.stages...)
}

// CountRows counts rows without a full load where the format allows it.
// Absent files count as zero.
func (p *Pipeline) CountRows(path string) (int, error) {
	return p.source.CountRows(p.resolve(path))
}

// AuditStage inspects one stage output file. Read failures become notes, never errors.
func (p *Pipeline) AuditStage(name, path string) StageAudit {
	full := p.resolve(path)
	log := p.log.WithField("stage", name)

	info, err := os.Stat(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Debug("Stage file not found")
			return StageAudit{
				StageName: name,
				FilePath:  full,
				Status:    contracts.StageMissing,
				Notes:     "File not found",
			}
		}
		log.WithError(err).Warn("Stage file stat failed")
		return unreadable(name, full, err)
	}

	ds, err := p.source.Load(full)
	if err != nil {
		log.WithError(err).Warn("Stage file unreadable")
		return unreadable(name, full, err)
	}

	status := contracts.StageOK
	if ds.NumRows() == 0 {
		status = contracts.StageEmpty
	}

	log.WithFields(map[string]interface{}{
		"rows":   ds.NumRows(),
		"cols":   ds.NumColumns(),
		"status": status,
	}).Debug("Stage audited")

	return StageAudit{
		StageName:       name,
		FilePath:        full,
		Exists:          true,
		Status:          status,
		RowCount:        ds.NumRows(),
		ColumnCount:     ds.NumColumns(),
		Columns:         ds.ColumnNames(),
		FileSizeMB:      float64(info.Size()) / (1024 * 1024),
		ModifiedTime:    info.ModTime(),
		MissingByColumn: ds.MissingByColumn(),
	}
}

// RunFullAudit audits every configured stage in order
func (p *Pipeline) RunFullAudit() *Report {
	report := &Report{GeneratedAt: p.now()}
	for _, s := range p.stages {
		report.Stages = append(report.Stages, p.AuditStage(s.Name, s.Path))
	}

	p.log.WithFields(map[string]interface{}{
		"stages":    report.TotalStages(),
		"with_data": report.StagesWithData(),
	}).Info("Pipeline audit complete")

	return report
}

// GenerateMarkdownReport runs a fresh audit and renders it as markdown
func (p *Pipeline) GenerateMarkdownReport() string {
	return RenderMarkdown(p.RunFullAudit())
}

// Comparison describes how two stage outputs differ.
// When either file is absent only Error and the exists flags are meaningful.
type Comparison struct {
	Stage1         string   `json:"stage1"`
	Stage2         string   `json:"stage2"`
	Stage1Exists   bool     `json:"stage1_exists"`
	Stage2Exists   bool     `json:"stage2_exists"`
	Error          string   `json:"error,omitempty"`
	RowCount1      int      `json:"row_count_1"`
	RowCount2      int      `json:"row_count_2"`
	RowDiff        int      `json:"row_diff"`
	ColumnsAdded   []string `json:"columns_added"`
	ColumnsRemoved []string `json:"columns_removed"`
	ColumnsCommon  []string `json:"columns_common"`
}

// OK reports whether both stage files existed
func (c *Comparison) OK() bool {
	return c.Error == ""
}

// CompareStages audits two named stages and diffs their row counts and column sets.
// Unknown stage names fail with ErrUnknownStage; missing files yield an error record.
func (p *Pipeline) CompareStages(first, second string) (*Comparison, error) {
	s1, ok1 := contracts.FindStage(p.stages, first)
	s2, ok2 := contracts.FindStage(p.stages, second)
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("%w. Available: [%s]", ErrUnknownStage,
			strings.Join(contracts.StageNames(p.stages), ", "))
	}

	a1 := p.AuditStage(s1.Name, s1.Path)
	a2 := p.AuditStage(s2.Name, s2.Path)

	cmp := &Comparison{
		Stage1:       first,
		Stage2:       second,
		Stage1Exists: a1.Exists,
		Stage2Exists: a2.Exists,
	}
	if !a1.Exists || !a2.Exists {
		cmp.Error = "One or both stage files do not exist"
		return cmp, nil
	}

	cols1 := toSet(a1.Columns)
	cols2 := toSet(a2.Columns)

	cmp.RowCount1 = a1.RowCount
	cmp.RowCount2 = a2.RowCount
	cmp.RowDiff = a2.RowCount - a1.RowCount
	cmp.ColumnsAdded = difference(cols2, cols1)
	cmp.ColumnsRemoved = difference(cols1, cols2)
	cmp.ColumnsCommon = intersection(cols1, cols2)
	return cmp, nil
}

func (p *Pipeline) resolve(path string) string {
	if filepath.IsAbs(path) || p.root == "" {
		return path
	}
	return filepath.Join(p.root, path)
}

func unreadable(name, full string, err error) StageAudit {
	return StageAudit{
		StageName: name,
		FilePath:  full,
		Exists:    true,
		Status:    contracts.StageUnreadable,
		Notes:     "Error reading file: " + err.Error(),
	}
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, s := range items {
		set[s] = struct{}{}
	}
	return set
}

// difference returns sorted a minus b
func difference(a, b map[string]struct{}) []string {
	out := []string{}
	for k := range a {
		if _, ok := b[k]; !ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func intersection(a, b map[string]struct{}) []string {
	out := []string{}
	for k := range a {
		if _, ok := b[k]; ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
