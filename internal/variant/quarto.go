package variant

import (
	"bufio"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const defaultOutputDir = "_output"

// loadYAML returns the top-level mapping of a YAML file, or an empty map on any failure
func loadYAML(path string) map[string]any {
	data, err := os.ReadFile(path)
	if err != nil {
		return map[string]any{}
	}
	var out map[string]any
	if err := yaml.Unmarshal(data, &out); err != nil || out == nil {
		return map[string]any{}
	}
	return out
}

func asMap(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

func asList(v any) []any {
	if l, ok := v.([]any); ok {
		return l
	}
	return []any{}
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return x != ""
	case bool:
		return x
	default:
		return true
	}
}

// outputDir prefers the profile's project.output-dir over the base config's
func outputDir(base, profile map[string]any) string {
	if v := asMap(profile["project"])["output-dir"]; truthy(v) {
		if s, ok := v.(string); ok {
			return s
		}
	}
	if v := asMap(base["project"])["output-dir"]; truthy(v) {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return defaultOutputDir
}

func configValue(base, profile map[string]any, key string) any {
	if v, ok := profile[key]; ok {
		return v
	}
	return base[key]
}

// summarize merges base and profile Quarto configs into the recorded summary
func summarize(base, profile map[string]any) QuartoSummary {
	book := asMap(base["book"])
	if v, ok := profile["book"]; ok {
		book = asMap(v)
	}

	formats := make(map[string]struct{})
	for k := range asMap(base["format"]) {
		formats[k] = struct{}{}
	}
	for k := range asMap(profile["format"]) {
		formats[k] = struct{}{}
	}
	names := make([]string, 0, len(formats))
	for k := range formats {
		names = append(names, k)
	}
	sort.Strings(names)

	return QuartoSummary{
		OutputDir:    outputDir(base, profile),
		Bibliography: configValue(base, profile, "bibliography"),
		CSL:          configValue(base, profile, "csl"),
		BookTitle:    book["title"],
		Chapters:     asList(book["chapters"]),
		Appendices:   asList(book["appendices"]),
		Formats:      names,
	}
}

// outputDirFromText scans a Quarto file for project.output-dir without a YAML parser
func outputDirFromText(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	inProject := false
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		raw := scanner.Text()
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if line == "project:" {
			inProject = true
			continue
		}
		if inProject && !strings.HasPrefix(raw, " ") {
			inProject = false
		}
		if inProject && strings.HasPrefix(line, "output-dir:") {
			return strings.TrimSpace(strings.SplitN(line, ":", 2)[1])
		}
	}
	return ""
}
