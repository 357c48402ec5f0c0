package variant

import (
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"
)

const maxStatusLines = 100

// GitProbe reports repository state for a directory
type GitProbe interface {
	Info(dir string) GitInfo
}

// GitInspector reads commit and worktree status with go-git
type GitInspector struct{}

// Info returns the HEAD commit, dirty flag and up to 100 status lines.
// Outside a repository, or when the repository cannot be read, it returns an empty GitInfo.
func (GitInspector) Info(dir string) GitInfo {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return GitInfo{}
	}

	info := GitInfo{InRepo: true}
	if head, err := repo.Head(); err == nil {
		info.Commit = head.Hash().String()
	}

	wt, err := repo.Worktree()
	if err != nil {
		return info
	}
	status, err := wt.Status()
	if err != nil {
		return info
	}

	var lines []string
	for _, line := range strings.Split(status.String(), "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	sort.Strings(lines)

	info.Dirty = len(lines) > 0
	if len(lines) > maxStatusLines {
		lines = lines[:maxStatusLines]
	}
	info.Status = lines
	return info
}
