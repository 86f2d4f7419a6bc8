// Package git extracts lightweight repository metadata (head commit,
// branch, remote, dirty state) from a local git working tree, for
// stamping into a docpack's manifest.
package git

import (
	"os/exec"
	"strings"
	"time"
)

// RepoInfo captures the metadata recorded in a docpack manifest when
// the ingested path is a git working tree.
type RepoInfo struct {
	Path       string
	Head       string
	Branch     string
	Dirty      bool
	Remote     string
	LastCommit time.Time
}

// IsRepo reports whether path is inside a git working tree.
func IsRepo(path string) bool {
	cmd := exec.Command("git", "-C", path, "rev-parse", "--git-dir")
	return cmd.Run() == nil
}

// GetInfo collects repository metadata for path. The head commit must
// resolve; branch, remote, and last-commit time are best-effort.
func GetInfo(repoPath string) (*RepoInfo, error) {
	info := &RepoInfo{Path: repoPath}

	head, err := getHead(repoPath)
	if err != nil {
		return nil, err
	}
	info.Head = head

	if branch, err := getBranch(repoPath); err == nil {
		info.Branch = branch
	}

	info.Dirty = isDirty(repoPath)

	if remote, err := getRemote(repoPath); err == nil {
		info.Remote = remote
	}

	if lastCommit, err := getLastCommitTime(repoPath); err == nil {
		info.LastCommit = lastCommit
	}

	return info, nil
}

func getHead(repoPath string) (string, error) {
	cmd := exec.Command("git", "-C", repoPath, "rev-parse", "--short", "HEAD")
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func getBranch(repoPath string) (string, error) {
	cmd := exec.Command("git", "-C", repoPath, "rev-parse", "--abbrev-ref", "HEAD")
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func isDirty(repoPath string) bool {
	cmd := exec.Command("git", "-C", repoPath, "status", "--porcelain")
	out, err := cmd.Output()
	if err != nil {
		return false
	}
	return len(strings.TrimSpace(string(out))) > 0
}

func getRemote(repoPath string) (string, error) {
	cmd := exec.Command("git", "-C", repoPath, "remote", "get-url", "origin")
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func getLastCommitTime(repoPath string) (time.Time, error) {
	cmd := exec.Command("git", "-C", repoPath, "log", "-1", "--format=%cI")
	out, err := cmd.Output()
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339, strings.TrimSpace(string(out)))
}
