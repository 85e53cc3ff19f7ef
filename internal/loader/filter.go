package loader

import (
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	gitignore "github.com/sabhiram/go-gitignore"
)

// DefaultExcludedDirs are directory names never descended into.
var DefaultExcludedDirs = []string{
	".git",
	".docqa",
	"node_modules",
	"vendor",
	"__pycache__",
	".venv",
	".idea",
	".vscode",
}

// IsExcludedDir reports whether name is one of DefaultExcludedDirs.
func IsExcludedDir(name string) bool {
	for _, excl := range DefaultExcludedDirs {
		if strings.EqualFold(name, excl) {
			return true
		}
	}
	return false
}

// loadGitignore compiles root/.gitignore, or returns nil when there is none.
func loadGitignore(root string) *gitignore.GitIgnore {
	gi, err := gitignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	return gi
}

// MatchesInclude returns true if the given relative path matches any of the
// include patterns. If patterns is empty, everything is included.
func MatchesInclude(relPath string, patterns []string) bool {
	if len(patterns) == 0 {
		return true
	}
	return matchesAny(relPath, patterns)
}

// MatchesExclude returns true if the given relative path matches any of the
// exclude patterns. If patterns is empty, nothing is excluded.
func MatchesExclude(relPath string, patterns []string) bool {
	if len(patterns) == 0 {
		return false
	}
	return matchesAny(relPath, patterns)
}

// matchesAny checks relPath, and its base name, against doublestar patterns.
func matchesAny(relPath string, patterns []string) bool {
	normalized := filepath.ToSlash(relPath)
	base := filepath.Base(normalized)

	for _, pattern := range patterns {
		pattern = filepath.ToSlash(pattern)
		if matched, err := doublestar.Match(pattern, normalized); err == nil && matched {
			return true
		}
		if matched, err := doublestar.Match(pattern, base); err == nil && matched {
			return true
		}
	}
	return false
}
