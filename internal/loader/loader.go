// Package loader turns a directory of text, markdown and PDF files into
// normalized documents ready for embedding.
package loader

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// DefaultMaxFileSize is the maximum file size to load (10 MB).
const DefaultMaxFileSize int64 = 10 << 20

// Document is a unit of source text. Paginated sources produce one Document
// per non-empty page.
type Document struct {
	Content string
	Source  string // Path relative to the root, forward slashes.
	Title   string // File name without extension.
	Page    int    // 1-based page number; 0 for sources without pages.
}

// Options controls the behaviour of Load.
type Options struct {
	Root        string   // Directory to walk.
	Include     []string // Glob patterns; only matching files are loaded.
	Exclude     []string // Glob patterns; matching files are skipped.
	MaxFileSize int64    // Files larger than this are skipped (0 = default).
	Logger      zerolog.Logger
}

// reader extracts documents from a single file.
type reader func(path, source, title string) ([]Document, error)

var readers = map[string]reader{
	".txt":      readText,
	".md":       readMarkdown,
	".markdown": readMarkdown,
	".pdf":      readPDF,
}

// Supported reports whether files with the given name can be loaded.
func Supported(name string) bool {
	_, ok := readers[strings.ToLower(filepath.Ext(name))]
	return ok
}

// Load walks opts.Root and returns every non-empty document found, sorted by
// source and page. Files that cannot be read or parsed are logged and skipped.
func Load(ctx context.Context, opts Options) ([]Document, error) {
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("loader: resolve root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("loader: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("loader: %s is not a directory", root)
	}

	maxSize := opts.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	log := opts.Logger
	ignore := loadGitignore(root)

	var docs []Document
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			log.Warn().Err(walkErr).Str("path", path).Msg("skipping unreadable entry")
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if path != root && IsExcludedDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !Supported(d.Name()) {
			return nil
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		source := filepath.ToSlash(relPath)

		if ignore != nil && ignore.MatchesPath(source) {
			return nil
		}
		if !MatchesInclude(source, opts.Include) || MatchesExclude(source, opts.Exclude) {
			return nil
		}

		fi, err := d.Info()
		if err != nil || fi.Size() > maxSize {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(d.Name()))
		title := strings.TrimSuffix(d.Name(), filepath.Ext(d.Name()))

		loaded, err := readers[ext](path, source, title)
		if err != nil {
			log.Error().Err(err).Str("source", source).Msg("error reading document")
			return nil
		}
		docs = append(docs, loaded...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loader: traversal: %w", err)
	}

	sort.SliceStable(docs, func(i, j int) bool {
		if docs[i].Source != docs[j].Source {
			return docs[i].Source < docs[j].Source
		}
		return docs[i].Page < docs[j].Page
	})

	log.Info().Int("documents", len(docs)).Str("root", opts.Root).Msg("loaded documents")
	return docs, nil
}
