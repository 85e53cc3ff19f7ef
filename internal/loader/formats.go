package loader

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/go-enry/go-enry/v2"
	"github.com/ledongthuc/pdf"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// readText loads a plain text file as a single document.
func readText(path, source, title string) ([]Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if enry.IsBinary(data) {
		return nil, nil
	}
	return single(string(data), source, title), nil
}

// readMarkdown loads a markdown file as a single document whose content is the
// rendered plain text.
func readMarkdown(path, source, title string) ([]Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if enry.IsBinary(data) {
		return nil, nil
	}
	return single(MarkdownToText(data), source, title), nil
}

// readPDF loads one document per non-empty page.
func readPDF(path, source, title string) (docs []Document, err error) {
	// The pdf package panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			docs, err = nil, fmt.Errorf("parsing pdf: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()

	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		content, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, content)
	}
	return paginate(pages, source, title), nil
}

func single(content, source, title string) []Document {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	return []Document{{Content: content, Source: source, Title: title}}
}

// paginate turns page texts into documents, skipping blank pages while
// keeping the original 1-based page numbers.
func paginate(pages []string, source, title string) []Document {
	var docs []Document
	for i, p := range pages {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		docs = append(docs, Document{Content: p, Source: source, Title: title, Page: i + 1})
	}
	return docs
}

var blankRuns = regexp.MustCompile(`\n{3,}`)

// MarkdownToText renders markdown source as plain text: heading, paragraph,
// list and code text is kept, markup and raw HTML are dropped.
func MarkdownToText(src []byte) string {
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	var sb bytes.Buffer
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock {
				sb.WriteString("\n\n")
			}
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Text:
			sb.Write(node.Segment.Value(src))
			if node.SoftLineBreak() || node.HardLineBreak() {
				sb.WriteByte('\n')
			}
		case *ast.String:
			sb.Write(node.Value)
		case *ast.AutoLink:
			sb.Write(node.URL(src))
			return ast.WalkSkipChildren, nil
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				sb.Write(seg.Value(src))
			}
			return ast.WalkSkipChildren, nil
		case *ast.HTMLBlock, *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	lines := strings.Split(sb.String(), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	out := blankRuns.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(out)
}
