// Package ingestion implements the document ingestion pipeline.
// It loads policy and product documents from a directory, splits them into
// heading-delimited sections and sentence-aware chunks, and hands the chunks
// to the retrieval engine for embedding and storage. The pipeline is invoked
// by the `polai ingest` CLI command and the ingest API endpoint.
package ingestion

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Section is one heading-delimited portion of a document. The heading line
// stays in the body so chunk text keeps its context.
type Section struct {
	// Title is the heading text, or "Body" for preamble without a heading.
	Title string
	// Body is the section content including the heading line.
	Body string
}

// Document is one loaded source file split into sections.
type Document struct {
	// Title is the source file name (e.g. "Returns_and_Refunds.md").
	Title string
	// Sections are the heading-delimited parts in document order.
	Sections []Section
}

// LoadDir reads all .md and .txt files in dir (non-recursive, sorted by
// name) and splits each into sections. Unreadable files abort the load;
// other file types are skipped.
func LoadDir(dir string) ([]Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("ingestion: reading %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".md" && ext != ".txt" {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	docs := make([]Document, 0, len(names))
	for _, name := range names {
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("ingestion: reading %s: %w", name, err)
		}
		docs = append(docs, Document{
			Title:    name,
			Sections: SplitSections(string(raw)),
		})
	}
	return docs, nil
}

// SplitSections splits markdown text at heading lines. Each section starts
// at a line beginning with one or more '#' characters; text before the first
// heading becomes a "Body" section. Plain text without headings yields a
// single Body section.
func SplitSections(text string) []Section {
	lines := strings.Split(text, "\n")

	var sections []Section
	var cur []string
	curTitle := "Body"

	flush := func() {
		body := strings.TrimSpace(strings.Join(cur, "\n"))
		if body != "" {
			sections = append(sections, Section{Title: curTitle, Body: body})
		}
		cur = cur[:0]
	}

	for _, line := range lines {
		if isHeading(line) {
			flush()
			curTitle = strings.TrimSpace(strings.TrimLeft(line, "# "))
			if curTitle == "" {
				curTitle = "Body"
			}
		}
		cur = append(cur, line)
	}
	flush()

	if len(sections) == 0 {
		return []Section{{Title: "Body", Body: strings.TrimSpace(text)}}
	}
	return sections
}

// isHeading reports whether line is a markdown heading ("#" run followed by
// a space and text).
func isHeading(line string) bool {
	trimmed := strings.TrimLeft(line, "#")
	return len(trimmed) < len(line) && strings.HasPrefix(trimmed, " ")
}
