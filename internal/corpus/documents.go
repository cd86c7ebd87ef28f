// Package corpus loads the document corpus and the question file for a
// compression job.
package corpus

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// DefaultExtension is the document file extension used when none is given.
const DefaultExtension = ".md"

// ErrNotDirectory is returned when the document path exists but is not a directory.
var ErrNotDirectory = errors.New("not a directory")

// Document is the raw text of one corpus file.
type Document struct {
	Name    string // Base file name
	Content string
}

// LoadDocuments reads every file in dir with the given extension,
// ordered by file name. An empty directory yields no documents and no error.
func LoadDocuments(dir, ext string) ([]Document, error) {
	if ext == "" {
		ext = DefaultExtension
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("stat document dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("document dir %s: %w", dir, ErrNotDirectory)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read document dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		// Hidden files (editor backups, AppleDouble "._" files) are not documents.
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") || filepath.Ext(e.Name()) != ext {
			continue
		}
		names = append(names, e.Name())
	}
	// ReadDir already sorts, but the ordering is part of the prompt contract.
	slices.Sort(names)

	docs := make([]Document, 0, len(names))
	for _, name := range names {
		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read document %s: %w", name, err)
		}
		docs = append(docs, Document{Name: name, Content: string(content)})
	}
	return docs, nil
}

// BuildPrompt concatenates documents into the shared context blob. Each
// document gets a 1-indexed "## Document{i}:" header in load order.
func BuildPrompt(docs []Document) string {
	var b strings.Builder
	for i, d := range docs {
		fmt.Fprintf(&b, "## Document%d:\n%s\n\n", i+1, d.Content)
	}
	return b.String()
}

// LoadPrompt loads the documents in dir and builds the prompt blob.
func LoadPrompt(dir, ext string) (string, int, error) {
	docs, err := LoadDocuments(dir, ext)
	if err != nil {
		return "", 0, err
	}
	return BuildPrompt(docs), len(docs), nil
}
