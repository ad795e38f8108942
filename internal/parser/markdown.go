// Package parser splits extracted markdown and transcript text into
// retrievable chunks.
package parser

import (
	"regexp"
	"strings"
)

// MaxSectionLevel is the deepest heading level that starts a new section.
// Deeper headings stay inside their parent section's content.
const MaxSectionLevel = 2

var headingRegex = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)

// MarkdownDoc represents a parsed Markdown document.
type MarkdownDoc struct {
	// Title from the first h1, if any
	Title string

	// Content is the input text, unmodified
	Content string

	// Sections in document order. Text before the first heading becomes a
	// section with an empty Path.
	Sections []Section
}

// Section represents a heading and its content.
type Section struct {
	Level   int    // 0 for the preamble, 1 or 2 otherwise
	Heading string // The heading text
	Path    string // Full path like "# Method > ## Setup"
	Content string // Content under this heading, heading line excluded
	Start   int    // Line number where section starts
	End     int    // Line number where section ends
}

// ParseMarkdown splits content at level 1 and level 2 headings.
func ParseMarkdown(content string) *MarkdownDoc {
	doc := &MarkdownDoc{Content: content}
	doc.Sections = parseSections(content)
	for _, s := range doc.Sections {
		if s.Level == 1 {
			doc.Title = s.Heading
			break
		}
	}
	return doc
}

// parseSections extracts sections from Markdown content. Lines have no
// length limit: a flattened transcript arrives as a single line.
func parseSections(content string) []Section {
	var sections []Section

	lineNum := 0
	var h1 string

	current := &Section{Start: 1}
	var contentBuilder strings.Builder

	flushSection := func(endLine int) {
		current.Content = strings.TrimSpace(contentBuilder.String())
		current.End = endLine
		// A preamble with nothing in it is not a section.
		if current.Level > 0 || current.Content != "" {
			sections = append(sections, *current)
		}
		contentBuilder.Reset()
	}

	for line := range strings.Lines(content) {
		lineNum++
		line = strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")

		match := headingRegex.FindStringSubmatch(line)
		if match == nil || len(match[1]) > MaxSectionLevel {
			contentBuilder.WriteString(line)
			contentBuilder.WriteString("\n")
			continue
		}

		flushSection(lineNum - 1)

		level := len(match[1])
		heading := strings.TrimSpace(match[2])
		path := match[1] + " " + heading
		if level == 1 {
			h1 = path
		} else if h1 != "" {
			path = h1 + " > " + path
		}

		current = &Section{
			Level:   level,
			Heading: heading,
			Path:    path,
			Start:   lineNum,
		}
	}

	flushSection(lineNum)

	return sections
}
