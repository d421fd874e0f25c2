// Package report writes harvest reports.
//
// This package contains writers for different output formats:
//   - SimpleWriter: human-readable text for the terminal
//   - JSONWriter and FullJSONWriter: JSON for other tools
//   - MarkdownWriter: Markdown with a mermaid chart for sharing
//
// Writers implement the Writer interface, so they can be used
// interchangeably and combined with MultiWriter.
package report
