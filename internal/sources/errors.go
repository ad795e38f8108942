// Package sources implements the metadata and content adapters for papers
// and videos.
package sources

import "errors"

var (
	// ErrNotFound means the upstream service has no record for the id.
	ErrNotFound = errors.New("item not found")

	// ErrNoSubtitles means a video has no English subtitle track.
	ErrNoSubtitles = errors.New("no subtitles found")

	// ErrMissingSource means the metadata carries no content URL to read.
	ErrMissingSource = errors.New("content source URL missing")
)
