package workflow

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/raphaelgruber/research-radar/internal/models"
)

var (
	videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
	paperIDPattern = regexp.MustCompile(`\d{4}\.\d{4,5}`)
)

// Route is the outcome of classifying a content id.
type Route struct {
	Type models.SourceType
	// ID is the normalized identifier handed to the adapters.
	ID string
	// Defaulted is set when nothing matched and paper was assumed.
	Defaulted bool
}

// Classify decides which adapters serve contentID. Video URLs and bare
// 11-character ids route to video; anything containing a paper id
// (NNNN.NNNNN), including arXiv and Hugging Face URLs, routes to paper.
// Unrecognized input defaults to paper with the trimmed input as id.
func Classify(contentID string) Route {
	id := strings.TrimSpace(contentID)

	if v, ok := videoIDFromURL(id); ok {
		return Route{Type: models.SourceVideo, ID: v}
	}
	if m := paperIDPattern.FindString(id); m != "" {
		return Route{Type: models.SourcePaper, ID: m}
	}
	if videoIDPattern.MatchString(id) {
		return Route{Type: models.SourceVideo, ID: id}
	}
	return Route{Type: models.SourcePaper, ID: id, Defaulted: true}
}

func videoIDFromURL(raw string) (string, bool) {
	if !strings.Contains(raw, "youtu") {
		return "", false
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")

	var candidate string
	switch host {
	case "youtu.be":
		candidate = strings.Trim(u.Path, "/")
	case "youtube.com", "music.youtube.com":
		if v := u.Query().Get("v"); v != "" {
			candidate = v
			break
		}
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(parts) == 2 && (parts[0] == "shorts" || parts[0] == "embed" || parts[0] == "live") {
			candidate = parts[1]
		}
	default:
		return "", false
	}
	if !videoIDPattern.MatchString(candidate) {
		return "", false
	}
	return candidate, true
}
