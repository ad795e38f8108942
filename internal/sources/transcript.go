package sources

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/raphaelgruber/research-radar/internal/models"
)

// Transcript download retry policy.
const (
	DefaultRetries    = 3
	DefaultRetryDelay = 2 * time.Second
)

// subtitleLangs in order of preference.
var subtitleLangs = []string{"en", "en-US"}

// VideoContent pulls English subtitles with yt-dlp and flattens them to text.
type VideoContent struct {
	YtDlp      string
	Run        Runner
	Retries    uint64
	RetryDelay time.Duration
}

// NewVideoContent returns an extractor using the default retry policy.
func NewVideoContent(ytdlp string) *VideoContent {
	return &VideoContent{
		YtDlp:      ytdlp,
		Run:        ExecRunner,
		Retries:    DefaultRetries,
		RetryDelay: DefaultRetryDelay,
	}
}

// ExtractContent implements workflow.ContentExtractor. A video without
// English subtitles yields an empty transcript.
func (v *VideoContent) ExtractContent(ctx context.Context, meta *models.Metadata) (string, error) {
	if meta == nil || meta.ContentURL == "" {
		return "", ErrMissingSource
	}
	text, err := v.Transcript(ctx, meta.ContentURL)
	if errors.Is(err, ErrNoSubtitles) {
		slog.Warn("no subtitles", "url", meta.ContentURL)
		return "", nil
	}
	if err != nil {
		return "", err
	}
	slog.Info("transcript extracted", "url", meta.ContentURL, "chars", len(text))
	return text, nil
}

// Transcript downloads the subtitles of watchURL into a scratch directory and
// returns them as plain text.
func (v *VideoContent) Transcript(ctx context.Context, watchURL string) (string, error) {
	dir, err := os.MkdirTemp("", "radar-subs-*")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	args := []string{
		"--skip-download",
		"--write-subs", "--write-auto-subs",
		"--sub-langs", strings.Join(subtitleLangs, ","),
		"--sub-format", "vtt",
		"--no-warnings", "--quiet",
		"-o", "%(id)s.%(ext)s",
		watchURL,
	}

	run := runnerOr(v.Run)
	attempt := 0
	op := func() error {
		attempt++
		_, err := run(ctx, dir, binaryOr(v.YtDlp), args...)
		if err != nil && ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		slog.Warn("subtitle download failed, retrying", "attempt", attempt, "max", v.Retries, "wait", wait, "error", err)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(v.RetryDelay), v.Retries), ctx)
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return "", fmt.Errorf("download subtitles: %w", err)
	}

	path, ok := findSubtitle(dir)
	if !ok {
		return "", ErrNoSubtitles
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read subtitles: %w", err)
	}
	text := ParseVTT(string(data))
	if text == "" {
		return "", ErrNoSubtitles
	}
	return text, nil
}

// findSubtitle returns the preferred subtitle file yt-dlp wrote to dir.
func findSubtitle(dir string) (string, bool) {
	for _, lang := range subtitleLangs {
		matches, _ := filepath.Glob(filepath.Join(dir, "*."+lang+".vtt"))
		if len(matches) > 0 {
			return matches[0], true
		}
	}
	return "", false
}

var cueWordRegex = regexp.MustCompile(`<c>\s?([^<]+)</c>`)

// ParseVTT flattens a WebVTT subtitle file into space separated text. Header
// lines and cue timings are dropped, inline <c> word tags are unwrapped and
// consecutive repeated lines (rolling auto captions) are collapsed.
func ParseVTT(content string) string {
	var (
		out     []string
		capture bool
		last    string
	)
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if strings.Contains(line, "-->") {
			capture = true
			continue
		}
		if line == "" || !capture || isVTTHeader(line) {
			continue
		}
		sentence := cueSentence(line)
		if sentence == "" || sentence == last {
			continue
		}
		out = append(out, sentence)
		last = sentence
	}
	return strings.Join(out, " ")
}

func isVTTHeader(line string) bool {
	return line == "WEBVTT" || strings.HasPrefix(line, "Kind:") || strings.HasPrefix(line, "Language:")
}

// cueSentence keeps the text before the first tag plus every <c> word.
func cueSentence(line string) string {
	first, _, _ := strings.Cut(line, "<")
	parts := []string{}
	if first = strings.TrimSpace(first); first != "" {
		parts = append(parts, first)
	}
	for _, m := range cueWordRegex.FindAllStringSubmatch(line, -1) {
		if w := strings.TrimSpace(m[1]); w != "" {
			parts = append(parts, w)
		}
	}
	return strings.Join(parts, " ")
}
