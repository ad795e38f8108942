package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/raphaelgruber/research-radar/internal/models"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

// WatchURLBase prefixes a video id to form its watch page.
const WatchURLBase = "https://www.youtube.com/watch?v="

// WatchURL returns the canonical watch page for a video id.
func WatchURL(id string) string {
	return WatchURLBase + id
}

// Runner executes an external command inside dir and returns its stdout.
type Runner func(ctx context.Context, dir, name string, args ...string) ([]byte, error)

// ExecRunner runs commands with os/exec.
func ExecRunner(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// VideoMetadata describes YouTube videos. With an API key it uses the YouTube
// Data API; otherwise it asks yt-dlp for the video's info JSON.
type VideoMetadata struct {
	APIKey string
	// APIEndpoint overrides the Data API base URL.
	APIEndpoint string
	YtDlp       string
	Run         Runner
}

// FetchMetadata implements workflow.MetadataFetcher.
func (v *VideoMetadata) FetchMetadata(ctx context.Context, id string) (*models.Metadata, error) {
	slog.Info("extracting video metadata", "video_id", id, "api", v.APIKey != "")
	if v.APIKey != "" {
		return v.fromAPI(ctx, id)
	}
	return v.fromYtDlp(ctx, id)
}

func (v *VideoMetadata) fromAPI(ctx context.Context, id string) (*models.Metadata, error) {
	opts := []option.ClientOption{option.WithAPIKey(v.APIKey)}
	if v.APIEndpoint != "" {
		opts = append(opts, option.WithEndpoint(v.APIEndpoint))
	}
	svc, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}

	resp, err := svc.Videos.List([]string{"snippet", "statistics", "contentDetails"}).Id(id).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("list video: %w", err)
	}
	if len(resp.Items) == 0 {
		return nil, nil
	}
	item := resp.Items[0]

	meta := &models.Metadata{
		ID:         id,
		PageURL:    WatchURL(id),
		ContentURL: WatchURL(id),
		Origin:     "youtube",
	}
	if s := item.Snippet; s != nil {
		meta.Title = s.Title
		meta.Summary = s.Description
		meta.Keywords = s.Tags
		meta.PublishedAt = s.PublishedAt
		meta.Authors = s.ChannelTitle
		meta.Submitter = s.ChannelTitle
	}
	if st := item.Statistics; st != nil {
		meta.Upvotes = int64(st.LikeCount)
		meta.ViewCount = int64(st.ViewCount)
	}
	if cd := item.ContentDetails; cd != nil {
		meta.Duration = cd.Duration
	}
	return meta, nil
}

// ytInfo is the subset of yt-dlp's --dump-json output we map.
type ytInfo struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Uploader    string   `json:"uploader"`
	Channel     string   `json:"channel"`
	Tags        []string `json:"tags"`
	LikeCount   int64    `json:"like_count"`
	ViewCount   int64    `json:"view_count"`
	UploadDate  string   `json:"upload_date"`
	Duration    float64  `json:"duration"`
}

func (v *VideoMetadata) fromYtDlp(ctx context.Context, id string) (*models.Metadata, error) {
	out, err := runnerOr(v.Run)(ctx, "", binaryOr(v.YtDlp),
		"--dump-json", "--skip-download", "--no-warnings", "--quiet", WatchURL(id))
	if err != nil {
		return nil, fmt.Errorf("yt-dlp metadata: %w", err)
	}
	if len(bytes.TrimSpace(out)) == 0 {
		return nil, nil
	}

	var info ytInfo
	if err := json.Unmarshal(out, &info); err != nil {
		return nil, fmt.Errorf("decode yt-dlp info: %w", err)
	}

	channel := info.Uploader
	if channel == "" {
		channel = info.Channel
	}
	if channel == "" {
		channel = "Unknown Channel"
	}

	meta := &models.Metadata{
		ID:          id,
		Title:       info.Title,
		PublishedAt: uploadDate(info.UploadDate),
		Summary:     info.Description,
		Keywords:    info.Tags,
		Authors:     channel,
		Submitter:   channel,
		Upvotes:     info.LikeCount,
		ViewCount:   info.ViewCount,
		PageURL:     WatchURL(id),
		ContentURL:  WatchURL(id),
		Origin:      "yt-dlp",
	}
	if info.Duration > 0 {
		meta.Duration = (time.Duration(info.Duration) * time.Second).String()
	}
	return meta, nil
}

// uploadDate turns yt-dlp's YYYYMMDD into YYYY-MM-DD.
func uploadDate(s string) string {
	t, err := time.Parse("20060102", s)
	if err != nil {
		return s
	}
	return t.Format(time.DateOnly)
}

func runnerOr(r Runner) Runner {
	if r != nil {
		return r
	}
	return ExecRunner
}

func binaryOr(path string) string {
	if path != "" {
		return path
	}
	return "yt-dlp"
}
