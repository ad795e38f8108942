package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/raphaelgruber/research-radar/internal/models"
	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/schema"
)

// Default upstream endpoints.
const (
	DefaultHuggingFaceURL = "https://huggingface.co"
	DefaultArxivAPIURL    = "http://export.arxiv.org"

	arxivPDFBase = "https://arxiv.org/pdf/"

	metadataTimeout = 10 * time.Second
	pdfTimeout      = 60 * time.Second
)

// PaperMetadata looks papers up on Hugging Face and falls back to the arXiv
// API when Hugging Face cannot be reached.
type PaperMetadata struct {
	HuggingFaceURL string
	ArxivURL       string
	Client         *http.Client
}

// NewPaperMetadata returns a fetcher using the public endpoints.
func NewPaperMetadata() *PaperMetadata {
	return &PaperMetadata{
		HuggingFaceURL: DefaultHuggingFaceURL,
		ArxivURL:       DefaultArxivAPIURL,
		Client:         &http.Client{Timeout: metadataTimeout},
	}
}

type hfAuthor struct {
	Name string `json:"name"`
}

type hfUser struct {
	Fullname string `json:"fullname"`
	Name     string `json:"name"`
}

type hfPaper struct {
	ID                 string     `json:"id"`
	Title              string     `json:"title"`
	PublishedAt        string     `json:"publishedAt"`
	Summary            string     `json:"summary"`
	AISummary          string     `json:"ai_summary"`
	AIKeywords         []string   `json:"ai_keywords"`
	Authors            []hfAuthor `json:"authors"`
	GithubRepo         string     `json:"githubRepo"`
	Upvotes            int64      `json:"upvotes"`
	SubmittedOnDailyBy *hfUser    `json:"submittedOnDailyBy"`
}

// hfResponse covers both the wrapped ({"paper": {...}}) and the bare shape.
type hfResponse struct {
	hfPaper
	Paper       *hfPaper `json:"paper"`
	SubmittedBy *hfUser  `json:"submittedBy"`
}

// FetchMetadata implements workflow.MetadataFetcher. A paper unknown to both
// services yields nil, nil.
func (p *PaperMetadata) FetchMetadata(ctx context.Context, id string) (*models.Metadata, error) {
	slog.Info("extracting paper metadata", "paper_id", id)

	meta, err := p.fromHuggingFace(ctx, id)
	switch {
	case err == nil:
		return meta, nil
	case errors.Is(err, ErrNotFound):
		slog.Warn("hugging face returned incomplete data", "paper_id", id)
		return nil, nil
	case ctx.Err() != nil:
		return nil, ctx.Err()
	}

	slog.Warn("hugging face failed, trying arxiv", "paper_id", id, "error", err)
	meta, err = p.fromArxiv(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("arxiv fallback: %w", err)
	}
	return meta, nil
}

func (p *PaperMetadata) fromHuggingFace(ctx context.Context, id string) (*models.Metadata, error) {
	endpoint := strings.TrimRight(p.HuggingFaceURL, "/") + "/api/papers/" + url.PathEscape(id)
	body, err := p.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var raw hfResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode hugging face response: %w", err)
	}
	paper := raw.hfPaper
	if raw.Paper != nil {
		paper = *raw.Paper
	}
	if paper.ID == "" {
		return nil, ErrNotFound
	}

	authors := make([]string, 0, len(paper.Authors))
	for _, a := range paper.Authors {
		if a.Name != "" {
			authors = append(authors, a.Name)
		}
	}

	submitter := paper.SubmittedOnDailyBy
	if submitter == nil {
		submitter = raw.SubmittedBy
	}

	meta := &models.Metadata{
		ID:          id,
		Title:       paper.Title,
		PublishedAt: paper.PublishedAt,
		Summary:     paper.Summary,
		AISummary:   paper.AISummary,
		Keywords:    paper.AIKeywords,
		Authors:     strings.Join(authors, ", "),
		GithubRepo:  paper.GithubRepo,
		Upvotes:     paper.Upvotes,
		PageURL:     strings.TrimRight(DefaultHuggingFaceURL, "/") + "/papers/" + id,
		ContentURL:  arxivPDFBase + id,
		Origin:      "huggingface",
	}
	if submitter != nil {
		meta.Submitter = submitter.Fullname
		if meta.Submitter == "" {
			meta.Submitter = submitter.Name
		}
	}
	return meta, nil
}

type atomFeed struct {
	Entries []atomEntry `xml:"http://www.w3.org/2005/Atom entry"`
}

type atomEntry struct {
	Title     string       `xml:"http://www.w3.org/2005/Atom title"`
	Summary   string       `xml:"http://www.w3.org/2005/Atom summary"`
	Published string       `xml:"http://www.w3.org/2005/Atom published"`
	Authors   []atomAuthor `xml:"http://www.w3.org/2005/Atom author"`
}

type atomAuthor struct {
	Name string `xml:"http://www.w3.org/2005/Atom name"`
}

func (p *PaperMetadata) fromArxiv(ctx context.Context, id string) (*models.Metadata, error) {
	endpoint := strings.TrimRight(p.ArxivURL, "/") + "/api/query?" + url.Values{"id_list": {id}}.Encode()
	body, err := p.get(ctx, endpoint)
	var status statusError
	if errors.As(err, &status) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var feed atomFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("decode arxiv feed: %w", err)
	}
	if len(feed.Entries) == 0 {
		return nil, ErrNotFound
	}
	entry := feed.Entries[0]

	authors := make([]string, 0, len(entry.Authors))
	for _, a := range entry.Authors {
		authors = append(authors, a.Name)
	}

	slog.Info("fetched metadata from arxiv", "paper_id", id)
	return &models.Metadata{
		ID:          id,
		Title:       flattenLines(entry.Title),
		PublishedAt: entry.Published,
		Summary:     flattenLines(entry.Summary),
		Authors:     strings.Join(authors, ", "),
		ContentURL:  arxivPDFBase + id + ".pdf",
		Origin:      "arxiv",
	}, nil
}

// statusError is a non-2xx upstream response.
type statusError struct {
	code int
	url  string
}

func (e statusError) Error() string {
	return fmt.Sprintf("GET %s: status %d", e.url, e.code)
}

func (p *PaperMetadata) get(ctx context.Context, endpoint string) ([]byte, error) {
	return httpGet(ctx, p.client(), endpoint)
}

func (p *PaperMetadata) client() *http.Client {
	if p.Client != nil {
		return p.Client
	}
	return &http.Client{Timeout: metadataTimeout}
}

func httpGet(ctx context.Context, client *http.Client, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError{code: resp.StatusCode, url: endpoint}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}

func flattenLines(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), "\n", " ")
}

// PDFLoader turns raw PDF bytes into one document per page.
type PDFLoader func(ctx context.Context, data []byte) ([]schema.Document, error)

func loadPDF(ctx context.Context, data []byte) ([]schema.Document, error) {
	loader := documentloaders.NewPDF(bytes.NewReader(data), int64(len(data)))
	return loader.Load(ctx)
}

// PaperContent downloads a paper PDF and extracts its text.
type PaperContent struct {
	Client *http.Client
	Load   PDFLoader
}

// NewPaperContent returns an extractor backed by the langchaingo PDF loader.
func NewPaperContent() *PaperContent {
	return &PaperContent{
		Client: &http.Client{Timeout: pdfTimeout},
		Load:   loadPDF,
	}
}

// ExtractContent implements workflow.ContentExtractor.
func (p *PaperContent) ExtractContent(ctx context.Context, meta *models.Metadata) (string, error) {
	if meta == nil || meta.ContentURL == "" {
		return "", ErrMissingSource
	}
	slog.Info("downloading paper", "url", meta.ContentURL)

	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: pdfTimeout}
	}
	data, err := httpGet(ctx, client, meta.ContentURL)
	if err != nil {
		return "", fmt.Errorf("download pdf: %w", err)
	}

	load := p.Load
	if load == nil {
		load = loadPDF
	}
	pages, err := load(ctx, data)
	if err != nil {
		return "", fmt.Errorf("parse pdf: %w", err)
	}

	parts := make([]string, 0, len(pages))
	for _, page := range pages {
		if text := strings.TrimSpace(page.PageContent); text != "" {
			parts = append(parts, text)
		}
	}
	text := strings.Join(parts, "\n\n")
	slog.Info("paper extracted", "url", meta.ContentURL, "pages", len(pages), "chars", len(text))
	return text, nil
}
