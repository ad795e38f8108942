package models

// Chunk is one retrievable segment of an indexed item.
type Chunk struct {
	Text        string  `json:"text"`
	ContentHash string  `json:"content_hash"`
	HeadingPath string  `json:"heading_path,omitempty"` // "# Intro > ## Setup"
	Source      string  `json:"source,omitempty"`       // canonical URL for citation
	Score       float32 `json:"score,omitempty"`
}
