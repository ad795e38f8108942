package llm

import (
	_ "embed"
	"fmt"

	"github.com/tmc/langchaingo/prompts"
	"gopkg.in/yaml.v3"
)

// Prompt names in the catalogue.
const (
	PromptAnalysis  = "paper_analysis"
	PromptSummary   = "paper_summary"
	PromptRelevance = "relevance"
	PromptChat      = "chat"
)

//go:embed prompts/prompts.yaml
var defaultPrompts []byte

// promptVars lists the input variables each template expects.
var promptVars = map[string][]string{
	PromptAnalysis:  {"context", "question"},
	PromptSummary:   {"context_str"},
	PromptRelevance: {"keywords", "title", "abstract"},
	PromptChat:      {"context", "question"},
}

// Prompts is a catalogue of named prompt templates.
type Prompts struct {
	templates map[string]string
}

// LoadPrompts parses the embedded prompt catalogue.
func LoadPrompts() (*Prompts, error) {
	return ParsePrompts(defaultPrompts)
}

// ParsePrompts parses a YAML document mapping prompt names to templates.
func ParsePrompts(data []byte) (*Prompts, error) {
	templates := make(map[string]string)
	if err := yaml.Unmarshal(data, &templates); err != nil {
		return nil, fmt.Errorf("parse prompts: %w", err)
	}
	return &Prompts{templates: templates}, nil
}

// Template returns the named prompt as a langchaingo template.
func (p *Prompts) Template(name string) (prompts.PromptTemplate, error) {
	if p == nil {
		return prompts.PromptTemplate{}, fmt.Errorf("prompt template %q not found", name)
	}
	text, ok := p.templates[name]
	if !ok || text == "" {
		return prompts.PromptTemplate{}, fmt.Errorf("prompt template %q not found", name)
	}
	return prompts.NewPromptTemplate(text, promptVars[name]), nil
}
