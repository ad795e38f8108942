// Package relevance decides whether an item matches a caller's topics.
package relevance

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/raphaelgruber/research-radar/internal/llm"
	"github.com/raphaelgruber/research-radar/internal/models"
	"github.com/tmc/langchaingo/chains"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/outputparser"
	"github.com/tmc/langchaingo/prompts"
)

// DefaultThreshold is the minimum keyword overlap for a tier 1 match.
const DefaultThreshold = 1

// Tier records which strategy produced a decision.
type Tier int

const (
	TierBypass  Tier = iota // no required keywords
	TierKeyword             // keyword intersection
	TierModel               // language model fallback
)

func (t Tier) String() string {
	switch t {
	case TierBypass:
		return "bypass"
	case TierKeyword:
		return "keyword"
	case TierModel:
		return "model"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// Decision is the gate's verdict.
type Decision struct {
	Relevant bool
	Tier     Tier
	Matched  []string // tier 1 intersection, sorted
	Reason   string
}

// Gate is the two-tier relevance check.
type Gate struct {
	model     llms.Model
	prompt    prompts.PromptTemplate
	parser    outputparser.BooleanParser
	threshold int
}

// NewGate creates a gate. model may be nil, in which case the fallback tier
// always answers not relevant.
func NewGate(model llms.Model, catalogue *llm.Prompts, threshold int) (*Gate, error) {
	tmpl, err := catalogue.Template(llm.PromptRelevance)
	if err != nil {
		return nil, err
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Gate{
		model:     model,
		prompt:    tmpl,
		parser:    outputparser.NewBooleanParser(),
		threshold: threshold,
	}, nil
}

// Decide reports whether meta is relevant to any of required.
// An empty required list is always relevant. A keyword match never consults
// the model. Every fallback failure resolves to not relevant.
func (g *Gate) Decide(ctx context.Context, meta *models.Metadata, required []string) Decision {
	if len(required) == 0 {
		return Decision{Relevant: true, Tier: TierBypass, Reason: "no required keywords"}
	}

	wanted := normalize(required)
	if meta != nil && len(meta.Keywords) > 0 {
		matched := intersect(normalize(meta.Keywords), wanted)
		if len(matched) >= g.threshold {
			return Decision{
				Relevant: true,
				Tier:     TierKeyword,
				Matched:  matched,
				Reason:   fmt.Sprintf("matched keywords: %s", strings.Join(matched, ", ")),
			}
		}
		slog.Debug("keyword gate inconclusive", "matched", len(matched), "threshold", g.threshold)
	}

	return g.askModel(ctx, meta, required)
}

func (g *Gate) askModel(ctx context.Context, meta *models.Metadata, required []string) Decision {
	decision := Decision{Tier: TierModel}

	abstract := meta.Abstract()
	if abstract == "" {
		decision.Reason = "no abstract to judge"
		return decision
	}
	if g.model == nil {
		decision.Reason = "no language model configured"
		return decision
	}

	chain := chains.NewLLMChain(g.model, g.prompt)
	out, err := chains.Predict(ctx, chain, map[string]any{
		"keywords": strings.Join(required, ", "),
		"title":    meta.Title,
		"abstract": abstract,
	})
	if err != nil {
		slog.Warn("relevance check failed", "id", meta.ID, "error", err)
		decision.Reason = "model call failed: " + err.Error()
		return decision
	}

	relevant, err := g.parseAnswer(out)
	if err != nil {
		slog.Warn("unparseable relevance answer", "id", meta.ID, "answer", out)
		decision.Reason = "unparseable answer"
		return decision
	}

	decision.Relevant = relevant
	decision.Reason = "model answered " + strings.ToLower(firstWord(out))
	return decision
}

// parseAnswer accepts answers like "Yes.", "no" or "YES, it is".
func (g *Gate) parseAnswer(out string) (bool, error) {
	v, err := g.parser.Parse(firstWord(out))
	if err != nil {
		return false, err
	}
	b, _ := v.(bool)
	return b, nil
}

func firstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return strings.TrimRight(fields[0], ".,!;:")
}

func normalize(in []string) map[string]struct{} {
	set := make(map[string]struct{}, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			set[s] = struct{}{}
		}
	}
	return set
}

func intersect(a, b map[string]struct{}) []string {
	var out []string
	for k := range a {
		if _, ok := b[k]; ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
