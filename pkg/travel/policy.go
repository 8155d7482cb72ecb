package travel

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/aretw0/handoff/internal/logging"
)

//go:embed faq.md
var faq string

// DefaultPolicyMatches is how many sections a policy lookup returns.
const DefaultPolicyMatches = 2

// Embedder turns texts into vectors for similarity ranking.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// PolicyIndex answers policy questions from the embedded FAQ.
type PolicyIndex struct {
	sections []string
	terms    []map[string]struct{}
	vectors  [][]float32
	embedder Embedder
	logger   *slog.Logger
}

// PolicyOption configures a PolicyIndex.
type PolicyOption func(*PolicyIndex)

// WithEmbedder ranks sections by cosine similarity instead of term overlap.
func WithEmbedder(e Embedder) PolicyOption {
	return func(p *PolicyIndex) {
		p.embedder = e
	}
}

// WithPolicyDocument replaces the embedded FAQ.
func WithPolicyDocument(doc string) PolicyOption {
	return func(p *PolicyIndex) {
		p.sections = SplitSections(doc)
	}
}

// WithPolicyLogger sets the logger for embedding failures.
func WithPolicyLogger(logger *slog.Logger) PolicyOption {
	return func(p *PolicyIndex) {
		p.logger = logger
	}
}

// NewPolicyIndex indexes the FAQ. With an embedder the sections are embedded
// up front, so a failing embedder fails construction.
func NewPolicyIndex(ctx context.Context, opts ...PolicyOption) (*PolicyIndex, error) {
	p := &PolicyIndex{
		sections: SplitSections(faq),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.terms = make([]map[string]struct{}, len(p.sections))
	for i, s := range p.sections {
		p.terms[i] = termSet(s)
	}

	if p.embedder != nil && len(p.sections) > 0 {
		vectors, err := p.embedder.Embed(ctx, p.sections)
		if err != nil {
			return nil, fmt.Errorf("failed to embed policy sections: %w", err)
		}
		if len(vectors) != len(p.sections) {
			return nil, fmt.Errorf("embedder returned %d vectors for %d sections", len(vectors), len(p.sections))
		}
		p.vectors = vectors
	}
	return p, nil
}

// SplitSections cuts a markdown document at every "##" heading.
// Text before the first heading is a section of its own.
func SplitSections(doc string) []string {
	var (
		sections []string
		current  strings.Builder
	)
	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			sections = append(sections, s)
		}
		current.Reset()
	}
	for _, line := range strings.Split(doc, "\n") {
		if strings.HasPrefix(line, "## ") {
			flush()
		}
		current.WriteString(line)
		current.WriteByte('\n')
	}
	flush()
	return sections
}

// Sections returns the indexed sections.
func (p *PolicyIndex) Sections() []string {
	return p.sections
}

// Query returns the k sections that best match the question.
func (p *PolicyIndex) Query(ctx context.Context, question string, k int) ([]string, error) {
	if k <= 0 {
		k = DefaultPolicyMatches
	}

	scores, err := p.score(ctx, question)
	if err != nil {
		return nil, err
	}

	order := make([]int, len(p.sections))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	if k > len(order) {
		k = len(order)
	}
	out := make([]string, k)
	for i := 0; i < k; i++ {
		out[i] = p.sections[order[i]]
	}
	return out, nil
}

func (p *PolicyIndex) score(ctx context.Context, question string) ([]float64, error) {
	if p.vectors != nil {
		vecs, err := p.embedder.Embed(ctx, []string{question})
		if err == nil && len(vecs) == 1 {
			scores := make([]float64, len(p.vectors))
			for i, v := range p.vectors {
				scores[i] = cosine(vecs[0], v)
			}
			return scores, nil
		}
		if err == nil {
			err = fmt.Errorf("embedder returned %d vectors", len(vecs))
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		p.logger.Warn("policy embedding failed, ranking by term overlap", "err", err)
	}

	q := termSet(question)
	scores := make([]float64, len(p.sections))
	for i, terms := range p.terms {
		for t := range q {
			if _, ok := terms[t]; ok {
				scores[i]++
			}
		}
	}
	return scores, nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "of": {}, "to": {}, "in": {}, "on": {},
	"is": {}, "are": {}, "be": {}, "can": {}, "i": {}, "my": {}, "it": {}, "for": {}, "with": {},
	"do": {}, "does": {}, "what": {}, "how": {}, "if": {}, "at": {}, "by": {}, "we": {}, "you": {},
}

// termSet lowercases, splits on non alphanumerics, drops stop words and
// strips a plural "s" so "tickets" matches "ticket".
func termSet(text string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, word := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if _, stop := stopWords[word]; stop {
			continue
		}
		if len(word) > 3 && strings.HasSuffix(word, "s") {
			word = strings.TrimSuffix(word, "s")
		}
		out[word] = struct{}{}
	}
	return out
}
