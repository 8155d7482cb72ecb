package travel

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDoc = `# FAQ
Intro text.

## Baggage
Checked bags up to 23 kg.

## Refunds
Refunds go back to the card.
`

func TestSplitSections(t *testing.T) {
	sections := SplitSections(testDoc)
	require.Len(t, sections, 3)
	assert.Equal(t, "# FAQ\nIntro text.", sections[0])
	assert.True(t, strings.HasPrefix(sections[1], "## Baggage"))
	assert.True(t, strings.HasPrefix(sections[2], "## Refunds"))

	assert.Empty(t, SplitSections("  \n"))
}

func TestPolicyIndex_TermOverlap(t *testing.T) {
	p, err := NewPolicyIndex(context.Background(), WithPolicyDocument(testDoc))
	require.NoError(t, err)

	got, err := p.Query(context.Background(), "how many bags can I check?", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Contains(t, got[0], "## Baggage")

	got, err = p.Query(context.Background(), "refunds", 10)
	require.NoError(t, err)
	assert.Len(t, got, 3, "k is capped by the number of sections")
	assert.Contains(t, got[0], "## Refunds")
}

func TestPolicyIndex_EmbeddedFAQ(t *testing.T) {
	p, err := NewPolicyIndex(context.Background())
	require.NoError(t, err)
	assert.Greater(t, len(p.Sections()), 5)

	got, err := p.Query(context.Background(), "refund for a cancelled ticket", 0)
	require.NoError(t, err)
	assert.Len(t, got, DefaultPolicyMatches)
}

// axisEmbedder maps texts onto axes by keyword, so cosine similarity is exact.
type axisEmbedder struct {
	fail bool
}

func (e *axisEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if e.fail {
		return nil, errors.New("quota exceeded")
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, 3)
		lower := strings.ToLower(text)
		if strings.Contains(lower, "luggage") || strings.Contains(lower, "baggage") {
			v[0] = 1
		}
		if strings.Contains(lower, "money") || strings.Contains(lower, "refund") {
			v[1] = 1
		}
		if strings.Contains(lower, "faq") {
			v[2] = 1
		}
		out[i] = v
	}
	return out, nil
}

func TestPolicyIndex_Embedder(t *testing.T) {
	e := &axisEmbedder{}
	p, err := NewPolicyIndex(context.Background(), WithPolicyDocument(testDoc), WithEmbedder(e))
	require.NoError(t, err)

	// "luggage" shares no term with the section, only an embedding axis
	got, err := p.Query(context.Background(), "luggage", 1)
	require.NoError(t, err)
	assert.Contains(t, got[0], "## Baggage")

	got, err = p.Query(context.Background(), "money back", 1)
	require.NoError(t, err)
	assert.Contains(t, got[0], "## Refunds")

	t.Run("falls back to term overlap when the embedder fails", func(t *testing.T) {
		e.fail = true
		got, err := p.Query(context.Background(), "refunds card", 1)
		require.NoError(t, err)
		assert.Contains(t, got[0], "## Refunds")
	})

	t.Run("construction fails when sections cannot be embedded", func(t *testing.T) {
		_, err := NewPolicyIndex(context.Background(), WithEmbedder(&axisEmbedder{fail: true}))
		assert.ErrorContains(t, err, "quota exceeded")
	})
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, cosine([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.Zero(t, cosine([]float32{1, 0}, []float32{0, 1}))
	assert.Zero(t, cosine([]float32{1}, []float32{1, 2}))
	assert.Zero(t, cosine([]float32{0, 0}, []float32{1, 2}))
}
