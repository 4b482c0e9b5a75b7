package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		minLen   int
		keywords []string
		want     Verdict
	}{
		{
			name:    "too short",
			content: "short",
			minLen:  20,
			want: Verdict{
				Reason:      "Message must be at least 20 characters (currently 5)",
				Diagnostics: Diagnostics{Len: 5},
			},
		},
		{
			name:    "whitespace does not count",
			content: "   nineteen chars!!     \n",
			minLen:  20,
			want: Verdict{
				Reason:      "Message must be at least 20 characters (currently 16)",
				Diagnostics: Diagnostics{Len: 16},
			},
		},
		{
			name:    "exactly the minimum",
			content: "abcdefghijklmnopqrst",
			minLen:  20,
			want: Verdict{
				Accepted:    true,
				Diagnostics: Diagnostics{Len: 20, KeywordHits: []string{}},
			},
		},
		{
			name:     "if then with boundary",
			content:  "If x is null then y fails",
			minLen:   20,
			keywords: []string{"null", "Pointer"},
			want: Verdict{
				Accepted: true,
				Diagnostics: Diagnostics{
					Len:          25,
					KeywordHits:  []string{"null"},
					HasCausality: true,
					HasBoundary:  true,
					HasIfThen:    true,
				},
			},
		},
		{
			name:     "keywords keep their order and spelling",
			content:  "RECURSION needs a Base Case, for example factorial(0).",
			minLen:   15,
			keywords: []string{"base case", "loop", "Recursion"},
			want: Verdict{
				Accepted: true,
				Diagnostics: Diagnostics{
					Len:         54,
					KeywordHits: []string{"base case", "Recursion"},
					HasExample:  true,
					HasBoundary: false,
				},
			},
		},
		{
			name:    "multibyte characters count once",
			content: "héhé c'est ça, voilà !!",
			minLen:  23,
			want: Verdict{
				Accepted:    true,
				Diagnostics: Diagnostics{Len: 23, KeywordHits: []string{}},
			},
		},
		{
			name:    "min length zero accepts empty",
			content: "   ",
			minLen:  0,
			want: Verdict{
				Accepted:    true,
				Diagnostics: Diagnostics{Len: 0, KeywordHits: []string{}},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Validate(tt.content, tt.minLen, tt.keywords))
		})
	}
}

func TestValidate_signals(t *testing.T) {
	tests := []struct {
		content                                   string
		causality, example, boundary, ifThenMatch bool
	}{
		{content: "It fails because the list is empty.", causality: true, boundary: true},
		{content: "Therefore the answer must be B here.", causality: true},
		{content: "Consider this edge case: zero items.", example: true, boundary: true},
		{content: "Languages such as Go handle this well.", example: true},
		{content: "See e.g. the negative index handling.", example: true, boundary: true},
		{content: "The output is just plain text here.", causality: false},
		{content: "The loop stops early, just so ", causality: true},
		{content: "It behaves the way I would like ", example: true},
	}
	for _, tt := range tests {
		t.Run(tt.content, func(t *testing.T) {
			d := Validate(tt.content, 10, nil).Diagnostics
			assert.Equal(t, tt.causality, d.HasCausality, "causality")
			assert.Equal(t, tt.example, d.HasExample, "example")
			assert.Equal(t, tt.boundary, d.HasBoundary, "boundary")
			assert.Equal(t, tt.ifThenMatch, d.HasIfThen, "if-then")
		})
	}
}

func TestValidate_isDeterministic(t *testing.T) {
	in := "If the input is empty then we return zero, because nothing was read."
	kws := []string{"empty", "zero"}
	first := Validate(in, 20, kws)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Validate(in, 20, kws))
	}
}
