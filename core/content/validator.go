// Package content judges whether a discussion message is substantive enough to accept.
// Validate is pure: the same call gives the same verdict on the server and in a live preview.
package content

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/trezcool/baraza/core"
)

var (
	causalityPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)if\s+.+\s+then`),
		regexp.MustCompile(`(?i)because`),
		regexp.MustCompile(`(?i)therefore`),
		regexp.MustCompile(`(?i)thus`),
		regexp.MustCompile(`(?i)hence`),
		regexp.MustCompile(`(?i)so\s+`),
		regexp.MustCompile(`(?i)as a result`),
	}
	examplePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)for example`),
		regexp.MustCompile(`(?i)such as`),
		regexp.MustCompile(`(?i)e\.g\.`),
		regexp.MustCompile(`(?i)like\s+`),
		regexp.MustCompile(`(?i)for instance`),
		regexp.MustCompile(`(?i)example:`),
		regexp.MustCompile(`(?i)case:`),
	}
	boundaryPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)edge case`),
		regexp.MustCompile(`(?i)boundary`),
		regexp.MustCompile(`(?i)empty`),
		regexp.MustCompile(`(?i)null`),
		regexp.MustCompile(`(?i)undefined`),
		regexp.MustCompile(`(?i)zero`),
		regexp.MustCompile(`(?i)negative`),
	}
	ifThenPattern = regexp.MustCompile(`(?i)if\s+.+\s+then`)
)

// Diagnostics describe the reasoning signals found in accepted content.
// A rejected verdict only carries Len.
type Diagnostics struct {
	Len          int      `json:"len"`
	KeywordHits  []string `json:"keyword_hits"`
	HasCausality bool     `json:"has_causality"`
	HasExample   bool     `json:"has_example"`
	HasBoundary  bool     `json:"has_boundary"`
	HasIfThen    bool     `json:"has_if_then"`
}

type Verdict struct {
	Accepted    bool        `json:"accepted"`
	Reason      string      `json:"reason,omitempty"`
	Diagnostics Diagnostics `json:"diagnostics"`
}

// Validate checks content against the minimum length (in characters, after trimming)
// and computes diagnostics on the content as given. Keywords are matched as
// case-insensitive substrings and reported in their given order and spelling.
func Validate(content string, minLen int, keywords []string) Verdict {
	trimmed := core.CleanString(content)
	n := core.CharCount(trimmed)
	if n < minLen {
		return Verdict{
			Reason:      fmt.Sprintf("Message must be at least %d characters (currently %d)", minLen, n),
			Diagnostics: Diagnostics{Len: n},
		}
	}

	lower := strings.ToLower(content)
	hits := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(kw)) {
			hits = append(hits, kw)
		}
	}

	return Verdict{
		Accepted: true,
		Diagnostics: Diagnostics{
			Len:          n,
			KeywordHits:  hits,
			HasCausality: matchAny(causalityPatterns, content),
			HasExample:   matchAny(examplePatterns, content),
			HasBoundary:  matchAny(boundaryPatterns, content),
			HasIfThen:    ifThenPattern.MatchString(content),
		},
	}
}

func matchAny(patterns []*regexp.Regexp, s string) bool {
	for _, p := range patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}
