package registry

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/linelogic/linelogic/internal/pkg/models"
)

// nameSimilarity scores two team/player names in [0,1]. Both inputs go
// through the canonical normalization (case, diacritics, generic suffixes)
// first; token order is ignored so "Lakers Los Angeles" still matches.
func nameSimilarity(a, b string) float64 {
	na := models.NormalizeTeamName(a)
	nb := models.NormalizeTeamName(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}

	sa := tokenSort(na)
	sb := tokenSort(nb)
	if sa == sb {
		return 1
	}

	// Mascot-only vs full name ("Lakers" vs "Los Angeles Lakers"): every
	// token of the shorter name appearing in the longer one is near-certain
	// identity for team names.
	if tokenSubset(na, nb) || tokenSubset(nb, na) {
		return 0.95
	}

	dist := levenshtein.ComputeDistance(sa, sb)
	longest := len(sa)
	if len(sb) > longest {
		longest = len(sb)
	}
	if longest == 0 {
		return 0
	}
	ratio := 1 - float64(dist)/float64(longest)

	// A shared distinctive token (the mascot, usually) is a strong signal
	// that plain edit distance undervalues for "Lakers" vs
	// "Los Angeles Lakers".
	if sharesToken(na, nb) && ratio < 0.85 {
		ratio = (ratio + 0.85) / 2
	}
	if ratio < 0 {
		return 0
	}
	return ratio
}

func tokenSort(s string) string {
	fields := strings.Fields(s)
	sort.Strings(fields)
	return strings.Join(fields, " ")
}

// tokenSubset reports whether every token of a appears in b.
func tokenSubset(a, b string) bool {
	set := map[string]bool{}
	for _, t := range strings.Fields(b) {
		set[t] = true
	}
	for _, t := range strings.Fields(a) {
		if !set[t] {
			return false
		}
	}
	return true
}

func sharesToken(a, b string) bool {
	set := map[string]bool{}
	for _, t := range strings.Fields(a) {
		if len(t) >= 4 {
			set[t] = true
		}
	}
	for _, t := range strings.Fields(b) {
		if set[t] {
			return true
		}
	}
	return false
}

// scored is a fuzzy candidate with its similarity score.
type scored struct {
	canonicalID string
	score       float64
}

// rankCandidates scores every candidate name and returns them best-first.
func rankCandidates(name string, candidates []EntityRecord) []scored {
	out := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, scored{canonicalID: c.CanonicalID, score: nameSimilarity(name, c.Name)})
	}
	sortScored(out)
	return out
}

// sortScored orders best-first with a stable id tiebreak so ranking is
// deterministic.
func sortScored(s []scored) {
	sort.Slice(s, func(i, j int) bool {
		if s[i].score != s[j].score {
			return s[i].score > s[j].score
		}
		return s[i].canonicalID < s[j].canonicalID
	})
}
