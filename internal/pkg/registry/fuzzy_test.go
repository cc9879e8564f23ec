package registry

import "testing"

func TestNameSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		min  float64
		max  float64
	}{
		{"Los Angeles Lakers", "Los Angeles Lakers", 1, 1},
		{"Los Angeles Lakers", "los angeles  LAKERS", 1, 1},
		{"Lakers Los Angeles", "Los Angeles Lakers", 1, 1},
		{"Lakers", "Los Angeles Lakers", 0.90, 1},
		{"Atlético Madrid", "Atletico Madrid", 1, 1},
		{"Boston Celtics", "Boston Celtics FC", 1, 1},
		{"Los Angeles Lakers", "Los Angeles Clippers", 0.5, 0.95},
		{"Boston Celtics", "Denver Nuggets", 0, 0.5},
		{"", "Lakers", 0, 0},
	}
	for _, tt := range tests {
		got := nameSimilarity(tt.a, tt.b)
		if got < tt.min || got > tt.max {
			t.Errorf("nameSimilarity(%q, %q) = %v, want in [%v, %v]", tt.a, tt.b, got, tt.min, tt.max)
		}
	}
}

func TestNameSimilaritySymmetric(t *testing.T) {
	pairs := [][2]string{
		{"Lakers", "Los Angeles Lakers"},
		{"Boston Celtics", "Celtics"},
		{"Golden State Warriors", "GS Warriors"},
	}
	for _, p := range pairs {
		ab := nameSimilarity(p[0], p[1])
		ba := nameSimilarity(p[1], p[0])
		if ab != ba {
			t.Errorf("nameSimilarity(%q, %q) = %v but reversed = %v", p[0], p[1], ab, ba)
		}
	}
}

func TestRankCandidatesDeterministic(t *testing.T) {
	candidates := []EntityRecord{
		{CanonicalID: "team_b", Name: "Boston Celtics"},
		{CanonicalID: "team_a", Name: "Los Angeles Lakers"},
		{CanonicalID: "team_c", Name: "Los Angeles Clippers"},
	}
	ranked := rankCandidates("Lakers", candidates)
	if len(ranked) != 3 {
		t.Fatalf("ranked %d candidates, want 3", len(ranked))
	}
	if ranked[0].canonicalID != "team_a" {
		t.Errorf("best candidate = %q, want team_a", ranked[0].canonicalID)
	}
	for i := 1; i < len(ranked); i++ {
		if ranked[i].score > ranked[i-1].score {
			t.Errorf("ranking not descending at %d: %v > %v", i, ranked[i].score, ranked[i-1].score)
		}
	}
}
