package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// EntityKind distinguishes the three canonical entity spaces.
type EntityKind string

const (
	KindEvent  EntityKind = "event"
	KindTeam   EntityKind = "team"
	KindPlayer EntityKind = "player"
)

// MappingSource records how a provider mapping was produced.
type MappingSource string

const (
	SourceAuto   MappingSource = "auto"
	SourceManual MappingSource = "manual"
)

// ProviderMapping links one provider-local identifier to a canonical id.
// At most one mapping exists per (provider, provider_entity_id); manual
// mappings always win and are never overwritten by automatic resolution.
type ProviderMapping struct {
	Provider         string        `json:"provider"`
	ProviderEntityID string        `json:"provider_entity_id"`
	CanonicalID      string        `json:"canonical_id"`
	Kind             EntityKind    `json:"kind"`
	Confidence       float64       `json:"confidence"`
	Source           MappingSource `json:"source"`
	MatchedVia       string        `json:"matched_via"` // "existing", "structural", "fuzzy", "minted", "manual"
	CreatedAt        time.Time     `json:"created_at"`
}

// EventIdentity builds a stable cross-provider event identifier.
//
// The id is a pure function of (league, canonical home team, canonical away
// team, start time UTC), so re-deriving it from the same inputs always yields
// the same value. Start-time revisions from providers do not change an
// already-assigned identity; they get a new mapping entry instead.
func EventIdentity(league, homeCanonicalID, awayCanonicalID string, startUTC time.Time) string {
	key := strings.Join([]string{
		normalizeKeyPart(league),
		homeCanonicalID,
		awayCanonicalID,
		startUTC.UTC().Format(time.RFC3339),
	}, "|")
	return "evt_" + shortDigest(key)
}

// TeamIdentity builds a stable team identifier from the normalized name.
func TeamIdentity(league, name string) string {
	key := normalizeKeyPart(league) + "|" + NormalizeTeamName(name)
	return "team_" + shortDigest(key)
}

// PlayerIdentity builds a stable player identifier from the normalized name.
func PlayerIdentity(league, name string) string {
	key := normalizeKeyPart(league) + "|" + NormalizeTeamName(name)
	return "plr_" + shortDigest(key)
}

func shortDigest(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])[:16]
}

// genericTokens are name parts that providers add or drop freely
// ("Los Angeles Lakers" vs "LA Lakers", "Boston Celtics" vs "Celtics FC").
var genericTokens = map[string]bool{
	"fc": true, "sc": true, "bc": true, "cf": true,
	"the": true, "club": true, "team": true,
}

// NormalizeTeamName lowercases, strips diacritics and punctuation, and drops
// generic suffix tokens so the same team spelled differently by two providers
// compares equal more often. It never tries to be clever about abbreviations;
// that is the fuzzy matcher's job.
func NormalizeTeamName(s string) string {
	s = stripDiacritics(strings.ToLower(strings.TrimSpace(s)))
	var b strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	fields := strings.Fields(b.String())
	kept := fields[:0]
	for _, f := range fields {
		if genericTokens[f] {
			continue
		}
		kept = append(kept, f)
	}
	return strings.Join(kept, " ")
}

func stripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func normalizeKeyPart(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, "|", " ")
	return strings.Join(strings.Fields(s), " ")
}
