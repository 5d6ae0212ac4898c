// Package sentiment provides the lexicon fallback scorer used when a
// content provider supplies no polarity of its own.
package sentiment

import "strings"

// scale normalizes raw keyword counts into [-1, 1]; five net matches in
// either direction saturate the score.
const scale = 5.0

// positiveWords and negativeWords are symmetric keyword lists: each match
// counts once regardless of intensity.
var positiveWords = []string{
	"growth", "gain", "surge", "profit", "success", "innovation",
	"breakthrough", "expansion", "record", "strong", "rally", "upgrade",
	"opportunity", "boost", "optimistic", "improvement", "momentum",
	"outperform", "beat", "win",
}

var negativeWords = []string{
	"decline", "loss", "drop", "risk", "failure", "crisis",
	"layoff", "downturn", "weak", "slump", "downgrade", "threat",
	"concern", "miss", "pessimistic", "recession", "selloff",
	"underperform", "lawsuit", "fraud",
}

// FallbackScore computes a [-1, 1] polarity for the text from symmetric
// positive/negative keyword counts, normalized by a fixed scale and
// clamped.
func FallbackScore(text string) float64 {
	lower := strings.ToLower(text)
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9') && r != '-'
	})

	seen := make(map[string]struct{}, len(words))
	for _, w := range words {
		seen[strings.Trim(w, "-")] = struct{}{}
	}

	var pos, neg int
	for _, w := range positiveWords {
		if _, ok := seen[w]; ok {
			pos++
		}
	}
	for _, w := range negativeWords {
		if _, ok := seen[w]; ok {
			neg++
		}
	}

	score := float64(pos-neg) / scale
	return Clamp(score, -1, 1)
}

// Label converts a polarity score into the trend label used in snapshot
// payloads.
func Label(score float64) string {
	switch {
	case score > 0.15:
		return "positive"
	case score < -0.15:
		return "negative"
	default:
		return "neutral"
	}
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
