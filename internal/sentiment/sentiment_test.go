package sentiment

import (
	"math"
	"testing"
)

func TestFallbackScore_Positive(t *testing.T) {
	score := FallbackScore("Strong growth and record profit beat expectations")
	if score <= 0 {
		t.Errorf("Expected positive score, got %f", score)
	}
}

func TestFallbackScore_Negative(t *testing.T) {
	score := FallbackScore("Weak demand, falling revenue and layoffs signal decline")
	if score >= 0 {
		t.Errorf("Expected negative score, got %f", score)
	}
}

func TestFallbackScore_Neutral(t *testing.T) {
	score := FallbackScore("The company announced a quarterly report on Tuesday")
	if score != 0 {
		t.Errorf("Expected zero score for neutral text, got %f", score)
	}
}

func TestFallbackScore_Empty(t *testing.T) {
	if score := FallbackScore(""); score != 0 {
		t.Errorf("Expected zero score for empty text, got %f", score)
	}
}

func TestFallbackScore_RepeatedWordCountedOnce(t *testing.T) {
	single := FallbackScore("growth")
	repeated := FallbackScore("growth growth growth growth")
	if single != repeated {
		t.Errorf("Repeated word should not change the score: %f vs %f", single, repeated)
	}
}

func TestFallbackScore_Bounded(t *testing.T) {
	text := "growth profit surge gain strong record beat boom rally" +
		" momentum expansion breakthrough optimistic bullish upside" +
		" thriving robust soaring winning success"
	score := FallbackScore(text)
	if score < -1 || score > 1 {
		t.Errorf("Score out of bounds: %f", score)
	}
	if math.Abs(score-1) > 1e-9 {
		t.Errorf("Expected saturated score of 1, got %f", score)
	}
}

func TestLabel(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{0.5, "positive"},
		{0.16, "positive"},
		{0.15, "neutral"},
		{0.0, "neutral"},
		{-0.15, "neutral"},
		{-0.16, "negative"},
		{-1.0, "negative"},
	}
	for _, tt := range tests {
		if got := Label(tt.score); got != tt.want {
			t.Errorf("Label(%f) = %q, want %q", tt.score, got, tt.want)
		}
	}
}

func TestClamp(t *testing.T) {
	if got := Clamp(1.5, -1, 1); got != 1 {
		t.Errorf("Clamp above range = %f, want 1", got)
	}
	if got := Clamp(-2, -1, 1); got != -1 {
		t.Errorf("Clamp below range = %f, want -1", got)
	}
	if got := Clamp(0.3, -1, 1); got != 0.3 {
		t.Errorf("Clamp in range = %f, want 0.3", got)
	}
}
