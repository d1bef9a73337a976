package classifier

import (
	"strings"

	"pulse/internal/models"
)

// heuristicRules are scanned in order and the first matching cue wins. The
// order is a deliberate tie-break: cues overlap ("worried and sad"), so
// anxious outranks sad, which outranks happy, which outranks angry.
var heuristicRules = []struct {
	label      string
	confidence float64
	cues       []string
}{
	{models.EmotionAnxious, 0.85, []string{"anxious", "nervous", "worried", "panic", "overwhelmed", "scared", "stressed"}},
	{models.EmotionSad, 0.8, []string{"sad", "tired", "depressed", "upset", "lonely", "down", "exhausted"}},
	{models.EmotionHappy, 0.8, []string{"happy", "joy", "grateful", "excited", "glad", "great"}},
	{models.EmotionAngry, 0.8, []string{"angry", "furious", "frustrated", "annoyed", "mad", "irritated"}},
}

// heuristic is the pure, deterministic fallback: lower-cased substring scan
// against the cue sets above, defaulting to neutral.
func heuristic(text string) Result {
	lower := strings.ToLower(text)
	for _, rule := range heuristicRules {
		for _, cue := range rule.cues {
			if strings.Contains(lower, cue) {
				return Result{Label: rule.label, Confidence: rule.confidence}
			}
		}
	}
	return Result{Label: models.EmotionNeutral, Confidence: 0.6}
}
