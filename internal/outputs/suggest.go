package outputs

import (
	"github.com/hbollon/go-edlib"

	"github.com/standardbeagle/extpath/internal/types"
)

// MinSuggestionSimilarity is the Levenshtein similarity a known path needs before it is
// offered as a suggestion
const MinSuggestionSimilarity = 0.7

// Suggest returns the known path closest to path for category, or "" when the table
// cannot enumerate its keys or nothing is similar enough.
func Suggest(t Table, category types.Category, path string) string {
	lister, ok := t.(Lister)
	if !ok || path == "" {
		return ""
	}

	best := ""
	var bestScore float32
	for _, candidate := range lister.Known(category) {
		score, err := edlib.StringsSimilarity(path, candidate, edlib.Levenshtein)
		if err != nil {
			continue
		}
		if score > bestScore {
			best, bestScore = candidate, score
		}
	}
	if bestScore < MinSuggestionSimilarity {
		return ""
	}
	return best
}
