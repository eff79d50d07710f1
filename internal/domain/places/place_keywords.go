package places

import (
	"strings"

	a "github.com/petar-dambovaliev/aho-corasick"

	"github.com/FACorreiaa/bungmap/internal/types"
)

// Korean compounds such as 슈크림붕어빵 have no word boundary, so matching is
// on substrings.
var (
	categoryMatcherBuilder = a.NewAhoCorasickBuilder(a.Opts{
		AsciiCaseInsensitive: true,
		MatchOnlyWholeWords:  false,
	})

	keywordToCategory = map[string]types.Category{
		// Custard cream
		"슈크림": types.CategoryShuCream, "크림": types.CategoryShuCream, "custard": types.CategoryShuCream,
		"cream": types.CategoryShuCream,
		// Pizza and vegetable fillings
		"피자": types.CategoryPizza, "야채": types.CategoryPizza, "채소": types.CategoryPizza,
		"pizza": types.CategoryPizza, "vegetable": types.CategoryPizza,
		// Red bean
		"팥": types.CategoryRedBean, "단팥": types.CategoryRedBean, "red bean": types.CategoryRedBean,
		"redbean": types.CategoryRedBean,
		// Everything else
		"초코": types.CategoryOther, "고구마": types.CategoryOther, "치즈": types.CategoryOther,
		"chocolate": types.CategoryOther,
	}

	// Lower wins when several categories match.
	categoryPriority = map[types.Category]int{
		types.CategoryShuCream: 1,
		types.CategoryPizza:    2,
		types.CategoryOther:    3,
		types.CategoryRedBean:  4,
	}

	categoryMatcher = categoryMatcherBuilder.Build(keywords())
)

func keywords() []string {
	out := make([]string, 0, len(keywordToCategory))
	for k := range keywordToCategory {
		out = append(out, k)
	}
	return out
}

// SuggestCategory guesses the category from free text such as the name and
// description typed into the report form.
func SuggestCategory(text string) (types.Category, bool) {
	text = strings.ToLower(text)
	matches := categoryMatcher.FindAll(text)
	if len(matches) == 0 {
		return "", false
	}

	best := types.Category("")
	bestPriority := len(categoryPriority) + 1
	for _, match := range matches {
		category, ok := keywordToCategory[text[match.Start():match.End()]]
		if !ok {
			continue
		}
		if p := categoryPriority[category]; p < bestPriority {
			best, bestPriority = category, p
		}
	}
	return best, best != ""
}
