package domain

import "strings"

// PlaceholderCategory is what the home feed's shallow conversion stamps on
// every event. Cached lists where every event carries it are not categorized.
const PlaceholderCategory = "Event"

const CategoryOther = "Other"

// Categories is the fixed vocabulary, in display order.
var Categories = []string{
	"Music",
	"Sports",
	"Technology",
	"Arts",
	"Food & Drink",
	"Business",
	"Education",
	"Health",
	"Community",
	CategoryOther,
}

var categoryAliases = map[string]string{
	"music":          "Music",
	"concert":        "Music",
	"concerts":       "Music",
	"festival":       "Music",
	"sport":          "Sports",
	"sports":         "Sports",
	"fitness":        "Sports",
	"tech":           "Technology",
	"technology":     "Technology",
	"art":            "Arts",
	"arts":           "Arts",
	"culture":        "Arts",
	"food":           "Food & Drink",
	"food & drink":   "Food & Drink",
	"food and drink": "Food & Drink",
	"drinks":         "Food & Drink",
	"business":       "Business",
	"networking":     "Business",
	"education":      "Education",
	"workshop":       "Education",
	"health":         "Health",
	"wellness":       "Health",
	"community":      "Community",
	"social":         "Community",
	"other":          CategoryOther,
}

// NormalizeCategory maps free-form API categories onto the vocabulary.
// Anything unrecognised, including blank, becomes "Other".
func NormalizeCategory(raw string) string {
	v := strings.ToLower(strings.TrimSpace(raw))
	if v == "" {
		return CategoryOther
	}
	if c, ok := categoryAliases[v]; ok {
		return c
	}
	return CategoryOther
}

// CategoryRank returns the vocabulary position, or -1 for unknown categories.
func CategoryRank(category string) int {
	for i, c := range Categories {
		if c == category {
			return i
		}
	}
	return -1
}
