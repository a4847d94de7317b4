package model

import "strings"

// Known item categories.
const (
	CategoryPlastic     = "plastic"
	CategoryPaper       = "paper"
	CategoryGlass       = "glass"
	CategoryTin         = "tin"
	CategoryElectronics = "electronics"
	CategoryOther       = "other"
)

// categoryAliases maps alternative spellings onto a canonical category.
var categoryAliases = map[string]string{
	"metal": CategoryTin,
}

// NormalizeCategory lower-cases and trims a category and resolves aliases.
func NormalizeCategory(category string) string {
	c := strings.ToLower(strings.TrimSpace(category))
	if canonical, ok := categoryAliases[c]; ok {
		return canonical
	}
	return c
}

// PointTable maps a category to the points a token of that category is worth.
type PointTable map[string]int

// PointsFor returns the point value for category after normalization.
func (t PointTable) PointsFor(category string) (int, bool) {
	points, ok := t[NormalizeCategory(category)]
	return points, ok
}

// Max returns the largest point value in the table, or 0 when it is empty.
func (t PointTable) Max() int {
	largest := 0
	for _, points := range t {
		largest = max(largest, points)
	}
	return largest
}

// DefaultPointTable returns the stock category values.
func DefaultPointTable() PointTable {
	return PointTable{
		CategoryPlastic:     5,
		CategoryTin:         6,
		CategoryPaper:       3,
		CategoryGlass:       8,
		CategoryElectronics: 15,
		CategoryOther:       4,
	}
}
