// Package ranking считает популярность брендов по журналу голосов.
// models.go описывает строку рейтинга.
package ranking

import "sort"

// BrandCount — число голосов за бренд за день или окно дней.
type BrandCount struct {
	BrandID int64 `json:"brandId"`
	Votes   int64 `json:"votes"`
}

// SortTally упорядочивает рейтинг: голосов больше — выше,
// при равенстве меньший brandId выше. Порядок полный и детерминированный.
func SortTally(counts []BrandCount) {
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Votes != counts[j].Votes {
			return counts[i].Votes > counts[j].Votes
		}
		return counts[i].BrandID < counts[j].BrandID
	})
}
