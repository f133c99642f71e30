// Package search ranks locally cached movies against a free-text query.
package search

import (
	"sort"
	"strings"
	"unicode"

	"github.com/lithammer/fuzzysearch/fuzzy"
	sfuzzy "github.com/sahilm/fuzzy"

	"github.com/mmcdole/reel/internal/domain"
)

// Result is one ranked match.
type Result struct {
	Movie          domain.Movie
	MatchedIndexes []int // Character positions in the title that matched, for highlighting
	Score          int   // Lower is better
}

// Index implements sahilm/fuzzy.Source over movie titles.
type Index struct {
	movies      []domain.Movie
	lowerTitles []string
}

// NewIndex builds an index over movies
func NewIndex(movies []domain.Movie) *Index {
	idx := &Index{
		movies:      movies,
		lowerTitles: make([]string, len(movies)),
	}
	for i, m := range movies {
		idx.lowerTitles[i] = strings.ToLower(m.Title)
	}
	return idx
}

// String returns the lowercase title at index i (implements fuzzy.Source)
func (idx *Index) String(i int) string { return idx.lowerTitles[i] }

// Len returns the number of movies (implements fuzzy.Source)
func (idx *Index) Len() int { return len(idx.movies) }

// Filter returns subsequence matches with their character positions, best first.
// It backs the interactive list filter.
func (idx *Index) Filter(query string) []Result {
	query = strings.TrimSpace(query)
	if query == "" || idx.Len() == 0 {
		return nil
	}

	matches := sfuzzy.FindFrom(strings.ToLower(query), idx)
	results := make([]Result, len(matches))
	for i, match := range matches {
		results[i] = Result{
			Movie:          idx.movies[match.Index],
			MatchedIndexes: match.MatchedIndexes,
			Score:          -match.Score,
		}
	}
	return results
}

// Rank returns the movies matching query ordered best first. Exact, prefix and
// substring matches rank ahead of subsequence matches, which rank ahead of
// titles that are only within typo distance of the query.
func Rank(query string, movies []domain.Movie) []domain.Movie {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}

	type rankedMovie struct {
		movie domain.Movie
		score int
	}

	ranked := make([]rankedMovie, 0, len(movies))
	for _, m := range movies {
		if score, ok := matchScore(query, strings.ToLower(m.Title)); ok {
			ranked = append(ranked, rankedMovie{movie: m, score: score})
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score < ranked[j].score
		}
		return len(ranked[i].movie.Title) < len(ranked[j].movie.Title)
	})

	results := make([]domain.Movie, len(ranked))
	for i, r := range ranked {
		results[i] = r.movie
	}
	return results
}

// matchScore scores a lowercase title against a lowercase query.
// Lower score = better match.
func matchScore(query, title string) (int, bool) {
	switch {
	case title == query:
		return 0, true
	case strings.HasPrefix(title, query):
		return 10, true
	case strings.Contains(title, query):
		return 50, true
	case fuzzy.MatchFold(query, title):
		return 100 + fuzzy.LevenshteinDistance(query, title), true
	}

	// Typo tolerance, per word
	maxTypos := allowedTypos(len([]rune(query)))
	if maxTypos == 0 {
		return 0, false
	}
	best := -1
	for _, word := range words(title) {
		d := fuzzy.LevenshteinDistance(query, word)
		if d <= maxTypos && (best < 0 || d < best) {
			best = d
		}
	}
	if best < 0 {
		return 0, false
	}
	return 200 + best*20, true
}

// allowedTypos returns the number of typos allowed based on word length
func allowedTypos(length int) int {
	switch {
	case length <= 3:
		return 0
	case length <= 6:
		return 1
	default:
		return 2
	}
}

func words(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Merge combines favorites and cached popular movies, dropping popular entries
// whose id is already a favorite. Favorites come first.
func Merge(favorites, popular []domain.Movie) []domain.Movie {
	seen := make(map[int]bool, len(favorites))
	merged := make([]domain.Movie, 0, len(favorites)+len(popular))
	for _, m := range favorites {
		if seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		merged = append(merged, m)
	}
	for _, m := range popular {
		if seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		merged = append(merged, m)
	}
	return merged
}
