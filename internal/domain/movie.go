package domain

import (
	"fmt"
	"strings"
)

// UnknownReleaseDate is stored when the catalog has no release date for a movie.
const UnknownReleaseDate = "N/A"

// genreSeparator joins genres in the persisted encoding. Names containing it do not
// survive a round trip.
const genreSeparator = ","

// Movie is one catalog entry. The same ID names the same movie in the remote
// catalog, the favorites store and the popular cache.
type Movie struct {
	ID          int      // Catalog identifier
	Title       string   // Display title
	Overview    string   // Plot synopsis
	PosterURL   string   // Absolute poster URL, empty when absent
	BackdropURL string   // Absolute backdrop URL, empty when absent
	Rating      float64  // Average vote, 0-10
	ReleaseDate string   // ISO date or UnknownReleaseDate
	Genres      []string // Ordered genre labels, nil when there are none
}

// Year returns the four-digit year of the release date, or "" when unknown.
func (m Movie) Year() string {
	if len(m.ReleaseDate) < 4 || m.ReleaseDate == UnknownReleaseDate {
		return ""
	}
	return m.ReleaseDate[:4]
}

// FormattedRating returns the rating with one decimal, e.g. "7.5".
func (m Movie) FormattedRating() string {
	return fmt.Sprintf("%.1f", m.Rating)
}

// GenreList returns the genres as a display string.
func (m Movie) GenreList() string {
	return strings.Join(m.Genres, ", ")
}

// EncodeGenres converts genres to their persisted text form.
func EncodeGenres(genres []string) string {
	return strings.Join(genres, genreSeparator)
}

// DecodeGenres converts the persisted text form back to genres.
// The empty string decodes to nil, so an empty slice written to a store reads
// back as nil. Compare genres with len, not against nil.
func DecodeGenres(data string) []string {
	if data == "" {
		return nil
	}
	return strings.Split(data, genreSeparator)
}

// Page is one page of the remote popular listing.
type Page struct {
	Number     int     // 1-based page number
	TotalPages int     // As reported by the catalog, 0 if unknown
	Movies     []Movie // Empty when the catalog has no more results
}
