package catalog

import (
	"strconv"
	"strings"

	"github.com/mmcdole/reel/internal/domain"
)

// Image sizes used for posters and backdrops
const (
	posterSize   = "w500"
	backdropSize = "w780"
)

// DefaultImageBaseURL is the TMDB image host.
const DefaultImageBaseURL = "https://image.tmdb.org/t/p"

// webMovieURL is the public page of a movie on the TMDB site.
const webMovieURL = "https://www.themoviedb.org/movie/"

// WebURL returns the public web page for a movie id.
func WebURL(id int) string {
	return webMovieURL + strconv.Itoa(id)
}

// genreNames is the TMDB movie genre table.
var genreNames = map[int]string{
	28:    "Action",
	12:    "Adventure",
	16:    "Animation",
	35:    "Comedy",
	80:    "Crime",
	99:    "Documentary",
	18:    "Drama",
	10751: "Family",
	14:    "Fantasy",
	36:    "History",
	27:    "Horror",
	10402: "Music",
	9648:  "Mystery",
	10749: "Romance",
	878:   "Science Fiction",
	10770: "TV Movie",
	53:    "Thriller",
	10752: "War",
	37:    "Western",
}

// GenreName returns the label for a genre id. Unknown ids keep their number.
func GenreName(id int) string {
	if name, ok := genreNames[id]; ok {
		return name
	}
	return strconv.Itoa(id)
}

// MapMovies converts listing results to domain movies
func MapMovies(dtos []MovieDTO, imageBaseURL string) []domain.Movie {
	movies := make([]domain.Movie, 0, len(dtos))
	for _, dto := range dtos {
		movies = append(movies, MapMovie(dto, imageBaseURL))
	}
	return movies
}

// MapMovie converts one movie DTO to a domain movie
func MapMovie(dto MovieDTO, imageBaseURL string) domain.Movie {
	movie := domain.Movie{
		ID:          dto.ID,
		Title:       dto.Title,
		Overview:    dto.Overview,
		PosterURL:   imageURL(imageBaseURL, posterSize, dto.PosterPath),
		BackdropURL: imageURL(imageBaseURL, backdropSize, dto.BackdropPath),
		Rating:      dto.VoteAverage,
		ReleaseDate: dto.ReleaseDate,
	}

	if movie.ReleaseDate == "" {
		movie.ReleaseDate = domain.UnknownReleaseDate
	}

	// Details payloads name their genres; listings only carry ids
	if len(dto.Genres) > 0 {
		for _, g := range dto.Genres {
			name := g.Name
			if name == "" {
				name = GenreName(g.ID)
			}
			movie.Genres = append(movie.Genres, name)
		}
	} else {
		for _, id := range dto.GenreIDs {
			movie.Genres = append(movie.Genres, GenreName(id))
		}
	}

	return movie
}

func imageURL(base, size string, path *string) string {
	if path == nil || *path == "" {
		return ""
	}
	if base == "" {
		base = DefaultImageBaseURL
	}
	return strings.TrimRight(base, "/") + "/" + size + *path
}

// MapPage converts a popular listing page
func MapPage(dto PageDTO, imageBaseURL string) domain.Page {
	return domain.Page{
		Number:     dto.Page,
		TotalPages: dto.TotalPages,
		Movies:     MapMovies(dto.Results, imageBaseURL),
	}
}
