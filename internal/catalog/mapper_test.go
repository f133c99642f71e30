package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenreName(t *testing.T) {
	assert.Equal(t, "Science Fiction", GenreName(878))
	assert.Equal(t, "10403", GenreName(10403))
}

func TestMapMovie_CustomImageBase(t *testing.T) {
	poster := "/p.jpg"
	empty := ""
	movie := MapMovie(MovieDTO{ID: 1, PosterPath: &poster, BackdropPath: &empty}, "https://img.example.com/t/p/")

	assert.Equal(t, "https://img.example.com/t/p/w500/p.jpg", movie.PosterURL)
	assert.Empty(t, movie.BackdropURL)
	assert.Equal(t, "N/A", movie.ReleaseDate)
	assert.Nil(t, movie.Genres)
}

func TestMapMovie_DetailsGenresWin(t *testing.T) {
	movie := MapMovie(MovieDTO{
		ID:       2,
		GenreIDs: []int{35},
		Genres:   []GenreDTO{{ID: 18, Name: "Drama"}, {ID: 99}},
	}, "")

	assert.Equal(t, []string{"Drama", "Documentary"}, movie.Genres)
}

func TestWebURL(t *testing.T) {
	assert.Equal(t, "https://www.themoviedb.org/movie/550", WebURL(550))
}
