package catalog

// MovieDTO is a movie as returned by the popular listing and the details endpoint.
// Listings carry GenreIDs, details carry Genres.
type MovieDTO struct {
	ID           int        `json:"id"`
	Title        string     `json:"title"`
	Overview     string     `json:"overview"`
	PosterPath   *string    `json:"poster_path"`
	BackdropPath *string    `json:"backdrop_path"`
	ReleaseDate  string     `json:"release_date"`
	VoteAverage  float64    `json:"vote_average"`
	GenreIDs     []int      `json:"genre_ids,omitempty"`
	Genres       []GenreDTO `json:"genres,omitempty"`
}

// GenreDTO is a genre object from the details endpoint
type GenreDTO struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// PageDTO is one page of /movie/popular
type PageDTO struct {
	Page         int        `json:"page"`
	Results      []MovieDTO `json:"results"`
	TotalPages   int        `json:"total_pages"`
	TotalResults int        `json:"total_results"`
}

// ErrorDTO is the body of a failed request
type ErrorDTO struct {
	StatusCode    int    `json:"status_code"`
	StatusMessage string `json:"status_message"`
}
