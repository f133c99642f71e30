package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mmcdole/reel/internal/domain"
	"github.com/mmcdole/reel/internal/tui/styles"
)

// Details displays the full record of one movie
type Details struct {
	movie    domain.Movie
	hasMovie bool
	favorite bool
	loading  bool
	err      error
	webURL   string

	width  int
	height int
	offset int // scroll offset into the overview
}

// NewDetails creates an empty details panel
func NewDetails() *Details {
	return &Details{}
}

// SetLoading shows the loading state for a movie whose record is on its way.
// The listing copy is shown meanwhile.
func (d *Details) SetLoading(movie domain.Movie) {
	d.movie = movie
	d.hasMovie = true
	d.loading = true
	d.err = nil
	d.offset = 0
}

// SetMovie shows the resolved record
func (d *Details) SetMovie(movie domain.Movie, webURL string) {
	d.movie = movie
	d.hasMovie = true
	d.loading = false
	d.err = nil
	d.webURL = webURL
}

// SetError shows why the record could not be loaded
func (d *Details) SetError(err error) {
	d.loading = false
	d.err = err
}

func (d *Details) SetFavorite(favorite bool) { d.favorite = favorite }

// Movie returns the displayed movie
func (d *Details) Movie() (domain.Movie, bool) {
	return d.movie, d.hasMovie
}

// SetSize updates the component dimensions
func (d *Details) SetSize(width, height int) {
	d.width = width
	d.height = height
}

// Scroll moves the overview by delta lines
func (d *Details) Scroll(delta int) {
	d.offset = max(d.offset+delta, 0)
}

// View renders the panel
func (d *Details) View() string {
	style := styles.ActiveBorder
	frameW, frameH := style.GetFrameSize()
	contentWidth := max(d.width-frameW-4, 10)

	var content string
	if !d.hasMovie {
		content = styles.DimStyle.Render("No movie selected")
	} else {
		content = d.render(contentWidth, max(d.height-frameH-2, 1))
	}

	return style.
		Width(max(d.width-frameW, 0)).
		Height(max(d.height-frameH, 0)).
		Render(styles.DetailsStyle.Render(content))
}

func (d *Details) render(width, height int) string {
	m := d.movie
	var header []string

	title := m.Title
	if d.favorite {
		title = styles.FavoriteChar + " " + title
	}
	header = append(header, styles.TitleStyle.Render(styles.Truncate(title, width)))

	released := "Release date unknown"
	if m.Year() != "" {
		released = "Released " + m.ReleaseDate
	}
	header = append(header, styles.DimStyle.Render(released))
	header = append(header, "")

	header = append(header, field("Rating", ratingStyle(m.Rating).Render("★ "+m.FormattedRating())))
	if genres := m.GenreList(); genres != "" {
		header = append(header, field("Genres", styles.Truncate(genres, width-10)))
	}
	if d.webURL != "" {
		header = append(header, field("Page", styles.Truncate(d.webURL, width-10)))
	}
	if m.PosterURL != "" {
		header = append(header, field("Poster", styles.Truncate(m.PosterURL, width-10)))
	}
	header = append(header, "")

	switch {
	case d.loading:
		header = append(header, styles.DimStyle.Render("Loading details..."))
	case d.err != nil:
		header = append(header, styles.ErrorStyle.Render("✗ "+d.err.Error()))
	}

	body := splitLines(wordWrap(m.Overview, min(width, 80)))
	available := max(height-len(header), 1)
	offset := min(d.offset, max(len(body)-available, 0))
	end := min(offset+available, len(body))

	lines := header
	for _, line := range body[offset:end] {
		lines = append(lines, styles.SubtitleStyle.Render(line))
	}
	if end < len(body) {
		lines = append(lines, styles.DimStyle.Render("↓ more"))
	}
	return strings.Join(lines, "\n")
}

func field(label, value string) string {
	return styles.LabelStyle.Render(label) + value
}

func ratingStyle(rating float64) lipgloss.Style {
	switch {
	case rating >= 7:
		return lipgloss.NewStyle().Foreground(styles.Green)
	case rating >= 5:
		return lipgloss.NewStyle().Foreground(styles.Gold)
	default:
		return lipgloss.NewStyle().Foreground(styles.Red)
	}
}

// splitLines splits a string into lines, returning empty slice for empty string
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// wordWrap wraps text to the specified width
func wordWrap(text string, width int) string {
	if width <= 0 {
		return text
	}

	var result strings.Builder
	lineLen := 0

	for i, word := range strings.Fields(text) {
		wordLen := lipgloss.Width(word)

		if lineLen+wordLen+1 > width && lineLen > 0 {
			result.WriteString("\n")
			lineLen = 0
		}

		if i > 0 && lineLen > 0 {
			result.WriteString(" ")
			lineLen++
		}

		result.WriteString(word)
		lineLen += wordLen
	}

	return result.String()
}
