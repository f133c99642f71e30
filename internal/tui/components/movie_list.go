package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mmcdole/reel/internal/domain"
	"github.com/mmcdole/reel/internal/search"
	"github.com/mmcdole/reel/internal/tui/styles"
)

// Layout constants for the movie list
const (
	// Border adds 1 char on each side
	BorderWidth  = 2
	BorderHeight = 2

	// Title line plus the "↑ more" and "↓ more" indicators
	chromeLines = 3

	// nearEndRows is how close to the bottom the cursor must be to ask for more
	nearEndRows = 3
)

// ListStatus is the footer state of a list
type ListStatus int

const (
	ListIdle ListStatus = iota
	ListLoading
	ListFailed
	ListEnd
)

// MovieList is a scrollable, filterable list of movies.
type MovieList struct {
	movies    []domain.Movie
	favorites map[int]bool

	title  string
	status ListStatus
	empty  string // shown when there are no movies and nothing is loading

	// Selection
	cursor     int
	offset     int
	maxVisible int

	// Dimensions
	width   int
	height  int
	focused bool

	spinner string

	// Filter state
	filterActive bool
	filterInput  textinput.Model
	index        *search.Index
	results      []search.Result // nil when no query
}

// NewMovieList creates an empty list with the given title
func NewMovieList(title, empty string) *MovieList {
	ti := textinput.New()
	ti.Placeholder = "type to filter..."
	ti.Prompt = "/ "
	ti.PromptStyle = styles.FilterPromptStyle
	ti.TextStyle = styles.FilterStyle

	return &MovieList{
		title:       title,
		empty:       empty,
		favorites:   make(map[int]bool),
		filterInput: ti,
		index:       search.NewIndex(nil),
	}
}

// SetMovies replaces the content. The cursor stays on the same movie when it is
// still present, and the active filter is re-applied.
func (l *MovieList) SetMovies(movies []domain.Movie) {
	selectedID := -1
	if m, ok := l.Selected(); ok {
		selectedID = m.ID
	}

	l.movies = movies
	l.index = search.NewIndex(movies)
	if l.results != nil {
		l.applyFilter()
	}

	l.cursor = 0
	for i := 0; i < l.Len(); i++ {
		if l.movieAt(i).ID == selectedID {
			l.cursor = i
			break
		}
	}
	l.ensureVisible()
}

// Movies returns the unfiltered content
func (l *MovieList) Movies() []domain.Movie {
	return l.movies
}

// SetFavorites marks which movies show the favorite star
func (l *MovieList) SetFavorites(favorites []domain.Movie) {
	l.favorites = make(map[int]bool, len(favorites))
	for _, m := range favorites {
		l.favorites[m.ID] = true
	}
}

// IsFavorite reports whether id is marked
func (l *MovieList) IsFavorite(id int) bool {
	return l.favorites[id]
}

func (l *MovieList) SetStatus(status ListStatus) { l.status = status }
func (l *MovieList) Status() ListStatus         { return l.status }
func (l *MovieList) SetTitle(title string)      { l.title = title }
func (l *MovieList) SetFocused(focused bool)    { l.focused = focused }
func (l *MovieList) SetSpinner(frame string)    { l.spinner = frame }

// SetSize sets the outer size including the border
func (l *MovieList) SetSize(width, height int) {
	l.width = width
	l.height = height
	l.recalcMaxVisible()
	l.ensureVisible()
}

// Len returns the number of visible rows
func (l *MovieList) Len() int {
	if l.results != nil {
		return len(l.results)
	}
	return len(l.movies)
}

// Cursor returns the selected row
func (l *MovieList) Cursor() int {
	return l.cursor
}

// Selected returns the movie under the cursor
func (l *MovieList) Selected() (domain.Movie, bool) {
	if l.cursor < 0 || l.cursor >= l.Len() {
		return domain.Movie{}, false
	}
	return l.movieAt(l.cursor), true
}

// NearEnd reports whether the cursor is close enough to the bottom to load the
// next page. Always false while filtering.
func (l *MovieList) NearEnd() bool {
	if l.results != nil || l.filterActive {
		return false
	}
	return l.cursor >= len(l.movies)-nearEndRows
}

// NearStart reports whether the cursor is close enough to the top to load the
// previous page. Always false while filtering.
func (l *MovieList) NearStart() bool {
	if l.results != nil || l.filterActive {
		return false
	}
	return l.cursor < nearEndRows
}

// ToggleFilter activates the filter input
func (l *MovieList) ToggleFilter() {
	l.filterActive = true
	l.filterInput.Focus()
	l.recalcMaxVisible()
}

// IsFilterTyping returns true if the filter input has focus
func (l *MovieList) IsFilterTyping() bool {
	return l.filterActive && l.filterInput.Focused()
}

// IsFiltering returns true if filter mode is active
func (l *MovieList) IsFiltering() bool {
	return l.filterActive
}

// ClearFilter deactivates the filter and shows all movies
func (l *MovieList) ClearFilter() {
	l.filterActive = false
	l.results = nil
	l.filterInput.SetValue("")
	l.filterInput.Blur()
	l.cursor = 0
	l.offset = 0
	l.recalcMaxVisible()
}

// Update handles navigation and filter keys
func (l *MovieList) Update(msg tea.Msg) tea.Cmd {
	keyMsg, ok := msg.(tea.KeyMsg)

	if l.IsFilterTyping() {
		if ok {
			switch keyMsg.String() {
			case "esc":
				l.ClearFilter()
				return nil
			case "enter":
				l.filterInput.Blur()
				return nil
			case "backspace":
				if l.filterInput.Value() == "" {
					l.ClearFilter()
					return nil
				}
			}
		}
		var cmd tea.Cmd
		l.filterInput, cmd = l.filterInput.Update(msg)
		l.applyFilter()
		return cmd
	}

	if !ok {
		return nil
	}

	if l.filterActive {
		switch keyMsg.String() {
		case "esc":
			l.ClearFilter()
			return nil
		case "/":
			l.filterInput.Focus()
			return nil
		}
	}

	count := l.Len()
	if count == 0 {
		return nil
	}

	switch keyMsg.String() {
	case "j", "down":
		if l.cursor < count-1 {
			l.cursor++
		}
	case "k", "up":
		if l.cursor > 0 {
			l.cursor--
		}
	case "g", "home":
		l.cursor = 0
	case "G", "end":
		l.cursor = count - 1
	case "ctrl+d", "pgdown":
		l.cursor = min(l.cursor+max(l.maxVisible/2, 1), count-1)
	case "ctrl+u", "pgup":
		l.cursor = max(l.cursor-max(l.maxVisible/2, 1), 0)
	}
	l.ensureVisible()
	return nil
}

func (l *MovieList) movieAt(i int) domain.Movie {
	if l.results != nil {
		return l.results[i].Movie
	}
	return l.movies[i]
}

func (l *MovieList) applyFilter() {
	query := l.filterInput.Value()
	if query == "" {
		l.results = nil
		return
	}
	l.results = l.index.Filter(query)
	if l.results == nil {
		l.results = []search.Result{}
	}
	l.cursor = 0
	l.offset = 0
}

func (l *MovieList) recalcMaxVisible() {
	l.maxVisible = l.height - BorderHeight - chromeLines
	if l.filterActive {
		l.maxVisible--
	}
	if l.maxVisible < 1 {
		l.maxVisible = 1
	}
}

func (l *MovieList) ensureVisible() {
	if l.maxVisible <= 0 {
		return
	}
	if l.cursor < l.offset {
		l.offset = l.cursor
	}
	if l.cursor >= l.offset+l.maxVisible {
		l.offset = l.cursor - l.maxVisible + 1
	}
}

// View renders the list inside its border
func (l *MovieList) View() string {
	style := styles.InactiveBorder
	if l.focused {
		style = styles.ActiveBorder
	}
	frameW, frameH := style.GetFrameSize()

	return style.
		Width(max(l.width-frameW, 0)).
		Height(max(l.height-frameH, 0)).
		Render(l.renderContent())
}

func (l *MovieList) renderContent() string {
	itemWidth := max(l.width-BorderWidth, 10)

	title := l.title
	if l.Len() > 0 {
		title = fmt.Sprintf("%s (%d)", l.title, l.Len())
	}
	titleLine := styles.AccentStyle.Render(styles.Truncate(title, itemWidth))

	count := l.Len()
	if count == 0 {
		msg := l.empty
		switch {
		case l.results != nil:
			msg = "No matches"
		case l.status == ListLoading:
			msg = l.spinner + " Loading..."
		case l.status == ListFailed:
			msg = "Failed to load. Press r to retry"
		}
		content := titleLine + "\n \n" + styles.DimStyle.Render(msg) + "\n "
		if l.filterActive {
			content += "\n" + l.filterInput.View()
		}
		return content
	}

	end := min(l.offset+l.maxVisible, count)
	lines := make([]string, 0, end-l.offset)
	for i := l.offset; i < end; i++ {
		lines = append(lines, l.renderRow(i, i == l.cursor, itemWidth))
	}

	header := " "
	if l.offset > 0 {
		header = styles.DimStyle.Render("↑ more")
	}

	footer := " "
	switch {
	case end < count:
		footer = styles.DimStyle.Render("↓ more")
	case l.results != nil:
	case l.status == ListLoading:
		footer = styles.DimStyle.Render(l.spinner + " Loading more...")
	case l.status == ListFailed:
		footer = styles.ErrorStyle.Render("✗ Failed to load page. Press r to retry")
	case l.status == ListEnd:
		footer = styles.DimStyle.Render("End of list")
	}

	content := titleLine + "\n" + header + "\n" + strings.Join(lines, "\n") + "\n" + footer
	if l.filterActive {
		content += "\n" + l.filterInput.View()
	}
	return content
}

func (l *MovieList) renderRow(i int, selected bool, width int) string {
	movie := l.movieAt(i)

	marker := "  "
	var markerFg *lipgloss.Color
	if l.favorites[movie.ID] {
		marker = styles.FavoriteChar + " "
		gold := styles.Gold
		markerFg = &gold
	}

	suffix := ""
	if year := movie.Year(); year != "" {
		suffix = " (" + year + ")"
	}
	suffix += "  " + movie.FormattedRating()

	titleWidth := max(width-lipgloss.Width(marker)-lipgloss.Width(suffix)-2, 1)
	title := styles.Truncate(movie.Title, titleWidth)

	parts := []styles.RowPart{{Text: marker, Foreground: markerFg}}
	if l.results != nil {
		parts = append(parts, highlightParts(title, l.results[i].MatchedIndexes, selected)...)
	} else {
		parts = append(parts, styles.RowPart{Text: title})
	}
	dim := styles.DimGray
	parts = append(parts, styles.RowPart{Text: suffix, Foreground: &dim})

	return styles.RenderListRow(parts, selected, width)
}

// highlightParts splits title into plain and matched runs. matched holds byte
// offsets into the lower-cased title.
func highlightParts(title string, matched []int, selected bool) []styles.RowPart {
	if len(matched) == 0 {
		return []styles.RowPart{{Text: title}}
	}
	hit := make(map[int]bool, len(matched))
	for _, i := range matched {
		hit[i] = true
	}

	highlight := styles.MatchHighlightStyle
	if selected {
		highlight = styles.MatchHighlightSelectedStyle
	}
	accent := styles.CatalogBlue

	var parts []styles.RowPart
	var run []rune
	runHit := false
	flush := func() {
		if len(run) == 0 {
			return
		}
		part := styles.RowPart{Text: string(run)}
		if runHit {
			part.Style = highlight
			part.Foreground = &accent
		}
		parts = append(parts, part)
		run = run[:0]
	}

	for i, r := range title {
		if hit[i] != runHit {
			flush()
			runHit = hit[i]
		}
		run = append(run, r)
	}
	flush()
	return parts
}
