package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mmcdole/reel/internal/catalog"
	"github.com/mmcdole/reel/internal/connectivity"
	"github.com/mmcdole/reel/internal/domain"
	"github.com/mmcdole/reel/internal/movies"
	"github.com/mmcdole/reel/internal/tui/components"
	"github.com/mmcdole/reel/internal/tui/styles"
)

// MovieService is the part of the movie repository the UI uses.
type MovieService interface {
	PagedMovies() *movies.Pager
	Favorites(ctx context.Context) (<-chan []domain.Movie, error)
	PopularMovies(ctx context.Context) (<-chan []domain.Movie, error)
	GetMovieDetails(ctx context.Context, id int) (domain.Movie, error)
	GetPopularMovie(ctx context.Context, id int) (domain.Movie, error)
	ToggleFavorite(ctx context.Context, movie domain.Movie) bool
}

// Connectivity reports the current state and its transitions.
type Connectivity interface {
	State() connectivity.State
	Subscribe(ctx context.Context) <-chan connectivity.Event
}

// URLOpener opens a URL in a browser.
type URLOpener interface {
	Open(url string) error
}

// Tab is the list being browsed
type Tab int

const (
	TabPopular Tab = iota
	TabFavorites
)

// Screen is what fills the body of the screen
type Screen int

const (
	ScreenList Screen = iota
	ScreenDetails
)

// toastDuration is how long a transient notification stays in the footer
const toastDuration = 3 * time.Second

// Chrome: tab bar and footer
const chromeHeight = 2

// Model is the main Bubble Tea model for the application
type Model struct {
	ctx    context.Context
	svc    MovieService
	conn   Connectivity
	opener URLOpener

	// Application state
	Tab      Tab
	Screen   Screen
	ShowHelp bool
	width    int
	height   int

	connState connectivity.State
	pager     *movies.Pager
	snapshot  movies.Snapshot
	cache     []domain.Movie
	loading   bool // a pager operation is in flight

	// UI Components
	popular   *components.MovieList
	favorites *components.MovieList
	details   *components.Details
	spinner   spinner.Model
	help      help.Model

	// Live channels, re-read after every message
	pagerCh     <-chan movies.Snapshot
	favoritesCh <-chan []domain.Movie
	cacheCh     <-chan []domain.Movie
	connCh      <-chan connectivity.Event

	// Toast
	toast    string
	toastErr bool
	toastID  int
	startErr error
}

// NewModel creates the model and subscribes to its live sources for the life
// of ctx.
func NewModel(ctx context.Context, svc MovieService, conn Connectivity, opener URLOpener) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.SpinnerStyle

	m := Model{
		ctx:       ctx,
		svc:       svc,
		conn:      conn,
		opener:    opener,
		connState: conn.State(),
		pager:     svc.PagedMovies(),
		popular:   components.NewMovieList("Popular", "No movies"),
		favorites: components.NewMovieList("Favorites", "No favorites yet. Press f on a movie to add it"),
		details:   components.NewDetails(),
		spinner:   sp,
		help:      help.New(),
	}
	m.popular.SetFocused(true)

	m.pagerCh = m.pager.Updates(ctx)
	m.connCh = conn.Subscribe(ctx)

	var errs []error
	var err error
	if m.favoritesCh, err = svc.Favorites(ctx); err != nil {
		errs = append(errs, err)
	}
	if m.cacheCh, err = svc.PopularMovies(ctx); err != nil {
		errs = append(errs, err)
	}
	m.startErr = errors.Join(errs...)

	// Init loads the first page unless the tracker already reports offline
	m.loading = !m.connState.PreferCache()
	m.syncPopular()
	return m
}

// Init starts listening and loads the first page unless offline
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.spinner.Tick,
		m.listenPager(),
		m.listenFavorites(),
		m.listenCache(),
		m.listenConnectivity(),
	}
	if m.startErr != nil {
		err := m.startErr
		cmds = append(cmds, func() tea.Msg { return ErrMsg{Err: err, Context: "opening local store"} })
	}
	if m.loading {
		cmds = append(cmds, LoadNextCmd(m.ctx, m.pager))
	}
	return tea.Batch(cmds...)
}

func (m Model) listenPager() tea.Cmd {
	return listen(m.pagerCh, func(s movies.Snapshot) tea.Msg { return PagerUpdateMsg{Snapshot: s} })
}

func (m Model) listenFavorites() tea.Cmd {
	return listen(m.favoritesCh, func(ms []domain.Movie) tea.Msg { return FavoritesMsg{Movies: ms} })
}

func (m Model) listenCache() tea.Cmd {
	return listen(m.cacheCh, func(ms []domain.Movie) tea.Msg { return PopularCacheMsg{Movies: ms} })
}

func (m Model) listenConnectivity() tea.Cmd {
	return listen(m.connCh, func(e connectivity.Event) tea.Msg { return ConnectivityMsg{Event: e} })
}

// Update handles all messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.updateLayout()
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		frame := m.spinner.View()
		m.popular.SetSpinner(frame)
		m.favorites.SetSpinner(frame)
		return m, cmd

	case PagerUpdateMsg:
		m.snapshot = msg.Snapshot
		m.syncPopular()
		return m, m.listenPager()

	case PageLoadedMsg:
		m.loading = false
		if msg.Err != nil && !errors.Is(msg.Err, context.Canceled) {
			return m, m.setStatus(userMessage(msg.Err), true)
		}
		return m, nil

	case PopularCacheMsg:
		m.cache = msg.Movies
		m.syncPopular()
		return m, m.listenCache()

	case FavoritesMsg:
		m.favorites.SetMovies(msg.Movies)
		m.popular.SetFavorites(msg.Movies)
		m.favorites.SetFavorites(msg.Movies)
		if movie, ok := m.details.Movie(); ok {
			m.details.SetFavorite(m.favorites.IsFavorite(movie.ID))
		}
		return m, m.listenFavorites()

	case ConnectivityMsg:
		return m.handleConnectivity(msg.Event)

	case DetailsLoadedMsg:
		current, ok := m.details.Movie()
		if !ok || current.ID != msg.ID || m.Screen != ScreenDetails {
			return m, nil
		}
		if msg.Err != nil {
			m.details.SetError(errors.New(userMessage(msg.Err)))
			return m, nil
		}
		m.details.SetMovie(msg.Movie, catalog.WebURL(msg.Movie.ID))
		return m, nil

	case FavoriteToggledMsg:
		if msg.Added {
			return m, m.setStatus(fmt.Sprintf("Added %q to favorites", msg.Movie.Title), false)
		}
		return m, m.setStatus(fmt.Sprintf("Removed %q from favorites", msg.Movie.Title), false)

	case StatusMsg:
		return m, m.setStatus(msg.Message, msg.IsError)

	case ClearStatusMsg:
		if msg.ID == m.toastID {
			m.toast = ""
			m.toastErr = false
		}
		return m, nil

	case ErrMsg:
		return m, m.setStatus(msg.Error(), true)
	}

	return m, nil
}

func (m Model) handleConnectivity(ev connectivity.Event) (tea.Model, tea.Cmd) {
	m.connState = ev.To
	m.syncPopular()
	cmds := []tea.Cmd{m.listenConnectivity(), m.setStatus(ev.Message, ev.To == connectivity.Offline)}

	if ev.To == connectivity.Online && !m.loading && m.snapshot.State != movies.LoadLoading {
		switch {
		case m.snapshot.State == movies.LoadFailed:
			m.loading = true
			cmds = append(cmds, RetryCmd(m.ctx, m.pager))
		case len(m.snapshot.Pages) == 0:
			m.loading = true
			cmds = append(cmds, LoadNextCmd(m.ctx, m.pager))
		}
	}
	return m, tea.Batch(cmds...)
}

func (m Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	list := m.activeList()
	if m.Screen == ScreenList && list.IsFilterTyping() {
		return m, list.Update(msg)
	}

	if m.Screen == ScreenDetails {
		return m.handleDetailsKey(msg)
	}

	switch {
	case key.Matches(msg, Keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, Keys.Help):
		m.ShowHelp = !m.ShowHelp
		m.help.ShowAll = m.ShowHelp
		m.updateLayout()
		return m, nil
	case key.Matches(msg, Keys.NextTab):
		m.switchTab()
		return m, nil
	case key.Matches(msg, Keys.Filter):
		if !list.IsFiltering() {
			list.ToggleFilter()
			return m, nil
		}
		return m, list.Update(msg)
	case key.Matches(msg, Keys.Enter):
		return m.openDetails()
	case key.Matches(msg, Keys.ToggleFavorite):
		if movie, ok := list.Selected(); ok {
			return m, ToggleFavoriteCmd(m.ctx, m.svc, movie)
		}
		return m, nil
	case key.Matches(msg, Keys.Open):
		if movie, ok := list.Selected(); ok {
			return m, OpenURLCmd(m.opener, catalog.WebURL(movie.ID))
		}
		return m, nil
	case key.Matches(msg, Keys.Retry):
		return m.retry()
	case key.Matches(msg, Keys.Refresh):
		return m.refresh()
	}

	cmd := list.Update(msg)
	if m.Tab == TabPopular {
		if load := m.maybeLoadMore(); load != nil {
			return m, tea.Batch(cmd, load)
		}
	}
	return m, cmd
}

func (m Model) handleDetailsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	movie, _ := m.details.Movie()

	switch {
	case key.Matches(msg, Keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, Keys.Back):
		m.Screen = ScreenList
		return m, nil
	case key.Matches(msg, Keys.ToggleFavorite):
		return m, ToggleFavoriteCmd(m.ctx, m.svc, movie)
	case key.Matches(msg, Keys.Open):
		return m, OpenURLCmd(m.opener, catalog.WebURL(movie.ID))
	case key.Matches(msg, Keys.Down):
		m.details.Scroll(1)
	case key.Matches(msg, Keys.Up):
		m.details.Scroll(-1)
	}
	return m, nil
}

func (m Model) openDetails() (tea.Model, tea.Cmd) {
	movie, ok := m.activeList().Selected()
	if !ok {
		return m, nil
	}
	m.Screen = ScreenDetails
	m.details.SetLoading(movie)
	m.details.SetFavorite(m.favorites.IsFavorite(movie.ID))
	return m, LoadDetailsCmd(m.ctx, m.svc, movie.ID, m.connState.PreferCache())
}

func (m Model) retry() (tea.Model, tea.Cmd) {
	if m.Tab != TabPopular || m.connState.PreferCache() || m.loading {
		return m, nil
	}
	if m.snapshot.State != movies.LoadFailed {
		return m, nil
	}
	m.loading = true
	return m, RetryCmd(m.ctx, m.pager)
}

func (m Model) refresh() (tea.Model, tea.Cmd) {
	if m.Tab != TabPopular {
		return m, nil
	}
	if m.connState.PreferCache() {
		return m, m.setStatus("Offline: showing cached movies", true)
	}
	if m.loading {
		return m, nil
	}
	m.loading = true
	return m, RefreshCmd(m.ctx, m.pager, m.popular.Cursor())
}

// maybeLoadMore asks for the next page when the cursor nears the bottom of the
// held pages, or for the previous one when it nears the top of a window that
// no longer starts at page 1.
func (m *Model) maybeLoadMore() tea.Cmd {
	if m.connState.PreferCache() || m.loading || m.snapshot.State != movies.LoadIdle {
		return nil
	}
	pages := m.snapshot.Pages
	if len(pages) == 0 {
		return nil
	}

	switch {
	case m.popular.NearEnd() && !m.snapshot.End:
		m.loading = true
		return LoadNextCmd(m.ctx, m.pager)
	case m.popular.NearStart() && pages[0].PrevKey != 0:
		m.loading = true
		return LoadPreviousCmd(m.ctx, m.pager)
	}
	return nil
}

// syncPopular points the popular list at the cache while offline and at the
// pager otherwise.
func (m *Model) syncPopular() {
	if m.connState.PreferCache() {
		m.popular.SetTitle("Popular (cached)")
		m.popular.SetMovies(m.cache)
		m.popular.SetStatus(components.ListIdle)
		return
	}

	m.popular.SetTitle("Popular")
	m.popular.SetMovies(m.snapshot.Movies)
	switch {
	case m.snapshot.State == movies.LoadLoading:
		m.popular.SetStatus(components.ListLoading)
	case m.snapshot.State == movies.LoadFailed:
		m.popular.SetStatus(components.ListFailed)
	case m.snapshot.End:
		m.popular.SetStatus(components.ListEnd)
	default:
		m.popular.SetStatus(components.ListIdle)
	}
}

func (m *Model) switchTab() {
	if m.Tab == TabPopular {
		m.Tab = TabFavorites
	} else {
		m.Tab = TabPopular
	}
	m.popular.SetFocused(m.Tab == TabPopular)
	m.favorites.SetFocused(m.Tab == TabFavorites)
}

func (m *Model) activeList() *components.MovieList {
	if m.Tab == TabFavorites {
		return m.favorites
	}
	return m.popular
}

func (m *Model) setStatus(message string, isError bool) tea.Cmd {
	m.toastID++
	m.toast = message
	m.toastErr = isError
	return ClearStatusCmd(m.toastID, toastDuration)
}

func (m *Model) updateLayout() {
	bodyHeight := max(m.height-chromeHeight, 3)
	if m.ShowHelp {
		bodyHeight = max(bodyHeight-len(Keys.FullHelp()[0]), 3)
	}
	m.popular.SetSize(m.width, bodyHeight)
	m.favorites.SetSize(m.width, bodyHeight)
	m.details.SetSize(m.width, bodyHeight)
}

// userMessage turns a repository error into a short message for the footer.
func userMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return "Movie not found"
	case errors.Is(err, domain.ErrTransport):
		return "Catalog unavailable"
	case errors.Is(err, domain.ErrStorage):
		return "Local storage error"
	default:
		return err.Error()
	}
}
