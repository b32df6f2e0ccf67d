package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/321david123/spotify-feature/internal/formatter"
	"github.com/321david123/spotify-feature/internal/models"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	DefaultPollInterval  = time.Second
	DefaultFrameInterval = 16 * time.Millisecond

	barWidth = 40
)

// Fetcher returns the current playback snapshot. services.APIService is the production implementation.
type Fetcher interface {
	CurrentlyPlaying(ctx context.Context) (models.PlaybackSnapshot, error)
}

// ViewState represents what the TUI is currently showing.
type ViewState int

const (
	LoadingView ViewState = iota
	ErrorView
	EmptyView
	TrackView
)

// Model represents the TUI application state.
type Model struct {
	ctx      context.Context
	fetcher  Fetcher
	poll     time.Duration
	interval time.Duration
	now      func() time.Time

	snapshot *models.PlaybackSnapshot
	position ProgressState
	loading  bool
	failed   bool

	// epoch identifies the running frame loop; frames from an older epoch are dropped.
	epoch   int
	framing bool
	closed  bool

	bar  progress.Model
	help help.Model
	keys keyMap
}

// NewModel creates a TUI model polling fetcher every poll and animating progress every frame.
// Zero intervals fall back to the defaults.
func NewModel(ctx context.Context, fetcher Fetcher, poll, frame time.Duration) *Model {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	if frame <= 0 {
		frame = DefaultFrameInterval
	}

	bar := progress.New(progress.WithSolidFill(spotifyGreen), progress.WithoutPercentage(), progress.WithWidth(barWidth))
	bar.EmptyColor = barEmpty

	return &Model{
		ctx:      ctx,
		fetcher:  fetcher,
		poll:     poll,
		interval: frame,
		now:      time.Now,
		loading:  true,
		bar:      bar,
		help:     help.New(),
		keys:     newKeyMap(),
	}
}

// Init fetches immediately and schedules the first poll tick.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.fetch(), m.schedulePoll())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.bar.Width = min(barWidth, max(10, msg.Width-8))
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.quit):
			m.Close()
			return m, tea.Quit
		case key.Matches(msg, m.keys.refresh):
			return m, m.fetch()
		}
		return m, nil

	case Msg:
		if m.closed {
			return m, nil
		}
		switch msg.kind {
		case MsgPollTick:
			return m, tea.Batch(m.fetch(), m.schedulePoll())
		case MsgPolled:
			return m, m.apply(msg.data.(polled))
		case MsgFrame:
			return m, m.advance(msg.data.(frame))
		}
	}

	return m, nil
}

// Close stops the frame loop and drops any poll that completes afterwards.
func (m *Model) Close() {
	m.closed = true
	m.stopFrames()
}

// State reports which view is rendered.
func (m *Model) State() ViewState {
	switch {
	case m.failed:
		return ErrorView
	case m.loading:
		return LoadingView
	case m.snapshot == nil:
		return EmptyView
	default:
		return TrackView
	}
}

// apply folds a poll result into the model and starts or stops the frame loop to match.
func (m *Model) apply(p polled) tea.Cmd {
	m.loading = false

	if p.err != nil {
		m.failed = true
		m.snapshot = nil
		m.stopFrames()
		return nil
	}

	m.failed = false
	if !p.snapshot.HasTrack() {
		m.snapshot = nil
		m.stopFrames()
		return nil
	}

	s := p.snapshot
	m.snapshot = &s
	m.position.Sync(s.ProgressMs, p.at)

	if s.Kind == models.KindPlaying && s.IsPlaying {
		return m.startFrames()
	}
	m.stopFrames()
	return nil
}

func (m *Model) advance(f frame) tea.Cmd {
	if !m.framing || f.epoch != m.epoch || m.snapshot == nil {
		return nil
	}
	m.position.Advance(f.at, m.snapshot.DurationMs)
	return m.scheduleFrame(f.epoch)
}

func (m *Model) startFrames() tea.Cmd {
	if m.framing {
		return nil
	}
	m.framing = true
	return m.scheduleFrame(m.epoch)
}

func (m *Model) stopFrames() {
	if m.framing {
		m.framing = false
		m.epoch++
	}
}

func (m *Model) scheduleFrame(epoch int) tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return frameMsg(epoch, t)
	})
}

// schedulePoll is independent of fetch completion, so a slow response never delays the next request.
func (m *Model) schedulePoll() tea.Cmd {
	return tea.Tick(m.poll, func(t time.Time) tea.Msg {
		return pollTickMsg(t)
	})
}

func (m *Model) fetch() tea.Cmd {
	return func() tea.Msg {
		snapshot, err := m.fetcher.CurrentlyPlaying(m.ctx)
		return polledMsg(snapshot, err, m.now())
	}
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	var b strings.Builder

	switch m.State() {
	case LoadingView:
		b.WriteString(styles.muted.Render("Loading your music..."))
	case ErrorView:
		b.WriteString(styles.err.Render("Error: Failed to fetch now playing data."))
	case EmptyView:
		b.WriteString(styles.muted.Render("Nothing playing right now."))
	case TrackView:
		b.WriteString(m.renderTrack())
	}

	b.WriteString("\n\n")
	b.WriteString(m.help.View(m.keys))
	return styles.frame.Render(b.String())
}

func (m *Model) renderTrack() string {
	s := m.snapshot
	lines := []string{
		styles.title.Render(formatter.Headline(*s)),
		styles.track.Render(s.Title),
		styles.muted.Render(s.Artist),
		"",
		m.bar.ViewAs(m.position.Fraction(s.DurationMs)),
		fmt.Sprintf("%s / %s", formatter.FormatTime(m.position.DisplayedMs), formatter.FormatTime(s.DurationMs)),
	}

	switch {
	case s.LastPlayed != nil:
		lines = append(lines, styles.help.Render("Played "+formatter.FormatPlayedAt(*s.LastPlayed, m.now())))
	case !s.IsPlaying:
		lines = append(lines, styles.help.Render("Paused"))
	}
	return strings.Join(lines, "\n")
}
