package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/surge-downloader/ytdlp-remote/internal/dispatch"
	"github.com/surge-downloader/ytdlp-remote/internal/poller"
	"github.com/surge-downloader/ytdlp-remote/internal/types"
)

type UIState int

const (
	DashboardState UIState = iota
	InputState
)

// ListTab selects which queue the list panel shows.
type ListTab int

const (
	PendingTab ListTab = iota
	CompletedTab
)

// QueueSource is the read side of the dashboard. *poller.Poller satisfies it.
type QueueSource interface {
	Readings() []types.Reading
	Poll(ctx context.Context) error
}

// Commander is the write side. *dispatch.Dispatcher satisfies it.
type Commander interface {
	Dispatch(ctx context.Context, params map[string]any) (*dispatch.Task, error)
	ClearCompleted(ctx context.Context) error
}

// Messages produced by the model's own commands.
type (
	busMsg struct{ payload any }
	busClosedMsg struct{}

	refreshDoneMsg struct{ err error }

	dispatchDoneMsg struct {
		url     string
		outcome dispatch.Outcome
		err     error // Set when waiting timed out
	}

	clearDoneMsg struct{ err error }
)

type RootModel struct {
	source    QueueSource
	commander Commander
	events    <-chan any
	endpoint  string

	readings []types.Reading
	depth    []float64 // Pending count per successful poll
	lastPoll time.Time
	pollErr  error
	failures int

	state     UIState
	input     textinput.Model
	audioOnly bool

	tab    ListTab
	cursor int

	spinner    spinner.Model
	progress   progress.Model
	help       help.Model
	refreshing bool

	notice    string
	noticeErr bool
	noticeAt  time.Time

	width  int
	height int

	now func() time.Time
}

// NewRootModel builds the dashboard. events may be nil when no bus is wired;
// the dashboard then only updates on manual refresh.
func NewRootModel(source QueueSource, commander Commander, events <-chan any, endpoint string) RootModel {
	urlInput := textinput.New()
	urlInput.Placeholder = "https://www.youtube.com/watch?v=..."
	urlInput.Width = InputWidth
	urlInput.Prompt = ""

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = SubtleStyle

	m := RootModel{
		source:    source,
		commander: commander,
		events:    events,
		endpoint:  endpoint,
		input:     urlInput,
		spinner:   sp,
		progress:  progress.New(progress.WithGradient(string(ColorPrimary), string(ColorSecondary))),
		help:      help.New(),
		now:       time.Now,
	}
	if source != nil {
		m.readings = source.Readings()
	}
	return m
}

func (m RootModel) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick}
	if m.events != nil {
		cmds = append(cmds, listenForActivity(m.events))
	}
	return tea.Batch(cmds...)
}

// listenForActivity waits for the next bus message.
func listenForActivity(sub <-chan any) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-sub
		if !ok {
			return busClosedMsg{}
		}
		return busMsg{payload: msg}
	}
}

func (m RootModel) refreshCmd() tea.Cmd {
	source := m.source
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), RefreshTimeout)
		defer cancel()
		return refreshDoneMsg{err: source.Poll(ctx)}
	}
}

func waitForTask(task *dispatch.Task) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), DispatchTimeout)
		defer cancel()
		outcome, err := task.Wait(ctx)
		return dispatchDoneMsg{url: task.Request.URL, outcome: outcome, err: err}
	}
}

func (m RootModel) clearCmd() tea.Cmd {
	commander := m.commander
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), RefreshTimeout)
		defer cancel()
		return clearDoneMsg{err: commander.ClearCompleted(ctx)}
	}
}

// reading returns the named reading from the last known set.
func (m RootModel) reading(name string) (types.Reading, bool) {
	for _, r := range m.readings {
		if r.Name == name {
			return r, true
		}
	}
	return types.Reading{}, false
}

// currentItems returns the items of the selected list tab.
func (m RootModel) currentItems() []types.Item {
	name := poller.ReadingPending
	if m.tab == CompletedTab {
		name = poller.ReadingCompleted
	}
	r, ok := m.reading(name)
	if !ok {
		return nil
	}
	return poller.QueueItems(r)
}

// activeItem returns the task currently downloading, if any.
func (m RootModel) activeItem() (types.Item, bool) {
	r, ok := m.reading(poller.ReadingActive)
	if !ok || r.Value == 0 {
		return nil, false
	}
	return types.Item(r.Detail), true
}

// stale reports whether the readings shown are not from the latest poll.
func (m RootModel) stale() bool {
	for _, r := range m.readings {
		if r.State != types.ReadingFresh {
			return true
		}
	}
	return len(m.readings) == 0
}
