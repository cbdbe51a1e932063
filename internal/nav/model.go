package nav

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/otavio/vigia/internal/ce"
	"github.com/otavio/vigia/internal/component"
)

// Options wires the model's collaborators. Tasks is required.
type Options struct {
	Tasks    ce.TaskService
	History  HistoryRecorder
	Reporter ErrorReporter

	Header Subview
	Meta   Subview
	Menu   Subview

	// Branches re-resolves Context.Branches after a key change. Optional.
	Branches BranchLister

	// RefreshInterval re-queries while work is pending or in progress. Zero disables it.
	RefreshInterval time.Duration
	// QueryTimeout bounds each query. Zero means no deadline.
	QueryTimeout time.Duration
}

// SetComponentMsg switches the model to another component.
type SetComponentMsg struct {
	Component component.Component
}

type statusLoadedMsg struct {
	seq   uint64
	key   string
	queue *ce.Queue
}

type statusFailedMsg struct {
	seq uint64
	key string
	err error
}

type branchesLoadedMsg struct {
	key      string
	branches []string
}

type refreshTickMsg struct {
	seq uint64
	key string
}

// Model is the component navigation view. It polls the task service for the
// displayed component and renders header, meta and menu subviews.
type Model struct {
	component component.Component
	navCtx    Context

	tasks    ce.TaskService
	branches BranchLister
	history  HistoryRecorder
	reporter ErrorReporter
	header   Subview
	meta     Subview
	menu     Subview
	interval time.Duration
	timeout  time.Duration

	state ViewState
	phase Phase
	err   error

	ctx         context.Context
	cancel      context.CancelFunc
	cancelFetch context.CancelFunc
	seq         uint64
	mounted     bool
	closed      bool

	keys  keyMap
	help  help.Model
	width int
}

func New(c component.Component, navCtx Context, opts Options) *Model {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Model{
		component: c,
		navCtx:    navCtx,
		tasks:     opts.Tasks,
		branches:  opts.Branches,
		history:   opts.History,
		reporter:  opts.Reporter,
		header:    opts.Header,
		meta:      opts.Meta,
		menu:      opts.Menu,
		interval:  opts.RefreshInterval,
		timeout:   opts.QueryTimeout,
		ctx:       ctx,
		cancel:    cancel,
		keys:      defaultKeyMap(),
		help:      help.New(),
	}
	if m.header == nil {
		m.header = HeaderView
	}
	if m.meta == nil {
		m.meta = MetaView
	}
	if m.menu == nil {
		m.menu = MenuView
	}
	return m
}

// Init records the visit and issues the first status query. Later calls are no-ops.
func (m *Model) Init() tea.Cmd {
	if m.mounted || m.closed {
		return nil
	}
	m.mounted = true
	if m.history != nil {
		m.history.Add(m.component)
	}
	return m.load()
}

func (m *Model) load() tea.Cmd {
	if m.closed || m.tasks == nil {
		return nil
	}
	if m.cancelFetch != nil {
		m.cancelFetch()
	}
	ctx, cancel := m.queryContext()
	m.cancelFetch = cancel
	m.seq++
	m.phase = PhaseLoading

	seq, key, tasks := m.seq, m.component.Key, m.tasks
	return func() tea.Msg {
		defer cancel()
		q, err := tasks.TasksForComponent(ctx, key)
		if err != nil {
			return statusFailedMsg{seq: seq, key: key, err: err}
		}
		return statusLoadedMsg{seq: seq, key: key, queue: q}
	}
}

func (m *Model) queryContext() (context.Context, context.CancelFunc) {
	if m.timeout > 0 {
		return context.WithTimeout(m.ctx, m.timeout)
	}
	return context.WithCancel(m.ctx)
}

func (m *Model) loadBranches() tea.Cmd {
	if m.closed || m.branches == nil {
		return nil
	}
	ctx, cancel := m.queryContext()
	key, branches, reporter := m.component.Key, m.branches, m.reporter
	return func() tea.Msg {
		defer cancel()
		b, err := branches.Branches(ctx, key)
		if err != nil {
			if reporter != nil && !errors.Is(err, context.Canceled) {
				reporter.Report(key, err)
			}
			return nil
		}
		return branchesLoadedMsg{key: key, branches: b}
	}
}

func (m *Model) current(seq uint64, key string) bool {
	return !m.closed && seq == m.seq && key == m.component.Key
}

func (m *Model) scheduleRefresh() tea.Cmd {
	if m.interval <= 0 || m.closed {
		return nil
	}
	if !m.state.IsPending && !m.state.IsInProgress {
		return nil
	}
	seq, key := m.seq, m.component.Key
	return tea.Tick(m.interval, func(time.Time) tea.Msg {
		return refreshTickMsg{seq: seq, key: key}
	})
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.closed {
		return m, nil
	}

	switch msg := msg.(type) {
	case statusLoadedMsg:
		if !m.current(msg.seq, msg.key) {
			return m, nil
		}
		m.state = DeriveState(msg.queue)
		m.phase = PhaseReady
		m.err = nil
		return m, m.scheduleRefresh()

	case statusFailedMsg:
		if !m.current(msg.seq, msg.key) {
			return m, nil
		}
		m.phase = PhaseFailed
		m.err = msg.err
		if m.reporter != nil && !errors.Is(msg.err, context.Canceled) {
			m.reporter.Report(msg.key, msg.err)
		}
		return m, nil

	case branchesLoadedMsg:
		if msg.key == m.component.Key {
			m.navCtx.Branches = msg.branches
		}
		return m, nil

	case refreshTickMsg:
		if !m.current(msg.seq, msg.key) || m.phase == PhaseLoading {
			return m, nil
		}
		return m, m.load()

	case SetComponentMsg:
		return m, m.SetComponent(msg.Component)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.Close()
			return m, tea.Quit
		case key.Matches(msg, m.keys.Refresh):
			return m, m.Refresh()
		case key.Matches(msg, m.keys.Up):
			if parent, ok := m.component.Parent(); ok {
				return m, m.SetComponent(parent)
			}
			return m, nil
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		}
	}

	return m, nil
}

// SetComponent replaces the displayed component. A new key resets the view
// state, drops the previous component's branches and issues a new query;
// results for the previous key are dropped.
func (m *Model) SetComponent(c component.Component) tea.Cmd {
	if m.closed {
		return nil
	}
	changed := c.Key != m.component.Key
	m.component = c
	if !changed {
		return nil
	}
	m.navCtx.Branches = nil
	if !m.mounted {
		return nil
	}
	m.state = ViewState{}
	m.err = nil
	return tea.Batch(m.load(), m.loadBranches())
}

// SetContext replaces the pass-through context. It never triggers a query.
func (m *Model) SetContext(navCtx Context) {
	m.navCtx = navCtx
}

// Refresh re-queries the current component.
func (m *Model) Refresh() tea.Cmd {
	if !m.mounted {
		return nil
	}
	return m.load()
}

// Close cancels any in-flight query. No update is applied afterwards.
func (m *Model) Close() {
	if m.closed {
		return
	}
	m.closed = true
	m.cancel()
}

func (m *Model) State() ViewState { return m.state }
func (m *Model) Phase() Phase { return m.phase }
func (m *Model) Err() error { return m.err }
func (m *Model) Component() component.Component { return m.component }

func (m *Model) props() Props {
	return Props{
		Component:    m.component,
		Branches:     m.navCtx.Branches,
		Location:     m.navCtx.Location,
		IsPending:    m.state.IsPending,
		IsInProgress: m.state.IsInProgress,
		IsFailed:     m.state.IsFailed,
		Current:      m.state.Current,
		QualityGate:  m.state.QualityGate,
		Phase:        m.phase,
		Err:          m.err,
		Width:        m.width,
	}
}

func (m *Model) View() string {
	if m.closed {
		return ""
	}
	p := m.props()

	var sections []string
	for _, v := range []Subview{m.header, m.meta, m.menu} {
		if s := v.View(p); strings.TrimSpace(s) != "" {
			sections = append(sections, s)
		}
	}
	sections = append(sections, "", m.help.View(m.keys))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}
