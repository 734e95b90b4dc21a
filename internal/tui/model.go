package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/creamcroissant/orderdesk/internal/repository"
	"github.com/creamcroissant/orderdesk/internal/service"
)

// ViewType 表示当前视图
type ViewType int

const (
	ViewWatchList ViewType = iota // 关注列表
	ViewTracker                   // 单个订单的进度跟踪
)

// OrderSource is what the tracker reads from.
type OrderSource interface {
	Refresh(ctx context.Context, id string) (*service.OrderView, error)
}

// WatchSource lists watched orders; optional.
type WatchSource interface {
	List(ctx context.Context) ([]*repository.WatchedOrder, error)
}

// Options configures the tracker.
type Options struct {
	Orders  OrderSource
	Watches WatchSource
	Catalog *service.StatusCatalog
	Lang    string
	// OrderID opens the tracker directly; empty starts on the watch list.
	OrderID  string
	Interval time.Duration
	Timeout  time.Duration
}

// Model 是主 TUI 模型
type Model struct {
	opts Options

	watches       []*repository.WatchedOrder
	selectedWatch int

	view    ViewType
	orderID string
	order   *service.OrderView

	width  int
	height int

	loading   bool
	err       error
	updatedAt time.Time

	keys keyMap
}

// keyMap 定义全部按键绑定
type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Enter   key.Binding
	Back    key.Binding
	Quit    key.Binding
	Refresh key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Enter: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "track"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc", "backspace"),
			key.WithHelp("esc", "back"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
	}
}

// NewModel 创建新的 TUI 模型
func NewModel(opts Options) Model {
	if opts.Interval <= 0 {
		opts.Interval = 10 * time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.Catalog == nil {
		opts.Catalog = service.NewStatusCatalog(nil)
	}
	m := Model{
		opts:    opts,
		view:    ViewWatchList,
		keys:    defaultKeyMap(),
		loading: true,
	}
	if opts.OrderID != "" {
		m.view = ViewTracker
		m.orderID = opts.OrderID
	}
	return m
}

// Init 实现 tea.Model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.reload(), m.tickCmd())
}

// 消息类型

type orderLoadedMsg struct {
	id   string
	view *service.OrderView
}

type watchesLoadedMsg struct {
	watches []*repository.WatchedOrder
}

type errorMsg struct {
	err error
}

type tickMsg time.Time

// 命令

func (m Model) reload() tea.Cmd {
	if m.view == ViewTracker {
		return m.loadOrder(m.orderID)
	}
	return m.loadWatches()
}

func (m Model) loadOrder(id string) tea.Cmd {
	orders, timeout := m.opts.Orders, m.opts.Timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		view, err := orders.Refresh(ctx, id)
		if err != nil {
			return errorMsg{err: err}
		}
		return orderLoadedMsg{id: id, view: view}
	}
}

func (m Model) loadWatches() tea.Cmd {
	watches, timeout := m.opts.Watches, m.opts.Timeout
	return func() tea.Msg {
		if watches == nil {
			return watchesLoadedMsg{}
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		list, err := watches.List(ctx)
		if err != nil {
			return errorMsg{err: err}
		}
		return watchesLoadedMsg{watches: list}
	}
}

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.opts.Interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
