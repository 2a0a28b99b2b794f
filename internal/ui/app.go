package ui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tgienger/tracker/internal/conversation"
	"github.com/tgienger/tracker/internal/logging"
	"github.com/tgienger/tracker/internal/models"
	"github.com/tgienger/tracker/internal/tasks"
	"github.com/tgienger/tracker/internal/ui/views"
)

// View is the currently active view
type View int

const (
	ViewTasks View = iota
	ViewThreads
)

const lastViewKey = "last_view"

func (v View) String() string {
	if v == ViewThreads {
		return "threads"
	}
	return "tasks"
}

// Settings persists small pieces of UI state
type Settings interface {
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
}

type App struct {
	settings    Settings
	currentView View
	taskList    *views.TaskListView
	threadList  *views.ThreadListView
	width       int
	height      int
}

// NewApp creates the terminal client acting as user
func NewApp(settings Settings, taskService *tasks.Service, conversations *conversation.Service, user *models.User) *App {
	return &App{
		settings:    settings,
		currentView: ViewTasks,
		taskList:    views.NewTaskListView(taskService, user),
		threadList:  views.NewThreadListView(conversations, user),
	}
}

func (a *App) Init() tea.Cmd {
	// Reopen the view used last time
	last, err := a.settings.GetSetting(context.Background(), lastViewKey)
	if err == nil && last == ViewThreads.String() {
		a.currentView = ViewThreads
		return a.threadList.Init()
	}
	return a.taskList.Init()
}

func (a *App) switchTo(view View) tea.Cmd {
	a.currentView = view
	if err := a.settings.SetSetting(context.Background(), lastViewKey, view.String()); err != nil {
		lg := logging.Component("ui")
		lg.Warn().Err(err).Msg("Failed to save last view")
	}

	var initCmd tea.Cmd
	if view == ViewThreads {
		initCmd = a.threadList.Init()
	} else {
		initCmd = a.taskList.Init()
	}
	return tea.Batch(
		initCmd,
		func() tea.Msg {
			return tea.WindowSizeMsg{Width: a.width, Height: a.height}
		},
	)
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		// Both views keep their state, so both track the size
		a.taskList.Update(msg)
		a.threadList.Update(msg)
		return a, nil

	case views.OpenThreads:
		return a, a.switchTo(ViewThreads)

	case views.BackToTasks:
		return a, a.switchTo(ViewTasks)
	}

	var cmd tea.Cmd
	switch a.currentView {
	case ViewThreads:
		_, cmd = a.threadList.Update(msg)
	default:
		_, cmd = a.taskList.Update(msg)
	}
	return a, cmd
}

func (a *App) View() string {
	if a.currentView == ViewThreads {
		return a.threadList.View()
	}
	return a.taskList.View()
}
