package views

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tgienger/tracker/internal/apperr"
	"github.com/tgienger/tracker/internal/models"
	"github.com/tgienger/tracker/internal/tasks"
	"github.com/tgienger/tracker/internal/ui/keys"
	"github.com/tgienger/tracker/internal/ui/styles"
)

// clamp returns val clamped between minVal and maxVal
func clamp(val, minVal, maxVal int) int {
	if val < minVal {
		return minVal
	}
	if val > maxVal {
		return maxVal
	}
	return val
}

// TaskFilter selects which tasks the list shows
type TaskFilter int

const (
	FilterAll TaskFilter = iota
	FilterMine
	FilterP1
	FilterOverdue
)

var filterLabels = []string{"All", "Mine", "P1", "Overdue"}

func (f TaskFilter) String() string { return filterLabels[f] }

// Create form fields, in tab order
const (
	fieldTitle = iota
	fieldOwner
	fieldDate
	fieldDays
	fieldDesc
	fieldSave
	fieldCount
)

// TaskListView shows the task sheet
type TaskListView struct {
	service *tasks.Service
	user    *models.User
	tasks   []models.TaskView
	styles  *styles.Styles
	keys    keys.KeyMap

	width  int
	height int

	filter  TaskFilter
	cursor  int
	scrollY int
	loaded  bool

	// Status bar
	status    string
	statusErr bool

	// Task creation
	creating  bool
	newTitle  textinput.Model
	newOwner  textinput.Model
	newDate   textinput.Model
	newDays   textinput.Model
	newDesc   textarea.Model
	formFocus int

	viewingTask   bool
	showHelpPopup bool
}

// NewTaskListView creates a task view acting as user
func NewTaskListView(service *tasks.Service, user *models.User) *TaskListView {
	newTitle := textinput.New()
	newTitle.Placeholder = "Task title"
	newTitle.CharLimit = 200

	newOwner := textinput.New()
	newOwner.Placeholder = user.Username
	newOwner.CharLimit = 100

	newDate := textinput.New()
	newDate.Placeholder = "YYYY-MM-DD"
	newDate.CharLimit = 25

	newDays := textinput.New()
	newDays.Placeholder = "0"
	newDays.CharLimit = 4

	newDesc := textarea.New()
	newDesc.Placeholder = "Description"
	newDesc.CharLimit = 2000
	newDesc.SetWidth(50)
	newDesc.SetHeight(3)
	newDesc.ShowLineNumbers = false

	return &TaskListView{
		service:  service,
		user:     user,
		styles:   styles.NewStyles(),
		keys:     keys.DefaultKeyMap(),
		newTitle: newTitle,
		newOwner: newOwner,
		newDate:  newDate,
		newDays:  newDays,
		newDesc:  newDesc,
	}
}

// OpenThreads signals a switch to the thread view
type OpenThreads struct{}

type tasksLoadedMsg struct {
	filter TaskFilter
	tasks  []models.TaskView
}

type taskSavedMsg struct {
	note string
}

// errMsg carries a failed service call to the status bar
type errMsg struct {
	err error
}

// Init initializes the view
func (v *TaskListView) Init() tea.Cmd {
	return v.loadTasks
}

func (v *TaskListView) loadTasks() tea.Msg {
	ctx := context.Background()
	var (
		list []models.TaskView
		err  error
	)
	switch v.filter {
	case FilterMine:
		list, err = v.service.ListByOwner(ctx, v.user.Username)
	case FilterP1:
		list, err = v.service.ListP1(ctx)
	case FilterOverdue:
		list, err = v.service.ListOverdue(ctx)
	default:
		list, err = v.service.List(ctx)
	}
	if err != nil {
		return errMsg{err: err}
	}
	return tasksLoadedMsg{filter: v.filter, tasks: list}
}

// Update handles messages
func (v *TaskListView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		contentWidth := styles.ContentWidth(v.width)
		v.newDesc.SetWidth(clamp(contentWidth-10, 20, 50))
		return v, nil

	case tasksLoadedMsg:
		// Ignore results for a filter the user already moved away from
		if msg.filter != v.filter {
			return v, nil
		}
		v.tasks = msg.tasks
		v.loaded = true
		if v.cursor >= len(v.tasks) {
			v.cursor = max(0, len(v.tasks)-1)
		}
		return v, nil

	case taskSavedMsg:
		v.setStatus(msg.note, false)
		return v, v.loadTasks

	case errMsg:
		v.setStatus(apperr.MessageOf(msg.err), true)
		v.loaded = true
		return v, nil

	case tea.KeyMsg:
		if v.showHelpPopup {
			v.showHelpPopup = false
			return v, nil
		}
		if v.creating {
			return v.updateCreating(msg)
		}
		if v.viewingTask {
			return v.updateViewingTask(msg)
		}
		return v.updateNormal(msg)
	}

	return v, nil
}

func (v *TaskListView) setStatus(text string, isErr bool) {
	v.status = text
	v.statusErr = isErr
}

func (v *TaskListView) selected() (models.TaskView, bool) {
	if len(v.tasks) == 0 || v.cursor >= len(v.tasks) {
		return models.TaskView{}, false
	}
	return v.tasks[v.cursor], true
}

func (v *TaskListView) updateNormal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keys.Quit):
		return v, tea.Quit

	case key.Matches(msg, v.keys.Tab):
		v.filter = (v.filter + 1) % TaskFilter(len(filterLabels))
		v.cursor = 0
		v.scrollY = 0
		return v, v.loadTasks

	case msg.String() == "shift+tab":
		v.filter = (v.filter + TaskFilter(len(filterLabels)) - 1) % TaskFilter(len(filterLabels))
		v.cursor = 0
		v.scrollY = 0
		return v, v.loadTasks

	case key.Matches(msg, v.keys.Up):
		if v.cursor > 0 {
			v.cursor--
			v.ensureVisible()
		}
		return v, nil

	case key.Matches(msg, v.keys.Down):
		if v.cursor < len(v.tasks)-1 {
			v.cursor++
			v.ensureVisible()
		}
		return v, nil

	case key.Matches(msg, v.keys.Enter):
		if _, ok := v.selected(); ok {
			v.viewingTask = true
		}
		return v, nil

	case key.Matches(msg, v.keys.New):
		v.startNewTask()
		return v, textinput.Blink

	case key.Matches(msg, v.keys.Priority):
		if t, ok := v.selected(); ok {
			next := nextPriority(t.Priority)
			return v, v.update(t.Task, models.TaskPatch{Priority: &next}, "Priority set to "+string(next))
		}
		return v, nil

	case key.Matches(msg, v.keys.Status):
		if t, ok := v.selected(); ok {
			next := nextStatus(t.Status)
			return v, v.update(t.Task, models.TaskPatch{Status: &next}, "Status set to "+string(next))
		}
		return v, nil

	case key.Matches(msg, v.keys.Threads):
		return v, func() tea.Msg { return OpenThreads{} }

	case key.Matches(msg, v.keys.Help):
		v.showHelpPopup = true
		return v, nil
	}

	return v, nil
}

func (v *TaskListView) updateViewingTask(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keys.Back), key.Matches(msg, v.keys.Enter):
		v.viewingTask = false
		return v, nil
	case key.Matches(msg, v.keys.Priority), key.Matches(msg, v.keys.Status):
		return v.updateNormal(msg)
	case key.Matches(msg, v.keys.Quit):
		return v, tea.Quit
	}
	return v, nil
}

func nextPriority(p models.Priority) models.Priority {
	for i, candidate := range models.Priorities {
		if candidate == p {
			return models.Priorities[(i+1)%len(models.Priorities)]
		}
	}
	return models.DefaultPriority
}

func nextStatus(s models.Status) models.Status {
	for i, candidate := range models.Statuses {
		if candidate == s {
			return models.Statuses[(i+1)%len(models.Statuses)]
		}
	}
	return models.DefaultStatus
}

// update saves a patch through the service so the P1 notification fires the
// same way it does for HTTP writes
func (v *TaskListView) update(t models.Task, patch models.TaskPatch, note string) tea.Cmd {
	return func() tea.Msg {
		if _, err := v.service.UpdateTask(context.Background(), t.RowHandle, patch, v.user); err != nil {
			return errMsg{err: err}
		}
		return taskSavedMsg{note: note}
	}
}

func (v *TaskListView) updateCreating(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keys.Back):
		v.creating = false
		return v, nil

	case msg.String() == "ctrl+s":
		return v, v.saveTask()

	case key.Matches(msg, v.keys.Tab):
		v.formFocus = (v.formFocus + 1) % fieldCount
		v.updateFormFocus()
		return v, nil

	case msg.String() == "shift+tab":
		v.formFocus = (v.formFocus + fieldCount - 1) % fieldCount
		v.updateFormFocus()
		return v, nil

	case key.Matches(msg, v.keys.Enter):
		switch v.formFocus {
		case fieldSave:
			return v, v.saveTask()
		case fieldDesc:
			// newlines go to the textarea
		default:
			v.formFocus++
			v.updateFormFocus()
			return v, nil
		}
	}

	var cmd tea.Cmd
	switch v.formFocus {
	case fieldTitle:
		v.newTitle, cmd = v.newTitle.Update(msg)
	case fieldOwner:
		v.newOwner, cmd = v.newOwner.Update(msg)
	case fieldDate:
		v.newDate, cmd = v.newDate.Update(msg)
	case fieldDays:
		v.newDays, cmd = v.newDays.Update(msg)
	case fieldDesc:
		v.newDesc, cmd = v.newDesc.Update(msg)
	}
	return v, cmd
}

func (v *TaskListView) startNewTask() {
	v.creating = true
	v.formFocus = fieldTitle
	v.newTitle.Reset()
	v.newOwner.Reset()
	v.newDate.Reset()
	v.newDays.Reset()
	v.newDesc.Reset()
	v.updateFormFocus()
}

func (v *TaskListView) updateFormFocus() {
	v.newTitle.Blur()
	v.newOwner.Blur()
	v.newDate.Blur()
	v.newDays.Blur()
	v.newDesc.Blur()

	switch v.formFocus {
	case fieldTitle:
		v.newTitle.Focus()
	case fieldOwner:
		v.newOwner.Focus()
	case fieldDate:
		v.newDate.Focus()
	case fieldDays:
		v.newDays.Focus()
	case fieldDesc:
		v.newDesc.Focus()
	}
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func (v *TaskListView) saveTask() tea.Cmd {
	title := strings.TrimSpace(v.newTitle.Value())
	if title == "" {
		v.setStatus("Title is required", true)
		return nil
	}

	body := models.TaskPatch{
		Title:       &title,
		Owner:       optional(v.newOwner.Value()),
		Date:        optional(v.newDate.Value()),
		Days:        optional(v.newDays.Value()),
		Description: optional(v.newDesc.Value()),
	}
	v.creating = false

	return func() tea.Msg {
		t, err := v.service.CreateTask(context.Background(), body, v.user)
		if err != nil {
			return errMsg{err: err}
		}
		return taskSavedMsg{note: fmt.Sprintf("Created %q for %s", t.Title, t.Owner)}
	}
}

func (v *TaskListView) ensureVisible() {
	visibleItems := v.visibleItems()
	if v.cursor < v.scrollY {
		v.scrollY = v.cursor
	} else if v.cursor >= v.scrollY+visibleItems {
		v.scrollY = v.cursor - visibleItems + 1
	}
}

// Each task row is 2 lines plus a margin
func (v *TaskListView) visibleItems() int {
	availableHeight := max(v.height-10, 3)
	return max(availableHeight/3, 1)
}

// View renders the view
func (v *TaskListView) View() string {
	if v.showHelpPopup {
		return v.renderHelpPopup()
	}
	if v.creating {
		return v.renderCreateForm()
	}
	if v.viewingTask {
		return v.renderTaskView()
	}

	var b strings.Builder
	b.WriteString(v.renderHeader())
	b.WriteString("\n\n")
	b.WriteString(v.renderTaskList())
	b.WriteString("\n")
	b.WriteString(v.renderStatus())
	b.WriteString(v.renderHelp())

	return styles.CenterView(b.String(), v.width, v.height)
}

func (v *TaskListView) renderHeader() string {
	s := v.styles

	tabs := make([]string, len(filterLabels))
	for i, label := range filterLabels {
		if TaskFilter(i) == v.filter {
			tabs[i] = s.TabActive.Render(label)
		} else {
			tabs[i] = s.Tab.Render(label)
		}
	}

	title := s.Title.Render("Tasks") + "  " + s.TitleMuted.Render(v.user.Username+" ("+string(v.user.Role)+")")
	return lipgloss.JoinVertical(lipgloss.Left, title, lipgloss.JoinHorizontal(lipgloss.Center, tabs...))
}

func (v *TaskListView) renderTaskList() string {
	s := v.styles

	if !v.loaded {
		return s.TitleMuted.Render("Loading...")
	}
	if len(v.tasks) == 0 {
		return s.TitleMuted.Render("No tasks. Press 'n' to create one.")
	}

	var items []string
	endIdx := min(v.scrollY+v.visibleItems(), len(v.tasks))
	for i := v.scrollY; i < endIdx; i++ {
		items = append(items, v.renderTaskItem(v.tasks[i], i == v.cursor))
	}
	return lipgloss.JoinVertical(lipgloss.Left, items...)
}

func (v *TaskListView) renderTaskItem(t models.TaskView, selected bool) string {
	s := v.styles
	width := max(styles.ContentWidth(v.width)-4, 20)

	rowStyle := s.ListItem
	if selected {
		rowStyle = s.ListSelected
	}

	badge := s.PriorityStyle(string(t.Priority)).Render("[" + string(t.Priority) + "]")
	titleLine := badge + " " + t.Title

	status := string(t.Status)
	if t.Status == models.StatusDone {
		status = s.TaskDone.Render(status)
	}
	meta := []string{t.Owner, status}
	if due, ok := tasks.DueDate(t.Task); ok {
		dueText := "due " + due.Format("2006-01-02")
		if t.IsOverdue {
			dueText = s.TaskOverdue.Render("overdue, " + dueText)
		}
		meta = append(meta, dueText)
	}
	metaLine := s.TitleMuted.Render(strings.Join(meta, " • "))

	return lipgloss.JoinVertical(lipgloss.Left,
		rowStyle.Width(width).Render(titleLine),
		rowStyle.Width(width).Render(metaLine),
	) + "\n"
}

func (v *TaskListView) renderStatus() string {
	if v.status == "" {
		return ""
	}
	if v.statusErr {
		return v.styles.StatusBarError.Render(v.status) + "\n"
	}
	return v.styles.StatusBar.Render(v.status) + "\n"
}

func (v *TaskListView) renderCreateForm() string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)
	inputWidth := clamp(contentWidth-6, 20, 50)

	field := func(idx int) lipgloss.Style {
		if v.formFocus == idx {
			return s.InputFocused
		}
		return s.Input
	}
	btnStyle := s.Button
	if v.formFocus == fieldSave {
		btnStyle = s.ButtonFocused
	}

	ownerLabel := "Owner:"
	if !v.user.IsAdmin() {
		ownerLabel = "Owner (admins only, you own what you create):"
	}

	form := lipgloss.JoinVertical(lipgloss.Left,
		s.Title.Render("New Task"),
		"",
		"Title:",
		field(fieldTitle).Width(inputWidth).Render(v.newTitle.View()),
		ownerLabel,
		field(fieldOwner).Width(inputWidth).Render(v.newOwner.View()),
		"Date:",
		field(fieldDate).Width(inputWidth).Render(v.newDate.View()),
		"Days:",
		field(fieldDays).Width(10).Render(v.newDays.View()),
		"Description:",
		field(fieldDesc).Render(v.newDesc.View()),
		"",
		btnStyle.Render(" Create "),
		"",
		s.TitleMuted.Render("Tab: next • Ctrl+S: save • Esc: cancel"),
	)

	centered := lipgloss.Place(contentWidth, v.height,
		lipgloss.Center, lipgloss.Center,
		form,
	)
	return styles.CenterView(centered, v.width, v.height)
}

func (v *TaskListView) renderHelp() string {
	contentWidth := styles.ContentWidth(v.width)
	if contentWidth > 0 && contentWidth < 50 {
		return v.styles.Help.Render(v.styles.HelpKey.Render("?") + " help")
	}
	return v.styles.Help.Render(
		fmt.Sprintf("%s view • %s filter • %s new • %s priority • %s status • %s threads • %s quit",
			v.styles.HelpKey.Render("↵"),
			v.styles.HelpKey.Render("tab"),
			v.styles.HelpKey.Render("n"),
			v.styles.HelpKey.Render("p"),
			v.styles.HelpKey.Render("s"),
			v.styles.HelpKey.Render("c"),
			v.styles.HelpKey.Render("q"),
		),
	)
}

func (v *TaskListView) renderHelpPopup() string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)

	helpItems := []string{
		s.HelpKey.Render("↵") + "      view task",
		s.HelpKey.Render("tab") + "    next filter",
		s.HelpKey.Render("n") + "      new task",
		s.HelpKey.Render("p") + "      cycle priority",
		s.HelpKey.Render("s") + "      cycle status",
		s.HelpKey.Render("c") + "      threads",
		s.HelpKey.Render("q") + "      quit",
		"",
		s.TitleMuted.Render("Press any key to close"),
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{s.Title.Render("Keyboard Shortcuts"), ""}, helpItems...)...,
	)

	centered := lipgloss.Place(contentWidth, v.height,
		lipgloss.Center, lipgloss.Center,
		s.FilterBar.Render(content),
	)
	return styles.CenterView(centered, v.width, v.height)
}

func (v *TaskListView) renderTaskView() string {
	t, ok := v.selected()
	if !ok {
		return ""
	}

	s := v.styles
	label := s.TitleMuted
	textWidth := clamp(styles.ContentWidth(v.width)-10, 20, 70)
	text := func(value, empty string) string {
		if strings.TrimSpace(value) == "" {
			return s.TitleMuted.Render(empty)
		}
		return lipgloss.NewStyle().Width(textWidth).Render(value)
	}

	due := "None"
	if d, ok := tasks.DueDate(t.Task); ok {
		due = d.Format("2006-01-02")
		if t.IsOverdue {
			due = s.TaskOverdue.Render(due + " (overdue)")
		}
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		s.Title.MarginBottom(1).Render(t.Title),
		label.Render("Priority"),
		s.PriorityStyle(string(t.Priority)).Render(string(t.Priority)),
		"",
		label.Render("Status"),
		string(t.Status),
		"",
		label.Render("Owner"),
		text(t.Owner, "Unassigned"),
		"",
		label.Render("Collaborators"),
		text(t.Collaborators, "None"),
		"",
		label.Render("Category"),
		text(t.Category, "None"),
		"",
		label.Render("Due"),
		due,
		"",
		label.Render("Description"),
		text(t.Description, "No description"),
		"",
		label.Render("Comments"),
		text(t.Comments, "No comments"),
		"",
		v.renderStatus(),
		s.Help.Render(
			fmt.Sprintf("%s priority • %s status • %s back",
				s.HelpKey.Render("p"),
				s.HelpKey.Render("s"),
				s.HelpKey.Render("esc"),
			),
		),
	)

	padded := lipgloss.NewStyle().Padding(1, 2).Render(content)
	return styles.CenterView(padded, v.width, v.height)
}
