package views

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tgienger/tracker/internal/apperr"
	"github.com/tgienger/tracker/internal/conversation"
	"github.com/tgienger/tracker/internal/models"
	"github.com/tgienger/tracker/internal/ui/keys"
	"github.com/tgienger/tracker/internal/ui/styles"
)

type threadItem struct {
	thread models.Thread
}

func (i threadItem) Title() string { return i.thread.Title }
func (i threadItem) Description() string {
	return fmt.Sprintf("%s • last activity %s", i.thread.CreatedBy, i.thread.LastActivityAt.Local().Format("Jan 2, 2006 3:04 PM"))
}
func (i threadItem) FilterValue() string { return i.thread.Title }

type threadDelegate struct {
	styles *styles.Styles
	width  int
}

func (d threadDelegate) Height() int                               { return 2 }
func (d threadDelegate) Spacing() int                              { return 1 }
func (d threadDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }

func (d threadDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	t, ok := item.(threadItem)
	if !ok {
		return
	}

	selected := index == m.Index()
	width := max(d.width-4, 20)

	var titleStyle, descStyle lipgloss.Style
	if selected {
		titleStyle = d.styles.ListSelected.Width(width)
		descStyle = d.styles.ListSelected.Foreground(styles.Current.ForegroundDim).Width(width)
	} else {
		titleStyle = d.styles.ListItem.Width(width)
		descStyle = d.styles.ListItem.Foreground(styles.Current.ForegroundDim).Width(width)
	}

	marker := d.styles.ThreadOpen.Render("●")
	if t.thread.Status == models.ThreadClosed {
		marker = d.styles.ThreadClosed.Render("○ closed")
	}

	fmt.Fprintf(w, "%s\n%s", titleStyle.Render(marker+" "+t.Title()), descStyle.Render(t.Description()))
}

// ThreadListView lists discussion threads and shows one thread at a time
type ThreadListView struct {
	service  *conversation.Service
	user     *models.User
	list     list.Model
	delegate *threadDelegate
	styles   *styles.Styles
	keys     keys.KeyMap
	width    int
	height   int
	loaded   bool

	status    string
	statusErr bool

	creating bool
	newTitle textinput.Model

	// Open thread
	detail    *models.ThreadDetail
	msgCursor int
	replyTo   *models.Message
	compose   textarea.Model
	composing bool

	showHelpPopup bool
}

// NewThreadListView creates a thread view acting as user
func NewThreadListView(service *conversation.Service, user *models.User) *ThreadListView {
	s := styles.NewStyles()

	newTitle := textinput.New()
	newTitle.Placeholder = "Thread title"
	newTitle.CharLimit = 200

	compose := textarea.New()
	compose.Placeholder = "Write a message..."
	compose.CharLimit = 4000
	compose.SetWidth(50)
	compose.SetHeight(3)
	compose.ShowLineNumbers = false

	delegate := &threadDelegate{styles: s, width: 80}

	l := list.New([]list.Item{}, delegate, 0, 0)
	l.Title = "Threads"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)
	l.Styles.Title = s.Title
	l.SetShowHelp(false)

	return &ThreadListView{
		service:  service,
		user:     user,
		list:     l,
		delegate: delegate,
		styles:   s,
		keys:     keys.DefaultKeyMap(),
		newTitle: newTitle,
		compose:  compose,
	}
}

// BackToTasks signals a switch to the task view
type BackToTasks struct{}

type threadsLoadedMsg struct {
	threads []models.Thread
}

type threadLoadedMsg struct {
	detail models.ThreadDetail
}

type messagePostedMsg struct {
	threadID string
}

// Init initializes the view
func (v *ThreadListView) Init() tea.Cmd {
	return v.loadThreads
}

func (v *ThreadListView) loadThreads() tea.Msg {
	threads, err := v.service.ListThreads(context.Background())
	if err != nil {
		return errMsg{err: err}
	}
	return threadsLoadedMsg{threads: threads}
}

func (v *ThreadListView) openThread(id string) tea.Cmd {
	return func() tea.Msg {
		detail, err := v.service.GetThread(context.Background(), id)
		if err != nil {
			return errMsg{err: err}
		}
		return threadLoadedMsg{detail: detail}
	}
}

// Update handles messages
func (v *ThreadListView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		contentWidth := styles.ContentWidth(msg.Width)
		v.delegate.width = contentWidth
		v.list.SetSize(contentWidth-4, msg.Height-8)
		v.compose.SetWidth(clamp(contentWidth-10, 20, 50))
		return v, nil

	case threadsLoadedMsg:
		items := make([]list.Item, len(msg.threads))
		for i, t := range msg.threads {
			items[i] = threadItem{thread: t}
		}
		v.loaded = true
		return v, v.list.SetItems(items)

	case threadLoadedMsg:
		v.detail = &msg.detail
		if v.msgCursor >= len(msg.detail.Messages) {
			v.msgCursor = max(0, len(msg.detail.Messages)-1)
		}
		return v, nil

	case messagePostedMsg:
		v.status, v.statusErr = "Message posted", false
		v.compose.Reset()
		v.replyTo = nil
		return v, v.openThread(msg.threadID)

	case errMsg:
		v.status, v.statusErr = apperr.MessageOf(msg.err), true
		v.loaded = true
		if apperr.Is(msg.err, apperr.CodeThreadClosed) && v.detail != nil {
			return v, v.openThread(v.detail.Thread.ID)
		}
		return v, nil

	case tea.KeyMsg:
		if v.showHelpPopup {
			v.showHelpPopup = false
			return v, nil
		}
		if v.creating {
			return v.updateCreating(msg)
		}
		if v.detail != nil {
			return v.updateDetail(msg)
		}

		// Let the list own keys while the user types a filter
		if v.list.FilterState() == list.Filtering {
			break
		}

		switch {
		case key.Matches(msg, v.keys.Quit):
			return v, tea.Quit
		case key.Matches(msg, v.keys.Back):
			return v, func() tea.Msg { return BackToTasks{} }
		case key.Matches(msg, v.keys.New):
			v.creating = true
			v.newTitle.Reset()
			v.newTitle.Focus()
			return v, textinput.Blink
		case key.Matches(msg, v.keys.Help):
			v.showHelpPopup = true
			return v, nil
		case key.Matches(msg, v.keys.Enter):
			if item, ok := v.list.SelectedItem().(threadItem); ok {
				v.msgCursor = 0
				v.status = ""
				return v, v.openThread(item.thread.ID)
			}
		}
	}

	var cmd tea.Cmd
	v.list, cmd = v.list.Update(msg)
	return v, cmd
}

func (v *ThreadListView) updateCreating(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keys.Back):
		v.creating = false
		return v, nil

	case key.Matches(msg, v.keys.Enter), msg.String() == "ctrl+s":
		title := strings.TrimSpace(v.newTitle.Value())
		if title == "" {
			return v, nil
		}
		v.creating = false
		return v, func() tea.Msg {
			t, err := v.service.CreateThread(context.Background(), title, v.user.Username)
			if err != nil {
				return errMsg{err: err}
			}
			detail, err := v.service.GetThread(context.Background(), t.ID)
			if err != nil {
				return errMsg{err: err}
			}
			return threadLoadedMsg{detail: detail}
		}
	}

	var cmd tea.Cmd
	v.newTitle, cmd = v.newTitle.Update(msg)
	return v, cmd
}

func (v *ThreadListView) updateDetail(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if v.composing {
		switch {
		case key.Matches(msg, v.keys.Back):
			v.composing = false
			v.replyTo = nil
			v.compose.Blur()
			return v, nil
		case msg.String() == "ctrl+s":
			return v, v.postMessage()
		default:
			var cmd tea.Cmd
			v.compose, cmd = v.compose.Update(msg)
			return v, cmd
		}
	}

	switch {
	case key.Matches(msg, v.keys.Back):
		v.detail = nil
		v.status = ""
		return v, v.loadThreads
	case key.Matches(msg, v.keys.Quit):
		return v, tea.Quit
	case key.Matches(msg, v.keys.Up):
		if v.msgCursor > 0 {
			v.msgCursor--
		}
		return v, nil
	case key.Matches(msg, v.keys.Down):
		if v.msgCursor < len(v.detail.Messages)-1 {
			v.msgCursor++
		}
		return v, nil
	case key.Matches(msg, v.keys.New), key.Matches(msg, v.keys.Enter):
		v.replyTo = nil
		return v, v.startComposing()
	case key.Matches(msg, v.keys.Reply):
		if v.msgCursor < len(v.detail.Messages) {
			m := v.detail.Messages[v.msgCursor]
			// Replies attach to the top-level message
			if m.ParentID != nil {
				for _, candidate := range v.detail.Messages {
					if candidate.ID == *m.ParentID {
						m = candidate
						break
					}
				}
			}
			v.replyTo = &m
			return v, v.startComposing()
		}
	}
	return v, nil
}

func (v *ThreadListView) startComposing() tea.Cmd {
	v.composing = true
	v.compose.Focus()
	return textarea.Blink
}

func (v *ThreadListView) postMessage() tea.Cmd {
	body := strings.TrimSpace(v.compose.Value())
	if body == "" || v.detail == nil {
		return nil
	}
	threadID := v.detail.Thread.ID
	var parentID *string
	if v.replyTo != nil {
		id := v.replyTo.ID
		parentID = &id
	}
	v.composing = false
	v.compose.Blur()

	return func() tea.Msg {
		if _, _, err := v.service.AddMessage(context.Background(), threadID, v.user.Username, body, parentID); err != nil {
			return errMsg{err: err}
		}
		return messagePostedMsg{threadID: threadID}
	}
}

// View renders the view
func (v *ThreadListView) View() string {
	if v.showHelpPopup {
		return v.renderHelpPopup()
	}
	if v.creating {
		return v.renderCreateForm()
	}
	if v.detail != nil {
		return v.renderDetail()
	}
	if !v.loaded {
		return v.styles.TitleMuted.Render("Loading...")
	}
	if len(v.list.Items()) == 0 {
		return v.renderEmpty()
	}

	content := v.list.View() + "\n" + v.renderStatus() + v.renderHelp()
	return styles.CenterView(content, v.width, v.height)
}

func (v *ThreadListView) renderStatus() string {
	if v.status == "" {
		return ""
	}
	if v.statusErr {
		return v.styles.StatusBarError.Render(v.status) + "\n"
	}
	return v.styles.StatusBar.Render(v.status) + "\n"
}

func (v *ThreadListView) renderEmpty() string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)

	content := lipgloss.JoinVertical(lipgloss.Center,
		s.Title.Render("No Threads"),
		"",
		s.TitleMuted.Render("Press 'n' to start a discussion, esc to go back"),
		"",
		s.ButtonPrimary.Render(" New Thread "),
	)

	centered := lipgloss.Place(contentWidth, v.height,
		lipgloss.Center, lipgloss.Center,
		content,
	)
	return styles.CenterView(centered, v.width, v.height)
}

func (v *ThreadListView) renderCreateForm() string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)
	inputWidth := clamp(contentWidth-6, 20, 50)

	form := lipgloss.JoinVertical(lipgloss.Left,
		s.Title.Render("New Thread"),
		"",
		"Title:",
		s.InputFocused.Width(inputWidth).Render(v.newTitle.View()),
		"",
		s.TitleMuted.Render("↵: create • Esc: cancel"),
	)

	centered := lipgloss.Place(contentWidth, v.height,
		lipgloss.Center, lipgloss.Center,
		form,
	)
	return styles.CenterView(centered, v.width, v.height)
}

func (v *ThreadListView) renderDetail() string {
	s := v.styles
	d := v.detail
	textWidth := clamp(styles.ContentWidth(v.width)-10, 20, 70)

	marker := s.ThreadOpen.Render("open")
	if d.Thread.Status == models.ThreadClosed {
		marker = s.ThreadClosed.Render("closed after inactivity")
	}

	var lines []string
	if len(d.Messages) == 0 {
		lines = append(lines, s.TitleMuted.Render("No messages yet"))
	}
	for i, m := range d.Messages {
		rowStyle := s.ListItem
		if i == v.msgCursor {
			rowStyle = s.ListSelected
		}
		indent := 0
		if m.ParentID != nil {
			indent = 4
		}
		entry := lipgloss.JoinVertical(lipgloss.Left,
			s.TitleMuted.Render(m.Author+" • "+m.CreatedAt.Local().Format("Jan 2, 2006 3:04 PM")),
			lipgloss.NewStyle().Width(textWidth-indent).Render(m.Body),
		)
		lines = append(lines, rowStyle.MarginLeft(indent).Render(entry))
	}

	composeLabel := "New message"
	if v.replyTo != nil {
		composeLabel = "Reply to " + v.replyTo.Author
	}
	composeStyle := s.Input
	if v.composing {
		composeStyle = s.InputFocused
	}

	var help string
	if v.composing {
		help = fmt.Sprintf("%s send • %s cancel", s.HelpKey.Render("ctrl+s"), s.HelpKey.Render("esc"))
	} else {
		help = fmt.Sprintf("%s write • %s reply • %s back",
			s.HelpKey.Render("n"),
			s.HelpKey.Render("r"),
			s.HelpKey.Render("esc"),
		)
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		s.Title.Render(d.Thread.Title)+"  "+marker,
		s.TitleMuted.Render("started by "+d.Thread.CreatedBy),
		"",
		lipgloss.JoinVertical(lipgloss.Left, lines...),
		"",
		s.TitleMuted.Render(composeLabel),
		composeStyle.Render(v.compose.View()),
		v.renderStatus(),
		s.Help.Render(help),
	)

	padded := lipgloss.NewStyle().Padding(1, 2).Render(content)
	return styles.CenterView(padded, v.width, v.height)
}

func (v *ThreadListView) renderHelp() string {
	contentWidth := styles.ContentWidth(v.width)
	if contentWidth > 0 && contentWidth < 50 {
		return v.styles.Help.Render(v.styles.HelpKey.Render("?") + " help")
	}
	return v.styles.Help.Render(
		fmt.Sprintf("%s open • %s new • %s filter • %s tasks • %s quit",
			v.styles.HelpKey.Render("↵"),
			v.styles.HelpKey.Render("n"),
			v.styles.HelpKey.Render("/"),
			v.styles.HelpKey.Render("esc"),
			v.styles.HelpKey.Render("q"),
		),
	)
}

func (v *ThreadListView) renderHelpPopup() string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)

	helpItems := []string{
		s.HelpKey.Render("↵") + "      open thread",
		s.HelpKey.Render("n") + "      new thread",
		s.HelpKey.Render("/") + "      filter",
		s.HelpKey.Render("r") + "      reply (in a thread)",
		s.HelpKey.Render("esc") + "    back to tasks",
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
