package cli

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/apresai/newscast/internal/config"
	"github.com/apresai/newscast/internal/storage"
)

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit topics, weights, voices, and show settings interactively",
	RunE:  runConfigEdit,
}

func init() {
	configCmd.AddCommand(configEditCmd)
}

// menuItem represents a single editable field in the TUI.
type menuItem struct {
	label   string
	value   string
	options []menuOption
	topic   bool // topic weight rows support removal
	editing bool
	cursor  int // cursor within options when editing
}

type menuOption struct {
	label string
	value string
}

// menuState tracks which phase the TUI is in.
type menuState int

const (
	stateMenu menuState = iota
	stateEditing
	stateAddTopic
)

// editorModel is the Bubble Tea model for the config editor.
type editorModel struct {
	items     []menuItem
	topics    []config.TopicConfig // labels, feeds, keywords ride along; weights live in items
	cursor    int
	state     menuState
	width     int
	err       error
	confirmed bool
	cancelled bool
	newTopic  string // label buffer while adding a topic
}

// style constants
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7D56F4")).
			MarginBottom(1)

	menuLabelStyle = lipgloss.NewStyle().
			Width(18).
			Align(lipgloss.Right).
			MarginRight(2)

	menuValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575"))

	menuValueDimStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#555555")).
				Italic(true)

	cursorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D56F4")).
			Bold(true)

	optionStyle = lipgloss.NewStyle().
			PaddingLeft(4)

	selectedOptionStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#04B575")).
				Bold(true).
				PaddingLeft(2)

	buttonStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 3)

	buttonDimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#555555")).
			Padding(0, 3)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			MarginTop(1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5555")).
			Bold(true)

	headerBorder = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("#7D56F4")).
			MarginBottom(1).
			PaddingBottom(0)
)

// fixed head item indices; topic rows follow, then Add Topic, then Save
const (
	idxTitle = iota
	idxStyleLine
	idxDuration
	idxWindow
	idxRumor
	idxHostVoice
	idxAnalystVoice
	idxStingerVoice
	idxTopicsStart
)

var voiceOptions = []menuOption{
	{label: "Alloy - neutral, even", value: "alloy"},
	{label: "Echo - male, warm", value: "echo"},
	{label: "Fable - British, bright", value: "fable"},
	{label: "Nova - female, energetic", value: "nova"},
	{label: "Onyx - male, deep", value: "onyx"},
	{label: "Shimmer - female, clear", value: "shimmer"},
}

var durationOptions = []menuOption{
	{label: "10 minutes", value: "600"},
	{label: "15 minutes (default)", value: "900"},
	{label: "20 minutes", value: "1200"},
	{label: "30 minutes", value: "1800"},
}

var windowOptions = []menuOption{
	{label: "24 hours", value: "24"},
	{label: "36 hours (default)", value: "36"},
	{label: "48 hours", value: "48"},
}

var rumorOptions = []menuOption{
	{label: "On - hold unconfirmed items to sourced reporting (default)", value: "true"},
	{label: "Off - allow single-source items through", value: "false"},
}

func formatWeight(w float64) string {
	return fmt.Sprintf("%.2f", w)
}

// parseWeight parses a weight string, returning 0 for anything unreadable.
// Validation with errors happens on save.
func parseWeight(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f < 0 {
		return 0
	}
	return f
}

// newTopicSeed builds a starter topic around a Google News query so a
// freshly added topic ingests something before anyone curates its feeds.
func newTopicSeed(label string) config.TopicConfig {
	q := url.QueryEscape(strings.ToLower(label))
	return config.TopicConfig{
		Label:  label,
		Weight: 0.1,
		Feeds: []string{
			fmt.Sprintf("https://news.google.com/rss/search?q=%s&hl=en-US&gl=US&ceid=US:en", q),
		},
		Keywords: []string{strings.ToLower(label)},
	}
}

func voiceValue(cfg *config.DashboardConfig, role, fallback string) string {
	if v, ok := cfg.Voices[role]; ok && v != "" {
		return v
	}
	return fallback
}

func newEditorModel(cfg *config.DashboardConfig) editorModel {
	topics := make([]config.TopicConfig, len(cfg.Topics))
	copy(topics, cfg.Topics)

	m := editorModel{
		topics: topics,
		state:  stateMenu,
	}
	m.items = m.buildItems(
		cfg.Podcast.Title,
		cfg.Production.Style,
		strconv.Itoa(cfg.TargetDurationSec),
		strconv.Itoa(cfg.WindowHours),
		strconv.FormatBool(cfg.RumorFilter),
		voiceValue(cfg, "host", "shimmer"),
		voiceValue(cfg, "analyst", "echo"),
		voiceValue(cfg, "stinger", "fable"),
		nil,
	)
	return m
}

// buildItems assembles the full item list: fixed head fields, one weight row
// per topic, the Add Topic action, and the Save button. weights overrides
// the topics' stored weights when non-nil (used on rebuild).
func (m *editorModel) buildItems(title, style, duration, window, rumor, host, analyst, stinger string, weights []string) []menuItem {
	items := []menuItem{
		{label: "Title", value: title},
		{label: "Style", value: style},
		{label: "Duration", value: duration, options: durationOptions},
		{label: "Window", value: window, options: windowOptions},
		{label: "Rumor Filter", value: rumor, options: rumorOptions},
		{label: "Host Voice", value: host, options: voiceOptions},
		{label: "Analyst Voice", value: analyst, options: voiceOptions},
		{label: "Stinger Voice", value: stinger, options: voiceOptions},
	}

	for i, t := range m.topics {
		value := formatWeight(t.Weight)
		if weights != nil && i < len(weights) {
			value = weights[i]
		}
		items = append(items, menuItem{
			label: "Topic: " + t.Label,
			value: value,
			topic: true,
		})
	}

	items = append(items, menuItem{label: "+ Add Topic"})
	items = append(items, menuItem{label: ">>> Save <<<"})

	// Pre-select cursor position for options
	for i := range items {
		for j, opt := range items[i].options {
			if opt.value == items[i].value {
				items[i].cursor = j
				break
			}
		}
	}
	return items
}

// rebuildItems rebuilds after a topic add or remove, carrying every edited
// value over.
func (m *editorModel) rebuildItems() {
	weights := make([]string, 0, len(m.topics))
	for i := range m.topics {
		idx := idxTopicsStart + i
		if idx < m.addTopicIdx() && idx < len(m.items) {
			weights = append(weights, m.items[idx].value)
		} else {
			weights = append(weights, formatWeight(m.topics[i].Weight))
		}
	}
	m.items = m.buildItems(
		m.items[idxTitle].value,
		m.items[idxStyleLine].value,
		m.items[idxDuration].value,
		m.items[idxWindow].value,
		m.items[idxRumor].value,
		m.items[idxHostVoice].value,
		m.items[idxAnalystVoice].value,
		m.items[idxStingerVoice].value,
		weights,
	)
	if m.cursor >= len(m.items) {
		m.cursor = len(m.items) - 1
	}
}

func (m editorModel) addTopicIdx() int { return len(m.items) - 2 }
func (m editorModel) saveIdx() int     { return len(m.items) - 1 }

func (m editorModel) isTextInput(idx int) bool {
	return idx == idxTitle || idx == idxStyleLine || m.isTopicRow(idx)
}

func (m editorModel) isTopicRow(idx int) bool {
	return idx >= 0 && idx < len(m.items) && m.items[idx].topic
}

// normalizedPercent computes the live preview: what this row's weight
// becomes once Save normalizes the sum to 1.
func (m editorModel) normalizedPercent(idx int) (int, bool) {
	sum := 0.0
	for i := idxTopicsStart; i < m.addTopicIdx(); i++ {
		sum += parseWeight(m.items[i].value)
	}
	if sum <= 0 {
		// All zero normalizes to an equal split.
		n := m.addTopicIdx() - idxTopicsStart
		if n == 0 {
			return 0, false
		}
		return int(100.0/float64(n) + 0.5), true
	}
	w := parseWeight(m.items[idx].value)
	return int(w/sum*100 + 0.5), true
}

func (m editorModel) Init() tea.Cmd {
	return nil
}

func (m editorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch m.state {
		case stateMenu:
			return m.updateMenu(msg)
		case stateEditing:
			return m.updateEditing(msg)
		case stateAddTopic:
			return m.updateAddTopic(msg)
		}
	}
	return m, nil
}

func (m editorModel) updateMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		m.cancelled = true
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}

	case "x", "delete":
		if m.isTopicRow(m.cursor) {
			if len(m.topics) == 1 {
				m.err = fmt.Errorf("at least one topic is required")
				return m, nil
			}
			i := m.cursor - idxTopicsStart
			m.topics = append(m.topics[:i], m.topics[i+1:]...)
			m.rebuildItems()
			m.err = nil
		}

	case "enter", " ":
		if m.cursor == m.saveIdx() {
			if err := m.validate(); err != nil {
				m.err = err
				return m, nil
			}
			m.confirmed = true
			return m, tea.Quit
		}

		if m.cursor == m.addTopicIdx() {
			m.state = stateAddTopic
			m.newTopic = ""
			m.err = nil
			return m, nil
		}

		// Title, Style, and weight rows are text fields: open inline editor
		if m.isTextInput(m.cursor) {
			m.state = stateEditing
			m.items[m.cursor].editing = true
			m.err = nil
			return m, nil
		}

		// All others: open option selector
		if len(m.items[m.cursor].options) > 0 {
			m.state = stateEditing
			m.items[m.cursor].editing = true
			m.err = nil
			return m, nil
		}
	}
	return m, nil
}

func (m editorModel) updateEditing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	idx := m.cursor
	item := &m.items[idx]

	// Text input for Title, Style, and topic weights
	if m.isTextInput(idx) {
		switch msg.String() {
		case "enter":
			item.editing = false
			m.state = stateMenu
			// Auto-advance to next item
			if m.cursor < len(m.items)-1 {
				m.cursor++
			}
			return m, nil
		case "esc":
			item.editing = false
			m.state = stateMenu
			return m, nil
		case "backspace":
			if len(item.value) > 0 {
				item.value = item.value[:len(item.value)-1]
			}
			return m, nil
		case "ctrl+u":
			item.value = ""
			return m, nil
		default:
			if msg.Type == tea.KeyRunes {
				item.value += string(msg.Runes)
			}
			return m, nil
		}
	}

	// Option selector for the rest
	switch msg.String() {
	case "enter", " ":
		if item.cursor >= 0 && item.cursor < len(item.options) {
			item.value = item.options[item.cursor].value
		}
		item.editing = false
		m.state = stateMenu
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}
		return m, nil

	case "esc":
		item.editing = false
		m.state = stateMenu
		return m, nil

	case "up", "k":
		if item.cursor > 0 {
			item.cursor--
		}

	case "down", "j":
		if item.cursor < len(item.options)-1 {
			item.cursor++
		}
	}
	return m, nil
}

func (m editorModel) updateAddTopic(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		label := strings.TrimSpace(m.newTopic)
		if label == "" {
			m.err = fmt.Errorf("topic label cannot be empty")
			return m, nil
		}
		for _, t := range m.topics {
			if strings.EqualFold(t.Label, label) {
				m.err = fmt.Errorf("topic %q already exists", label)
				return m, nil
			}
		}
		m.topics = append(m.topics, newTopicSeed(label))
		m.rebuildItems()
		m.state = stateMenu
		m.cursor = idxTopicsStart + len(m.topics) - 1
		m.err = nil
		return m, nil

	case "esc":
		m.state = stateMenu
		return m, nil

	case "backspace":
		if len(m.newTopic) > 0 {
			m.newTopic = m.newTopic[:len(m.newTopic)-1]
		}

	case "ctrl+u":
		m.newTopic = ""

	default:
		if msg.Type == tea.KeyRunes {
			m.newTopic += string(msg.Runes)
		}
	}
	return m, nil
}

// validate checks what Save would reject, so the error surfaces in the TUI
// instead of after it closes.
func (m editorModel) validate() error {
	if strings.TrimSpace(m.items[idxTitle].value) == "" {
		return fmt.Errorf("title is required")
	}
	for i := idxTopicsStart; i < m.addTopicIdx(); i++ {
		v := strings.TrimSpace(m.items[i].value)
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			return fmt.Errorf("%s: weight %q must be a non-negative number", m.items[i].label, v)
		}
	}
	return nil
}

// apply writes the edited values back onto the config record.
func (m editorModel) apply(cfg *config.DashboardConfig) {
	cfg.Podcast.Title = strings.TrimSpace(m.items[idxTitle].value)
	cfg.Production.Style = strings.TrimSpace(m.items[idxStyleLine].value)
	if n, err := strconv.Atoi(m.items[idxDuration].value); err == nil {
		cfg.TargetDurationSec = n
	}
	if n, err := strconv.Atoi(m.items[idxWindow].value); err == nil {
		cfg.WindowHours = n
	}
	cfg.RumorFilter = m.items[idxRumor].value == "true"

	if cfg.Voices == nil {
		cfg.Voices = map[string]string{}
	}
	cfg.Voices["host"] = m.items[idxHostVoice].value
	cfg.Voices["analyst"] = m.items[idxAnalystVoice].value
	cfg.Voices["stinger"] = m.items[idxStingerVoice].value

	topics := make([]config.TopicConfig, len(m.topics))
	copy(topics, m.topics)
	for i := range topics {
		topics[i].Weight = parseWeight(m.items[idxTopicsStart+i].value)
	}
	cfg.Topics = topics
}

func (m editorModel) View() string {
	var b strings.Builder

	title := titleStyle.Render("Newscast Config")
	b.WriteString(headerBorder.Render(title))
	b.WriteString("\n")

	for i, item := range m.items {
		isActive := m.cursor == i

		// Action rows render as buttons
		if i == m.addTopicIdx() || i == m.saveIdx() {
			label := " Add Topic "
			if i == m.saveIdx() {
				label = " Save "
				b.WriteString("\n")
			}
			if isActive {
				b.WriteString("  " + buttonStyle.Render(label))
			} else {
				b.WriteString("  " + buttonDimStyle.Render(label))
			}
			b.WriteString("\n")
			continue
		}

		cursor := "  "
		if isActive {
			cursor = cursorStyle.Render("> ")
		}
		renderedLabel := menuLabelStyle.Render(item.label)

		var renderedValue string
		if item.editing && m.isTextInput(i) {
			renderedValue = menuValueStyle.Render(item.value + "_")
		} else if item.value == "" {
			renderedValue = menuValueDimStyle.Render("(not set)")
		} else {
			displayVal := item.value
			for _, opt := range item.options {
				if opt.value == item.value {
					displayVal = opt.label
					break
				}
			}
			renderedValue = menuValueStyle.Render(displayVal)
		}

		// Topic rows carry the live normalization preview
		if m.isTopicRow(i) {
			if pct, ok := m.normalizedPercent(i); ok {
				renderedValue += menuValueDimStyle.Render(fmt.Sprintf("  (%d%% after save)", pct))
			}
		}

		b.WriteString(cursor + renderedLabel + " " + renderedValue + "\n")

		// Show expanded options when editing
		if item.editing && len(item.options) > 0 && !m.isTextInput(i) {
			for j, opt := range item.options {
				if j == item.cursor {
					b.WriteString(selectedOptionStyle.Render("> "+opt.label) + "\n")
				} else {
					b.WriteString(optionStyle.Render("  "+opt.label) + "\n")
				}
			}
		}
	}

	// Add-topic prompt overlay
	if m.state == stateAddTopic {
		b.WriteString("\n  " + menuLabelStyle.Render("New Topic") + " " + menuValueStyle.Render(m.newTopic+"_") + "\n")
	}

	if m.err != nil {
		b.WriteString("\n" + errorStyle.Render("  Error: "+m.err.Error()) + "\n")
	}

	switch m.state {
	case stateMenu:
		b.WriteString(helpStyle.Render("  j/k or arrows to navigate | enter to edit | x to remove a topic | q to quit"))
	case stateEditing:
		if m.isTextInput(m.cursor) {
			b.WriteString(helpStyle.Render("  type value | enter to confirm | esc to cancel | ctrl+u to clear"))
		} else {
			b.WriteString(helpStyle.Render("  j/k or arrows to pick | enter to select | esc to cancel"))
		}
	case stateAddTopic:
		b.WriteString(helpStyle.Render("  type a topic label | enter to add | esc to cancel"))
	}
	b.WriteString("\n")

	return b.String()
}

func runConfigEdit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	st, err := storage.FromEnv(ctx)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	cfg, err := config.Load(ctx, st)
	if err != nil {
		return err
	}

	p := tea.NewProgram(newEditorModel(cfg), tea.WithAltScreen())
	result, err := p.Run()
	if err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	final := result.(editorModel)
	if final.cancelled || !final.confirmed {
		fmt.Println("No changes saved.")
		return nil
	}

	final.apply(cfg)
	if err := config.Save(ctx, st, cfg, "cli"); err != nil {
		return err
	}
	fmt.Printf("Saved config version %d\n", cfg.Version)
	return nil
}
