package theme

import (
	"os"
	"runtime"

	"github.com/charmbracelet/lipgloss"
)

// IconSet maps semantic names to icons.
type IconSet map[string]string

func (s IconSet) clone() IconSet {
	if s == nil {
		return nil
	}
	out := make(IconSet, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Colors is the palette shared by the progress views.
type Colors struct {
	Primary    lipgloss.Color
	Secondary  lipgloss.Color
	Accent     lipgloss.Color
	Background lipgloss.Color
	Muted      lipgloss.Color
	Success    lipgloss.Color
	Warning    lipgloss.Color
	Error      lipgloss.Color
}

// BadgeKind selects a badge variant.
type BadgeKind int

const (
	BadgeInfo BadgeKind = iota
	BadgeSuccess
	BadgeWarning
	BadgeError
)

// Theme bundles colors, the panel border and icons.
type Theme struct {
	colors   Colors
	border   lipgloss.Border
	padding  int
	icons    IconSet
	fallback IconSet
}

// Option configures a Theme during construction.
type Option func(*Theme)

// WithIconSet overrides the icon set.
func WithIconSet(set IconSet) Option {
	return func(t *Theme) {
		t.icons = set.clone()
	}
}

// WithColors overrides the palette.
func WithColors(colors Colors) Option {
	return func(t *Theme) {
		t.colors = colors
	}
}

// WithPanelBorder overrides the border drawn around panels.
func WithPanelBorder(border lipgloss.Border) Option {
	return func(t *Theme) {
		t.border = border
	}
}

// New constructs a Theme with opts applied over the defaults.
func New(opts ...Option) Theme {
	t := Theme{
		colors: Colors{
			Primary:    lipgloss.Color("#2f5d7c"),
			Secondary:  lipgloss.Color("#4d7ea8"),
			Accent:     lipgloss.Color("#7fb7d9"),
			Background: lipgloss.Color("#f8f8f8"),
			Muted:      lipgloss.Color("#9ba8c0"),
			Success:    lipgloss.Color("#5dc796"),
			Warning:    lipgloss.Color("#e0b04f"),
			Error:      lipgloss.Color("#f04c56"),
		},
		border:   lipgloss.RoundedBorder(),
		padding:  1,
		icons:    defaultIconSet(),
		fallback: asciiIcons.clone(),
	}
	for _, opt := range opts {
		opt(&t)
	}
	if t.icons == nil {
		t.icons = defaultIconSet()
	}
	return t
}

// Default returns the default Theme.
func Default() Theme {
	return New()
}

// Colors exposes the palette.
func (t Theme) Colors() Colors {
	return t.colors
}

// Icon returns the named icon, falling back to ASCII.
func (t Theme) Icon(name string) string {
	if icon, ok := t.icons[name]; ok {
		return icon
	}
	return t.fallback[name]
}

func (t Theme) HeaderStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Bold(true).
		Background(t.colors.Primary).
		Foreground(t.colors.Background).
		Align(lipgloss.Center)
}

func (t Theme) StatusBarStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Background(t.colors.Secondary).
		Foreground(t.colors.Background).
		Padding(0, 1)
}

func (t Theme) PanelStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Border(t.border).
		BorderForeground(t.colors.Accent).
		Padding(0, t.padding)
}

// BadgeStyle returns a small colored label style.
func (t Theme) BadgeStyle(kind BadgeKind) lipgloss.Style {
	base := lipgloss.NewStyle().Padding(0, 1).Bold(true).Foreground(t.colors.Background)
	switch kind {
	case BadgeSuccess:
		return base.Background(t.colors.Success)
	case BadgeWarning:
		return base.Background(t.colors.Warning)
	case BadgeError:
		return base.Background(t.colors.Error)
	default:
		return base.Background(t.colors.Accent)
	}
}

// ProgressGradient returns the two gradient stops of progress bars.
func (t Theme) ProgressGradient() []string {
	return []string{string(t.colors.Primary), string(t.colors.Accent)}
}

func defaultIconSet() IconSet {
	if isLimitedTerminal() {
		return asciiIcons.clone()
	}
	return emojiIcons.clone()
}

// isLimitedTerminal detects sessions where emoji rarely render.
func isLimitedTerminal() bool {
	if os.Getenv("SSH_CLIENT") != "" || os.Getenv("SSH_TTY") != "" || os.Getenv("SSH_CONNECTION") != "" {
		return true
	}
	return runtime.GOOS == "windows"
}

var emojiIcons = IconSet{
	"episode":  "🎬",
	"folder":   "📁",
	"sorted":   "✅",
	"skipped":  "⏭️",
	"failed":   "❌",
	"canceled": "⛔",
	"workers":  "🧠",
	"stats":    "📊",
}

var asciiIcons = IconSet{
	"episode":  "[E]",
	"folder":   "[D]",
	"sorted":   "[v]",
	"skipped":  "[=]",
	"failed":   "[!]",
	"canceled": "[x]",
	"workers":  "[W]",
	"stats":    "[*]",
}
