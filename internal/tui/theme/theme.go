// Package theme holds the color palettes of the costfall dashboard.
package theme

import "github.com/charmbracelet/lipgloss"

// Theme maps the dashboard's color roles to terminal colors.
type Theme struct {
	Name string

	Background    lipgloss.Color
	Surface       lipgloss.Color // cards
	SurfaceHover  lipgloss.Color // active tab, selected cell
	SurfaceBright lipgloss.Color // cell under edit
	Border        lipgloss.Color
	BorderAccent  lipgloss.Color // focused card

	TextDim     lipgloss.Color
	TextMuted   lipgloss.Color
	TextPrimary lipgloss.Color

	Accent       lipgloss.Color
	AccentBright lipgloss.Color

	// Cost direction and cap usage.
	Green  lipgloss.Color
	Yellow lipgloss.Color
	Orange lipgloss.Color
	Red    lipgloss.Color
	Cyan   lipgloss.Color
}

// palette lists a theme's colors in Theme field order, Name excluded.
type palette [16]string

func (p palette) theme(name string) Theme {
	c := func(i int) lipgloss.Color { return lipgloss.Color(p[i]) }
	return Theme{
		Name:          name,
		Background:    c(0),
		Surface:       c(1),
		SurfaceHover:  c(2),
		SurfaceBright: c(3),
		Border:        c(4),
		BorderAccent:  c(5),
		TextDim:       c(6),
		TextMuted:     c(7),
		TextPrimary:   c(8),
		Accent:        c(9),
		AccentBright:  c(10),
		Green:         c(11),
		Yellow:        c(12),
		Orange:        c(13),
		Red:           c(14),
		Cyan:          c(15),
	}
}

var (
	//                      bg         surface    hover      bright     border     focus      dim        muted      text       accent     accent+    green      yellow     orange     red        cyan
	FlexokiDark     = palette{"#100F0F", "#1C1B1A", "#282726", "#343331", "#403E3C", "#3AA99F", "#575653", "#878580", "#FFFCF0", "#3AA99F", "#5BC8BE", "#879A39", "#D0A215", "#DA702C", "#D14D41", "#24837B"}.theme("flexoki-dark")
	FlexokiLight    = palette{"#FFFCF0", "#F2F0E5", "#E6E4D9", "#DAD8CE", "#CECDC3", "#24837B", "#B7B5AC", "#6F6E69", "#100F0F", "#24837B", "#3AA99F", "#66800B", "#AD8301", "#BC5215", "#AF3029", "#24837B"}.theme("flexoki-light")
	CatppuccinMocha = palette{"#1E1E2E", "#313244", "#45475A", "#585B70", "#585B70", "#89B4FA", "#6C7086", "#A6ADC8", "#CDD6F4", "#89B4FA", "#B4D0FB", "#A6E3A1", "#F9E2AF", "#FAB387", "#F38BA8", "#94E2D5"}.theme("catppuccin-mocha")
	TokyoNight      = palette{"#1A1B26", "#24283B", "#343A52", "#414868", "#565F89", "#7AA2F7", "#565F89", "#A9B1D6", "#C0CAF5", "#7AA2F7", "#A9C1FF", "#9ECE6A", "#E0AF68", "#FF9E64", "#F7768E", "#7DCFFF"}.theme("tokyo-night")
	// Terminal sticks to the 16 ANSI colors.
	Terminal = palette{"0", "0", "8", "8", "8", "6", "8", "7", "15", "6", "14", "2", "3", "3", "1", "6"}.theme("terminal")
)

// All lists the themes in display order. The first is the default.
var All = []Theme{FlexokiDark, FlexokiLight, CatppuccinMocha, TokyoNight, Terminal}

// Active is the theme every view renders with.
var Active = FlexokiDark

// ByName returns the named theme, or the default.
func ByName(name string) Theme {
	for _, t := range All {
		if t.Name == name {
			return t
		}
	}
	return All[0]
}

// SetActive switches Active to the named theme.
func SetActive(name string) {
	Active = ByName(name)
}

// Names lists the theme names in display order.
func Names() []string {
	out := make([]string, len(All))
	for i, t := range All {
		out[i] = t.Name
	}
	return out
}

// ForSign colors a cost delta: red for increases, green for decreases.
func (t Theme) ForSign(sign int) lipgloss.Color {
	switch {
	case sign > 0:
		return t.Red
	case sign < 0:
		return t.Green
	default:
		return t.TextMuted
	}
}

// ForUsage colors how much of a limit is used, 0 to 1.
func (t Theme) ForUsage(pct float64) lipgloss.Color {
	switch {
	case pct > 1:
		return t.Red
	case pct >= 0.9:
		return t.Orange
	case pct >= 0.7:
		return t.Yellow
	default:
		return t.Green
	}
}
