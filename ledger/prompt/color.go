package prompt

import (
	"hash/fnv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"
)

// Palette colors account names by their top level account, so all
// expenses share a hue.
type Palette struct {
	r      *lipgloss.Renderer
	styles map[string]lipgloss.Style
}

// NewPalette returns a palette rendering through r.
func NewPalette(r *lipgloss.Renderer) *Palette {
	return &Palette{r: r, styles: make(map[string]lipgloss.Style)}
}

// Account renders an account name.
func (p *Palette) Account(name string) string {
	root, _, _ := strings.Cut(name, ":")
	root = strings.ToLower(root)
	style, ok := p.styles[root]
	if !ok {
		h := fnv.New32a()
		h.Write([]byte(root))
		hue := float64(h.Sum32()%360)
		style = p.r.NewStyle().Foreground(lipgloss.Color(colorful.Hsv(hue, 0.55, 0.95).Hex()))
		p.styles[root] = style
	}
	return style.Render(name)
}

// Amount renders an amount, negative values in red.
func (p *Palette) Amount(s string, negative bool) string {
	if negative {
		return p.r.NewStyle().Foreground(lipgloss.Color("9")).Render(s)
	}
	return s
}

// Faint renders secondary text.
func (p *Palette) Faint(s string) string {
	return p.r.NewStyle().Faint(true).Render(s)
}

// Bold renders emphasized text.
func (p *Palette) Bold(s string) string {
	return p.r.NewStyle().Bold(true).Render(s)
}
