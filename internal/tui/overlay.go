package tui

import (
	lipgloss "github.com/charmbracelet/lipgloss/v2"

	"github.com/colonyops/margin/internal/core/styles"
)

// overlayCentered composites content centered over the background.
func overlayCentered(background, content string, width, height int) string {
	contentW := lipgloss.Width(content)
	contentH := lipgloss.Height(content)
	x := max((width-contentW)/2, 0)
	y := max((height-contentH)/2, 0)
	return overlayAt(background, content, x, y, width, height)
}

// overlayAt composites content over the background at the given cell
// position, clamped so the content stays on screen.
func overlayAt(background, content string, x, y, width, height int) string {
	contentW := lipgloss.Width(content)
	contentH := lipgloss.Height(content)
	x = min(x, max(width-contentW, 0))
	y = min(y, max(height-contentH, 0))
	x = max(x, 0)
	y = max(y, 0)

	bgLayer := lipgloss.NewLayer(background)
	contentLayer := lipgloss.NewLayer(content)
	contentLayer.X(x).Y(y).Z(1)

	return lipgloss.NewCompositor(bgLayer, contentLayer).Render()
}

// renderTooltip formats an annotation comment as a small hover box.
func renderTooltip(comment string, width int) string {
	maxW := min(width-4, 60)
	if maxW < 16 {
		maxW = 16
	}
	style := styles.TooltipStyle
	if lipgloss.Width(comment) > maxW {
		style = style.Width(maxW)
	}
	return style.Render(comment)
}
