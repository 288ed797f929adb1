package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// renderDepthGraph draws queue depth samples as a bar graph on a dashed grid.
// Samples fill from the right so the newest value is always at the edge.
func renderDepthGraph(data []float64, width, height int, maxVal float64, color lipgloss.Color) string {
	if width < 1 || height < 1 {
		return ""
	}
	if maxVal <= 0 {
		maxVal = 1
	}

	gridStyle := lipgloss.NewStyle().Foreground(ColorBorder)
	barStyle := lipgloss.NewStyle().Foreground(color)

	rows := make([][]string, height)
	for i := range rows {
		rows[i] = make([]string, width)
		for j := range rows[i] {
			if i%2 == 0 {
				rows[i][j] = gridStyle.Render("╌")
			} else {
				rows[i][j] = " "
			}
		}
	}

	visible := data
	if len(visible) > width {
		visible = visible[len(visible)-width:]
	}

	blocks := []string{" ", "▁", "▂", "▃", "▄", "▅", "▆", "▇", "█"}
	offset := width - len(visible)

	for x, val := range visible {
		if val <= 0 {
			continue
		}
		pct := val / maxVal
		if pct > 1.0 {
			pct = 1.0
		}
		eighths := pct * float64(height) * 8.0

		for y := 0; y < height; y++ {
			rowValue := eighths - float64(y*8)
			if rowValue <= 0 {
				break
			}
			char := "█"
			if rowValue < 8 {
				char = blocks[int(rowValue)]
			}
			rows[height-1-y][offset+x] = barStyle.Render(char)
		}
	}

	var s strings.Builder
	for i, row := range rows {
		s.WriteString(strings.Join(row, ""))
		if i < height-1 {
			s.WriteRune('\n')
		}
	}
	return s.String()
}

// graphScale rounds the largest sample up to a friendly axis maximum.
func graphScale(data []float64) float64 {
	maxVal := 1.0
	for _, v := range data {
		if v > maxVal {
			maxVal = v
		}
	}
	if maxVal >= 5 {
		return float64(int((maxVal+4.99)/5) * 5)
	}
	return float64(int(maxVal + 0.99))
}
