package ui

import (
	"github.com/charmbracelet/lipgloss"
)

const (
	spotifyGreen = "#1DB954"
	barEmpty     = "#3E3E3E"
)

var styles = NewPalette(spotifyGreen, "#FFFFFF", "#FF5F5F", "#B3B3B3", "#626262")

// struct Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title lipgloss.Style
	track lipgloss.Style
	err   lipgloss.Style
	muted lipgloss.Style
	help  lipgloss.Style
	frame lipgloss.Style
}

func NewPalette(t, s, e, m, h string) *Palette {
	return &Palette{
		title: NewBold(t).MarginBottom(1),
		track: NewBold(s),
		err:   NewBold(e),
		muted: NewStyle(m),
		help:  NewEm(h),
		frame: lipgloss.NewStyle().Padding(1, 2),
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}
