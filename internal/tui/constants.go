package tui

import "time"

const (
	// Timeouts and Intervals
	RefreshTimeout  = 15 * time.Second
	NoticeLifetime  = 5 * time.Second
	DispatchTimeout = 30 * time.Second

	// Input Dimensions
	InputWidth = 50

	// Layout
	DefaultPaddingX = 1
	DefaultPaddingY = 0
	ListWidthRatio  = 0.6
	MaxListRows     = 12

	// Samples of queue depth kept for the graph
	HistoryLength = 120
)
