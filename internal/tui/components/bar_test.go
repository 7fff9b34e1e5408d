package components

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
)

func TestTabVisualWidthMatchesRender(t *testing.T) {
	for active := range Tabs {
		bar := RenderTabBar(active, "", 0)
		want := 0
		for i, tab := range Tabs {
			want += TabVisualWidth(tab, i == active)
		}
		want += len(Tabs) - 1
		assert.Equal(t, want, lipgloss.Width(bar), "active=%d", active)
	}
}

func TestTabIdxByKey(t *testing.T) {
	assert.Equal(t, 1, TabIdxByKey('m'))
	assert.Equal(t, -1, TabIdxByKey('z'))
}

func TestStatusBarFillsWidth(t *testing.T) {
	for _, s := range []Status{
		{},
		{Changes: 3, Baseline: "ab12cd34"},
		{Changes: 3, Acked: true, Blocking: 1, Message: "cell saved"},
		{Message: "commit failed", IsError: true},
	} {
		assert.Equal(t, 120, lipgloss.Width(RenderStatusBar(120, s)))
	}
}

func TestUsageBarWidth(t *testing.T) {
	bar := UsageBar("Cap", 1.5, 6, 20)
	assert.Equal(t, 6+1+20+1+5, lipgloss.Width(bar))
	assert.Contains(t, bar, "150%")
	assert.Equal(t, 10, lipgloss.Width(ShareBar(0.3, 10)))
	assert.Equal(t, 25, lipgloss.Width(ProgressBar(2, 20)))
}
