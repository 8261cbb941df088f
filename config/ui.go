package config

import "sync"

// Theme names.
const (
	ThemeDark  = "dark"
	ThemeLight = "light"
)

// UISettings is presentation state that lives outside the conversation
// core: colour theme and whether the sidebar is shown.
type UISettings struct {
	Theme       string `json:"theme"`
	SidebarOpen bool   `json:"sidebar_open"`
}

var (
	uiMu sync.RWMutex
	ui   = UISettings{Theme: ThemeDark, SidebarOpen: true}
)

// UI returns the process-wide UI settings.
func UI() UISettings {
	uiMu.RLock()
	defer uiMu.RUnlock()
	return ui
}

// SetUI replaces the process-wide UI settings. Unknown themes fall back to dark.
func SetUI(s UISettings) {
	if s.Theme != ThemeLight {
		s.Theme = ThemeDark
	}
	uiMu.Lock()
	ui = s
	uiMu.Unlock()
}

// ToggleTheme flips between dark and light and returns the new theme.
func ToggleTheme() string {
	uiMu.Lock()
	defer uiMu.Unlock()
	if ui.Theme == ThemeDark {
		ui.Theme = ThemeLight
	} else {
		ui.Theme = ThemeDark
	}
	return ui.Theme
}

// ToggleSidebar flips the sidebar state and returns whether it is now open.
func ToggleSidebar() bool {
	uiMu.Lock()
	defer uiMu.Unlock()
	ui.SidebarOpen = !ui.SidebarOpen
	return ui.SidebarOpen
}
