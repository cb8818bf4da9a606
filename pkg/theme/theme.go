package theme

import (
	"fmt"
	"sync"
)

// Color is the int value used by discordgo.MessageEmbed.Color
type Color = int

// Theme holds the color roles used by panel embeds and notices.
// Themes may set only a subset; the rest is derived in ensureDefaults.
type Theme struct {
	// Human-friendly name for the theme (unique within the registry).
	Name string

	// Core roles
	Primary Color
	Accent  Color
	Info    Color
	Success Color
	Warning Color
	Error   Color
	Muted   Color

	// Configuration panel
	PanelHome     Color // main view
	PanelCategory Color // category views
	PanelSubView  Color // webhooks and other sub-views
	PanelEditor   Color // field editor
	PanelClosed   Color // closed or expired panel
}

// Clone returns a copy of the Theme.
func (t *Theme) Clone() *Theme {
	cp := *t
	return &cp
}

// ensureDefaults fills zero-valued fields from related roles.
func (t *Theme) ensureDefaults() {
	if t.Primary == 0 {
		t.Primary = 0x5865F2
	}
	if t.Accent == 0 {
		t.Accent = t.Primary
	}
	if t.Info == 0 {
		t.Info = 0x3B82F6
	}
	if t.Success == 0 {
		t.Success = 0x57F287
	}
	if t.Warning == 0 {
		t.Warning = 0xF59E0B
	}
	if t.Error == 0 {
		t.Error = 0xED4245
	}
	if t.Muted == 0 {
		t.Muted = 0x99AAB5
	}

	if t.PanelHome == 0 {
		t.PanelHome = t.Primary
	}
	if t.PanelCategory == 0 {
		t.PanelCategory = t.Accent
	}
	if t.PanelSubView == 0 {
		t.PanelSubView = t.Info
	}
	if t.PanelEditor == 0 {
		t.PanelEditor = t.Warning
	}
	if t.PanelClosed == 0 {
		t.PanelClosed = t.Muted
	}
}

func defaultTheme() *Theme {
	th := &Theme{
		Name:    "default",
		Primary: 0x5865F2, // Discord blurple
		Accent:  0x7AA2F7,
	}
	th.ensureDefaults()
	return th
}

var (
	mu        sync.RWMutex
	registry  = map[string]*Theme{}
	currentTh = defaultTheme()
)

// Register adds a theme to the registry. It returns an error if the name is empty or already registered.
func Register(t *Theme) error {
	if t == nil {
		return fmt.Errorf("theme: cannot register nil theme")
	}
	if t.Name == "" {
		return fmt.Errorf("theme: name is required")
	}
	cp := t.Clone()
	cp.ensureDefaults()

	mu.Lock()
	defer mu.Unlock()
	if _, exists := registry[cp.Name]; exists {
		return fmt.Errorf("theme: theme %q already registered", cp.Name)
	}
	registry[cp.Name] = cp
	return nil
}

// MustRegister is like Register but panics on error.
func MustRegister(t *Theme) {
	if err := Register(t); err != nil {
		panic(err)
	}
}

// SetCurrent switches the active theme by name. An empty name restores the default.
func SetCurrent(name string) error {
	mu.Lock()
	defer mu.Unlock()
	if name == "" || name == "default" {
		currentTh = defaultTheme()
		return nil
	}
	th, ok := registry[name]
	if !ok {
		return fmt.Errorf("theme: theme %q not found", name)
	}
	currentTh = th.Clone()
	return nil
}

// Current returns a copy of the current theme.
func Current() *Theme {
	mu.RLock()
	defer mu.RUnlock()
	return currentTh.Clone()
}

func Primary() Color       { return Current().Primary }
func Info() Color          { return Current().Info }
func Success() Color       { return Current().Success }
func Warning() Color       { return Current().Warning }
func Error() Color         { return Current().Error }
func PanelHome() Color     { return Current().PanelHome }
func PanelCategory() Color { return Current().PanelCategory }
func PanelSubView() Color  { return Current().PanelSubView }
func PanelEditor() Color   { return Current().PanelEditor }
func PanelClosed() Color   { return Current().PanelClosed }
