package model

import "time"

// ThemeMode selects how the light/dark theme is chosen.
type ThemeMode string

const (
	ThemeAuto  ThemeMode = "auto"
	ThemeLight ThemeMode = "light"
	ThemeDark  ThemeMode = "dark"
)

// Theme is one entry of the fixed palette.
type Theme string

const (
	ThemeDefault   Theme = "default"
	ThemeSolarized Theme = "solarized"
	ThemeGruvbox   Theme = "gruvbox"
	ThemeDracula   Theme = "dracula"
	ThemeNord      Theme = "nord"
	ThemeMonokai   Theme = "monokai"
)

// TextSize is the reading text size.
type TextSize string

const (
	TextSmall      TextSize = "small"
	TextMedium     TextSize = "medium"
	TextLarge      TextSize = "large"
	TextExtraLarge TextSize = "extra-large"
)

// Browser is the default browser used to open links.
type Browser string

const (
	BrowserDefault Browser = "default"
	BrowserFirefox Browser = "firefox"
	BrowserChrome  Browser = "chrome"
	BrowserSafari  Browser = "safari"
	BrowserEdge    Browser = "edge"
)

// OpeningMethod is how a link is opened in the browser.
type OpeningMethod string

const (
	OpenBackground OpeningMethod = "background"
	OpenForeground OpeningMethod = "foreground"
)

// RefreshInterval is how often subscriptions are re-fetched.
type RefreshInterval string

const (
	Refresh15Minutes RefreshInterval = "15m"
	Refresh30Minutes RefreshInterval = "30m"
	Refresh1Hour     RefreshInterval = "1h"
	Refresh2Hours    RefreshInterval = "2h"
	Refresh3Hours    RefreshInterval = "3h"
	Refresh4Hours    RefreshInterval = "4h"
)

// Duration converts the interval to a time.Duration. Unknown values map to
// the shortest interval.
func (r RefreshInterval) Duration() time.Duration {
	d, err := time.ParseDuration(string(r))
	if err != nil {
		return 15 * time.Minute
	}
	return d
}

// Preferences is the user's display and refresh configuration.
type Preferences struct {
	ThemeMode       ThemeMode       `toml:"theme_mode" json:"theme_mode" validate:"oneof=auto light dark"`
	LightTheme      Theme           `toml:"light_theme" json:"light_theme" validate:"oneof=default solarized gruvbox dracula nord monokai"`
	DarkTheme       Theme           `toml:"dark_theme" json:"dark_theme" validate:"oneof=default solarized gruvbox dracula nord monokai"`
	TextSize        TextSize        `toml:"text_size" json:"text_size" validate:"oneof=small medium large extra-large"`
	Browser         Browser         `toml:"browser" json:"browser" validate:"oneof=default firefox chrome safari edge"`
	OpeningMethod   OpeningMethod   `toml:"opening_method" json:"opening_method" validate:"oneof=background foreground"`
	RefreshInterval RefreshInterval `toml:"refresh_interval" json:"refresh_interval" validate:"oneof=15m 30m 1h 2h 3h 4h"`
}

// DefaultPreferences returns the preferences used before any file is read.
func DefaultPreferences() Preferences {
	return Preferences{
		ThemeMode:       ThemeAuto,
		LightTheme:      ThemeDefault,
		DarkTheme:       ThemeDefault,
		TextSize:        TextMedium,
		Browser:         BrowserDefault,
		OpeningMethod:   OpenBackground,
		RefreshInterval: Refresh30Minutes,
	}
}
