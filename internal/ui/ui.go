// Package ui describes the storefront shell the web client renders: locale,
// color mode, theme color roles and the brand palette.
package ui

type Config struct {
	Lang       string             `json:"lang"`
	Charset    string             `json:"charset"`
	Viewport   string             `json:"viewport"`
	Icon       string             `json:"icon"`
	ColorMode  string             `json:"color_mode"`
	Colors     []string           `json:"colors"`
	FontFamily []string           `json:"font_family"`
	Palettes   map[string]Palette `json:"palettes"`
}

// Palette maps a shade step (50, 100, ... 950) to a hex color.
type Palette map[int]string

// Shades are the steps every palette defines.
var Shades = []int{50, 100, 200, 300, 400, 500, 600, 700, 800, 900, 950}

var customSecondary = Palette{
	50:  "#C1FCFC",
	100: "#AEFBFB",
	200: "#87F8F8",
	300: "#60F6F6",
	400: "#3AF4F4",
	500: "#13F2F2",
	600: "#0BC2C2",
	700: "#088D8D",
	800: "#055858",
	900: "#022323",
	950: "#000808",
}

// Default returns the storefront shell configuration. Each call returns a
// fresh copy.
func Default() Config {
	palette := make(Palette, len(customSecondary))
	for k, v := range customSecondary {
		palette[k] = v
	}
	return Config{
		Lang:       "pt-BR",
		Charset:    "utf-16",
		Viewport:   "width=device-width, initial-scale=1, maximum-scale=1",
		Icon:       "assets/images/logo.png",
		ColorMode:  "dark",
		Colors:     []string{"primary", "secondary", "neutral", "success", "info", "warning", "error"},
		FontFamily: []string{"Versatylo"},
		Palettes:   map[string]Palette{"customSecondary": palette},
	}
}
