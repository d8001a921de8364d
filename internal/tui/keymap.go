package tui

// Key binding constants used in handleKey.
const (
	KeyQuit     = "q"
	KeyCtrlC    = "ctrl+c"
	KeySearch   = "/"
	KeyEsc      = "esc"
	KeyEnter    = "enter"
	KeyUp       = "up"
	KeyDown     = "down"
	KeyJ        = "j"
	KeyK        = "k"
	KeyTab      = "tab"
	KeyNew      = "n"
	KeyGenerate = "g"
	KeyRefresh  = "r"
	KeyBack     = "backspace"
)
