// Package color holds the palette for operator-facing output.
//
// Styles use adaptive colors, so they render correctly on dark and light
// terminals. NO_COLOR and non-color terminals are honoured by lipgloss's
// renderer detection; nothing here needs to special-case them.
package color
