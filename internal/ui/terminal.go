package ui

// Terminal prints operator messages and keeps status lines up to date. See
// termstatus.Terminal for the implementation.
type Terminal interface {
	// Print writes a line, a newline is appended if missing.
	Print(line string)
	// Error writes an error line, a newline is appended if missing.
	Error(line string)
	// SetStatus replaces the status lines.
	SetStatus(lines []string)
	// CanUpdateStatus reports whether status lines are updated in place.
	CanUpdateStatus() bool
}
