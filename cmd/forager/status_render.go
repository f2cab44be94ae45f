package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"forager/internal/evidence"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 20
	statusIndent     = "  "
)

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	status := "[" + statusKindLabel(kind) + "]"
	if message != "" {
		status += " " + message
	}
	line := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", status)
	if colorize {
		return statusKindColor(kind) + line + ansiReset
	}
	return line
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	default:
		return ansiBlue
	}
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

// runStatusKind maps a run marker to the severity shown next to it.
func runStatusKind(marker evidence.RunMarker) statusKind {
	switch marker.Status {
	case evidence.RunCompleted:
		if marker.Warnings > 0 {
			return statusWarn
		}
		return statusOK
	case evidence.RunFailed:
		return statusError
	default:
		return statusInfo
	}
}

func runStatusMessage(marker evidence.RunMarker) string {
	switch marker.Status {
	case evidence.RunNone:
		return "never run"
	case evidence.RunCompleted:
		msg := "completed " + formatTime(marker.FinishedAt)
		if marker.Warnings > 0 {
			msg += fmt.Sprintf(" with %d warning(s)", marker.Warnings)
		}
		return msg
	case evidence.RunFailed:
		return "failed: " + marker.Error
	default:
		return string(marker.Status) + " since " + formatTime(marker.StartedAt)
	}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
