package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"flulance/internal/services/dto"

	"golang.org/x/term"
)

const (
	ansiBold  = "\x1b[1m"
	ansiDim   = "\x1b[2m"
	ansiReset = "\x1b[0m"
)

func writeJSON(w io.Writer, payload any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

func writePlain(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}

// useColor reports whether w is an interactive terminal.
func useColor(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || os.Getenv("NO_COLOR") != "" {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

type printer struct {
	w     io.Writer
	color bool
	me    string
}

func newPrinter(w io.Writer, me string) *printer {
	return &printer{w: w, color: useColor(w), me: me}
}

func (p *printer) style(code, s string) string {
	if !p.color {
		return s
	}
	return code + s + ansiReset
}

func (p *printer) message(m *dto.MessageResponse) error {
	who := m.SenderID
	if p.me != "" && m.SenderID == p.me {
		who = "me"
	}
	line := fmt.Sprintf("%s %s: %s", p.style(ansiDim, formatTime(m.CreatedAt)), p.style(ansiBold, who), m.Text)
	if a := m.Attachment; a != nil {
		line += fmt.Sprintf(" [%s %s, %s] %s", a.Kind, a.FileName, formatSize(a.Size), a.URL)
	}
	if m.IsRead {
		line += p.style(ansiDim, " (read)")
	}
	return writePlain(p.w, "%s\n", line)
}

func (p *printer) notification(n *dto.NotificationResponse) error {
	marker := " "
	if !n.IsRead {
		marker = p.style(ansiBold, "*")
	}
	line := fmt.Sprintf("%s %s %s %s", marker, p.style(ansiDim, formatTime(n.CreatedAt)), n.ID, n.Title)
	if n.Body != "" {
		line += ": " + n.Body
	}
	if n.Link != nil {
		line += " " + p.style(ansiDim, *n.Link)
	}
	return writePlain(p.w, "%s\n", line)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func formatSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
