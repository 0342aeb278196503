// Package ui renders daemon events as human-readable progress lines.
package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/spall-labs/spall/internal/bus"
)

// Renderer prints daemon events to a writer, colored when the writer is
// a terminal.
type Renderer struct {
	w      io.Writer
	styles Styles
}

// NewRenderer builds a renderer for w. Color is enabled only when w is a
// real terminal.
func NewRenderer(w io.Writer) *Renderer {
	noColor := true
	if f, ok := w.(*os.File); ok {
		noColor = !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd())
	}
	return &Renderer{w: w, styles: GetStyles(noColor)}
}

// Event renders one daemon event. Unknown or purely internal event types
// are silently skipped.
func (r *Renderer) Event(ev bus.Event) {
	s := r.styles
	switch ev.Type {
	case bus.TypeStoreCreate:
		r.printf("%s %s\n", s.Stage.Render("store"), s.Label.Render("creating "+ev.Path))
	case bus.TypeModelDownload:
		r.printf("%s %s\n", s.Stage.Render("model"), s.Label.Render("downloading "+modelName(ev)))
	case bus.TypeModelProgress:
		if ev.Total > 0 {
			pct := float64(ev.Downloaded) / float64(ev.Total) * 100
			r.printf("%s %s %s\r", s.Stage.Render("model"), s.Progress.Render(fmt.Sprintf("%5.1f%%", pct)), s.Label.Render(modelName(ev)))
		}
	case bus.TypeModelDownloaded:
		r.printf("%s %s\n", s.Stage.Render("model"), s.Success.Render("downloaded "+modelName(ev)))
	case bus.TypeModelLoad:
		r.printf("%s %s\n", s.Stage.Render("model"), s.Label.Render("loaded "+modelName(ev)))
	case bus.TypeScanStart:
		r.printf("%s %s\n", s.Stage.Render("scan"), s.Label.Render(fmt.Sprintf("%d files", ev.NumFiles)))
	case bus.TypeScanProgress:
		if ev.Status != bus.StatusOK {
			r.printf("%s %s %s\n", s.Stage.Render("scan"), s.Progress.Render(ev.Status), ev.Path)
		}
	case bus.TypeScanDone:
		r.printf("%s %s\n", s.Stage.Render("scan"), s.Success.Render(fmt.Sprintf("done (%d files)", ev.NumFiles)))
	case bus.TypeEmbedStart:
		r.printf("%s %s\n", s.Stage.Render("embed"), s.Label.Render(fmt.Sprintf("%d files, %d chunks", ev.NumFiles, ev.NumChunks)))
	case bus.TypeEmbedProgress:
		r.printf("%s %s\r", s.Stage.Render("embed"), s.Progress.Render(fmt.Sprintf("%d/%d files", ev.NumFilesProcessed, ev.NumFiles)))
	case bus.TypeEmbedDone:
		r.printf("%s %s\n", s.Stage.Render("embed"), s.Success.Render(fmt.Sprintf("done (%d files)", ev.NumFiles)))
	case bus.TypeError:
		msg := "unknown error"
		if ev.Error != nil {
			msg = ev.Error.Message
		}
		r.printf("%s %s\n", s.Error.Render("error"), msg)
	}
}

// Errorf prints a styled error line.
func (r *Renderer) Errorf(format string, args ...any) {
	r.printf("%s %s\n", r.styles.Error.Render("error"), fmt.Sprintf(format, args...))
}

// Successf prints a styled success line.
func (r *Renderer) Successf(format string, args ...any) {
	r.printf("%s\n", r.styles.Success.Render(fmt.Sprintf(format, args...)))
}

func (r *Renderer) printf(format string, args ...any) {
	fmt.Fprintf(r.w, format, args...)
}

func modelName(ev bus.Event) string {
	if m := ev.ModelPayload(); m != nil && m.Name != "" {
		return m.Name
	}
	return "model"
}
