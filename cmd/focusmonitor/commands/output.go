package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/bryanchriswhite/FocusMonitor/internal/window"
)

// focusEvent is the JSON line emitted per focus change.
type focusEvent struct {
	Time    time.Time      `json:"time"`
	Focused bool           `json:"focused"`
	Window  *window.Window `json:"window,omitempty"`
}

func printFocus(out io.Writer, format string, w *window.Window) error {
	switch format {
	case "json":
		return json.NewEncoder(out).Encode(focusEvent{
			Time:    time.Now(),
			Focused: w != nil,
			Window:  w,
		})
	case "text":
		if w == nil {
			_, err := fmt.Fprintln(out, "(no focused window)")
			return err
		}
		_, err := fmt.Fprintf(out, "%s\t%s\t%s\n", w.Class.Instance, w.Class.Class, w.Title)
		return err
	default:
		return fmt.Errorf("unsupported format: %s (use 'text' or 'json')", format)
	}
}

func validateFormat(format string) error {
	if format != "text" && format != "json" {
		return fmt.Errorf("unsupported format: %s (use 'text' or 'json')", format)
	}
	return nil
}
