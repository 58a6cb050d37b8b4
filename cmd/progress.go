package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"devenv/internal/cache"
	"devenv/internal/errs"
)

// newProgressPrinter returns a cache progress callback that redraws a single
// status line on w. It prints at most once per whole percent.
func newProgressPrinter(w io.Writer) cache.ProgressFunc {
	c := color.New(color.FgCyan)
	last := -1
	return func(written, total int64) {
		if total <= 0 {
			// Unknown length: redraw once per MiB.
			if mib := int(written >> 20); mib != last {
				last = mib
				c.Fprintf(w, "\r  %s downloaded", humanBytes(written))
			}
			return
		}
		pct := int(written * 100 / total)
		if pct == last {
			return
		}
		last = pct
		c.Fprintf(w, "\r  %3d%% %s / %s", pct, humanBytes(written), humanBytes(total))
		if written >= total {
			fmt.Fprintln(w)
			last = -1
		}
	}
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// confirm asks a yes/no question on out and reads the answer from in.
// Anything but an explicit yes is a decline.
func confirm(in io.Reader, out io.Writer, question string) error {
	color.New(color.FgYellow).Fprintf(out, "%s [y/N]: ", question)
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && answer == "" {
		return errs.ErrCancelled
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return nil
	}
	return errs.ErrCancelled
}
