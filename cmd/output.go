package cmd

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/jcdickinson/rbxdocs/internal/rpc"
	"github.com/mattn/go-isatty"
)

var (
	titleColor    = color.New(color.Bold)
	subtitleColor = color.New(color.Faint)
	urlColor      = color.New(color.FgCyan)
	warnColor     = color.New(color.FgYellow)
	okColor       = color.New(color.FgGreen)
)

// setupColor enables color only for terminals, honouring --no-color and NO_COLOR.
func setupColor(disabled bool) {
	fd := os.Stdout.Fd()
	tty := isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	color.NoColor = disabled || os.Getenv("NO_COLOR") != "" || !tty
}

func printResults(w io.Writer, results []rpc.Result) {
	if len(results) == 0 {
		fmt.Fprintln(w, "no results")
		return
	}
	width := len(fmt.Sprint(len(results)))
	indent := strings.Repeat(" ", width+2)
	for i, r := range results {
		title := r.Title
		if slices.Contains(r.Tags, "Deprecated") {
			title = warnColor.Sprint(title)
		} else {
			title = titleColor.Sprint(title)
		}
		fmt.Fprintf(w, "%*d. %s %s\n", width, i+1, title, subtitleColor.Sprint(r.Subtitle))
		if r.URL != "" {
			fmt.Fprintf(w, "%s%s\n", indent, urlColor.Sprint(r.URL))
		}
	}
}

func printStatus(w io.Writer, st *rpc.StatusResponse) {
	switch {
	case st.Loaded:
		fmt.Fprintf(w, "%s %s: %d APIs (%d deprecated), %d data types\n",
			okColor.Sprint("loaded"), st.Version, st.Active+st.Deprecated, st.Deprecated, st.DataTypes)
		if st.BuiltAt != nil {
			fmt.Fprintf(w, "built at %s\n", st.BuiltAt.Local().Format("2006-01-02 15:04:05"))
		}
	case st.Building:
		fmt.Fprintln(w, warnColor.Sprint("loading..."))
	default:
		fmt.Fprintln(w, warnColor.Sprint("not loaded"))
	}
	if !st.Loaded && st.LastSuccess != nil {
		fmt.Fprintf(w, "last successful build: %s at %s\n",
			st.LastSuccess.Version, st.LastSuccess.Finished.Local().Format("2006-01-02 15:04:05"))
	}
	if st.Loaded && st.Building {
		fmt.Fprintln(w, "reload in progress")
	}
	if st.LastError != "" {
		fmt.Fprintf(w, "last build failed: %s\n", warnColor.Sprint(st.LastError))
	}

	if len(st.History) == 0 {
		return
	}
	fmt.Fprintln(w, "\nrecent builds:")
	for _, b := range st.History {
		outcome := okColor.Sprint("ok")
		if b.Error != "" {
			outcome = warnColor.Sprint("failed")
		}
		fmt.Fprintf(w, "  %s  %-6s %-26s %s\n",
			b.Finished.Local().Format("2006-01-02 15:04"), outcome, b.Version,
			b.Finished.Sub(b.Started).Round(100*time.Millisecond))
	}
}
