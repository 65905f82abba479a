package tui

import (
	"context"
	"os"

	tea "charm.land/bubbletea/v2"
	"golang.org/x/term"
)

func termSizeOpts() []tea.ProgramOption {
	var opts []tea.ProgramOption
	for _, fd := range []int{int(os.Stdout.Fd()), int(os.Stdin.Fd()), int(os.Stderr.Fd())} {
		if term.IsTerminal(fd) {
			w, h, err := term.GetSize(fd)
			if err == nil && w > 0 && h > 0 {
				opts = append(opts, tea.WithWindowSize(w, h))
				break
			}
		}
	}
	return opts
}

// TerminalSize returns the size of the controlling terminal, or 80x24 when
// there is none.
func TerminalSize() (width, height int) {
	for _, fd := range []int{int(os.Stdout.Fd()), int(os.Stdin.Fd()), int(os.Stderr.Fd())} {
		if term.IsTerminal(fd) {
			if w, h, err := term.GetSize(fd); err == nil && w > 0 && h > 0 {
				return w, h
			}
		}
	}
	return 80, 24
}

// Run shows the viewer until the user quits or ctx is cancelled.
func Run(ctx context.Context, drv Driver, opts Options) error {
	model := NewModel(drv, opts)
	p := tea.NewProgram(model, append(termSizeOpts(), tea.WithContext(ctx))...)
	_, err := p.Run()
	return err
}
