package tui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"gitlab.com/tinyland/lab/ace-dash/pkg/dashboard"
)

// Source is a dashboard as seen by the front-end.
type Source interface {
	Controller
	Frame() dashboard.Frame
	Subscribe(fn func(dashboard.Frame)) func()
}

var _ Source = (*dashboard.Dashboard)(nil)

// Run draws src full-screen until the user quits or ctx is cancelled.
func Run(ctx context.Context, src Source) error {
	frames := make(chan dashboard.Frame, 1)
	unsubscribe := src.Subscribe(func(f dashboard.Frame) { offer(frames, f) })
	defer unsubscribe()

	p := tea.NewProgram(New(src, src.Frame(), frames),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// offer puts f on ch, replacing a frame the UI has not picked up yet.
// It never blocks the render goroutine.
func offer(ch chan dashboard.Frame, f dashboard.Frame) {
	for {
		select {
		case ch <- f:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
