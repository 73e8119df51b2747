package watchtui

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/agusx1211/usagebar/internal/debug"
)

// MinInterval is the shortest refresh interval the watch view accepts.
const MinInterval = 10 * time.Second

// Run launches the watch view and blocks until the user quits or ctx ends.
func Run(ctx context.Context, fetch FetchFunc, interval time.Duration, color bool) error {
	if fetch == nil {
		return fmt.Errorf("watch: no usage source")
	}
	if interval < MinInterval {
		interval = MinInterval
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := NewModel(ctx, fetch, interval, color)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	debug.LogKV("watchtui", "starting", "interval", interval)
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
