package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/starford/tessera/internal/editor"
	"github.com/starford/tessera/internal/notify"
)

// Run takes over the terminal until the user quits or ctx ends.
func Run(ctx context.Context, ed *editor.Editor, center *notify.Center, opts ...Option) error {
	p := tea.NewProgram(
		New(ed, center, opts...),
		tea.WithAltScreen(),
		tea.WithMouseAllMotion(),
		tea.WithContext(ctx),
	)
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}
