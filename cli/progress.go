package cli

import (
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/shuntaka9576/ddbload/ui"
	"go.uber.org/zap"
)

type progressView struct {
	progress *ui.Progress
	exited   chan struct{}
}

// startProgress renders a spinner with counters to out until stop is called.
// When disabled only the counters are kept.
func startProgress(title string, total int, out io.Writer, disabled bool, logger *zap.Logger) *progressView {
	v := &progressView{
		progress: ui.NewProgress(total),
		exited:   make(chan struct{}),
	}
	if disabled {
		close(v.exited)
		return v
	}

	p := tea.NewProgram(ui.InitModel(&ui.Option{
		Title:    title,
		Progress: v.progress,
	}), tea.WithOutput(out))

	go func() {
		defer close(v.exited)
		if err := p.Start(); err != nil {
			logger.Warn("progress view stopped", zap.Error(err))
		}
	}()

	return v
}

func (v *progressView) add(processed, retried int) {
	v.progress.Add(processed, retried)
}

func (v *progressView) stop() {
	v.progress.Finish()
	<-v.exited
}
