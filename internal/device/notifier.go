package device

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// ConsoleNotifier shows transient messages on the terminal.
type ConsoleNotifier struct {
	mu     sync.Mutex
	out    io.Writer
	logger *slog.Logger
}

func NewConsoleNotifier(out io.Writer, logger *slog.Logger) *ConsoleNotifier {
	return &ConsoleNotifier{out: out, logger: logger}
}

func (n *ConsoleNotifier) Notify(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.logger.Info("notification", "message", message)
	if _, err := fmt.Fprintf(n.out, "» %s\n", message); err != nil {
		n.logger.Warn("failed to write notification", "error", err)
	}
}
