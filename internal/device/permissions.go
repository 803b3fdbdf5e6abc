package device

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/i474232898/airquality/internal/common"
	"github.com/i474232898/airquality/internal/location"
)

// ParsePermissions converts a LOCATION_PERMISSIONS value into permissions.
// "all" grants every required permission; unknown names are skipped.
func ParsePermissions(value string) []location.Permission {
	var out []location.Permission
	for _, item := range common.SplitList(value) {
		if common.MatchesAny(item, "all") {
			return append([]location.Permission(nil), location.RequiredPermissions...)
		}
		for _, p := range location.RequiredPermissions {
			if common.MatchesAny(item, string(p)) {
				out = append(out, p)
			}
		}
	}
	return out
}

// ConsolePermissions is the terminal version of the runtime permission
// dialog. Grants survive for the life of the process.
type ConsolePermissions struct {
	mu       sync.Mutex
	granted  map[location.Permission]bool
	prompter *Prompter
	logger   *slog.Logger
}

func NewConsolePermissions(preGranted []location.Permission, prompter *Prompter, logger *slog.Logger) *ConsolePermissions {
	granted := make(map[location.Permission]bool, len(preGranted))
	for _, p := range preGranted {
		granted[p] = true
	}
	return &ConsolePermissions{granted: granted, prompter: prompter, logger: logger}
}

func (c *ConsolePermissions) CheckPermission(p location.Permission) location.Grant {
	c.mu.Lock()
	defer c.mu.Unlock()
	return location.Grant(c.granted[p])
}

// RequestPermissions prompts for every id that is not yet granted and reports
// the whole batch once. It never blocks the caller.
func (c *ConsolePermissions) RequestPermissions(ids []location.Permission, done func(map[location.Permission]location.Grant)) {
	go func() {
		answers := make(map[location.Permission]location.Grant, len(ids))
		for _, id := range ids {
			if c.CheckPermission(id) == location.Granted {
				answers[id] = location.Granted
				continue
			}

			ok := c.prompter.Confirm(fmt.Sprintf("Allow airquality to use %s?", id))
			answers[id] = location.Grant(ok)
			if ok {
				c.mu.Lock()
				c.granted[id] = true
				c.mu.Unlock()
			}
		}
		c.logger.Debug("permission request answered", "answers", answers)
		done(answers)
	}()
}
