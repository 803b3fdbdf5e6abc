package device

import (
	"fmt"
	"log/slog"

	"github.com/joho/godotenv"
)

// EnvSettings plays the system location-settings screen. Enabling location
// means editing the env file, which is reloaded when the user comes back.
type EnvSettings struct {
	prompter *Prompter
	envFile  string
	logger   *slog.Logger
}

func NewEnvSettings(prompter *Prompter, envFile string, logger *slog.Logger) *EnvSettings {
	return &EnvSettings{prompter: prompter, envFile: envFile, logger: logger}
}

func (s *EnvSettings) Confirm(done func(accepted bool)) {
	go func() {
		done(s.prompter.Confirm("Location services are off. Open location settings?"))
	}()
}

func (s *EnvSettings) Launch(done func()) {
	go func() {
		msg := "Set LOCATION_GPS_ENABLED or LOCATION_NETWORK_ENABLED to true"
		if s.envFile != "" {
			msg += " in " + s.envFile
		}
		if _, err := s.prompter.Ask(fmt.Sprintf("%s, then press Enter.", msg)); err != nil {
			s.logger.Debug("settings screen closed without input", "error", err)
		}

		if s.envFile != "" {
			if err := godotenv.Overload(s.envFile); err != nil {
				s.logger.Warn("failed to reload settings", "file", s.envFile, "error", err)
			}
		}
		done()
	}()
}
