package telemetry

import (
	"log/slog"

	"github.com/wraithscan/wraithscan/pkg/scan"
)

// LogProgress returns a progress callback that mirrors every update
// into structured logs. Updates carrying an error log at Warn so a
// failing phase stands out before the final report lands.
func LogProgress(logger *slog.Logger) func(scan.Progress) {
	if logger == nil {
		logger = slog.Default()
	}
	return func(p scan.Progress) {
		args := []any{
			slog.String("run_id", p.RunID),
			slog.String("target", p.Target),
			slog.String("phase", string(p.Phase)),
			slog.Int("percent", p.Percent),
		}
		if p.Err != nil {
			args = append(args, slog.String("error", p.Err.Error()))
			logger.Warn(p.Message, args...)
			return
		}
		logger.Info(p.Message, args...)
	}
}
