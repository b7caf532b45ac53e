package logging

import (
	"fmt"
	"path/filepath"
	"time"
)

// LogFilePath returns <logsDir>/<name>.<YYYYMMDD_HHMMSS>.log for a session
// that started at sessionStart.
func LogFilePath(logsDir, name string, sessionStart time.Time) string {
	return filepath.Join(
		logsDir,
		fmt.Sprintf("%s.%s.log", name, sessionStart.Format("20060102_150405")),
	)
}
