package migrate

import (
	"fmt"
	"os"
	"strings"

	"authgate.dev/internal/obs"
)

// gooseLogger routes goose progress output into the structured logger.
type gooseLogger struct{}

func (gooseLogger) Printf(format string, v ...any) {
	obs.Logger().Info(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "migrate")
}

func (gooseLogger) Fatalf(format string, v ...any) {
	obs.Logger().Error(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "migrate")
	os.Exit(1)
}
