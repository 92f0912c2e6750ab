package quiccore

import "github.com/qcore-go/qcore/internal/utils"

// Logger is the diagnostic sink a session reports to; it mirrors
// internal/utils.Logger so application code never needs that package's
// import path, matching QUICCORE_LOG_LEVEL's env-driven default when nil.
type Logger = utils.Logger

// DefaultLogger returns the leveled stdlib-backed logger configured by
// the QUICCORE_LOG_LEVEL environment variable.
func DefaultLogger() Logger {
	return utils.DefaultLogger{}
}
