// Package logutil bridges the logrus loggers used by the binaries into the
// logr.Logger interface the library packages accept.
package logutil

import (
	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/sirupsen/logrus"
)

// FromLogrus wraps a logrus logger as a logr.Logger. Verbosity levels map
// onto logrus debug: V(0) logs at info, V(1) and above at debug.
func FromLogrus(l *logrus.Logger) logr.Logger {
	return funcr.New(func(prefix, args string) {
		if prefix != "" {
			l.Infof("%s: %s", prefix, args)
			return
		}
		l.Info(args)
	}, funcr.Options{
		Verbosity: verbosityFor(l),
	})
}

func verbosityFor(l *logrus.Logger) int {
	if l.IsLevelEnabled(logrus.DebugLevel) {
		return 2
	}
	return 0
}
