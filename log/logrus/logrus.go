// Package logrus adapts a logrus entry to the shellcache Logger.
package logrus

import (
	"github.com/sirupsen/logrus"

	"github.com/phyarch/shellcache"
)

type Logger struct{ E *logrus.Entry }

var _ shellcache.Logger = Logger{}

func (l Logger) Debug(msg string, f shellcache.Fields) {
	l.E.WithFields(logrus.Fields(f)).Debug(msg)
}
func (l Logger) Info(msg string, f shellcache.Fields) {
	l.E.WithFields(logrus.Fields(f)).Info(msg)
}
func (l Logger) Warn(msg string, f shellcache.Fields) {
	l.E.WithFields(logrus.Fields(f)).Warn(msg)
}
func (l Logger) Error(msg string, f shellcache.Fields) {
	l.E.WithFields(logrus.Fields(f)).Error(msg)
}
