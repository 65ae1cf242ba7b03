package logging

import (
	"github.com/PelionIoT/wigwag-go-logger/logging"
)

var Log = logging.Log

func SetLoggingLevel(ll string) {
	logging.SetLoggingLevel(ll)
}

func LogLevelIsValid(ll string) bool {
	return logging.LogLevelIsValid(ll)
}
