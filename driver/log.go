package driver

import (
	"go.viam.com/freenect2/logging"
)

// LogLevel is the severity of a driver log message. Values match the driver's numbering.
type LogLevel int

// Driver log levels.
const (
	LogNone    LogLevel = 0
	LogError   LogLevel = 1
	LogWarning LogLevel = 2
	LogInfo    LogLevel = 3
	LogDebug   LogLevel = 4
)

func (l LogLevel) String() string {
	switch l {
	case LogNone:
		return "none"
	case LogError:
		return "error"
	case LogWarning:
		return "warning"
	case LogInfo:
		return "info"
	case LogDebug:
		return "debug"
	default:
		return "unknown"
	}
}

// LogSink receives driver log messages. It may be called from any goroutine or native thread.
type LogSink func(level LogLevel, message string)

// LoggerSink forwards driver messages to logger at the matching level.
func LoggerSink(logger logging.Logger) LogSink {
	return func(level LogLevel, message string) {
		switch level {
		case LogError:
			logger.Error(message)
		case LogWarning:
			logger.Warn(message)
		case LogInfo:
			logger.Info(message)
		case LogDebug:
			logger.Debug(message)
		case LogNone:
		}
	}
}

// LogLevelFor returns the most verbose driver level a logger at level would emit.
func LogLevelFor(level logging.Level) LogLevel {
	switch level {
	case logging.DEBUG:
		return LogDebug
	case logging.INFO:
		return LogInfo
	case logging.WARN:
		return LogWarning
	case logging.ERROR:
		return LogError
	}
	return LogInfo
}
