package core

import "time"

// ModeFlag is the minimum severity a message needs to be logged.
type ModeFlag uint

const (
	DebugMode ModeFlag = iota
	InfoMode
	WarningMode
	ErrorMode
	SilentMode
)

// mode is the minimum severity that will be logged by this process.
var mode = InfoMode

// Logger provides a way for the application to log messages at different severities.
type Logger interface {
	// Debugf formats its arguments analogous to fmt.Printf and records the text as a log
	// message at Debug level.
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warningf(format string, args ...interface{})
	Errorf(format string, args ...interface{})

	// Shutdown makes sure logs are closed.
	Shutdown()
}

// SetLogMode sets the severity required for a log message to be printed, e.g.,
// SetLogMode(core.WarningMode) drops Debugf and Infof messages.
func SetLogMode(newMode ModeFlag) {
	mode = newMode
}

// logAt sends a message to the logger method for its severity if the mode allows.
func logAt(level ModeFlag, format string, args []interface{}) {
	if level < mode {
		return
	}
	switch level {
	case DebugMode:
		logger.Debugf(format, args...)
	case InfoMode:
		logger.Infof(format, args...)
	case WarningMode:
		logger.Warningf(format, args...)
	default:
		logger.Errorf(format, args...)
	}
}

func Debugf(format string, args ...interface{})   { logAt(DebugMode, format, args) }
func Infof(format string, args ...interface{})    { logAt(InfoMode, format, args) }
func Warningf(format string, args ...interface{}) { logAt(WarningMode, format, args) }
func Errorf(format string, args ...interface{})   { logAt(ErrorMode, format, args) }

// Shutdown closes any log file opened through LogConfig.SetLogger.
func Shutdown() {
	logger.Shutdown()
}

// TimeLog appends the time elapsed since its creation to each message.
//
//	tlog := NewTimeLog()
//	...
//	tlog.Infof("Transcoded %d blocks", n)  // "Transcoded 12 blocks: 1.2s"
type TimeLog struct {
	start time.Time
}

func NewTimeLog() TimeLog {
	return TimeLog{time.Now()}
}

// Elapsed returns the time since the TimeLog was created.
func (t TimeLog) Elapsed() time.Duration {
	return time.Since(t.start)
}

func (t TimeLog) Infof(format string, args ...interface{}) {
	logAt(InfoMode, format+": %s\n", append(args, t.Elapsed()))
}

func (t TimeLog) Errorf(format string, args ...interface{}) {
	logAt(ErrorMode, format+": %s\n", append(args, t.Elapsed()))
}
