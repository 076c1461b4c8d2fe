package logger

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"strings"
	"time"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var (
	currentLevel = LevelInfo
	logger       = stdlog.New(os.Stdout, "", 0)
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a level name to a Level. Unknown names map to INFO.
func ParseLevel(level string) Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return LevelDebug
	case "INFO":
		return LevelInfo
	case "WARN":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

func SetLevel(level string) {
	currentLevel = ParseLevel(level)
}

// SetOutput redirects log output. Used by tests and for file logging.
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}

// Log writes a message at an arbitrary level. Protocol dispatch uses this to
// log domain errors at the severity the backend attached to them.
func Log(level Level, format string, v ...any) {
	if level < currentLevel {
		return
	}

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	prefix := fmt.Sprintf("[%s] [%s] ", timestamp, level.String())
	message := fmt.Sprintf(format, v...)
	logger.Println(prefix + message)
}

func Debug(format string, v ...any) {
	Log(LevelDebug, format, v...)
}

func Info(format string, v ...any) {
	Log(LevelInfo, format, v...)
}

func Warn(format string, v ...any) {
	Log(LevelWarn, format, v...)
}

func Error(format string, v ...any) {
	Log(LevelError, format, v...)
}
