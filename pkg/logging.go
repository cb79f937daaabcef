package lineage

import (
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger logs to stderr, or to a rotating file when Log.Path is set.
func NewLogger(conf Config) *log.Logger {
	if conf.Log.Path == "" {
		return log.New(os.Stderr, "", log.LstdFlags)
	}
	return log.New(&lumberjack.Logger{
		Filename:   conf.Log.Path,
		MaxSize:    conf.Log.MaxSizeMB,
		MaxBackups: conf.Log.MaxBackups,
		Compress:   conf.Log.Compress,
	}, "", log.Ldate|log.Ltime|log.Lmicroseconds)
}
