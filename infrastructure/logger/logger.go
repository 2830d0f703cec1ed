package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

var logger = log.New()

func init() {
	cwd, err := os.Getwd()
	if err != nil {
		log.Info("Failed get current working directory")
		log.Fatal(err)
	}
	env := os.Getenv("ENV")
	// Stdout by default; LOG_TO_FILE=true writes a dated file under ./logs instead.
	logger.Out = os.Stdout
	if os.Getenv("LOG_TO_FILE") == "true" {
		logsDir := filepath.Join(cwd, "logs")
		if mkErr := os.MkdirAll(logsDir, 0o755); mkErr != nil {
			log.Warnf("Failed to create logs directory %s: %v, falling back to stdout", logsDir, mkErr)
		} else {
			filePath := filepath.Join(logsDir, fmt.Sprintf("%s%s.log", time.Now().Format("2006-01-02"), env))
			f, openErr := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
			if openErr != nil {
				log.Warnf("Failed to open log file %s: %v, falling back to stdout", filePath, openErr)
			} else {
				logger.Out = f
			}
		}
	}

	logger.Formatter = &log.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
	}
	logger.SetLevel(log.DebugLevel)
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		SetLevel(lvl)
	}
}

// SetLevel changes the level of the shared logger. Unknown names are ignored.
func SetLevel(level string) {
	lvl, err := log.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		logger.WithField("level", level).Warn("unknown log level; keeping current")
		return
	}
	logger.SetLevel(lvl)
}

// GetLogger returns an entry carrying the caller's function, file and line.
func GetLogger() *log.Entry {
	function, file, line, _ := runtime.Caller(1)
	functionObject := runtime.FuncForPC(function)
	name := ""
	if functionObject != nil {
		name = functionObject.Name()
	}
	return logger.WithFields(log.Fields{
		"requestId": time.Now().UnixNano() / int64(time.Millisecond),
		"function":  name,
		"file":      file,
		"line":      line,
	})
}
