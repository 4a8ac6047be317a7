package logger

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// NewLogger builds the engine logger: JSON formatter, async file output
// under logs/, console mirroring through a hook. The component name picks
// the log file so embedded and admin usage do not interleave.
func NewLogger(component string) *logrus.Logger {
	logger := logrus.New()

	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime: "time",
			logrus.FieldKeyMsg:  "msg",
		},
	})

	if os.Getenv("LOG_LEVEL") == "debug" {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	if component == "" {
		component = "engine"
	}
	logFile := filepath.Clean(filepath.Join("logs", component+".log"))
	if !strings.HasPrefix(logFile, "logs"+string(filepath.Separator)) {
		log.Fatalf("invalid log file path: must be in logs directory")
	}

	if err := os.MkdirAll("logs", 0750); err != nil {
		log.Fatalf("failed to create logs directory: %v", err)
	}

	asyncWriter, err := NewAsyncFileWriter(logFile, 32*1024)
	if err != nil {
		log.Fatalf("failed to initialize async log writer: %v", err)
	}
	logger.SetOutput(asyncWriter)

	logger.AddHook(NewConsoleHook())

	return logger
}

// NewTestLogger returns a quiet logger for tests.
func NewTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.PanicLevel)
	return logger
}
