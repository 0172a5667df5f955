package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
	"gopkg.in/natefinch/lumberjack.v2"

	"assetstore/internal/models"
)

// Setup configures the global logrus logger from cfg. The returned closer
// flushes the log file, if one is configured.
func Setup(cfg *models.Config) (io.Closer, error) {
	level, err := log.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		return nil, fmt.Errorf("logging.Setup: %w", err)
	}
	log.SetLevel(level)
	log.SetFormatter(formatter(cfg.LogFormat))

	if cfg.LogFile == "" {
		log.SetOutput(os.Stdout)
		return nopCloser{}, nil
	}

	file := &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    10, // megabytes
		MaxBackups: 5,
		MaxAge:     28, // days
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stdout, file))
	return file, nil
}

func formatter(format string) log.Formatter {
	if strings.EqualFold(format, "json") {
		return &log.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"}
	}
	return &prefixed.TextFormatter{
		DisableColors:   true,
		TimestampFormat: "2006-01-02 15:04:05",
		FullTimestamp:   true,
		ForceFormatting: true,
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
