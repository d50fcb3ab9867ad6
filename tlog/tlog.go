// Package tlog configures zap loggers and carries them in contexts.
package tlog

import (
	"fmt"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
	"time"
)

// Format is the logging format
type Format string

// Format values
const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Color is the coloring setting for text format
type Color string

// Color values
const (
	ColorAuto Color = ""
	ColorYes  Color = "yes"
	ColorNo   Color = "no"
)

// Config is the configuration for creating a top-level logger
type Config struct {
	Name    string // top-level logger name (optional)
	Format  Format
	Color   Color
	Verbose bool // enable messages at Debug level
}

func iso8601MicroTimeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Format("2006-01-02T15:04:05.000000Z0700"))
}

// DefaultEncoderConfig is the zap.EncoderConfig used for top-level loggers
var DefaultEncoderConfig = func() zapcore.EncoderConfig {
	ec := zap.NewProductionEncoderConfig()
	ec.EncodeTime = iso8601MicroTimeEncoder
	return ec
}()

// New creates a top-level logger
func New(config Config) *zap.Logger {
	encoderName := "console"
	encoderConfig := DefaultEncoderConfig
	development := true

	switch config.Format {
	case FormatJSON:
		encoderName = "json"
		development = false
	case FormatText:
		color := false
		switch config.Color {
		case ColorYes:
			color = true
		case ColorNo:
		case ColorAuto:
			color = term.IsTerminal(unix.Stdout)
		default:
			panic(fmt.Errorf("unexpected --log-color value: %s", config.Color))
		}
		if color {
			encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		} else {
			encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		}
	default:
		panic(fmt.Errorf("unexpected --log-format value: %s", config.Format))
	}

	level := zapcore.InfoLevel
	if config.Verbose {
		level = zapcore.DebugLevel
	}

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      development,
		Encoding:         encoderName,
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	if config.Name != "" {
		logger = logger.Named(config.Name)
	}
	return logger
}

// NewForTesting creates a verbose logger for use in unit tests
func NewForTesting(t *testing.T) *zap.Logger {
	return New(Config{
		Name:    t.Name(),
		Format:  FormatText,
		Color:   ColorAuto,
		Verbose: true,
	})
}
