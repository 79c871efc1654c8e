package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"

	"github.com/mensylisir/xmsudo/common"
)

// Log is the global logger. It starts as a warn-level console logger so
// packages can log before InitGlobalLogger runs.
var Log = newConsoleLog(os.Stderr, logrus.WarnLevel, false)

// XMLog wraps logrus.Logger with helpers for the fields this module uses.
type XMLog struct {
	*logrus.Logger
}

var defaultFieldsOrder = []string{
	common.TargetName, common.CommandName, common.AttemptID,
}

func consoleFormatter(verbose bool) *Formatter {
	display := ShowAboveWarn
	if verbose {
		display = ShowAll
	}
	return &Formatter{
		TimestampFormat:        "15:04:05",
		DisplayLevelName:       display,
		DisableCaller:          true,
		FieldsDisplayWithOrder: defaultFieldsOrder,
	}
}

func fileFormatter(verbose bool) *Formatter {
	display := ShowAboveWarn
	if verbose {
		display = ShowAll
	}
	return &Formatter{
		TimestampFormat:        "2006-01-02 15:04:05.000 MST",
		NoColors:               true,
		DisplayLevelName:       display,
		FieldsDisplayWithOrder: defaultFieldsOrder,
		CustomCallerFormatter: func(frame *runtime.Frame) string {
			return fmt.Sprintf("[%s:%d %s]", filepath.Base(frame.File), frame.Line, filepath.Base(frame.Function))
		},
	}
}

func newConsoleLog(out io.Writer, level logrus.Level, verbose bool) *XMLog {
	l := logrus.New()
	l.SetLevel(level)
	l.SetOutput(out)
	l.SetFormatter(consoleFormatter(verbose))
	return &XMLog{Logger: l}
}

// NewXMLog builds a logger. With an empty outputPath it writes to stderr,
// otherwise to a daily rotated file under outputPath.
func NewXMLog(outputPath string, verbose bool, defaultLevel logrus.Level) (*XMLog, error) {
	level := defaultLevel
	if verbose {
		level = logrus.DebugLevel
	}

	if outputPath == "" {
		return newConsoleLog(os.Stderr, level, verbose), nil
	}

	if err := os.MkdirAll(outputPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log output directory %s: %w", outputPath, err)
	}
	logFilePath := filepath.Join(outputPath, common.AppName+".log")
	writer, err := rotatelogs.New(
		logFilePath+".%Y%m%d",
		rotatelogs.WithLinkName(logFilePath),
		rotatelogs.WithMaxAge(7*24*time.Hour),
		rotatelogs.WithRotationTime(24*time.Hour),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize rotatelogs for %s: %w", logFilePath, err)
	}

	l := logrus.New()
	l.SetLevel(level)
	l.SetReportCaller(true)
	formatter := fileFormatter(verbose)
	l.SetFormatter(formatter)

	writers := lfshook.WriterMap{}
	for _, lvl := range logrus.AllLevels {
		if l.IsLevelEnabled(lvl) {
			writers[lvl] = writer
		}
	}
	l.Hooks.Add(lfshook.NewHook(writers, formatter))
	// the hook owns file output
	l.SetOutput(io.Discard)

	return &XMLog{Logger: l}, nil
}

// InitGlobalLogger replaces Log.
func InitGlobalLogger(outputPath string, verbose bool, defaultLevel logrus.Level) error {
	l, err := NewXMLog(outputPath, verbose, defaultLevel)
	if err != nil {
		return err
	}
	Log = l
	return nil
}

func (xl *XMLog) entry(fixed logrus.Fields, dynamic []logrus.Fields) *logrus.Entry {
	e := xl.Logger.WithFields(fixed)
	if len(dynamic) > 0 && dynamic[0] != nil {
		e = e.WithFields(dynamic[0])
	}
	return e
}

// ForAttempt returns an entry carrying the target, command and attempt
// fields. All log lines of one started authentication attempt go through it.
func (xl *XMLog) ForAttempt(target, attemptID, command string) *logrus.Entry {
	return xl.Logger.WithFields(logrus.Fields{
		common.TargetName:  target,
		common.CommandName: command,
		common.AttemptID:   attemptID,
	})
}

func (xl *XMLog) DebugTarget(target string, message string, dynamicFields ...logrus.Fields) {
	xl.entry(logrus.Fields{common.TargetName: target}, dynamicFields).Debug(message)
}

func (xl *XMLog) InfoTarget(target string, message string, dynamicFields ...logrus.Fields) {
	xl.entry(logrus.Fields{common.TargetName: target}, dynamicFields).Info(message)
}

func (xl *XMLog) WarnTarget(target string, message string, dynamicFields ...logrus.Fields) {
	xl.entry(logrus.Fields{common.TargetName: target}, dynamicFields).Warn(message)
}

func (xl *XMLog) ErrorTarget(target string, err error, message string, dynamicFields ...logrus.Fields) {
	fixed := logrus.Fields{common.TargetName: target}
	if err != nil {
		fixed[logrus.ErrorKey] = err
	}
	xl.entry(fixed, dynamicFields).Error(message)
}
