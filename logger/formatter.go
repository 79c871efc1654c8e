package logger

import (
	"bytes"
	"fmt"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	defaultFieldSeparator  = " | "
	defaultTimestampFormat = time.RFC3339
)

// Formatter implements logrus.Formatter with a compact single-line layout:
//
//	<time> [LEVEL] [k1:v1 | k2:v2] message (file:line func)
type Formatter struct {
	TimestampFormat  string
	DisableTimestamp bool
	NoColors         bool
	ForceColors      bool

	DisplayLevelName LevelNameDisplayMode
	// ShowFullLevel prints "WARNING" instead of "WARN".
	ShowFullLevel bool

	// HideKeys prints only field values.
	HideKeys bool
	// FieldsDisplayWithOrder lists keys printed first, in order. Remaining
	// fields follow alphabetically.
	FieldsDisplayWithOrder []string
	FieldSeparator         string
	// MaxFieldValueLength truncates longer values. 0 disables truncation.
	MaxFieldValueLength int

	DisableCaller         bool
	CustomCallerFormatter func(*runtime.Frame) string
}

// LevelNameDisplayMode controls which entries print their level name.
type LevelNameDisplayMode int

const (
	ShowAll LevelNameDisplayMode = iota
	ShowAboveWarn
	ShowAboveError
	HideAll
)

const (
	colorRed    = 31
	colorYellow = 33
	colorBlue   = 36
	colorGray   = 37
)

func (f *Formatter) Format(entry *logrus.Entry) ([]byte, error) {
	b := &bytes.Buffer{}

	if !f.DisableTimestamp {
		layout := f.TimestampFormat
		if layout == "" {
			layout = defaultTimestampFormat
		}
		b.WriteString(entry.Time.Format(layout))
		b.WriteByte(' ')
	}

	if f.showLevel(entry.Level) {
		f.writeLevel(b, entry.Level)
		b.WriteByte(' ')
	}

	if len(entry.Data) > 0 {
		b.WriteByte('[')
		f.writeFields(b, entry.Data)
		b.WriteString("] ")
	}

	b.WriteString(entry.Message)

	if !f.DisableCaller && entry.HasCaller() {
		b.WriteByte(' ')
		f.writeCaller(b, entry.Caller)
	}

	b.WriteByte('\n')
	return b.Bytes(), nil
}

func (f *Formatter) showLevel(level logrus.Level) bool {
	switch f.DisplayLevelName {
	case ShowAll:
		return true
	case ShowAboveWarn:
		return level <= logrus.WarnLevel
	case ShowAboveError:
		return level <= logrus.ErrorLevel
	default:
		return false
	}
}

func (f *Formatter) writeLevel(b *bytes.Buffer, level logrus.Level) {
	name := strings.ToUpper(level.String())
	if !f.ShowFullLevel && len(name) > 4 {
		name = name[:4]
	}
	if f.ForceColors || !f.NoColors {
		fmt.Fprintf(b, "\x1b[%dm[%s]\x1b[0m", levelColor(level), name)
		return
	}
	fmt.Fprintf(b, "[%s]", name)
}

func (f *Formatter) writeFields(b *bytes.Buffer, data logrus.Fields) {
	sep := f.FieldSeparator
	if sep == "" {
		sep = defaultFieldSeparator
	}

	seen := make(map[string]bool, len(f.FieldsDisplayWithOrder))
	keys := make([]string, 0, len(data))
	for _, k := range f.FieldsDisplayWithOrder {
		if _, ok := data[k]; ok && !seen[k] {
			keys = append(keys, k)
			seen[k] = true
		}
	}
	rest := make([]string, 0, len(data)-len(keys))
	for k := range data {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	keys = append(keys, rest...)

	for i, k := range keys {
		if i > 0 {
			b.WriteString(sep)
		}
		f.writeKeyValue(b, k, data[k])
	}
}

func (f *Formatter) writeKeyValue(b *bytes.Buffer, key string, value interface{}) {
	val := fmt.Sprintf("%v", value)
	if f.MaxFieldValueLength > 0 && len(val) > f.MaxFieldValueLength {
		val = val[:f.MaxFieldValueLength] + "..."
	}
	if f.HideKeys {
		b.WriteString(val)
		return
	}
	fmt.Fprintf(b, "%s:%s", key, val)
}

func (f *Formatter) writeCaller(b *bytes.Buffer, frame *runtime.Frame) {
	if f.CustomCallerFormatter != nil {
		b.WriteString(f.CustomCallerFormatter(frame))
		return
	}
	fn := filepath.Base(frame.Function)
	if i := strings.LastIndexByte(fn, '.'); i >= 0 {
		fn = fn[i+1:]
	}
	fmt.Fprintf(b, "(%s:%d %s)", filepath.Base(frame.File), frame.Line, fn)
}

func levelColor(level logrus.Level) int {
	switch level {
	case logrus.DebugLevel:
		return colorBlue
	case logrus.WarnLevel:
		return colorYellow
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		return colorRed
	default:
		return colorGray
	}
}
