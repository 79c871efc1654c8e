package logger

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mensylisir/xmsudo/common"
)

// Hook to capture log entries for testing
type testHook struct {
	mu      sync.Mutex
	Entries []*logrus.Entry
}

func (h *testHook) Levels() []logrus.Level { return logrus.AllLevels }
func (h *testHook) Fire(entry *logrus.Entry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Entries = append(h.Entries, entry)
	return nil
}
func (h *testHook) LastEntry() *logrus.Entry {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.Entries) == 0 {
		return nil
	}
	return h.Entries[len(h.Entries)-1]
}

func newCapturedLog(t *testing.T) (*XMLog, *testHook, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	l := newConsoleLog(&out, logrus.DebugLevel, true)
	hook := &testHook{}
	l.AddHook(hook)
	return l, hook, &out
}

func TestFormatter_Format(t *testing.T) {
	ts := time.Date(2024, 3, 1, 10, 20, 30, 0, time.UTC)

	tests := []struct {
		name      string
		formatter *Formatter
		level     logrus.Level
		data      logrus.Fields
		expected  string
	}{
		{
			name:      "ordered fields first then alphabetical",
			formatter: &Formatter{TimestampFormat: "15:04:05", NoColors: true, FieldsDisplayWithOrder: defaultFieldsOrder},
			level:     logrus.InfoLevel,
			data:      logrus.Fields{"zeta": 1, common.AttemptID: "a1", "alpha": "x", common.TargetName: "local"},
			expected:  "10:20:30 [INFO] [Target:local | Attempt:a1 | alpha:x | zeta:1] hello\n",
		},
		{
			name:      "level hidden below warn",
			formatter: &Formatter{DisableTimestamp: true, NoColors: true, DisplayLevelName: ShowAboveWarn},
			level:     logrus.InfoLevel,
			expected:  "hello\n",
		},
		{
			name:      "level shown at warn",
			formatter: &Formatter{DisableTimestamp: true, NoColors: true, DisplayLevelName: ShowAboveWarn},
			level:     logrus.WarnLevel,
			expected:  "[WARN] hello\n",
		},
		{
			name:      "full level name",
			formatter: &Formatter{DisableTimestamp: true, NoColors: true, ShowFullLevel: true},
			level:     logrus.WarnLevel,
			expected:  "[WARNING] hello\n",
		},
		{
			name:      "hide keys and truncate",
			formatter: &Formatter{DisableTimestamp: true, NoColors: true, DisplayLevelName: HideAll, HideKeys: true, MaxFieldValueLength: 3},
			level:     logrus.InfoLevel,
			data:      logrus.Fields{"k": "abcdef"},
			expected:  "[abc...] hello\n",
		},
		{
			name:      "custom separator",
			formatter: &Formatter{DisableTimestamp: true, NoColors: true, DisplayLevelName: HideAll, FieldSeparator: ", "},
			level:     logrus.InfoLevel,
			data:      logrus.Fields{"a": 1, "b": 2},
			expected:  "[a:1, b:2] hello\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := &logrus.Entry{
				Logger:  logrus.New(),
				Time:    ts,
				Level:   tt.level,
				Message: "hello",
				Data:    tt.data,
			}
			if entry.Data == nil {
				entry.Data = logrus.Fields{}
			}
			out, err := tt.formatter.Format(entry)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(out))
		})
	}
}

func TestFormatter_Colors(t *testing.T) {
	f := &Formatter{DisableTimestamp: true}
	entry := &logrus.Entry{Logger: logrus.New(), Level: logrus.ErrorLevel, Message: "boom", Data: logrus.Fields{}}
	out, err := f.Format(entry)
	require.NoError(t, err)
	assert.Equal(t, "\x1b[31m[ERRO]\x1b[0m boom\n", string(out))
}

func TestXMLog_ForAttempt(t *testing.T) {
	l, hook, out := newCapturedLog(t)

	l.ForAttempt("local", "attempt-1", "sudo").Info("elevation started")

	last := hook.LastEntry()
	require.NotNil(t, last)
	assert.Equal(t, "local", last.Data[common.TargetName])
	assert.Equal(t, "attempt-1", last.Data[common.AttemptID])
	assert.Equal(t, "sudo", last.Data[common.CommandName])
	assert.Contains(t, out.String(), "[Target:local | Command:sudo | Attempt:attempt-1] elevation started")
}

func TestXMLog_ContextHelpers(t *testing.T) {
	l, hook, _ := newCapturedLog(t)
	someErr := errors.New("spawn failed")

	l.InfoTarget("host1", "info msg", logrus.Fields{"extra": "v"})
	last := hook.LastEntry()
	require.NotNil(t, last)
	assert.Equal(t, logrus.InfoLevel, last.Level)
	assert.Equal(t, "host1", last.Data[common.TargetName])
	assert.Equal(t, "v", last.Data["extra"])

	l.ErrorTarget("host1", someErr, "error msg")
	last = hook.LastEntry()
	assert.Equal(t, logrus.ErrorLevel, last.Level)
	assert.Equal(t, someErr, last.Data[logrus.ErrorKey])

	l.ErrorTarget("host1", nil, "no error field")
	last = hook.LastEntry()
	_, hasErr := last.Data[logrus.ErrorKey]
	assert.False(t, hasErr)

	l.WarnTarget("host1", "warn msg", logrus.Fields{common.CommandName: "sudo"})
	last = hook.LastEntry()
	assert.Equal(t, logrus.WarnLevel, last.Level)
	assert.Equal(t, "sudo", last.Data[common.CommandName])

	l.DebugTarget("host1", "debug msg")
	last = hook.LastEntry()
	assert.Equal(t, logrus.DebugLevel, last.Level)
	assert.Equal(t, "debug msg", last.Message)
}

func TestNewXMLog_Levels(t *testing.T) {
	l, err := NewXMLog("", false, logrus.InfoLevel)
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, l.GetLevel())

	l, err = NewXMLog("", true, logrus.InfoLevel)
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, l.GetLevel())
}

func TestInitGlobalLogger_FileOutput(t *testing.T) {
	originalLog := Log
	defer func() { Log = originalLog }()

	dir := t.TempDir()
	require.NoError(t, InitGlobalLogger(dir, false, logrus.InfoLevel))

	Log.InfoTarget("local", "written to file")
	Log.Debug("filtered out")

	content, err := os.ReadFile(filepath.Join(dir, common.AppName+".log"))
	require.NoError(t, err)
	text := string(content)
	assert.Contains(t, text, "[Target:local] written to file")
	assert.True(t, strings.Contains(text, ".go:"), "file output should carry caller info, got %q", text)
	assert.NotContains(t, text, "filtered out")
}

func TestInitGlobalLogger_BadDir(t *testing.T) {
	originalLog := Log
	defer func() { Log = originalLog }()

	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	err := InitGlobalLogger(filepath.Join(blocker, "logs"), false, logrus.InfoLevel)
	require.Error(t, err)
	assert.Same(t, originalLog, Log)
}
