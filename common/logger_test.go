package common

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newBufferLogger(level LogLevel) (*AppLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := &AppLogger{
		level:       level,
		logger:      log.New(&buf, "", 0),
		maxFileSize: defaultMaxFileSize,
		maxBackups:  defaultMaxBackups,
	}
	return l, &buf
}

func TestLogLevel_String(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{LogLevel(-1), "UNKNOWN"},
		{LogLevel(42), "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.level.String(); got != tt.expected {
			t.Errorf("LogLevel(%d).String() = %q, want %q", tt.level, got, tt.expected)
		}
	}
}

func TestAppLogger_LevelFiltering(t *testing.T) {
	logger, buf := newBufferLogger(LevelWarn)

	logger.Debug("quiet")
	logger.Info("quiet")
	if buf.Len() > 0 {
		t.Fatalf("messages below Warn should be dropped, got %q", buf.String())
	}

	logger.Warn("loud")
	logger.Error("loud")
	out := buf.String()
	if !strings.Contains(out, "[WARN]") || !strings.Contains(out, "[ERROR]") {
		t.Errorf("Warn and Error should be written, got %q", out)
	}
}

func TestAppLogger_SetLevel(t *testing.T) {
	logger, buf := newBufferLogger(LevelError)

	logger.Info("before")
	logger.SetLevel(LevelDebug)
	logger.Info("after")

	out := buf.String()
	if strings.Contains(out, "before") {
		t.Errorf("Info should be dropped at Error level, got %q", out)
	}
	if !strings.Contains(out, "after") {
		t.Errorf("Info should be written at Debug level, got %q", out)
	}
}

func TestAppLogger_LineFormat(t *testing.T) {
	logger, buf := newBufferLogger(LevelDebug)

	logger.Info("connected to %s in %d ms", "gateway", 42)

	out := buf.String()
	if !strings.Contains(out, time.Now().Format("2006/01/02")) {
		t.Errorf("line should carry the date, got %q", out)
	}
	if !strings.Contains(out, "[INFO]") {
		t.Errorf("line should carry the level tag, got %q", out)
	}
	if !strings.Contains(out, "logger_test.go:") {
		t.Errorf("line should carry the callsite, got %q", out)
	}
	if !strings.Contains(out, "connected to gateway in 42 ms") {
		t.Errorf("line should carry the formatted message, got %q", out)
	}
}

func TestOversized(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sized.log")
	if err := os.WriteFile(path, make([]byte, 100), 0600); err != nil {
		t.Fatal(err)
	}

	if oversized(path, 200) {
		t.Error("file under the limit should not report oversized")
	}
	if !oversized(path, 100) {
		t.Error("file at the limit should report oversized")
	}
	if oversized(filepath.Join(t.TempDir(), "missing.log"), 1) {
		t.Error("missing file should not report oversized")
	}
}

func TestGzipFile_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "plain.log")
	dst := filepath.Join(dir, "plain.log.gz")
	content := strings.Repeat("session line\n", 200)
	if err := os.WriteFile(src, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	if err := gzipFile(src, dst); err != nil {
		t.Fatalf("gzipFile() error = %v", err)
	}

	f, err := os.Open(dst)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("backup is not valid gzip: %v", err)
	}
	got, err := io.ReadAll(zr)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != content {
		t.Error("decompressed backup does not match the original log")
	}
}

func TestRotate_MovesLogAside(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, LogFileName)
	if err := os.WriteFile(logPath, bytes.Repeat([]byte("x"), 2048), 0600); err != nil {
		t.Fatal(err)
	}

	logger := &AppLogger{maxFileSize: 1024, maxBackups: 3}
	logger.mu.Lock()
	logger.rotateLocked(logPath)
	logger.mu.Unlock()

	if FileExists(logPath) {
		t.Error("original log should be gone after rotation")
	}
	matches, _ := filepath.Glob(filepath.Join(dir, LogFileName+".*"))
	if len(matches) != 1 {
		t.Fatalf("want exactly one backup, got %v", matches)
	}
	if !strings.HasSuffix(matches[0], ".gz") {
		t.Errorf("backup should be compressed, got %v", matches[0])
	}
}

func TestPruneBackups_KeepsNewest(t *testing.T) {
	dir := t.TempDir()
	var names []string
	for i := 1; i <= 6; i++ {
		name := fmt.Sprintf("%s.202601%02d-120000.gz", LogFileName, i)
		names = append(names, name)
		if err := os.WriteFile(filepath.Join(dir, name), []byte("old"), 0600); err != nil {
			t.Fatal(err)
		}
	}

	logger := &AppLogger{maxBackups: 2}
	logger.mu.Lock()
	logger.pruneBackupsLocked(dir)
	logger.mu.Unlock()

	for _, name := range names[:4] {
		if FileExists(filepath.Join(dir, name)) {
			t.Errorf("old backup %s should be pruned", name)
		}
	}
	for _, name := range names[4:] {
		if !FileExists(filepath.Join(dir, name)) {
			t.Errorf("recent backup %s should survive", name)
		}
	}
}

func TestEnableFileLogging_WritesAndRotates(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	logger := &AppLogger{
		level:       LevelInfo,
		logger:      log.New(io.Discard, "", 0),
		maxFileSize: 256,
		maxBackups:  2,
	}
	if err := logger.EnableFileLogging(); err != nil {
		t.Fatalf("EnableFileLogging() error = %v", err)
	}
	defer logger.Close()

	logger.Info("tunnel up")

	logPath := filepath.Join(home, ConfigDirName, "logs", LogFileName)
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	if !strings.Contains(string(data), "tunnel up") {
		t.Errorf("log file missing message, got %q", data)
	}

	// Grow past the limit and re-enable, the file must rotate.
	if err := os.WriteFile(logPath, bytes.Repeat([]byte("y"), 512), 0600); err != nil {
		t.Fatal(err)
	}
	if err := logger.EnableFileLogging(); err != nil {
		t.Fatalf("EnableFileLogging() after growth error = %v", err)
	}

	matches, _ := filepath.Glob(filepath.Join(home, ConfigDirName, "logs", LogFileName+".*"))
	if len(matches) == 0 {
		t.Error("oversized log should be rotated into a backup")
	}
	info, err := os.Stat(logPath)
	if err != nil {
		t.Fatalf("fresh log file should exist after rotation: %v", err)
	}
	if info.Size() != 0 {
		t.Errorf("fresh log file should be empty after rotation, has %d bytes", info.Size())
	}
}

func TestSetConsoleOutput_KeepsFileCopy(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	logger := &AppLogger{
		level:       LevelInfo,
		logger:      log.New(io.Discard, "", 0),
		maxFileSize: defaultMaxFileSize,
		maxBackups:  defaultMaxBackups,
	}
	if err := logger.EnableFileLogging(); err != nil {
		t.Fatalf("EnableFileLogging() error = %v", err)
	}
	defer logger.Close()

	logger.SetConsoleOutput(false)
	logger.Info("file only")

	data, err := os.ReadFile(filepath.Join(home, ConfigDirName, "logs", LogFileName))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "file only") {
		t.Errorf("file copy should continue with console disabled, got %q", data)
	}
}

func TestEnableFileLogging_RefusesSymlinkedDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	if err := os.MkdirAll(filepath.Join(home, ConfigDirName), 0700); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(t.TempDir(), filepath.Join(home, ConfigDirName, "logs")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	logger := &AppLogger{logger: log.New(io.Discard, "", 0)}
	if err := logger.EnableFileLogging(); err == nil {
		logger.Close()
		t.Error("EnableFileLogging() should refuse a symlinked log directory")
	}
}
