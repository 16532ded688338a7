// Package common provides shared constants, types, and utilities
// used across the OpenVPN client application.
package common

import (
	"compress/gzip"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"
)

// LogLevel represents the severity of a log message.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR"}

// String returns the tag used for the level in log lines.
func (l LogLevel) String() string {
	if l < LevelDebug || l > LevelError {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// LogConfig holds configuration options for the logger.
type LogConfig struct {
	Level       LogLevel
	EnableFile  bool
	MaxFileSize int64 // bytes before rotation, default 5MB
	MaxBackups  int   // rotated files to keep, default 5
}

const (
	defaultMaxFileSize = 5 * 1024 * 1024
	defaultMaxBackups  = 5
)

// AppLogger writes timestamped, level-tagged lines to the console
// and, once file logging is enabled, to a log file that is rotated by
// size. Rotated files are gzip-compressed and the oldest pruned.
type AppLogger struct {
	mu          sync.Mutex
	level       LogLevel
	console     bool
	logFile     *os.File
	filePath    string
	logger      *log.Logger
	maxFileSize int64
	maxBackups  int
}

var (
	defaultLogger *AppLogger
	loggerOnce    sync.Once
)

// GetLogger returns the process-wide logger.
func GetLogger() *AppLogger {
	loggerOnce.Do(func() {
		defaultLogger = &AppLogger{
			level:       LevelInfo,
			console:     true,
			logger:      log.New(os.Stdout, "", 0),
			maxFileSize: defaultMaxFileSize,
			maxBackups:  defaultMaxBackups,
		}
	})
	return defaultLogger
}

// InitLogger applies config to the process-wide logger. Call once
// during startup, before anything logs.
func InitLogger(config LogConfig) error {
	l := GetLogger()

	l.mu.Lock()
	l.level = config.Level
	if config.MaxFileSize > 0 {
		l.maxFileSize = config.MaxFileSize
	}
	if config.MaxBackups > 0 {
		l.maxBackups = config.MaxBackups
	}
	l.mu.Unlock()

	if config.EnableFile {
		return l.EnableFileLogging()
	}
	return nil
}

// SetLevel sets the minimum level a message needs to be written.
func (l *AppLogger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// SetOutput redirects all log output to w, detaching the console and
// any open log file until the output is next rebuilt.
func (l *AppLogger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger = log.New(w, "", 0)
}

// SetConsoleOutput enables or disables the stdout copy of the log
// output. File logging is unaffected. Interactive interfaces disable
// the console copy while they own the terminal.
func (l *AppLogger) SetConsoleOutput(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.console = enabled
	l.applyOutputLocked()
}

// applyOutputLocked rebuilds the writer behind the logger from the
// console flag and the open log file. Caller must hold mu.
func (l *AppLogger) applyOutputLocked() {
	var w io.Writer
	switch {
	case l.console && l.logFile != nil:
		w = io.MultiWriter(os.Stdout, l.logFile)
	case l.console:
		w = os.Stdout
	case l.logFile != nil:
		w = l.logFile
	default:
		w = io.Discard
	}
	l.logger = log.New(w, "", 0)
}

// GetLogDir returns the directory log files are written to, or an
// empty string when the home directory cannot be resolved.
func GetLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ConfigDirName, "logs")
}

// refuseSymlink rejects paths that are symbolic links, so log writes
// cannot be redirected outside the configuration tree.
func refuseSymlink(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		return nil // does not exist yet
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return fmt.Errorf("refusing symlinked log path: %s", path)
	}
	return nil
}

// EnableFileLogging opens the log file under the configuration
// directory and mirrors log output to it. An oversized file is
// rotated before it is reopened.
func (l *AppLogger) EnableFileLogging() error {
	logDir := GetLogDir()
	if logDir == "" {
		return fmt.Errorf("cannot resolve home directory for logs")
	}
	if err := refuseSymlink(logDir); err != nil {
		return err
	}
	if err := EnsureDir(logDir); err != nil {
		return WrapError(err, "failed to create log directory")
	}

	logPath := filepath.Join(logDir, LogFileName)
	if err := refuseSymlink(logPath); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.logFile != nil {
		l.logFile.Close()
		l.logFile = nil
	}
	if oversized(logPath, l.maxFileSize) {
		l.rotateLocked(logPath)
	}

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return WrapError(err, "failed to open log file")
	}
	l.logFile = file
	l.filePath = logPath
	l.applyOutputLocked()
	return nil
}

// oversized reports whether the file at path has reached limit.
func oversized(path string, limit int64) bool {
	info, err := os.Stat(path)
	return err == nil && info.Size() >= limit
}

// rotateLocked moves the current log file aside as a gzip-compressed,
// timestamped backup and prunes old backups. Caller must hold mu and
// have closed the open log file.
func (l *AppLogger) rotateLocked(logPath string) {
	backup := logPath + "." + time.Now().Format("20060102-150405")
	if err := gzipFile(logPath, backup+".gz"); err != nil {
		// Compression failed, fall back to a plain rename.
		os.Rename(logPath, backup)
	} else {
		os.Remove(logPath)
	}
	l.pruneBackupsLocked(filepath.Dir(logPath))
}

// gzipFile compresses src into dst.
func gzipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	zw := gzip.NewWriter(out)
	if _, err := io.Copy(zw, in); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

// pruneBackupsLocked removes the oldest rotated files beyond
// maxBackups. Backup names embed the rotation timestamp, so
// lexicographic order is chronological order. Caller must hold mu.
func (l *AppLogger) pruneBackupsLocked(dir string) {
	matches, err := filepath.Glob(filepath.Join(dir, LogFileName+".*"))
	if err != nil || len(matches) <= l.maxBackups {
		return
	}
	sort.Strings(matches)
	for _, old := range matches[:len(matches)-l.maxBackups] {
		os.Remove(old)
	}
}

// CheckRotation rotates and reopens the log file once it has grown
// past the size limit. Long-running processes may call this
// periodically.
func (l *AppLogger) CheckRotation() {
	l.mu.Lock()
	path, limit := l.filePath, l.maxFileSize
	l.mu.Unlock()

	if path == "" || !oversized(path, limit) {
		return
	}
	l.EnableFileLogging()
}

// log writes one line. Lines carry a timestamp, the level tag, and
// the file:line of whatever called the exported wrapper two frames
// up, so every wrapper must sit directly between the caller and here.
func (l *AppLogger) log(level LogLevel, msg string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level < l.level {
		return
	}

	caller := "???"
	if _, file, line, ok := runtime.Caller(2); ok {
		caller = fmt.Sprintf("%s:%d", filepath.Base(file), line)
	}
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	stamp := time.Now().Format("2006/01/02 15:04:05")
	l.logger.Printf("%s [%s] %s: %s", stamp, level, caller, msg)
}

// Debug logs a debug message.
func (l *AppLogger) Debug(msg string, args ...interface{}) {
	l.log(LevelDebug, msg, args...)
}

// Info logs an informational message.
func (l *AppLogger) Info(msg string, args ...interface{}) {
	l.log(LevelInfo, msg, args...)
}

// Warn logs a warning message.
func (l *AppLogger) Warn(msg string, args ...interface{}) {
	l.log(LevelWarn, msg, args...)
}

// Error logs an error message.
func (l *AppLogger) Error(msg string, args ...interface{}) {
	l.log(LevelError, msg, args...)
}

// LogDebug logs a debug message to the default logger.
func LogDebug(msg string, args ...interface{}) {
	GetLogger().log(LevelDebug, msg, args...)
}

// LogInfo logs an info message to the default logger.
func LogInfo(msg string, args ...interface{}) {
	GetLogger().log(LevelInfo, msg, args...)
}

// LogWarn logs a warning message to the default logger.
func LogWarn(msg string, args ...interface{}) {
	GetLogger().log(LevelWarn, msg, args...)
}

// LogError logs an error message to the default logger.
func LogError(msg string, args ...interface{}) {
	GetLogger().log(LevelError, msg, args...)
}

// Close closes the log file and drops back to console-only output.
func (l *AppLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.logFile == nil {
		return nil
	}
	err := l.logFile.Close()
	l.logFile = nil
	l.filePath = ""
	l.applyOutputLocked()
	return err
}

// CloseLogger closes the default logger's file. Called on shutdown.
func CloseLogger() error {
	return GetLogger().Close()
}
