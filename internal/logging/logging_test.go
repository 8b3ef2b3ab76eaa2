package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNewWritesDatedFile(t *testing.T) {
	dir := t.TempDir()
	logger, err := New(Config{Level: "info", Path: dir, Format: "json"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer logger.Close()

	logger.InfoCtx("session started", map[string]any{"session": "s1", "tasks": 3})

	want := filepath.Join(dir, fmt.Sprintf("sprintd-%s.log", time.Now().Format("2006-01-02")))
	data, err := os.ReadFile(want)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(data))), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v\n%s", err, data)
	}
	if entry["message"] != "session started" || entry["session"] != "s1" {
		t.Errorf("entry = %v", entry)
	}
	if entry["level"] != "info" {
		t.Errorf("level = %v, want info", entry["level"])
	}
}

func TestLevelFiltering(t *testing.T) {
	dir := t.TempDir()
	logger, err := New(Config{Level: "warn", Path: dir, Format: "json"})
	if err != nil {
		t.Fatal(err)
	}
	defer logger.Close()

	logger.Info("suppressed")
	logger.Warn("kept")

	data, err := os.ReadFile(logger.currentLogPath())
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "suppressed") {
		t.Error("info line written at warn level")
	}
	if !strings.Contains(string(data), "kept") {
		t.Error("warn line missing")
	}
}

func TestNewRejectsBadLevel(t *testing.T) {
	if _, err := New(Config{Level: "loud"}); err == nil {
		t.Error("New() accepted level loud")
	}
}

func TestEmptyPathLogsToStderrOnly(t *testing.T) {
	logger, err := New(Config{Level: "info"})
	if err != nil {
		t.Fatal(err)
	}
	defer logger.Close()

	if logger.Dir() != "" {
		t.Errorf("Dir() = %q, want empty", logger.Dir())
	}
	files, err := logger.LogFiles()
	if err != nil || files != nil {
		t.Errorf("LogFiles() = %v, %v; want none", files, err)
	}
}

func TestComponentBeforeInitFallsBack(t *testing.T) {
	// Must not panic or return nil even when Init was never called.
	logger := Component("scheduler")
	if logger == nil {
		t.Fatal("Component() = nil")
	}
	logger.Info("works without init")
}

func TestLogFilesInNewestFirst(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"sprintd-2026-08-20.log",
		"sprintd-2026-08-22.log",
		"sprintd-2026-08-21.log",
		"unrelated.txt",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x\n"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	files, err := LogFilesIn(dir)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		filepath.Join(dir, "sprintd-2026-08-22.log"),
		filepath.Join(dir, "sprintd-2026-08-21.log"),
		filepath.Join(dir, "sprintd-2026-08-20.log"),
	}
	if len(files) != len(want) {
		t.Fatalf("LogFilesIn() = %v, want %v", files, want)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Fatalf("LogFilesIn() = %v, want %v", files, want)
		}
	}
}

func TestCleanOldLogs(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "sprintd-2020-01-01.log")
	fresh := filepath.Join(dir, fmt.Sprintf("sprintd-%s.log", time.Now().Format("2006-01-02")))
	keep := filepath.Join(dir, "notes.log")
	for _, path := range []string{old, fresh, keep} {
		if err := os.WriteFile(path, []byte("x\n"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	logger := &Logger{logDir: dir}
	logger.cleanOldLogs(7)

	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Error("stale log file survived cleanup")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Error("current log file was removed")
	}
	if _, err := os.Stat(keep); err != nil {
		t.Error("non-sprintd file was removed")
	}
}

func TestTextFormat(t *testing.T) {
	dir := t.TempDir()
	logger, err := New(Config{Level: "info", Path: dir, Format: "text"})
	if err != nil {
		t.Fatal(err)
	}
	defer logger.Close()

	logger.Infof("dispatched %d tasks", 3)

	data, err := os.ReadFile(logger.currentLogPath())
	if err != nil {
		t.Fatal(err)
	}
	line := string(data)
	if !strings.Contains(line, "dispatched 3 tasks") {
		t.Errorf("log line %q missing message", line)
	}
	if strings.HasPrefix(strings.TrimSpace(line), "{") {
		t.Error("text format produced JSON")
	}
}
