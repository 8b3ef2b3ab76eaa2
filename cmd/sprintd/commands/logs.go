package commands

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/marcus/sprintd/internal/logging"
)

var (
	logsFollow bool
	logsLines  int
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show scheduler logs",
	Long: `Logs prints the tail of the newest sprintd log file. With --follow it
watches the log directory and streams new lines, surviving date rollover.`,
	RunE: runLogs,
}

func init() {
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Stream new log lines")
	logsCmd.Flags().IntVarP(&logsLines, "lines", "n", 50, "Number of trailing lines to show")
	rootCmd.AddCommand(logsCmd)
}

func runLogs(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logDir := cfg.Logging.Path
	if logDir == "" {
		return fmt.Errorf("logging.path not configured, nothing to show")
	}

	files, err := logging.LogFilesIn(logDir)
	if err != nil {
		return fmt.Errorf("listing log files: %w", err)
	}
	if len(files) == 0 {
		fmt.Println("no log files found")
		return nil
	}

	for _, line := range tailLines(files[0], logsLines) {
		fmt.Println(line)
	}

	if !logsFollow {
		return nil
	}
	return followLogs(logDir, files[0])
}

// tailLines returns the last n lines of a file.
func tailLines(path string, n int) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if len(lines) > n {
			lines = lines[1:]
		}
	}
	return lines
}

// followLogs streams appended lines, switching files on date rollover.
func followLogs(logDir, current string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(logDir); err != nil {
		return fmt.Errorf("watching log dir: %w", err)
	}

	file, err := os.Open(current)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()
	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		return err
	}
	reader := bufio.NewReader(file)

	fmt.Println("--- Following logs (Ctrl+C to exit) ---")

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if newest := newestLogFile(logDir); newest != "" && newest != current {
				file.Close()
				current = newest
				file, err = os.Open(current)
				if err != nil {
					continue
				}
				reader = bufio.NewReader(file)
			}

			if event.Op&fsnotify.Write == fsnotify.Write {
				for {
					line, err := reader.ReadString('\n')
					if err != nil {
						break
					}
					fmt.Print(line)
				}
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "watcher error: %v\n", err)
		}
	}
}

func newestLogFile(logDir string) string {
	files, err := logging.LogFilesIn(logDir)
	if err != nil || len(files) == 0 {
		return ""
	}
	return files[0]
}
