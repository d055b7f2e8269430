// Package logging persists batch output to per-run directories on disk. A
// FileLogger fans each result out to a set of sinks: a combined log, one
// file per runnable split by outcome, and the reporting package's summary,
// HTML and JSON reports.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/acarl005/stripansi"

	"github.com/ethereum-optimism/infra/op-harness/reporting"
	"github.com/ethereum-optimism/infra/op-harness/types"
)

// FileLogger handles writing run output to files
type FileLogger struct {
	baseDir     string           // Base directory for logs
	logDir      string           // Root log directory for this run
	failedDir   string           // Directory for failed runnables
	passedDir   string           // Directory for passed and skipped runnables
	allLogsFile string           // Path to the combined log file
	mu          sync.Mutex       // Protects concurrent file operations
	sinks       []reporting.Sink // Collection of result consumers
	writers     map[string]*AsyncFile
	runID       string
}

// AsyncFile provides non-blocking file writing capabilities
type AsyncFile struct {
	file    *os.File
	queue   chan []byte
	wg      sync.WaitGroup
	mu      sync.Mutex
	stopped bool
}

// NewAsyncFile creates a new AsyncFile for non-blocking writes
func NewAsyncFile(filepath string) (*AsyncFile, error) {
	file, err := os.Create(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file %s: %w", filepath, err)
	}

	af := &AsyncFile{
		file:  file,
		queue: make(chan []byte, 100), // Buffer channel to reduce blocking
	}

	// Start the background writer
	af.wg.Add(1)
	go af.processQueue()

	return af, nil
}

// Write queues data to be written asynchronously
func (af *AsyncFile) Write(data []byte) error {
	af.mu.Lock()
	defer af.mu.Unlock()

	if af.stopped {
		return fmt.Errorf("async file is closed")
	}

	// Make a copy of the data to avoid race conditions
	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)

	af.queue <- dataCopy
	return nil
}

// processQueue processes the write queue in the background
func (af *AsyncFile) processQueue() {
	defer af.wg.Done()

	for data := range af.queue {
		_, err := af.file.Write(data)
		if err != nil {
			// Log the error but continue processing
			fmt.Fprintf(os.Stderr, "Error writing to file: %v\n", err)
		}
	}
}

// Close stops the async writer and closes the file
func (af *AsyncFile) Close() error {
	af.mu.Lock()
	if !af.stopped {
		af.stopped = true
		close(af.queue)
	}
	af.mu.Unlock()

	// Wait for all writes to complete
	af.wg.Wait()
	return af.file.Close()
}

// NewFileLogger creates a new FileLogger for one run
func NewFileLogger(baseDir string, runID string) (*FileLogger, error) {
	if runID == "" {
		return nil, fmt.Errorf("runID cannot be empty")
	}

	if baseDir == "" {
		return nil, fmt.Errorf("baseDir cannot be empty")
	}

	logDir := reporting.RunDir(baseDir, runID)
	failedDir := filepath.Join(logDir, "failed")
	passedDir := filepath.Join(logDir, "passed")
	allLogsFile := filepath.Join(logDir, "all.log")

	// Create directories if they don't exist
	dirs := []string{baseDir, logDir, failedDir, passedDir}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	logger := &FileLogger{
		baseDir:     baseDir,
		logDir:      logDir,
		failedDir:   failedDir,
		passedDir:   passedDir,
		allLogsFile: allLogsFile,
		writers:     make(map[string]*AsyncFile),
		runID:       runID,
	}

	logger.sinks = append(logger.sinks,
		&AllLogsFileSink{logger: logger},
		&PerRunnableFileSink{logger: logger},
		reporting.NewTextSummarySink(baseDir),
		reporting.NewJSONSink(baseDir),
	)

	htmlSink, err := reporting.NewHTMLSink(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTML sink: %w", err)
	}
	logger.sinks = append(logger.sinks, htmlSink)

	return logger, nil
}

// LogDir returns the run's output directory.
func (l *FileLogger) LogDir() string {
	return l.logDir
}

// LogResult fans one result out to every sink.
func (l *FileLogger) LogResult(result *types.RunResult) error {
	for _, sink := range l.sinks {
		if err := sink.Consume(result, l.runID); err != nil {
			return fmt.Errorf("sink failed to consume result %q: %w", result.Title, err)
		}
	}
	return nil
}

// Complete finalizes every sink and closes the async writers.
func (l *FileLogger) Complete() error {
	var firstErr error
	for _, sink := range l.sinks {
		if err := sink.Complete(l.runID); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	l.mu.Lock()
	writers := l.writers
	l.writers = make(map[string]*AsyncFile)
	l.mu.Unlock()

	for _, writer := range writers {
		if err := writer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// getAsyncWriter gets or creates an AsyncFile for the given path
func (l *FileLogger) getAsyncWriter(path string) (*AsyncFile, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if writer, exists := l.writers[path]; exists {
		return writer, nil
	}

	writer, err := NewAsyncFile(path)
	if err != nil {
		return nil, err
	}

	l.writers[path] = writer
	return writer, nil
}

// AllLogsFileSink appends every result to the combined all.log file.
type AllLogsFileSink struct {
	logger *FileLogger
}

// Consume writes one result's entry to the combined log
func (s *AllLogsFileSink) Consume(result *types.RunResult, runID string) error {
	writer, err := s.logger.getAsyncWriter(s.logger.allLogsFile)
	if err != nil {
		return err
	}
	return writer.Write([]byte(formatResultEntry(result)))
}

// Complete is a no-op; the shared writer is closed by the logger
func (s *AllLogsFileSink) Complete(runID string) error {
	return nil
}

// PerRunnableFileSink writes one file per runnable, split by outcome.
type PerRunnableFileSink struct {
	logger *FileLogger
}

// Consume writes the result to failed/ or passed/ under a sanitized filename
func (s *PerRunnableFileSink) Consume(result *types.RunResult, runID string) error {
	dir := s.logger.passedDir
	if result.Status == types.RunStatusFail {
		dir = s.logger.failedDir
	}

	path := filepath.Join(dir, sanitizeFilename(result.FullTitle())+".txt")
	writer, err := s.logger.getAsyncWriter(path)
	if err != nil {
		return err
	}
	return writer.Write([]byte(formatResultEntry(result)))
}

// Complete is a no-op; writers are closed by the logger
func (s *PerRunnableFileSink) Complete(runID string) error {
	return nil
}

// formatResultEntry renders one result as a log entry with ANSI codes removed.
func formatResultEntry(result *types.RunResult) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("=== %s\n", result.FullTitle()))
	sb.WriteString(fmt.Sprintf("status: %s\n", result.Status))
	sb.WriteString(fmt.Sprintf("duration: %s\n", result.Duration))
	if result.Retries > 0 {
		sb.WriteString(fmt.Sprintf("retries: %d\n", result.Retries))
	}
	if result.TimedOut {
		sb.WriteString("timed out: true\n")
	}
	if result.Error != nil {
		sb.WriteString(fmt.Sprintf("error: %s\n", stripansi.Strip(result.Error.Error())))
	}
	sb.WriteString("\n")
	return sb.String()
}

// sanitizeFilename converts a runnable title into a safe filename
func sanitizeFilename(title string) string {
	replacer := strings.NewReplacer(
		" ", "_",
		"/", "_",
		">", "",
		":", "_",
		"\"", "",
		"\\", "_",
		"*", "",
		"?", "",
		"<", "",
		"|", "_",
	)
	name := replacer.Replace(title)
	return strings.Trim(strings.ReplaceAll(name, "__", "_"), "_")
}
