package storage

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	outputDir := "/test/output"
	storage := New(outputDir)

	if storage == nil {
		t.Fatal("New() returned nil")
	}

	if storage.outputDir != outputDir {
		t.Errorf("Expected outputDir to be %s, got %s", outputDir, storage.outputDir)
	}

	if storage.file != nil {
		t.Error("Expected file to be nil initially")
	}

	if storage.stopChan == nil {
		t.Error("Expected stopChan to be initialized")
	}
}

func TestStorage_StartAndStop(t *testing.T) {
	// Create a temporary directory for testing
	tempDir := t.TempDir()
	storage := New(tempDir)

	// Test Start
	err := storage.Start()
	if err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	// Test Stop
	err = storage.Stop()
	if err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
}

func TestStorage_WriteMessage(t *testing.T) {
	tempDir := t.TempDir()
	storage := New(tempDir)

	// Start the storage
	err := storage.Start()
	if err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer func() {
		if err := storage.Stop(); err != nil {
			t.Errorf("Stop() failed: %v", err)
		}
	}()

	// Test writing a message
	message := []byte("test message")
	err = storage.WriteMessage(message)
	if err != nil {
		t.Fatalf("WriteMessage() failed: %v", err)
	}

	// Check that the file was created and contains the message
	files, err := os.ReadDir(tempDir)
	if err != nil {
		t.Fatalf("Failed to read temp directory: %v", err)
	}

	if len(files) == 0 {
		t.Fatal("No files were created")
	}

	// Find the log file
	var logFile string
	for _, file := range files {
		if strings.HasSuffix(file.Name(), ".log") {
			logFile = filepath.Join(tempDir, file.Name())
			break
		}
	}

	if logFile == "" {
		t.Fatal("No log file found")
	}

	// Read the file content
	content, err := os.ReadFile(logFile) // #nosec G304 - logFile is a controlled test path
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}

	expectedContent := "test message\n"
	if string(content) != expectedContent {
		t.Errorf("Expected content '%s', got '%s'", expectedContent, string(content))
	}
}

func TestStorage_WriteMessageWithNewline(t *testing.T) {
	tempDir := t.TempDir()
	storage := New(tempDir)

	err := storage.Start()
	if err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer func() {
		if err := storage.Stop(); err != nil {
			t.Errorf("Stop() failed: %v", err)
		}
	}()

	// Test writing a message that already ends with newline
	message := []byte("test message\n")
	err = storage.WriteMessage(message)
	if err != nil {
		t.Fatalf("WriteMessage() failed: %v", err)
	}

	// Check that the file contains the message without duplicate newline
	files, err := os.ReadDir(tempDir)
	if err != nil {
		t.Fatalf("Failed to read temp directory: %v", err)
	}

	var logFile string
	for _, file := range files {
		if strings.HasSuffix(file.Name(), ".log") {
			logFile = filepath.Join(tempDir, file.Name())
			break
		}
	}

	content, err := os.ReadFile(logFile) // #nosec G304 - logFile is a controlled test path
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}

	expectedContent := "test message\n"
	if string(content) != expectedContent {
		t.Errorf("Expected content '%s', got '%s'", expectedContent, string(content))
	}
}

func TestStorage_WriteEmptyMessage(t *testing.T) {
	tempDir := t.TempDir()
	storage := New(tempDir)

	err := storage.Start()
	if err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer func() {
		if err := storage.Stop(); err != nil {
			t.Errorf("Stop() failed: %v", err)
		}
	}()

	// Test writing an empty message
	message := []byte{}
	err = storage.WriteMessage(message)
	if err != nil {
		t.Fatalf("WriteMessage() failed: %v", err)
	}

	// Check that the file contains just a newline
	files, err := os.ReadDir(tempDir)
	if err != nil {
		t.Fatalf("Failed to read temp directory: %v", err)
	}

	var logFile string
	for _, file := range files {
		if strings.HasSuffix(file.Name(), ".log") {
			logFile = filepath.Join(tempDir, file.Name())
			break
		}
	}

	content, err := os.ReadFile(logFile) // #nosec G304 - logFile is a controlled test path
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}

	expectedContent := "\n"
	if string(content) != expectedContent {
		t.Errorf("Expected content '%s', got '%s'", expectedContent, string(content))
	}
}

func TestStorage_ValidatePath(t *testing.T) {
	tempDir := t.TempDir()
	storage := New(tempDir)

	// Test valid path within output directory
	validPath := filepath.Join(tempDir, "test.log")
	err := storage.validatePath(validPath)
	if err != nil {
		t.Errorf("validatePath() should accept valid path: %v", err)
	}

	// Test path outside output directory
	invalidPath := filepath.Join("/tmp", "test.log")
	err = storage.validatePath(invalidPath)
	if err == nil {
		t.Error("validatePath() should reject path outside output directory")
	}

	// Test path traversal attempt
	traversalPath := filepath.Join(tempDir, "..", "test.log")
	err = storage.validatePath(traversalPath)
	if err == nil {
		t.Error("validatePath() should reject path traversal")
	}
}

func TestStorage_CompressFile(t *testing.T) {
	tempDir := t.TempDir()
	storage := New(tempDir)

	// Create a test file
	testFile := filepath.Join(tempDir, "test.log")
	testContent := "This is test content for compression"
	err := os.WriteFile(testFile, []byte(testContent), 0o600)
	if err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	// Compress the file
	err = storage.compressFile(testFile)
	if err != nil {
		t.Fatalf("compressFile() failed: %v", err)
	}

	// Check that the original file was removed
	if _, err := os.Stat(testFile); err == nil {
		t.Error("Original file should have been removed")
	}

	// Check that the compressed file was created
	compressedFile := testFile + ".gz"
	if _, err := os.Stat(compressedFile); err != nil {
		t.Fatalf("Compressed file should exist: %v", err)
	}

	// Verify the compressed content round-trips the original
	file, err := os.Open(compressedFile)
	if err != nil {
		t.Fatalf("Failed to open compressed file: %v", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			t.Errorf("Failed to close file: %v", err)
		}
	}()

	gzipReader, err := gzip.NewReader(file)
	if err != nil {
		t.Fatalf("Failed to create gzip reader: %v", err)
	}
	defer func() {
		if err := gzipReader.Close(); err != nil {
			t.Errorf("Failed to close gzip reader: %v", err)
		}
	}()

	decompressedContent, err := io.ReadAll(gzipReader)
	if err != nil {
		t.Fatalf("Failed to read decompressed content: %v", err)
	}

	if string(decompressedContent) != testContent {
		t.Errorf("expected decompressed content %q, got %q", testContent, string(decompressedContent))
	}
}

func TestStorage_CompressNonExistentFile(t *testing.T) {
	tempDir := t.TempDir()
	storage := New(tempDir)

	// Try to compress a non-existent file
	nonExistentFile := filepath.Join(tempDir, "nonexistent.log")
	err := storage.compressFile(nonExistentFile)
	if err == nil {
		t.Error("compressFile() should fail for non-existent file")
	}
}

func TestStorage_RotateFile(t *testing.T) {
	tempDir := t.TempDir()
	storage := New(tempDir)

	// Test file rotation
	err := storage.rotateFile()
	if err != nil {
		t.Fatalf("rotateFile() failed: %v", err)
	}

	if storage.file == nil {
		t.Error("rotateFile() should create a file")
	}

	// Check that the file was created with the correct name
	today := time.Now().UTC().Format("2006-01-02")
	expectedFilename := filepath.Join(tempDir, "frames_"+today+".log")

	// Get the actual filename from the file
	if storage.file != nil {
		_ = storage.file.Close()
	}

	// Check if the file exists
	if _, err := os.Stat(expectedFilename); err != nil {
		t.Errorf("Expected file %s to exist: %v", expectedFilename, err)
	}
}

func TestStorage_RotateFileInvalidPath(t *testing.T) {
	// Test with an invalid output directory
	storage := New("/invalid/path/that/does/not/exist")

	err := storage.rotateFile()
	if err == nil {
		t.Error("rotateFile() should fail with invalid path")
	}
}

func TestStorage_ConcurrentWrites(t *testing.T) {
	tempDir := t.TempDir()
	storage := New(tempDir)

	err := storage.Start()
	if err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer func() {
		if err := storage.Stop(); err != nil {
			t.Errorf("Stop() failed: %v", err)
		}
	}()

	// Test concurrent writes
	const numGoroutines = 10
	const messagesPerGoroutine = 10

	done := make(chan bool, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			for j := 0; j < messagesPerGoroutine; j++ {
				message := []byte(fmt.Sprintf("message %d from goroutine %d", j, id))
				if err := storage.WriteMessage(message); err != nil {
					t.Errorf("WriteMessage failed: %v", err)
				}
			}
			done <- true
		}(i)
	}

	// Wait for all goroutines to complete
	for i := 0; i < numGoroutines; i++ {
		<-done
	}

	// Check that all messages were written
	files, err := os.ReadDir(tempDir)
	if err != nil {
		t.Fatalf("Failed to read temp directory: %v", err)
	}

	var logFile string
	for _, file := range files {
		if strings.HasSuffix(file.Name(), ".log") {
			logFile = filepath.Join(tempDir, file.Name())
			break
		}
	}

	content, err := os.ReadFile(logFile) // #nosec G304 - logFile is a controlled test path
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	expectedLines := numGoroutines * messagesPerGoroutine
	if len(lines) != expectedLines {
		t.Errorf("Expected %d lines, got %d", expectedLines, len(lines))
	}
}

func TestStorage_StopWithoutStart(t *testing.T) {
	tempDir := t.TempDir()
	storage := New(tempDir)

	// Test stopping without starting
	err := storage.Stop()
	if err != nil {
		t.Errorf("Stop() should not fail when not started: %v", err)
	}
}

func TestStorage_RotateAndCompress(t *testing.T) {
	tempDir := t.TempDir()
	storage := New(tempDir)

	// Start the storage to create a file
	err := storage.Start()
	if err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer func() {
		if err := storage.Stop(); err != nil {
			t.Errorf("Stop() failed: %v", err)
		}
	}()

	// Write some content to create a file
	err = storage.WriteMessage([]byte("test message"))
	if err != nil {
		t.Fatalf("WriteMessage() failed: %v", err)
	}

	// Close the current file to simulate rotation
	if storage.file != nil {
		_ = storage.file.Close()
		storage.file = nil
	}

	// Test rotateAndCompress
	err = storage.rotateAndCompress()
	if err != nil {
		t.Fatalf("rotateAndCompress() failed: %v", err)
	}

	// Check that a new file was created
	if storage.file == nil {
		t.Error("rotateAndCompress() should create a new file")
	}
}
