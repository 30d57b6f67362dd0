// Package storage is the optional raw-frame audit log for cmd/logger: a
// daily-rotating, gzip-compressed append log of the hex frames read off
// NATS's adsb.raw subject, independent of the relational store.
package storage

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Storage handles writing raw ADS-B frames to daily-rotated log files.
type Storage struct {
	outputDir string
	file      *os.File
	mu        sync.Mutex
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

// New creates a new Storage instance
func New(outputDir string) *Storage {
	return &Storage{
		outputDir: outputDir,
		stopChan:  make(chan struct{}),
	}
}

// Start initializes the storage system and starts the rotation timer
func (s *Storage) Start() error {
	if err := s.rotateFile(); err != nil {
		return err
	}

	s.wg.Add(1)
	go s.rotationTimer()

	return nil
}

// Stop closes the current file and stops the rotation timer
func (s *Storage) Stop() error {
	close(s.stopChan)
	s.wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file != nil {
		return s.file.Close()
	}
	return nil
}

// WriteMessage writes a message to the current log file
func (s *Storage) WriteMessage(message []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		if err := s.rotateFile(); err != nil {
			return err
		}
	}

	// Check if message already ends with newline
	if len(message) > 0 && message[len(message)-1] == '\n' {
		_, err := s.file.Write(message)
		return err
	}

	_, err := s.file.Write(append(message, '\n'))
	return err
}

// rotationTimer handles daily rotation at midnight UTC
func (s *Storage) rotationTimer() {
	defer s.wg.Done()

	for {
		now := time.Now().UTC()
		nextMidnight := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)
		waitTime := nextMidnight.Sub(now)

		select {
		case <-time.After(waitTime):
			if err := s.rotateAndCompress(); err != nil {
				fmt.Printf("Error during rotation: %v\n", err)
			}
		case <-s.stopChan:
			return
		}
	}
}

// rotateAndCompress rotates the current file and compresses the previous day's file
func (s *Storage) rotateAndCompress() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Close current file
	if s.file != nil {
		s.file.Close()
		s.file = nil
	}

	// Compress yesterday's file
	yesterday := time.Now().UTC().AddDate(0, 0, -1)
	yesterdayFile := filepath.Join(s.outputDir, fmt.Sprintf("frames_%s.log", yesterday.Format("2006-01-02")))

	if _, err := os.Stat(yesterdayFile); err == nil {
		if err := s.compressFile(yesterdayFile); err != nil {
			return fmt.Errorf("failed to compress file: %w", err)
		}
	}

	// Create new file
	return s.rotateFile()
}

// validatePath rejects any path that escapes outputDir, guarding the
// rotation/compression routines against a malformed or tampered
// filename ever writing outside the configured log directory.
func (s *Storage) validatePath(path string) error {
	absOutput, err := filepath.Abs(s.outputDir)
	if err != nil {
		return fmt.Errorf("failed to resolve output directory: %w", err)
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	rel, err := filepath.Rel(absOutput, absPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path %s escapes output directory %s", path, s.outputDir)
	}
	return nil
}

// compressFile compresses a file using gzip and removes the source.
func (s *Storage) compressFile(path string) error {
	if err := s.validatePath(path); err != nil {
		return err
	}

	source, err := os.Open(path) // #nosec G304 - validated by validatePath above
	if err != nil {
		return err
	}
	defer source.Close()

	compressedFile := path + ".gz"
	target, err := os.Create(compressedFile) // #nosec G304 - validated by validatePath above
	if err != nil {
		return err
	}
	defer target.Close()

	gzipWriter := gzip.NewWriter(target)
	if _, err := io.Copy(gzipWriter, source); err != nil {
		gzipWriter.Close()
		return err
	}
	if err := gzipWriter.Close(); err != nil {
		return err
	}

	return os.Remove(path)
}

// rotateFile creates a new log file named for today's date.
func (s *Storage) rotateFile() error {
	timestamp := time.Now().UTC().Format("2006-01-02")
	filename := filepath.Join(s.outputDir, fmt.Sprintf("frames_%s.log", timestamp))

	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) // #nosec G302 - audit log, not sensitive
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	s.file = file
	return nil
}
