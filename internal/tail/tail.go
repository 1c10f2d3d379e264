// Package tail delivers raw JSONL lines from session files to a consumer,
// either as a one-shot read or by following a file as the writing agent
// appends to it. It knows nothing about event shapes; interpretation is the
// normalizers' job.
package tail

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fsnotify/fsnotify"
)

// Session logs can carry large instructions payloads on a single line.
const maxLineSize = 8 * 1024 * 1024

// ReadLines reads every line of path and calls fn for each. Returning an
// error from fn stops the iteration and propagates the error.
func ReadLines(path string, fn func(line []byte) error) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open session file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 1024)
	scanner.Buffer(buf, maxLineSize)

	for scanner.Scan() {
		if err := fn(scanner.Bytes()); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan session: %w", err)
	}
	return nil
}

// Follow reads the existing content of path and then keeps delivering new
// complete lines as the file grows, until ctx is cancelled or the file goes
// away. Partial trailing lines are buffered until their newline arrives.
func Follow(ctx context.Context, path string, fn func(line []byte) error) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open session file: %w", err)
	}
	defer file.Close()

	reader := bufio.NewReaderSize(file, 64*1024)
	var pending []byte

	drain := func() error {
		for {
			chunk, err := reader.ReadBytes('\n')
			if len(chunk) > 0 && chunk[len(chunk)-1] == '\n' {
				line := append(pending, chunk[:len(chunk)-1]...)
				pending = nil
				if len(line) > 0 {
					if err := fn(line); err != nil {
						return err
					}
				}
			} else if len(chunk) > 0 {
				pending = append(pending, chunk...)
			}
			if err != nil {
				if errors.Is(err, io.EOF) {
					return nil
				}
				return fmt.Errorf("read session file: %w", err)
			}
		}
	}

	if err := drain(); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("watch session file: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				// The writer is done with this file; deliver what we have.
				return drain()
			}
			if event.Has(fsnotify.Write) {
				if err := drain(); err != nil {
					return err
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch session file: %w", err)
		}
	}
}
