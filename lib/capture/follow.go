// Copyright 2026 The Foredeck Authors
// SPDX-License-Identifier: Apache-2.0

package capture

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/foredeck-sh/foredeck/lib/secret"
)

// FollowOptions configures a capture tail.
type FollowOptions struct {
	// Identity is the age X25519 private key for encrypted captures.
	Identity *secret.Buffer

	// Logger receives tail diagnostics; nil means slog.Default().
	Logger *slog.Logger
}

// Follower tails a capture that is still being written, delivering
// records as the recording process appends them.
type Follower struct {
	records chan Record

	mu  sync.Mutex
	err error
}

// Follow tails the capture at path. Records already on disk are
// delivered first, then new ones as they are appended. The records
// channel closes when the capture gains its trailer (the recording
// finished), when ctx is canceled, or on error; check Err after the
// channel closes. Cancellation is a clean stop, not an error.
//
// The file must already exist. The watch is inotify-based and covers
// the parent directory, so atomic replacement of the file is picked
// up along with in-place appends.
func Follow(ctx context.Context, path string, options FollowOptions) (*Follower, error) {
	if options.Logger == nil {
		options.Logger = slog.Default()
	}

	absolutePath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(absolutePath); err != nil {
		return nil, err
	}

	directory := filepath.Dir(absolutePath)
	filename := filepath.Base(absolutePath)

	fd, err := unix.InotifyInit1(unix.IN_NONBLOCK | unix.IN_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("inotify init: %w", err)
	}
	// IN_MODIFY catches appends to the open capture; IN_CLOSE_WRITE
	// and IN_MOVED_TO catch completed writes and atomic renames.
	_, err = unix.InotifyAddWatch(fd, directory, unix.IN_MODIFY|unix.IN_CLOSE_WRITE|unix.IN_MOVED_TO)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("watching %s: %w", directory, err)
	}

	follower := &Follower{records: make(chan Record, 16)}
	go follower.loop(ctx, fd, absolutePath, filename, options)
	return follower, nil
}

// Records returns the channel of tailed records. It is closed when
// the tail ends.
func (f *Follower) Records() <-chan Record {
	return f.records
}

// Err returns the error that ended the tail, if any. Valid after the
// records channel has closed.
func (f *Follower) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *Follower) fail(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

// loop rescans the capture on each inotify hit until the trailer
// lands.
func (f *Follower) loop(ctx context.Context, fd int, path string, filename string, options FollowOptions) {
	defer unix.Close(fd)
	defer close(f.records)

	// Initial scan picks up whatever is already on disk. The watch
	// was established before this, so appends racing the scan still
	// produce an event and a rescan.
	lastSeq := uint64(0)
	complete, err := f.scan(ctx, path, &lastSeq, options.Identity)
	if err != nil {
		if ctx.Err() == nil {
			f.fail(err)
		}
		return
	}
	if complete {
		return
	}

	buffer := make([]byte, 4096)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		pollDescriptors := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
		count, err := unix.Poll(pollDescriptors, 100)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			f.fail(fmt.Errorf("polling inotify: %w", err))
			return
		}
		if count == 0 {
			continue
		}

		bytesRead, err := unix.Read(fd, buffer)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EINTR {
				continue
			}
			f.fail(fmt.Errorf("reading inotify events: %w", err))
			return
		}

		if !inotifyMatchesFile(buffer[:bytesRead], filename) {
			continue
		}

		// Debounce: wait 50ms and drain any additional events that
		// arrived during that window. Coalesces bursts of appends
		// into a single rescan.
		time.Sleep(50 * time.Millisecond)
		drainInotifyEvents(fd, buffer)

		complete, err := f.scan(ctx, path, &lastSeq, options.Identity)
		if err != nil {
			if ctx.Err() == nil {
				f.fail(err)
			}
			return
		}
		if complete {
			options.Logger.Debug("capture complete", "path", path, "records", lastSeq)
			return
		}
	}
}

// scan reads the capture from the top and delivers records beyond
// lastSeq. Returns complete=true once the trailer has been read and
// verified. A capture that is still growing reads as truncated; that
// is not an error here, just a reason to wait for the next event.
func (f *Follower) scan(ctx context.Context, path string, lastSeq *uint64, identity *secret.Buffer) (bool, error) {
	reader, err := Open(path, ReaderOptions{Identity: identity})
	if err != nil {
		if errors.Is(err, ErrTruncated) {
			// Header not fully on disk yet.
			return false, nil
		}
		return false, err
	}
	defer reader.Close()

	for reader.Next() {
		record := reader.Record()
		if record.Seq <= *lastSeq {
			continue
		}
		select {
		case f.records <- record:
			*lastSeq = record.Seq
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}

	if err := reader.Err(); err != nil {
		if errors.Is(err, ErrTruncated) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// inotifyMatchesFile checks whether any inotify event in the buffer
// matches the target filename. Layout from inotify(7):
//
//	struct inotify_event {
//	    int32_t  wd;     // offset 0
//	    uint32_t mask;   // offset 4
//	    uint32_t cookie; // offset 8
//	    uint32_t len;    // offset 12
//	    char     name[]; // offset 16, null-padded to alignment
//	};
func inotifyMatchesFile(buffer []byte, targetFilename string) bool {
	offset := 0
	for offset+unix.SizeofInotifyEvent <= len(buffer) {
		nameLength := int(binary.NativeEndian.Uint32(buffer[offset+12 : offset+16]))
		eventSize := unix.SizeofInotifyEvent + nameLength
		if offset+eventSize > len(buffer) {
			break
		}

		if nameLength > 0 {
			nameBytes := buffer[offset+unix.SizeofInotifyEvent : offset+eventSize]
			if nullTerminatedString(nameBytes) == targetFilename {
				return true
			}
		}

		offset += eventSize
	}
	return false
}

// nullTerminatedString extracts a string from a null-padded byte
// slice, stopping at the first null byte.
func nullTerminatedString(data []byte) string {
	for i, b := range data {
		if b == 0 {
			return string(data[:i])
		}
	}
	return string(data)
}

// drainInotifyEvents reads and discards any pending inotify events.
// Called after the debounce sleep to coalesce rapid appends into a
// single rescan.
func drainInotifyEvents(fd int, buffer []byte) {
	for {
		_, err := unix.Read(fd, buffer)
		if err != nil {
			// EAGAIN means no more events; any other error, stop.
			return
		}
	}
}
