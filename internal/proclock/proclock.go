// Copyright 2025 The Futu Stock MCP Server Authors. All rights reserved.
// Use of this source code is governed by a Apache-2.0
// license that can be found in the LICENSE file.

// Package proclock keeps a host to one server instance per lock path.
// OpenD caps concurrent API connections per login, so a second accidental
// instance would steal the quota from the first.
package proclock

import (
	"fmt"
	"os"
	"strconv"

	"github.com/gofrs/flock"
)

// Lock is a held single-instance lock.
type Lock struct {
	fl      *flock.Flock
	pidFile string
}

// Acquire takes the exclusive lock at path, failing fast when another
// instance holds it. The holder's PID is written next to the lock file so a
// stuck instance can be found.
func Acquire(path string) (*Lock, error) {
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("proclock: lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("proclock: another instance already holds %s", path)
	}

	pidFile := path + ".pid"
	if err := os.WriteFile(pidFile, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		_ = fl.Unlock()
		return nil, fmt.Errorf("proclock: write %s: %w", pidFile, err)
	}
	return &Lock{fl: fl, pidFile: pidFile}, nil
}

// Release drops the lock and removes the PID file.
func (l *Lock) Release() {
	_ = os.Remove(l.pidFile)
	_ = l.fl.Unlock()
}
