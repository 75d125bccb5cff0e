// Copyright 2024 RouteCodex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

// Package daemon implements the Refresh Daemon: a single-leader,
// tick-driven background loop that keeps OAuth-backed token files fresh
// across every configured provider, and the manual-refresh operation the
// tokenctl CLI drives directly.
package daemon

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// Lease is the on-disk shape of leader.json (§6): the process currently
// permitted to run the tick loop.
type Lease struct {
	OwnerID   string    `json:"ownerId"`
	PID       int       `json:"pid"`
	StartedAt time.Time `json:"startedAt"`
}

// LeaseManager claims and renews the single-leader file lease at path.
// Only one process at a time runs the tick loop; others detect a live pid
// in the lease file and back off without error.
type LeaseManager struct {
	path    string
	ownerID string
}

// NewLeaseManager builds a LeaseManager over path for a process
// identifying itself as ownerID (typically hostname:pid or a UUID).
func NewLeaseManager(path, ownerID string) *LeaseManager {
	return &LeaseManager{path: path, ownerID: ownerID}
}

// TryAcquire claims the lease if no other live process holds it, writing
// {ownerID, pid, startedAt}. Returns false (no error) when a live
// competitor already holds it — the caller should back off rather than
// treat this as fatal.
func (m *LeaseManager) TryAcquire() (bool, error) {
	existing, err := readLease(m.path)
	if err != nil && !os.IsNotExist(err) {
		return false, err
	}
	if existing != nil && existing.OwnerID != m.ownerID && isLivePID(existing.PID) {
		return false, nil
	}

	lease := Lease{OwnerID: m.ownerID, PID: os.Getpid(), StartedAt: time.Now()}
	if err := writeLease(m.path, lease); err != nil {
		return false, err
	}
	return true, nil
}

// Renew re-stamps the lease's startedAt so competitors watching the file's
// mtime can tell this leader is still alive between ticks. Safe to call
// even if another process holds the lease — renewal simply overwrites,
// matching TryAcquire's liveness check rather than requiring fencing.
func (m *LeaseManager) Renew() error {
	lease := Lease{OwnerID: m.ownerID, PID: os.Getpid(), StartedAt: time.Now()}
	return writeLease(m.path, lease)
}

// Release removes the lease file if this process currently owns it.
func (m *LeaseManager) Release() error {
	existing, err := readLease(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if existing.OwnerID != m.ownerID || existing.PID != os.Getpid() {
		return nil
	}
	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func readLease(path string) (*Lease, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var l Lease
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("daemon: parse lease %s: %w", path, err)
	}
	return &l, nil
}

func writeLease(path string, l Lease) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("daemon: mkdir for lease %s: %w", path, err)
	}
	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-lease-*")
	if err != nil {
		return fmt.Errorf("daemon: create temp lease: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// isLivePID reports whether pid names a running process. Signal 0 probes
// existence/permission without actually signaling the process.
func isLivePID(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil
}
