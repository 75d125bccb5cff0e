// Copyright 2024 RouteCodex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package daemon

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeaseManager_TryAcquire_SucceedsWhenNoLeaseExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leader.json")
	m := NewLeaseManager(path, "owner-a")

	ok, err := m.TryAcquire()
	require.NoError(t, err)
	assert.True(t, ok)

	l, err := readLease(path)
	require.NoError(t, err)
	assert.Equal(t, "owner-a", l.OwnerID)
	assert.Equal(t, os.Getpid(), l.PID)
}

func TestLeaseManager_TryAcquire_BacksOffForLiveCompetitor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leader.json")
	require.NoError(t, writeLease(path, Lease{OwnerID: "owner-a", PID: os.Getpid()}))

	m := NewLeaseManager(path, "owner-b")
	ok, err := m.TryAcquire()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLeaseManager_TryAcquire_ReclaimsWhenOwnerPIDIsDead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leader.json")
	// A pid astronomically unlikely to be alive.
	require.NoError(t, writeLease(path, Lease{OwnerID: "owner-a", PID: 999999}))

	m := NewLeaseManager(path, "owner-b")
	ok, err := m.TryAcquire()
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLeaseManager_TryAcquire_SameOwnerAlwaysReacquires(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leader.json")
	m := NewLeaseManager(path, "owner-a")

	ok1, err := m.TryAcquire()
	require.NoError(t, err)
	assert.True(t, ok1)

	ok2, err := m.TryAcquire()
	require.NoError(t, err)
	assert.True(t, ok2)
}

func TestLeaseManager_Release_RemovesOwnLease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leader.json")
	m := NewLeaseManager(path, "owner-a")
	_, err := m.TryAcquire()
	require.NoError(t, err)

	require.NoError(t, m.Release())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestLeaseManager_Release_LeavesOthersLeaseAlone(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leader.json")
	require.NoError(t, writeLease(path, Lease{OwnerID: "owner-a", PID: os.Getpid()}))

	m := NewLeaseManager(path, "owner-b")
	require.NoError(t, m.Release())

	_, err := os.Stat(path)
	assert.NoError(t, err)
}
