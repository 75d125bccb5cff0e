// Copyright 2024 RouteCodex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

// Package tokenstore implements the on-disk Token Descriptor / Token
// Payload / Token History Aggregate data model: atomic read/write of
// per-provider OAuth token files, mtime tracking, and the history +
// suspension journal shared between the gateway and the refresh daemon.
package tokenstore

import "time"

// Status is the coarse freshness bucket a token file is evaluated into.
type Status string

const (
	StatusValid    Status = "valid"
	StatusExpiring Status = "expiring"
	StatusExpired  Status = "expired"
	StatusInvalid  Status = "invalid"
	StatusNoRefresh Status = "norefresh"
)

// State is the derived, point-in-time evaluation of a token file.
type State struct {
	Status        Status
	ExpiresAt     *time.Time
	MsUntilExpiry *int64
}

// Descriptor identifies one on-disk token file and its current state.
// It is a plain value built when token files are listed; refresh
// outcomes are recorded in History (RecordRefreshResult), not on a
// Descriptor.
type Descriptor struct {
	Provider    string
	Alias       string
	Sequence    int
	FilePath    string
	DisplayName string
	State       State
}

// Payload is the on-disk JSON shape of a token file. expiresAt is an
// absolute epoch-ms timestamp; when ApiKey is set it takes precedence
// over AccessToken for building the Authorization header.
type Payload struct {
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresAt    int64  `json:"expires_at"`
	Scope        string `json:"scope,omitempty"`
	APIKey       string `json:"apiKey,omitempty"`
	ResourceURL  string `json:"resource_url,omitempty"`
	ProjectID    string `json:"project_id,omitempty"`

	// ExpiryDate is the legacy field name some providers still emit;
	// LoadPayload migrates it into ExpiresAt when present and ExpiresAt
	// is zero.
	ExpiryDate int64 `json:"expiry_date,omitempty"`
}

// RefreshMode distinguishes daemon-driven refreshes from operator-driven
// ones: manual refreshes never count toward the auto-suspend streak.
type RefreshMode string

const (
	ModeAuto   RefreshMode = "auto"
	ModeManual RefreshMode = "manual"
)

// HistoryAggregate is the persisted per-token-key refresh history. The
// invariant refreshSuccesses+refreshFailures == totalAttempts must hold
// after every RecordRefreshResult call.
type HistoryAggregate struct {
	RefreshSuccesses int         `json:"refreshSuccesses"`
	RefreshFailures  int         `json:"refreshFailures"`
	TotalAttempts    int         `json:"totalAttempts"`
	LastAttemptAt    time.Time   `json:"lastAttemptAt"`
	LastDurationMs   int64       `json:"lastDurationMs"`
	LastMode         RefreshMode `json:"lastMode"`
	LastResult       string      `json:"lastResult"` // "success" | "failure"
	FailureStreak    int         `json:"failureStreak"`
	AutoSuspended    bool        `json:"autoSuspended"`
	SuspendedAt      *time.Time  `json:"suspendedAt,omitempty"`
	LastTokenMtime   *time.Time  `json:"lastTokenMtime,omitempty"`
}

// MaxAutoFailures is the failure-streak threshold (§3) at which an
// auto-mode refresh may set AutoSuspended.
const MaxAutoFailures = 3
