// Package repository is the key-value collaborator that persists the
// ignore-lists, the accepted raids and the roster snapshot.
package repository

import (
	"context"

	"github.com/okian/raidstats/internal/domain/model"
)

// Store provides read/write access to persisted raid state. Writes are
// append or idempotent merges; there are no cross-month transactions.
type Store interface {
	// LoadIgnored returns the ignore-list of month.
	LoadIgnored(ctx context.Context, month string) ([]model.IgnoredRaidKey, error)
	// AddIgnored stores rec unless its pair is already ignored for its month.
	// Returns true when a record was created.
	AddIgnored(ctx context.Context, rec model.IgnoredRaidKey) (bool, error)

	// LoadAccepted returns the accepted raids of month in write order.
	LoadAccepted(ctx context.Context, month string) ([]model.AcceptedRaid, error)
	// AppendAccepted appends raids to the month's record.
	AppendAccepted(ctx context.Context, month string, raids ...model.AcceptedRaid) error

	// Members returns the roster snapshot.
	Members(ctx context.Context) ([]model.Member, error)
	// PutMembers replaces the roster snapshot.
	PutMembers(ctx context.Context, members []model.Member) error

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
	Close() error
}
