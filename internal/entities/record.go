package entities

import "time"

// PermissionRecord is a catalog definition as persisted in the store. The
// store-assigned ID stays stable across reconciliations; only the definition
// metadata is overwritten.
type PermissionRecord struct {
	ID         string // UUID, assigned on first insert
	Definition PermissionDefinition
	IsActive   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
