// Package storage defines persistence contracts for recorded lap telemetry.
// Implementations live in subpackages; callers depend only on the
// interfaces so stores can be swapped in tests.
package storage
