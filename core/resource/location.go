// Copyright 2025 Greenbone AG
// Licensed under the AGPLv3, see LICENCE file for details.

package resource

// Location distinguishes the live tables from their trashcan twins. The
// numeric values are persisted in permission rows (resource_location,
// subject_location) and must not change.
type Location int

const (
	// LocationTable addresses the live table of a resource kind.
	LocationTable Location = 0

	// LocationTrash addresses the trashcan twin of a resource kind.
	LocationTrash Location = 1
)

// String implements Stringer.
func (l Location) String() string {
	if l == LocationTrash {
		return "trash"
	}
	return "table"
}
