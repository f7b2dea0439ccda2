// Copyright 2025 Greenbone AG
// Licensed under the AGPLv3, see LICENCE file for details.

// Package permission holds the vocabulary of granted operations. A
// permission row names the protocol command it grants, so the values here
// are persisted data and must remain stable.
package permission

import (
	"strings"

	"github.com/juju/errors"

	"github.com/greenbone/gvmd/core/resource"
)

// Command is the name of an operation a permission can grant, for example
// "get_tasks" or "modify_task".
type Command string

const (
	// Everything is the super permission. A subject holding it passes
	// every permission check, whatever the command.
	Everything Command = "Everything"

	// Any is a sentinel accepted where a list of required commands is
	// expected; it matches a grant of any name.
	Any Command = "any"

	// Restore takes a resource back out of the trashcan. One command
	// covers every resource type.
	Restore Command = "restore"

	// EmptyTrashcan discards the caller's trashcan for good.
	EmptyTrashcan Command = "empty_trashcan"
)

// Get returns the read command for a resource kind. Read commands are
// plural: get_tasks covers reading any number of tasks.
func Get(k resource.Kind) Command {
	return Command("get_" + k.Plural())
}

// Create returns the creation command for a resource kind.
func Create(k resource.Kind) Command {
	return Command("create_" + string(k))
}

// Modify returns the modification command for a resource kind.
func Modify(k resource.Kind) Command {
	return Command("modify_" + string(k))
}

// Delete returns the deletion command for a resource kind.
func Delete(k resource.Kind) Command {
	return Command("delete_" + string(k))
}

// IsGetClass reports whether the command is a read command. Read commands
// are satisfied by a grant of any name on the resource: holding any
// permission on a task implies being allowed to see that task.
func (c Command) IsGetClass() bool {
	return strings.HasPrefix(string(c), "get_")
}

// String implements Stringer.
func (c Command) String() string {
	return string(c)
}

// Validate returns an error satisfying errors.NotValid if the command is
// empty. Command names are otherwise free-form: the set of grantable
// commands grows with the protocol and unknown names simply never match.
func (c Command) Validate() error {
	if c == "" {
		return errors.NotValidf("empty permission command")
	}
	return nil
}
