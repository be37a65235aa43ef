package mirror

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a fatal mirror failure.
type ErrorKind int

const (
	DirectoryCreateFailure ErrorKind = iota + 1
	RemoteListFailure
	RemoteFetchFailure
	LocalWriteFailure
	LocalReadFailure
)

func (k ErrorKind) String() string {
	switch k {
	case DirectoryCreateFailure:
		return "directory create failure"
	case RemoteListFailure:
		return "remote list failure"
	case RemoteFetchFailure:
		return "remote fetch failure"
	case LocalWriteFailure:
		return "local write failure"
	case LocalReadFailure:
		return "local read failure"
	default:
		return fmt.Sprintf("error kind(%d)", int(k))
	}
}

// Error is a fatal failure that aborts the run. It names the item and local
// path involved so the operator can find it.
type Error struct {
	Kind   ErrorKind
	ItemID string
	Name   string
	Path   string
	Err    error
}

func (e *Error) Error() string {
	if e.ItemID != "" {
		return fmt.Sprintf("mirror: %s at %s (item %s %q): %v", e.Kind, e.Path, e.ItemID, e.Name, e.Err)
	}

	return fmt.Sprintf("mirror: %s at %s: %v", e.Kind, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a mirror Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var me *Error
	return errors.As(err, &me) && me.Kind == kind
}

// annotate fills in the item identity on a mirror Error produced by a lower
// layer that only knew the path.
func annotate(err error, itemID, name string) error {
	var me *Error
	if errors.As(err, &me) && me.ItemID == "" {
		me.ItemID = itemID
		me.Name = name
	}

	return err
}
