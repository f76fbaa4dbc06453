package repositories

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates the attempted write would violate a uniqueness constraint.
	ErrConflict = errors.New("record conflict")
	// ErrAlreadyFriends indicates a friend request between users who already share an edge.
	ErrAlreadyFriends = errors.New("already friends")
	// ErrRequestPending indicates a duplicate friend request while one is still pending.
	ErrRequestPending = errors.New("request already pending")
	// ErrRequestNotPending indicates an accept or reject on a request already in a terminal state.
	ErrRequestNotPending = errors.New("request not pending")
	// ErrSelfRequest indicates a user tried to befriend themselves.
	ErrSelfRequest = errors.New("cannot befriend yourself")
)
