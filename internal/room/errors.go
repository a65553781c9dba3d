package room

import "errors"

var (
	// ErrForbidden rejects an action by a non-host or non-member.
	ErrForbidden = errors.New("requester is not allowed to perform this action")
	// ErrAlreadyStarted rejects a start on a room that is not WAITING.
	ErrAlreadyStarted = errors.New("room is not waiting")
	// ErrNotFound marks an unknown room or player.
	ErrNotFound = errors.New("not found")
	// ErrRoomFull rejects a join on a room at max capacity.
	ErrRoomFull = errors.New("room is full")
	// ErrInvalidBoundary rejects malformed boundary geometry.
	ErrInvalidBoundary = errors.New("invalid boundary")
)
