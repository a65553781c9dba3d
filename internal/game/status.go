package game

import "encoding/json"

// RoomStatus is the room lifecycle. SCHEDULED is the pre-WAITING variant
// for appointment-type rooms; the pursuit state machine itself only moves
// WAITING -> PLAYING -> FINISHED.
type RoomStatus int

const (
	RoomWaiting RoomStatus = iota
	RoomScheduled
	RoomPlaying
	RoomFinished
)

func (s RoomStatus) String() string {
	switch s {
	case RoomWaiting:
		return "WAITING"
	case RoomScheduled:
		return "SCHEDULED"
	case RoomPlaying:
		return "PLAYING"
	case RoomFinished:
		return "FINISHED"
	default:
		return "UNKNOWN"
	}
}

// MarshalJSON serializes RoomStatus as a string.
func (s RoomStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// ParticipantStatus tracks a player within a room. ARRESTED is only valid
// for thieves.
type ParticipantStatus int

const (
	StatusReady ParticipantStatus = iota
	StatusMoving
	StatusArrived
	StatusInGame
	StatusArrested
)

func (s ParticipantStatus) String() string {
	switch s {
	case StatusReady:
		return "READY"
	case StatusMoving:
		return "MOVING"
	case StatusArrived:
		return "ARRIVED"
	case StatusInGame:
		return "IN_GAME"
	case StatusArrested:
		return "ARRESTED"
	default:
		return "UNKNOWN"
	}
}

// MarshalJSON serializes ParticipantStatus as a string.
func (s ParticipantStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}
