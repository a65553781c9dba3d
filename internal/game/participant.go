package game

import "github.com/google/uuid"

const defaultMMR = 1000

// Participant is one player inside a room. Role is assigned exactly once,
// at game start, and never reassigned mid-session.
type Participant struct {
	PlayerID string            `json:"player_id"`
	Nickname string            `json:"nickname"`
	Role     Role              `json:"role"`
	Status   ParticipantStatus `json:"status"`
	Ready    bool              `json:"ready"`
	MMR      int               `json:"mmr"`

	// Escaped marks a player who left mid-game; settlement applies a flat
	// penalty regardless of the team outcome.
	Escaped bool `json:"-"`
}

// NewParticipant creates a participant with a fresh player id.
func NewParticipant(nickname string) *Participant {
	return &Participant{
		PlayerID: uuid.New().String(),
		Nickname: nickname,
		Role:     RoleNone,
		Status:   StatusReady,
		MMR:      defaultMMR,
	}
}

func (p *Participant) Arrest() {
	p.Status = StatusArrested
}

func (p *Participant) Release() {
	p.Status = StatusInGame
}

func (p *Participant) IsArrested() bool {
	return p.Status == StatusArrested
}

// IsFreeThief reports whether the participant is a thief still in play.
// Arrested and escaped thieves are out of the chase.
func (p *Participant) IsFreeThief() bool {
	return p.Role == RoleThief && !p.IsArrested() && !p.Escaped
}
