package game

import (
	"math"
	"math/rand"
	"strings"
)

// RoleAssigner decides team composition at game start. It is injected into
// the room state machine so the algorithm can be swapped without touching
// transition logic.
type RoleAssigner interface {
	// Assign sets Role on every participant and returns the police count.
	Assign(participants []*Participant) int
}

// RandomAssigner shuffles participants and makes the first
// max(1, round(ratio*total)) of them police. With a single participant
// that player is always police, which forces 0 thieves; callers guard
// that edge case separately.
type RandomAssigner struct {
	PoliceRatio float64
}

func (a RandomAssigner) Assign(participants []*Participant) int {
	total := len(participants)
	if total == 0 {
		return 0
	}

	shuffled := make([]*Participant, total)
	copy(shuffled, participants)
	rand.Shuffle(total, func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	policeCount := int(math.Round(float64(total) * a.PoliceRatio))
	if policeCount < 1 {
		policeCount = 1
	}
	if policeCount > total {
		policeCount = total
	}

	for i, p := range shuffled {
		if i < policeCount {
			p.Role = RolePolice
		} else {
			p.Role = RoleThief
		}
	}
	return policeCount
}

// KeywordAssigner assigns roles from nickname keywords, for deterministic
// test fixtures. Nicknames containing the police keyword become police,
// ones containing the thief keyword become thieves, everyone else defaults
// to thief. If that would leave zero police, the last participant becomes
// police instead.
type KeywordAssigner struct {
	PoliceKeyword string
	ThiefKeyword  string
}

func (a KeywordAssigner) Assign(participants []*Participant) int {
	total := len(participants)
	if total == 0 {
		return 0
	}

	policeCount := 0
	for _, p := range participants {
		switch {
		case strings.Contains(p.Nickname, a.PoliceKeyword):
			p.Role = RolePolice
			policeCount++
		case strings.Contains(p.Nickname, a.ThiefKeyword):
			p.Role = RoleThief
		default:
			p.Role = RoleThief
		}
	}

	if policeCount == 0 {
		participants[total-1].Role = RolePolice
		policeCount = 1
	}
	return policeCount
}
