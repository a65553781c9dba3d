package room

import "math/rand"

// Codes are what players read out loud to invite each other, so they stay
// short and uppercase-only.
const (
	codeLength  = 4
	codeRetries = 100
)

var codeAlphabet = []rune("ABCDEFGHIJKLMNOPQRSTUVWXYZ")

// GenerateCode returns a code not present in existing. With 26^4 possible
// codes a collision streak past the retry cap is effectively impossible;
// the last candidate is returned unchecked in that case.
func GenerateCode(existing map[string]bool) string {
	code := randomCode()
	for i := 0; i < codeRetries && existing[code]; i++ {
		code = randomCode()
	}
	return code
}

func randomCode() string {
	b := make([]rune, codeLength)
	for i := range b {
		b[i] = codeAlphabet[rand.Intn(len(codeAlphabet))]
	}
	return string(b)
}
