package warden

// ClueSequence is the ordered list of hints handed out per attempt.
// Selection is 1-based by attempt number and clamps at the final
// entry, so the last clue doubles as the end-of-game summary.
type ClueSequence []string

// ClueFor returns the clue for the given 1-based attempt number.
// Attempts beyond the list length all return the final clue.
func (c ClueSequence) ClueFor(attempt int) string {
	if len(c) == 0 {
		return ""
	}
	i := attempt - 1
	if i >= len(c) {
		i = len(c) - 1
	}
	if i < 0 {
		i = 0
	}
	return c[i]
}

// Terminal formats the attempts-exhausted message. When a reveal text
// is configured it is appended to the final clue, so exhausted players
// still learn the answer.
func (c ClueSequence) Terminal(revealText string) string {
	last := c.ClueFor(len(c))
	if revealText == "" {
		return last
	}
	if last == "" {
		return revealText
	}
	return last + " " + revealText
}

// DefaultClues is the seven-clue holiday pointer riddle shipped with
// the game. Seven tries, seven hints, last one spills everything.
var DefaultClues = ClueSequence{
	"A pointer is Santa's address tag: where the gift sits in the snowy heap of memory.",
	"It stores the spot, not the present; follow it to read without hauling the box around.",
	"Use `&` like a wrapping label to capture an address and tuck it into the pointer stocking.",
	"`*` is your mitten to unwrap whatever lives at that address, peek or swap the contents.",
	"Stride pointers through arrays like a sleigh hop: move the signpost, visit each gift.",
	"Always check for null, like peeking down a chimney before sliding in to skip the segfault soot.",
	"Holiday reveal: a pointer is simply an address to data.",
}

// The default secret is shipped XOR-scrambled so neither the binary
// nor the repo contains the greppable plaintext next to its digest.
var obfuscatedSecret = []byte{83, 114, 117, 98, 112, 112, 123, 114}

const secretScrambleKey = 23

// DefaultRevealText spells out the default secret for the terminal
// and success messages.
func DefaultRevealText() string {
	word := make([]byte, len(obfuscatedSecret))
	for i, b := range obfuscatedSecret {
		word[i] = b ^ secretScrambleKey
	}
	return "Secret word is " + string(word) + "."
}

// DefaultSecretDigest is the sha256 of the normalized default secret.
const DefaultSecretDigest = "734871d2816666069b3f507d2f0c816cc1d724ca7f85b4a434bdea1851bc10b6"
