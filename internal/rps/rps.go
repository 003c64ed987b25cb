// Package rps holds the pure game logic: move encoding, the commit-reveal
// game key derivation, and the outcome rule. Nothing here touches chain
// state; everything is deterministic so it can be recomputed by clients
// and by the chain independently.
package rps

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Move is a player's choice. Zero is reserved for "not yet made" so a
// stored game record can distinguish an unjoined game from a joined one.
type Move uint8

const (
	MoveUnset    Move = 0
	MoveRock     Move = 1
	MovePaper    Move = 2
	MoveScissors Move = 3
)

func (m Move) Valid() bool {
	return m >= MoveRock && m <= MoveScissors
}

func (m Move) String() string {
	switch m {
	case MoveRock:
		return "rock"
	case MovePaper:
		return "paper"
	case MoveScissors:
		return "scissors"
	case MoveUnset:
		return "unset"
	default:
		return fmt.Sprintf("move(%d)", uint8(m))
	}
}

// GameKey is the sha256 commitment over (secret, move, committer). It is
// both the hiding/binding commitment to player1's move and the registry
// key of the game record.
type GameKey [sha256.Size]byte

func (k GameKey) String() string {
	return hex.EncodeToString(k[:])
}

func ParseGameKey(s string) (GameKey, error) {
	var k GameKey
	b, err := hex.DecodeString(s)
	if err != nil {
		return GameKey{}, fmt.Errorf("invalid game key hex: %w", err)
	}
	if len(b) != len(k) {
		return GameKey{}, fmt.Errorf("invalid game key length: got %d want %d", len(b), len(k))
	}
	copy(k[:], b)
	return k, nil
}

const keyDomainV1 = "rps/key/v1"

// DeriveGameKey computes the commitment for (secret, move) bound to the
// committer's account. Binding the committer prevents a third party from
// replaying someone else's (secret, move) under their own identity, and it
// is what makes reveal permissionless: only the secret holder can
// reproduce the key, so no access check on the revealer is needed.
//
// The secret is pre-hashed so the layout is unambiguous: every field
// before the variable-width committer id has a fixed width.
func DeriveGameKey(secret []byte, move Move, committer string) GameKey {
	secretSum := sha256.Sum256(secret)

	h := sha256.New()
	h.Write([]byte(keyDomainV1))
	h.Write([]byte{0})
	h.Write(secretSum[:])
	h.Write([]byte{byte(move)})
	h.Write([]byte(committer))

	var k GameKey
	copy(k[:], h.Sum(nil))
	return k
}

// VerifyReveal re-derives the commitment and compares it with the stored
// key. A mismatch means the revealed (secret, move) pair is not the one
// the committer originally locked in.
func VerifyReveal(secret []byte, move Move, committer string, claimed GameKey) bool {
	return DeriveGameKey(secret, move, committer) == claimed
}

// Outcome of a resolved game.
type Outcome uint8

const (
	OutcomeDraw Outcome = iota
	OutcomePlayer1Wins
	OutcomePlayer2Wins
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDraw:
		return "draw"
	case OutcomePlayer1Wins:
		return "player1"
	case OutcomePlayer2Wins:
		return "player2"
	default:
		return fmt.Sprintf("outcome(%d)", uint8(o))
	}
}

// Resolve applies the 3-cycle beats relation: each move beats exactly the
// previous one, so d = (move2 - move1) mod 3 decides the game. d==1 means
// player2 played the move that beats player1's.
func Resolve(move1, move2 Move) (Outcome, error) {
	if !move1.Valid() {
		return OutcomeDraw, fmt.Errorf("invalid move1: %s", move1)
	}
	if !move2.Valid() {
		return OutcomeDraw, fmt.Errorf("invalid move2: %s", move2)
	}
	switch (uint8(move2) - uint8(move1) + 3) % 3 {
	case 0:
		return OutcomeDraw, nil
	case 1:
		return OutcomePlayer2Wins, nil
	default:
		return OutcomePlayer1Wins, nil
	}
}
