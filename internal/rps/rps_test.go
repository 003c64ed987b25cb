package rps

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeriveGameKey_Deterministic(t *testing.T) {
	k1 := DeriveGameKey([]byte("secret"), MoveScissors, "alice")
	k2 := DeriveGameKey([]byte("secret"), MoveScissors, "alice")
	require.Equal(t, k1, k2)
}

func TestDeriveGameKey_SensitiveToEveryInput(t *testing.T) {
	base := DeriveGameKey([]byte("secret"), MoveRock, "alice")

	require.NotEqual(t, base, DeriveGameKey([]byte("secret2"), MoveRock, "alice"))
	require.NotEqual(t, base, DeriveGameKey([]byte("secret"), MovePaper, "alice"))
	require.NotEqual(t, base, DeriveGameKey([]byte("secret"), MoveRock, "bob"))
}

func TestDeriveGameKey_CommitterBinding(t *testing.T) {
	// Same (secret, move) committed by two accounts must occupy two
	// distinct keys, otherwise a front-runner could squat on a key.
	kAlice := DeriveGameKey([]byte("s"), MoveRock, "alice")
	kBob := DeriveGameKey([]byte("s"), MoveRock, "bob")
	require.NotEqual(t, kAlice, kBob)
}

func TestVerifyReveal(t *testing.T) {
	k := DeriveGameKey([]byte("secret"), MovePaper, "alice")

	require.True(t, VerifyReveal([]byte("secret"), MovePaper, "alice", k))
	require.False(t, VerifyReveal([]byte("secret"), MoveRock, "alice", k))
	require.False(t, VerifyReveal([]byte("other"), MovePaper, "alice", k))
	require.False(t, VerifyReveal([]byte("secret"), MovePaper, "bob", k))
}

func TestParseGameKey_RoundTrip(t *testing.T) {
	k := DeriveGameKey([]byte("secret"), MoveRock, "alice")
	parsed, err := ParseGameKey(k.String())
	require.NoError(t, err)
	require.Equal(t, k, parsed)
}

func TestParseGameKey_Rejects(t *testing.T) {
	_, err := ParseGameKey("zz")
	require.Error(t, err)

	_, err = ParseGameKey("abcd")
	require.Error(t, err)
}

func TestResolve_AllPairs(t *testing.T) {
	cases := []struct {
		move1, move2 Move
		want         Outcome
	}{
		{MoveRock, MoveRock, OutcomeDraw},
		{MovePaper, MovePaper, OutcomeDraw},
		{MoveScissors, MoveScissors, OutcomeDraw},
		{MoveRock, MovePaper, OutcomePlayer2Wins},
		{MoveRock, MoveScissors, OutcomePlayer1Wins},
		{MovePaper, MoveRock, OutcomePlayer1Wins},
		{MovePaper, MoveScissors, OutcomePlayer2Wins},
		{MoveScissors, MoveRock, OutcomePlayer2Wins},
		{MoveScissors, MovePaper, OutcomePlayer1Wins},
	}
	for _, tc := range cases {
		got, err := Resolve(tc.move1, tc.move2)
		require.NoError(t, err)
		require.Equal(t, tc.want, got, "%s vs %s", tc.move1, tc.move2)
	}
}

func TestResolve_Symmetry(t *testing.T) {
	moves := []Move{MoveRock, MovePaper, MoveScissors}
	for _, m1 := range moves {
		for _, m2 := range moves {
			fwd, err := Resolve(m1, m2)
			require.NoError(t, err)
			rev, err := Resolve(m2, m1)
			require.NoError(t, err)

			switch fwd {
			case OutcomeDraw:
				require.Equal(t, OutcomeDraw, rev)
			case OutcomePlayer1Wins:
				require.Equal(t, OutcomePlayer2Wins, rev)
			case OutcomePlayer2Wins:
				require.Equal(t, OutcomePlayer1Wins, rev)
			}
		}
	}
}

func TestResolve_RejectsInvalidMoves(t *testing.T) {
	_, err := Resolve(MoveUnset, MoveRock)
	require.Error(t, err)

	_, err = Resolve(MoveRock, Move(9))
	require.Error(t, err)
}
