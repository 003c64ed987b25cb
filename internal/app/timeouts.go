package app

import (
	"rpschain/internal/state"
)

// The two dispute deadlines. Join must happen before the closing deadline
// elapses; once a game is joined, reveal gets an extra dispute offset on
// top of it. Comparisons are inclusive: now == deadline already counts as
// deadline reached.

func joinDeadline(g *state.Game) (int64, error) {
	return addInt64AndU64Checked(g.StartedAt, g.ClosingSecs, "join deadline")
}

func revealDeadline(st *state.State, g *state.Game) (int64, error) {
	d1, err := joinDeadline(g)
	if err != nil {
		return 0, err
	}
	return addInt64AndU64Checked(d1, st.Params.DisputeOffsetSecs, "reveal deadline")
}

// failedGameClaimable reports whether an unjoined game may be reported as
// failed at the given clock reading.
func failedGameClaimable(g *state.Game, nowUnix int64) (bool, error) {
	deadline, err := joinDeadline(g)
	if err != nil {
		return false, err
	}
	return nowUnix >= deadline, nil
}

// uncoopClaimable reports whether a joined-but-unrevealed game may be
// claimed by player2 at the given clock reading.
func uncoopClaimable(st *state.State, g *state.Game, nowUnix int64) (bool, error) {
	deadline, err := revealDeadline(st, g)
	if err != nil {
		return false, err
	}
	return nowUnix >= deadline, nil
}
