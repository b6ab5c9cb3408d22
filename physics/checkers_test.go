// physics/checkers_test.go
package physics

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checkersMove(t *testing.T, fr, fc, tr, tc int) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(checkersInput{
		From: &Square{R: fr, C: fc},
		To:   &Square{R: tr, C: tc},
	})
	require.NoError(t, err)
	return raw
}

func TestCheckersInitialSetup(t *testing.T) {
	k := NewCheckersKernel(CheckersOracle{})
	s := k.InitialState(1).(*CheckersState)

	assert.Equal(t, 12, countPieces(s.Board, 0))
	assert.Equal(t, 12, countPieces(s.Board, 1))
	assert.Equal(t, 0, s.Turn)
	assert.False(t, k.CheckTerminal(s).Terminal)
}

func TestCheckersOutOfTurnRejected(t *testing.T) {
	k := NewCheckersKernel(CheckersOracle{})
	s := k.InitialState(1)

	_, err := k.ApplyInput(s, 1, checkersMove(t, 5, 0, 4, 1))
	var inputErr *InputError
	require.True(t, errors.As(err, &inputErr))
	assert.Contains(t, inputErr.Reason, "not your turn")
}

func TestCheckersIllegalMoveRejected(t *testing.T) {
	k := NewCheckersKernel(CheckersOracle{})
	s := k.InitialState(1)

	// Backward step for a man.
	_, err := k.ApplyInput(s, 0, checkersMove(t, 2, 1, 1, 0))
	var inputErr *InputError
	assert.True(t, errors.As(err, &inputErr))

	// Board unchanged, still slot 0 to move.
	assert.Equal(t, 0, s.(*CheckersState).Turn)
	assert.Equal(t, 12, countPieces(s.(*CheckersState).Board, 0))
}

func TestCheckersStepPassesTurn(t *testing.T) {
	k := NewCheckersKernel(CheckersOracle{})
	s := k.InitialState(1)

	st, err := k.ApplyInput(s, 0, checkersMove(t, 2, 1, 3, 0))
	require.NoError(t, err)
	cs := st.(*CheckersState)
	assert.Equal(t, 1, cs.Turn)
	assert.Equal(t, ManA, cs.Board[3][0])
	assert.Equal(t, Empty, cs.Board[2][1])
	assert.Equal(t, 1, cs.Quiet)
}

func TestCheckersForcedCapture(t *testing.T) {
	// Slot 0 man at (3,2), slot 1 man at (4,3): a jump to (5,4) exists, so
	// quiet steps must not be offered at all.
	var b Board
	b[3][2] = ManA
	b[4][3] = ManB
	b[7][0] = ManB // keep slot 1 alive

	moves := CheckersOracle{}.LegalMoves(b, 0, nil)
	require.Len(t, moves, 1)
	assert.Equal(t, Square{R: 3, C: 2}, moves[0].From)
	assert.Equal(t, Square{R: 5, C: 4}, moves[0].To)
	require.NotNil(t, moves[0].Capture)
	assert.Equal(t, Square{R: 4, C: 3}, *moves[0].Capture)
}

func TestCheckersMultiJumpKeepsTurn(t *testing.T) {
	k := NewCheckersKernel(CheckersOracle{})
	var b Board
	b[1][2] = ManA
	b[2][3] = ManB
	b[4][5] = ManB
	s := &CheckersState{Board: b, Turn: 0}

	st, err := k.ApplyInput(s, 0, checkersMove(t, 1, 2, 3, 4))
	require.NoError(t, err)
	cs := st.(*CheckersState)

	// First jump captured (2,3) and a second is available: same slot keeps
	// the move, pinned to the jumping piece.
	assert.Equal(t, 0, cs.Turn)
	require.NotNil(t, cs.MustMoveFrom)
	assert.Equal(t, Square{R: 3, C: 4}, *cs.MustMoveFrom)
	assert.Equal(t, Empty, cs.Board[2][3])

	// Only the continuation jump is legal now.
	moves := CheckersOracle{}.LegalMoves(cs.Board, 0, cs.MustMoveFrom)
	require.Len(t, moves, 1)
	assert.Equal(t, Square{R: 5, C: 6}, moves[0].To)

	st, err = k.ApplyInput(cs, 0, checkersMove(t, 3, 4, 5, 6))
	require.NoError(t, err)
	cs = st.(*CheckersState)
	assert.Equal(t, 1, cs.Turn)
	assert.Nil(t, cs.MustMoveFrom)
	assert.Equal(t, 0, countPieces(cs.Board, 1))
}

func TestCheckersPromotionEndsTurn(t *testing.T) {
	k := NewCheckersKernel(CheckersOracle{})
	var b Board
	b[6][1] = ManA
	b[0][5] = ManB // keep slot 1 alive
	s := &CheckersState{Board: b, Turn: 0, Quiet: 10}

	st, err := k.ApplyInput(s, 0, checkersMove(t, 6, 1, 7, 2))
	require.NoError(t, err)
	cs := st.(*CheckersState)
	assert.Equal(t, KingA, cs.Board[7][2])
	assert.Equal(t, 1, cs.Turn)
	assert.Equal(t, 0, cs.Quiet) // promotion resets the quiet counter
}

func TestCheckersNoPiecesLoses(t *testing.T) {
	k := NewCheckersKernel(CheckersOracle{})
	var b Board
	b[4][3] = KingA
	s := &CheckersState{Board: b, Turn: 1}

	term := k.CheckTerminal(s)
	require.True(t, term.Terminal)
	assert.False(t, term.Draw)
	assert.Equal(t, 0, term.WinnerSlot)
}

func TestCheckersNoMovesLoses(t *testing.T) {
	k := NewCheckersKernel(CheckersOracle{})
	// Slot 1 man at (0,1) has reached... men at row 0 would be kings; use a
	// man blocked in the corner instead: (1,0) can only go to (0,1), which
	// is occupied by its own king with nothing to jump.
	var b Board
	b[1][0] = ManB
	b[0][1] = KingB
	b[7][6] = ManA
	// The king is boxed in by the man and the board edge; give it no moves
	// either: (1,2) occupied by a friendly piece, (1,0) occupied.
	b[1][2] = ManB
	// ManB at (1,2) can still move down to (0,3) though, so slot 1 is not
	// stuck. Block that too.
	b[0][3] = KingB
	// KingB at (0,3) can move to (1,4): occupy it.
	b[1][4] = ManB
	// ManB at (1,4) can move to (0,5): occupy it.
	b[0][5] = KingB
	// KingB at (0,5) can move to (1,6): occupy it.
	b[1][6] = ManB
	// ManB at (1,6) can move to (0,7): occupy it.
	b[0][7] = KingB

	s := &CheckersState{Board: b, Turn: 1}
	require.Empty(t, CheckersOracle{}.LegalMoves(b, 1, nil))

	term := k.CheckTerminal(s)
	require.True(t, term.Terminal)
	assert.Equal(t, 0, term.WinnerSlot)
}

func TestCheckersQuietDraw(t *testing.T) {
	k := NewCheckersKernel(CheckersOracle{})
	var b Board
	b[4][3] = KingA
	b[2][5] = KingB
	s := &CheckersState{Board: b, Turn: 0, Quiet: checkersDrawHalfmoves}

	term := k.CheckTerminal(s)
	require.True(t, term.Terminal)
	assert.True(t, term.Draw)
}
