// physics/checkers.go
package physics

import (
	"encoding/json"
	"math/rand"
)

// Piece codes on the board. Positive pieces belong to slot 0 and move toward
// higher rows; negative pieces belong to slot 1 and move toward lower rows.
const (
	Empty     int8 = 0
	ManA      int8 = 1
	KingA     int8 = 2
	ManB      int8 = -1
	KingB     int8 = -2
	BoardSize      = 8
)

// Board is the 8x8 checkers grid, row 0 at slot A's back rank.
type Board [BoardSize][BoardSize]int8

// Square addresses one board cell.
type Square struct {
	R int `json:"r"`
	C int `json:"c"`
}

// Move is one legal displacement, including capture bookkeeping.
type Move struct {
	From    Square  `json:"from"`
	To      Square  `json:"to"`
	Capture *Square `json:"capture,omitempty"`
}

// MoveOracle is the pluggable legality capability for board variants.
// When any capture is available for the slot, the returned set contains only
// captures (mandatory-capture policy).
type MoveOracle interface {
	LegalMoves(b Board, slot int, mustMoveFrom *Square) []Move
}

const checkersDrawHalfmoves = 80 // halfmoves without capture or promotion

// CheckersState is the full state of a turn-based checkers match.
type CheckersState struct {
	Board Board `json:"board"`
	Turn  int   `json:"turn"` // slot holding the move

	// MustMoveFrom pins the turn to one piece mid multi-jump.
	MustMoveFrom *Square `json:"must_move_from,omitempty"`

	// Quiet counts halfmoves since the last capture or promotion.
	Quiet int `json:"quiet"`
}

// Scores implements Scorer: remaining piece counts per slot.
func (s *CheckersState) Scores() [2]int {
	return [2]int{countPieces(s.Board, 0), countPieces(s.Board, 1)}
}

type checkersKernel struct {
	oracle MoveOracle
}

// NewCheckersKernel returns the kernel for the checkers variant, delegating
// move legality to the given oracle.
func NewCheckersKernel(oracle MoveOracle) Kernel {
	return checkersKernel{oracle: oracle}
}

func (checkersKernel) Variant() string  { return VariantCheckers }
func (checkersKernel) Continuous() bool { return false }

func (checkersKernel) InitialState(seed int64) State {
	// Seed is unused: checkers has no randomness. Kept so every variant
	// initializes through the same call.
	_ = rand.NewSource(seed)

	s := &CheckersState{Turn: 0}
	for r := 0; r < 3; r++ {
		for c := 0; c < BoardSize; c++ {
			if (r+c)%2 == 1 {
				s.Board[r][c] = ManA
			}
		}
	}
	for r := BoardSize - 3; r < BoardSize; r++ {
		for c := 0; c < BoardSize; c++ {
			if (r+c)%2 == 1 {
				s.Board[r][c] = ManB
			}
		}
	}
	return s
}

// Advance is a heartbeat no-op: board state only changes on validated moves.
func (checkersKernel) Advance(st State) State { return st }

type checkersInput struct {
	From *Square `json:"from"`
	To   *Square `json:"to"`
}

func (k checkersKernel) ApplyInput(st State, slot int, raw json.RawMessage) (State, error) {
	s := st.(*CheckersState)
	var in checkersInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return s, rejectInput("malformed move: %v", err)
	}
	if in.From == nil || in.To == nil {
		return s, rejectInput("move needs from and to squares")
	}
	if slot != s.Turn {
		return s, rejectInput("not your turn")
	}

	legal := k.oracle.LegalMoves(s.Board, slot, s.MustMoveFrom)
	var chosen *Move
	for i := range legal {
		if legal[i].From == *in.From && legal[i].To == *in.To {
			chosen = &legal[i]
			break
		}
	}
	if chosen == nil {
		return s, rejectInput("illegal move from (%d,%d) to (%d,%d)", in.From.R, in.From.C, in.To.R, in.To.C)
	}

	piece := s.Board[chosen.From.R][chosen.From.C]
	s.Board[chosen.From.R][chosen.From.C] = Empty
	s.Board[chosen.To.R][chosen.To.C] = piece
	s.Quiet++

	if chosen.Capture != nil {
		s.Board[chosen.Capture.R][chosen.Capture.C] = Empty
		s.Quiet = 0
	}

	// Promotion at the far rank ends the move even mid-jump.
	promoted := false
	if piece == ManA && chosen.To.R == BoardSize-1 {
		s.Board[chosen.To.R][chosen.To.C] = KingA
		promoted = true
		s.Quiet = 0
	} else if piece == ManB && chosen.To.R == 0 {
		s.Board[chosen.To.R][chosen.To.C] = KingB
		promoted = true
		s.Quiet = 0
	}

	// A capture that leaves a further capture for the same piece keeps the
	// turn pinned to that piece.
	if chosen.Capture != nil && !promoted {
		to := chosen.To
		if len(k.oracle.LegalMoves(s.Board, slot, &to)) > 0 {
			s.MustMoveFrom = &to
			return s, nil
		}
	}

	s.MustMoveFrom = nil
	s.Turn = 1 - s.Turn
	return s, nil
}

func (k checkersKernel) CheckTerminal(st State) Terminal {
	s := st.(*CheckersState)
	if s.Quiet >= checkersDrawHalfmoves {
		return Terminal{Terminal: true, WinnerSlot: -1, Draw: true}
	}
	// The side to move loses when it has no pieces or no legal moves.
	if countPieces(s.Board, s.Turn) == 0 || len(k.oracle.LegalMoves(s.Board, s.Turn, s.MustMoveFrom)) == 0 {
		return Terminal{Terminal: true, WinnerSlot: 1 - s.Turn}
	}
	return Terminal{WinnerSlot: -1}
}

func countPieces(b Board, slot int) int {
	n := 0
	for r := 0; r < BoardSize; r++ {
		for c := 0; c < BoardSize; c++ {
			if owns(slot, b[r][c]) {
				n++
			}
		}
	}
	return n
}

func owns(slot int, piece int8) bool {
	if slot == 0 {
		return piece > 0
	}
	return piece < 0
}
