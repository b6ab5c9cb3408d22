// physics/checkers_oracle.go
package physics

// CheckersOracle is the built-in legality oracle for checkers. Men step one
// square diagonally forward, kings one square in any diagonal direction;
// jumps capture the adjacent enemy piece. When a capture exists anywhere for
// the slot, only captures are legal.
type CheckersOracle struct{}

var diagonals = [4][2]int{{1, -1}, {1, 1}, {-1, -1}, {-1, 1}}

func (CheckersOracle) LegalMoves(b Board, slot int, mustMoveFrom *Square) []Move {
	var steps, jumps []Move
	for r := 0; r < BoardSize; r++ {
		for c := 0; c < BoardSize; c++ {
			piece := b[r][c]
			if !owns(slot, piece) {
				continue
			}
			if mustMoveFrom != nil && (mustMoveFrom.R != r || mustMoveFrom.C != c) {
				continue
			}
			from := Square{R: r, C: c}
			for _, d := range diagonals {
				if !direction(piece, d[0]) {
					continue
				}
				tr, tc := r+d[0], c+d[1]
				if !onBoard(tr, tc) {
					continue
				}
				if b[tr][tc] == Empty {
					steps = append(steps, Move{From: from, To: Square{R: tr, C: tc}})
					continue
				}
				if owns(slot, b[tr][tc]) {
					continue
				}
				jr, jc := tr+d[0], tc+d[1]
				if onBoard(jr, jc) && b[jr][jc] == Empty {
					cap := Square{R: tr, C: tc}
					jumps = append(jumps, Move{From: from, To: Square{R: jr, C: jc}, Capture: &cap})
				}
			}
		}
	}
	if len(jumps) > 0 {
		return jumps
	}
	// Mid multi-jump only further captures continue the turn.
	if mustMoveFrom != nil {
		return nil
	}
	return steps
}

// direction reports whether the piece may move with the given row delta.
func direction(piece int8, dr int) bool {
	switch piece {
	case ManA:
		return dr > 0
	case ManB:
		return dr < 0
	case KingA, KingB:
		return true
	}
	return false
}

func onBoard(r, c int) bool {
	return r >= 0 && r < BoardSize && c >= 0 && c < BoardSize
}
