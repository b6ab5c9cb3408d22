// services/errors.go
package services

import "errors"

// Matchmaking and orchestration sentinels. The transport layer maps these to
// structured error events for the originating connection; none of them leave
// partial state behind.
var (
	ErrNotFound       = errors.New("match not found")
	ErrUnknownVariant = errors.New("unknown game variant")
	ErrNotAvailable   = errors.New("match is not open for joining")
	ErrFull           = errors.New("match already has two players")
	ErrDuplicateCode  = errors.New("match code already in use")
	ErrDuplicateStake = errors.New("an open staked match with this amount already exists for this player")
	ErrSelfMatch      = errors.New("cannot be matched against your own identity")
	ErrNotCreator     = errors.New("only the creator may cancel a forming match")

	ErrNotActive     = errors.New("match is not active")
	ErrAlreadyPaused = errors.New("match is already paused")
	ErrNoPausesLeft  = errors.New("pause quota exhausted")
	ErrNotInMatch    = errors.New("participant is not in this match")

	ErrWalletRequired = errors.New("a linked active wallet is required for staked play")
	ErrStakeNotLocked = errors.New("stake lock proof could not be verified")
)
