package errors

import stderrors "errors"

// Staking failures a caller must be able to tell apart. Every one of them
// aborts the operation without any state change.
var (
	ErrInsufficientAllowance    = stderrors.New("stake: insufficient allowance")
	ErrZeroWithdrawAmount       = stderrors.New("stake: withdraw amount must be positive")
	ErrZeroStakeAmount          = stderrors.New("stake: stake amount must be positive")
	ErrInsufficientBalance      = stderrors.New("stake: insufficient staked balance")
	ErrTierNotYetReached        = stderrors.New("stake: next reward tier not yet reached")
	ErrAlreadyAtMaxTier         = stderrors.New("stake: already at max reward tier")
	ErrUnauthorizedRegistryCall = stderrors.New("badge: caller is not the registry owner")
	ErrReentrantCall            = stderrors.New("stake: reentrant call")
)
