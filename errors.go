package custody

import (
	"errors"
	"fmt"

	"github.com/xraph/custody/account"
	"github.com/xraph/custody/demurrage"
	"github.com/xraph/custody/factory"
	"github.com/xraph/custody/fee"
	"github.com/xraph/custody/journal"
	"github.com/xraph/custody/rbac"
	"github.com/xraph/custody/types"
)

// Sentinel errors.
var (
	// Authorization
	ErrUnauthorized    = errors.New("custody: caller lacks the required role")
	ErrNotOwner        = errors.New("custody: caller is not the owner")
	ErrNotAccountOwner = account.ErrNotAccountOwner

	// Validation
	ErrZeroAmount            = account.ErrZeroAmount
	ErrInvalidAmount         = account.ErrInvalidAmount
	ErrMissingUserID         = factory.ErrMissingUserID
	ErrMissingReference      = account.ErrMissingReference
	ErrMissingAddress        = errors.New("custody: address is required")
	ErrInvalidParameters     = demurrage.ErrInvalidParameters
	ErrInvalidFee            = fee.ErrInvalidSchedule
	ErrInvalidImplementation = errors.New("custody: invalid account implementation")
	ErrUnknownRole           = rbac.ErrUnknownRole
	ErrOverflow              = account.ErrOverflow
	ErrRejected              = errors.New("custody: operation rejected")
	ErrOutOfRange            = errors.New("custody: index out of range")

	// Not found
	ErrUnknownUser           = errors.New("custody: user does not exist")
	ErrUnknownAuthorization  = account.ErrUnknownAuthorization
	ErrUnknownImplementation = errors.New("custody: account implementation not registered")

	// Conflicts on caller-supplied ids
	ErrDuplicateUser          = errors.New("custody: user already exists")
	ErrDuplicateAuthorization = account.ErrDuplicateAuthorization
	ErrDuplicateSettlement    = account.ErrDuplicateSettlement

	// Insufficient resource
	ErrInsufficientBalance   = account.ErrInsufficientBalance
	ErrInsufficientAvailable = account.ErrInsufficientAvailable

	// Lifecycle
	ErrPaused        = errors.New("custody: paused")
	ErrNotPaused     = errors.New("custody: not paused")
	ErrAlreadyPaused = errors.New("custody: already paused")
	ErrNotStarted    = errors.New("custody: controller not started")

	// Internal
	ErrCommitFailed = errors.New("custody: commit failed")
	ErrTokenFailed  = errors.New("custody: token operation failed")
	ErrSeqConflict  = journal.ErrSequenceConflict
)

// Kind classifies an error.
type Kind int

// Error kinds.
const (
	KindUnknown Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindInsufficient
	KindAuthorization
	KindLifecycle
	KindInternal
)

var kindNames = [...]string{"unknown", "validation", "not_found", "conflict", "insufficient", "authorization", "lifecycle", "internal"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

var kinds = []struct {
	kind Kind
	errs []error
}{
	{KindAuthorization, []error{ErrUnauthorized, ErrNotOwner, ErrNotAccountOwner}},
	{KindLifecycle, []error{ErrPaused, ErrNotPaused, ErrAlreadyPaused, ErrNotStarted}},
	{KindInsufficient, []error{ErrInsufficientBalance, ErrInsufficientAvailable}},
	{KindNotFound, []error{ErrUnknownUser, ErrUnknownAuthorization, ErrUnknownImplementation}},
	{KindConflict, []error{ErrDuplicateUser, ErrDuplicateAuthorization, ErrDuplicateSettlement}},
	{KindValidation, []error{
		ErrZeroAmount, ErrInvalidAmount, ErrMissingUserID, ErrMissingReference, ErrMissingAddress,
		ErrInvalidParameters, ErrInvalidFee, ErrInvalidImplementation, ErrUnknownRole, ErrOverflow, ErrRejected,
		ErrOutOfRange,
	}},
	{KindInternal, []error{ErrCommitFailed, ErrTokenFailed}},
}

// KindOf classifies err. Errors not produced by this package are KindUnknown.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	for _, k := range kinds {
		for _, target := range k.errs {
			if errors.Is(err, target) {
				return k.kind
			}
		}
	}
	return KindUnknown
}

// IsNotFound reports whether err names a missing user, hold or implementation.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsInsufficient reports whether err is a balance shortfall.
func IsInsufficient(err error) bool { return KindOf(err) == KindInsufficient }

// IsAuthorization reports whether err is a role or ownership failure.
func IsAuthorization(err error) bool { return KindOf(err) == KindAuthorization }

// IsLifecycle reports whether err comes from the pause state.
func IsLifecycle(err error) bool { return KindOf(err) == KindLifecycle }

// IsValidation reports whether err is an input validation failure.
func IsValidation(err error) bool { return KindOf(err) == KindValidation }

// UserError names which side of an operation referenced a missing or
// invalid user.
type UserError struct {
	Side   string // "user", "sender" or "receiver"
	UserID types.UserID
	Err    error
}

func (e *UserError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Side, e.UserID.Short(), e.Err)
}

func (e *UserError) Unwrap() error { return e.Err }
