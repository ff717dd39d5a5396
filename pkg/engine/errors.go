package engine

import (
	"errors"
	"fmt"
)

// ErrorClass groups engine errors by how callers should react to them.
type ErrorClass string

const (
	// ErrorClassAuthorization means the caller lacks the capability the
	// operation requires.
	ErrorClassAuthorization ErrorClass = "authorization"

	// ErrorClassValidation means the payload failed structural or business
	// rules at creation time.
	ErrorClassValidation ErrorClass = "validation"

	// ErrorClassStateConflict means the operation is invalid for the
	// proposal's current lifecycle state.
	ErrorClassStateConflict ErrorClass = "state_conflict"

	// ErrorClassNotFound means an id, config or participant is unknown.
	ErrorClassNotFound ErrorClass = "not_found"
)

// Error codes for programmatic handling.
const (
	CodeNotPermission        = "NOT_PERMISSION"
	CodeValidation           = "VALIDATION"
	CodeProposalNotFound     = "PROPOSAL_NOT_FOUND"
	CodeNotVotingState       = "NOT_VOTING_STATE"
	CodeAlreadyVoted         = "ALREADY_VOTED"
	CodeVotingConfigNotFound = "VOTING_CONFIG_NOT_FOUND"
	CodeNotApprovedState     = "NOT_APPROVED_STATE"
	CodeParticipantNotFound  = "PARTICIPANT_NOT_FOUND"
)

// Error is a classified engine error.
type Error struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Code identifies the exact failure for programmatic handling.
	Code string `json:"code"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Proposal is the proposal id involved, when applicable.
	Proposal uint64 `json:"proposal,omitempty"`

	// Err is the underlying cause, if any.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches engine errors by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithProposal attaches the proposal id to the error.
func (e *Error) WithProposal(id uint64) *Error {
	e.Proposal = id
	return e
}

func notPermission(format string, args ...interface{}) *Error {
	return &Error{
		Class:   ErrorClassAuthorization,
		Code:    CodeNotPermission,
		Message: fmt.Sprintf(format, args...),
	}
}

func validationError(reason error) *Error {
	return &Error{
		Class:   ErrorClassValidation,
		Code:    CodeValidation,
		Message: "proposal payload is invalid",
		Err:     reason,
	}
}

func proposalNotFound(id uint64) *Error {
	return &Error{
		Class:    ErrorClassNotFound,
		Code:     CodeProposalNotFound,
		Message:  fmt.Sprintf("proposal %d does not exist", id),
		Proposal: id,
	}
}

func notVotingState(id uint64) *Error {
	return &Error{
		Class:    ErrorClassStateConflict,
		Code:     CodeNotVotingState,
		Message:  fmt.Sprintf("proposal %d is no longer accepting votes", id),
		Proposal: id,
	}
}

func alreadyVoted(id uint64) *Error {
	return &Error{
		Class:    ErrorClassStateConflict,
		Code:     CodeAlreadyVoted,
		Message:  fmt.Sprintf("caller already voted on proposal %d", id),
		Proposal: id,
	}
}

func votingConfigNotFound(category string) *Error {
	return &Error{
		Class:   ErrorClassNotFound,
		Code:    CodeVotingConfigNotFound,
		Message: fmt.Sprintf("no voting threshold configured for %s", category),
	}
}

func notApprovedState(id uint64) *Error {
	return &Error{
		Class:    ErrorClassStateConflict,
		Code:     CodeNotApprovedState,
		Message:  fmt.Sprintf("proposal %d is not in the approved state", id),
		Proposal: id,
	}
}

func participantNotFound() *Error {
	return &Error{
		Class:   ErrorClassNotFound,
		Code:    CodeParticipantNotFound,
		Message: "caller is not a registered participant",
	}
}

// CodeOf extracts the engine error code, or an empty string for foreign
// errors.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCode reports whether err carries the given engine error code.
func IsCode(err error, code string) bool {
	return CodeOf(err) == code
}
