package model

import "errors"

// Sentinel error kinds. Every invalid-input error wraps ErrInvalidInput so
// callers can classify without enumerating causes.
var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrConfigInconsistency  = errors.New("configuration inconsistency")
	ErrBeforeLeagueStart    = wrapKind(ErrInvalidInput, "match dated before league start")
	ErrUnknownEntrant       = wrapKind(ErrInvalidInput, "unknown entrant")
	ErrUnknownCompetitor    = wrapKind(ErrInvalidInput, "unknown competitor")
	ErrUnknownFaction       = wrapKind(ErrInvalidInput, "unknown faction")
	ErrDuplicateCompetitor  = wrapKind(ErrInvalidInput, "duplicate competitor")
	ErrDatedTournamentMatch = wrapKind(ErrInvalidInput, "per-match dates are only accepted by leagues")
	ErrProxyMatch           = wrapKind(ErrInvalidInput, "proxy entrant cannot play a rated match")
	ErrInvalidResult        = wrapKind(ErrInvalidInput, "invalid match result")
	ErrNoFactionRoster      = wrapKind(ErrConfigInconsistency, "faction ratings requested without a faction roster")
	ErrTeamUnsupported      = wrapKind(ErrConfigInconsistency, "algorithm cannot rate team matches")
)

// kindError is a named error that also matches its parent kind.
type kindError struct {
	parent error
	msg    string
}

func wrapKind(parent error, msg string) error {
	return &kindError{parent: parent, msg: msg}
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.parent }
