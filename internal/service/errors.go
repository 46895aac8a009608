package service

import "errors"

// ErrNotSupervisor is returned when a decision is attempted by a user
// who does not currently hold the supervisor role on the entry's
// template. Distinct from the repository's not-found errors so callers
// can tell "wrong user" from "wrong entry".
var ErrNotSupervisor = errors.New("user is not a supervisor for this template")
