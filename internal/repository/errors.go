package repository

import "errors"

// Not-found sentinels. Handlers map these to 404s and the verification
// service uses them to distinguish "entry not found" from "not a
// supervisor for this template".
var (
	ErrTemplateNotFound = errors.New("template not found")
	ErrEntryNotFound    = errors.New("entry not found")
	ErrRoleNotFound     = errors.New("role not found")
	ErrGrantNotFound    = errors.New("access grant not found")
	ErrRecordNotFound   = errors.New("verification record not found")
)
