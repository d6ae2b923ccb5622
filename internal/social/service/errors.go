package service

import "errors"

var (
	// ErrActionFailed indicates a toggle exhausted its conflict retry budget.
	// The user may simply try again.
	ErrActionFailed = errors.New("action failed, please try again")
	// ErrToggleCoolingDown indicates a toggle arrived inside the debounce
	// window of the previous one and was suppressed.
	ErrToggleCoolingDown = errors.New("toggle suppressed by cooldown")
	// ErrEntityNotFound indicates the toggle target does not exist. Fatal,
	// never retried.
	ErrEntityNotFound = errors.New("entity not found")
	// ErrNotAuthorized indicates the actor may not perform the operation.
	ErrNotAuthorized = errors.New("not authorized")
	// ErrRequestPending indicates the user already has a pending membership
	// request for the club.
	ErrRequestPending = errors.New("membership request already pending")
	// ErrAlreadyMember indicates the user is already an approved club member.
	ErrAlreadyMember = errors.New("already a club member")
	// ErrRequestDecided indicates the membership request was already
	// approved or rejected.
	ErrRequestDecided = errors.New("membership request already decided")
	// ErrEmptyComment indicates a comment submission with no content.
	ErrEmptyComment = errors.New("comment message is empty")
)
