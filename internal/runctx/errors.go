package runctx

import "github.com/pkg/errors"

var (
	// ErrPageConfigAlreadySet is returned when a run enqueues a second page
	// configuration message.
	ErrPageConfigAlreadySet = errors.New("page config can only be set once per run")
	// ErrPageConfigTooLate is returned when a run enqueues a page
	// configuration message after other content.
	ErrPageConfigTooLate = errors.New("page config must be set before any other content")
	// ErrNoActiveSession is returned when no run is bound to the calling
	// goroutine.
	ErrNoActiveSession = errors.New("no active session")
)
