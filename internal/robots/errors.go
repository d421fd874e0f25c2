package robots

import "errors"

var (
	// ErrRobotsUnavailable is returned when robots.txt cannot be fetched at all.
	ErrRobotsUnavailable = errors.New("robots.txt unavailable")

	// ErrRobotsUnparseable is returned when robots.txt cannot be parsed.
	ErrRobotsUnparseable = errors.New("robots.txt unparseable")
)
