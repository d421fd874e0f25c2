package webaddr

import "errors"

// ErrUnparseable is returned when an address cannot be turned into an
// absolute web URL with a registered domain.
var ErrUnparseable = errors.New("unparseable web address")
