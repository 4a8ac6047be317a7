package app

import "errors"

var errNoPatternStore = errors.New("no learned-pattern store configured")
