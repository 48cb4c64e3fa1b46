package player

import "errors"

// ErrPlayerNotFound is returned when a player id is not in the season's pool
var ErrPlayerNotFound = errors.New("player not found")
