package state

import "github.com/louisbranch/meldtable/internal/game/encoding"

// Hash returns a content hash over the canonical JSON form of the state.
// Two replays of the same journal always produce the same hash, which is
// how snapshot integrity and replay verification are checked.
func (s *GameState) Hash() (string, error) {
	return encoding.ContentHash(s)
}
