package retention

import "time"

// SetClock replaces the sweeper's clock in tests.
func SetClock(s *Sweeper, now func() time.Time) { s.now = now }
