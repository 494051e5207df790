package authsvc

import "time"

// SetNow replaces the clock used for session expiry.
func (s *AuthService) SetNow(now func() time.Time) {
	s.now = now
}
