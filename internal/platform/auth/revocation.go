package auth

import (
	"sync"
	"time"
)

// userCutoffRetention bounds how long a per-user revocation cutoff is
// kept. Any token issued before its cutoff has expired on its own well
// within this window.
const userCutoffRetention = 24 * time.Hour

// TokenRevocationStore tracks revoked credentials in memory. Two
// mechanisms are supported: individual tokens revoked by their jti
// claim, and per-user cutoffs that invalidate every token issued
// before a given instant (used to force-logout an account whose
// credentials may be compromised). Thread-safe for concurrent access.
type TokenRevocationStore struct {
	mu     sync.RWMutex
	tokens map[string]time.Time // jti -> natural token expiry
	users  map[string]time.Time // userID -> cutoff instant
	done   chan struct{}
}

// NewTokenRevocationStore creates a store and starts a background
// goroutine that cleans up stale entries every 5 minutes.
func NewTokenRevocationStore() *TokenRevocationStore {
	s := &TokenRevocationStore{
		tokens: make(map[string]time.Time),
		users:  make(map[string]time.Time),
		done:   make(chan struct{}),
	}
	go s.cleanupLoop()
	return s
}

// Revoke adds a token's jti to the revocation list. The expiresAt time
// is when the token would have naturally expired; the entry is dropped
// after that since an expired token no longer needs tracking.
func (s *TokenRevocationStore) Revoke(jti string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[jti] = expiresAt
}

// RevokeUser records a cutoff instant for the user. Every token issued
// before the cutoff is rejected from now on, regardless of jti. Returns
// the cutoff so callers can report it.
func (s *TokenRevocationStore) RevokeUser(userID string) time.Time {
	cutoff := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userID] = cutoff
	return cutoff
}

// IsRevoked checks whether a token jti has been individually revoked.
func (s *TokenRevocationStore) IsRevoked(jti string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.tokens[jti]
	return ok
}

// IsUserRevoked reports whether the user has a cutoff and the token was
// issued before it. A token without an iat claim (zero issuedAt) cannot
// prove it postdates the cutoff, so it is treated as revoked.
func (s *TokenRevocationStore) IsUserRevoked(userID string, issuedAt time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cutoff, ok := s.users[userID]
	if !ok {
		return false
	}
	return issuedAt.Before(cutoff)
}

// Count returns the number of individually revoked tokens.
func (s *TokenRevocationStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tokens)
}

// RevocationInfo is a public representation of a revoked token.
type RevocationInfo struct {
	JTI       string    `json:"jti"`
	ExpiresAt time.Time `json:"expires_at"`
}

// UserRevocation is a public representation of a per-user cutoff.
type UserRevocation struct {
	UserID    string    `json:"user_id"`
	RevokedAt time.Time `json:"revoked_at"`
}

// Entries returns a snapshot of all individually revoked tokens.
func (s *TokenRevocationStore) Entries() []RevocationInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]RevocationInfo, 0, len(s.tokens))
	for jti, expiresAt := range s.tokens {
		result = append(result, RevocationInfo{JTI: jti, ExpiresAt: expiresAt})
	}
	return result
}

// UserEntries returns a snapshot of all per-user cutoffs.
func (s *TokenRevocationStore) UserEntries() []UserRevocation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]UserRevocation, 0, len(s.users))
	for userID, cutoff := range s.users {
		result = append(result, UserRevocation{UserID: userID, RevokedAt: cutoff})
	}
	return result
}

// Close stops the background cleanup goroutine. Safe to call more than
// once; only the first call has effect.
func (s *TokenRevocationStore) Close() {
	select {
	case <-s.done:
		// already closed
	default:
		close(s.done)
	}
}

func (s *TokenRevocationStore) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

// cleanup removes token entries past their natural expiry and user
// cutoffs older than the retention window.
func (s *TokenRevocationStore) cleanup() {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for jti, expiresAt := range s.tokens {
		if now.After(expiresAt) {
			delete(s.tokens, jti)
		}
	}
	for userID, cutoff := range s.users {
		if now.Sub(cutoff) > userCutoffRetention {
			delete(s.users, userID)
		}
	}
}
