package transport

import (
	"crypto/rand"
	"net/netip"
	"sync"
	"time"
)

// Cookie is a single-use 32-byte value the initiator binds to the
// responder's endpoint during the node-id handshake (spec §4.9).
type Cookie [32]byte

// cookieInfo pairs an issued cookie with the time it was created, so a
// sweep can purge stale ones (spec §4.9 "Cookies are single-use and
// rate-limited per IP").
type cookieInfo struct {
	cookie    Cookie
	createdAt time.Time
}

// CookieTTL is how long an issued cookie remains valid (spec §5 "Cookie: 60
// s TTL").
const CookieTTL = 60 * time.Second

// defaultMaxCookiesPerIP bounds in-flight cookie requests from one source
// IP (SPEC_FULL.md's supplemented syn-cookie detail, grounded on
// original_source/node/src/transport/syn_cookies.rs's SynCookies::new(10)
// default).
const defaultMaxCookiesPerIP = 10

// CookieStore issues and validates node-id handshake cookies, grounded on
// the original implementation's SynCookies: one cookie per endpoint,
// capped per source IP, with an explicit purge sweep rather than a passive
// TTL check on every read.
type CookieStore struct {
	mu              sync.Mutex
	maxPerIP        int
	byEndpoint      map[Endpoint]cookieInfo
	perIP           map[netip.Addr]int
}

// NewCookieStore creates a store capping maxPerIP in-flight cookies per
// source IP; 0 selects the default.
func NewCookieStore(maxPerIP int) *CookieStore {
	if maxPerIP <= 0 {
		maxPerIP = defaultMaxCookiesPerIP
	}
	return &CookieStore{
		maxPerIP:   maxPerIP,
		byEndpoint: make(map[Endpoint]cookieInfo),
		perIP:      make(map[netip.Addr]int),
	}
}

// Assign issues a fresh cookie for endpoint, or returns false if endpoint
// already has one outstanding or its IP is at the per-IP cap (spec §4.9
// "rate-limited per IP").
func (s *CookieStore) Assign(endpoint Endpoint) (Cookie, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEndpoint[endpoint]; exists {
		return Cookie{}, false
	}
	ip := endpoint.IP()
	if s.perIP[ip] >= s.maxPerIP {
		return Cookie{}, false
	}

	var c Cookie
	_, _ = rand.Read(c[:])
	s.byEndpoint[endpoint] = cookieInfo{cookie: c, createdAt: time.Now()}
	s.perIP[ip]++
	return c, true
}

// Take returns and removes the cookie outstanding for endpoint, used to
// validate a handshake response (spec §4.9 "single-use").
func (s *CookieStore) Take(endpoint Endpoint) (Cookie, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	info, ok := s.byEndpoint[endpoint]
	if !ok {
		return Cookie{}, false
	}
	delete(s.byEndpoint, endpoint)
	s.decLocked(endpoint.IP())
	if time.Since(info.createdAt) > CookieTTL {
		return Cookie{}, false
	}
	return info.cookie, true
}

// Purge removes every cookie older than CookieTTL, reclaiming its per-IP
// slot (spec §4.9; grounded on SynCookies::purge).
func (s *CookieStore) Purge() {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(-CookieTTL)
	for ep, info := range s.byEndpoint {
		if info.createdAt.Before(cutoff) {
			delete(s.byEndpoint, ep)
			s.decLocked(ep.IP())
		}
	}
}

func (s *CookieStore) decLocked(ip netip.Addr) {
	if n := s.perIP[ip]; n > 1 {
		s.perIP[ip] = n - 1
	} else {
		delete(s.perIP, ip)
	}
}
