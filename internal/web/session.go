package web

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const sessionCookie = "paystub_session"

// Flash kinds.
const (
	flashError   = "error"
	flashSuccess = "success"
)

type flash struct {
	Kind    string
	Message string
}

type session struct {
	username string
	expires  time.Time
	flashes  []flash
}

// sessionStore keeps sessions in memory. The cookie carries the session
// ID plus an HMAC of it, so forged IDs are rejected before any lookup.
type sessionStore struct {
	mu       sync.Mutex
	sessions map[string]*session
	secret   []byte
	ttl      time.Duration
	now      func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

func newSessionStore(secret []byte, ttl time.Duration) *sessionStore {
	s := &sessionStore{
		sessions: make(map[string]*session),
		secret:   secret,
		ttl:      ttl,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	go s.cleanup()
	return s
}

// randomSecret returns a fresh signing key for processes started without one.
func randomSecret() []byte {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic("web: read random secret: " + err.Error())
	}
	return b
}

func (s *sessionStore) sign(id string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(id))
	return id + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// verify returns the session ID from a cookie value with a valid signature.
func (s *sessionStore) verify(value string) (string, bool) {
	id, _, ok := strings.Cut(value, ".")
	if !ok || id == "" {
		return "", false
	}
	if !hmac.Equal([]byte(s.sign(id)), []byte(value)) {
		return "", false
	}
	return id, true
}

// current returns the live session for r and extends its lifetime.
// Callers must hold s.mu.
func (s *sessionStore) current(r *http.Request) (string, *session) {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return "", nil
	}
	id, ok := s.verify(c.Value)
	if !ok {
		return "", nil
	}
	sess, ok := s.sessions[id]
	if !ok {
		return "", nil
	}
	now := s.now()
	if now.After(sess.expires) {
		delete(s.sessions, id)
		return "", nil
	}
	sess.expires = now.Add(s.ttl)
	return id, sess
}

// create starts a session and sets its cookie. Callers must hold s.mu.
func (s *sessionStore) create(w http.ResponseWriter, r *http.Request, username string) *session {
	id := uuid.NewString()
	sess := &session{username: username, expires: s.now().Add(s.ttl)}
	s.sessions[id] = sess
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    s.sign(id),
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	return sess
}

// Username returns the logged-in admin for r, or "".
func (s *sessionStore) Username(r *http.Request) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, sess := s.current(r); sess != nil {
		return sess.username
	}
	return ""
}

// Login replaces any existing session of r with an authenticated one.
// Pending flashes carry over.
func (s *sessionStore) Login(w http.ResponseWriter, r *http.Request, username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var pending []flash
	if id, old := s.current(r); old != nil {
		pending = old.flashes
		delete(s.sessions, id)
	}
	s.create(w, r, username).flashes = pending
}

// Logout ends the session of r and clears its cookie.
func (s *sessionStore) Logout(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if id, sess := s.current(r); sess != nil {
		delete(s.sessions, id)
	}
	s.mu.Unlock()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// AddFlash queues a message for the next page render, starting an
// anonymous session when r has none.
func (s *sessionStore) AddFlash(w http.ResponseWriter, r *http.Request, kind, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, sess := s.current(r)
	if sess == nil {
		sess = s.create(w, r, "")
	}
	sess.flashes = append(sess.flashes, flash{Kind: kind, Message: message})
}

// PopFlashes returns and clears the queued messages of r.
func (s *sessionStore) PopFlashes(r *http.Request) []flash {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, sess := s.current(r)
	if sess == nil {
		return nil
	}
	out := sess.flashes
	sess.flashes = nil
	return out
}

// Len returns the number of live sessions.
func (s *sessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *sessionStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for id, sess := range s.sessions {
		if now.After(sess.expires) {
			delete(s.sessions, id)
		}
	}
}

func (s *sessionStore) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stop:
			return
		}
	}
}

// Close stops the cleanup goroutine.
func (s *sessionStore) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}
