package connectors

import (
	"sync"
	"time"
)

// TokenHolder hält ein Zugangstoken samt Ablaufzeitpunkt für genau eine
// Connector-Instanz. Nach Ablauf wird beim nächsten Zugriff neu angemeldet.
type TokenHolder struct {
	mu        sync.Mutex
	token     string
	expiresAt time.Time
	now       func() time.Time
}

// NewTokenHolder erstellt einen leeren TokenHolder.
func NewTokenHolder() *TokenHolder {
	return &TokenHolder{now: time.Now}
}

// Get gibt das Token zurück, solange es gültig ist.
func (h *TokenHolder) Get() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.token == "" || !h.now().Before(h.expiresAt) {
		return "", false
	}
	return h.token, true
}

// Set speichert ein Token mit der angegebenen Lebensdauer.
func (h *TokenHolder) Set(token string, ttl time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.token = token
	h.expiresAt = h.now().Add(ttl)
}

// Invalidate verwirft das Token, z.B. nach einer 401-Antwort.
func (h *TokenHolder) Invalidate() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.token = ""
	h.expiresAt = time.Time{}
}

// Refresh liefert ein gültiges Token und meldet sich bei Bedarf über login neu an.
// Gleichzeitige Aufrufer warten auf dieselbe Anmeldung.
func (h *TokenHolder) Refresh(login func() (string, time.Duration, error)) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.token != "" && h.now().Before(h.expiresAt) {
		return h.token, nil
	}
	token, ttl, err := login()
	if err != nil {
		return "", err
	}
	h.token = token
	h.expiresAt = h.now().Add(ttl)
	return token, nil
}
