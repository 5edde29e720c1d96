package auth

import (
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
)

const CookieName = "storefront_session"

type SessionConfig struct {
	Lifetime time.Duration
	Secure   bool
}

// NewSessionManager builds the scs manager used by the gate. A nil store
// keeps sessions in process memory.
func NewSessionManager(store scs.Store, cfg SessionConfig) *scs.SessionManager {
	sm := scs.New()
	if store != nil {
		sm.Store = store
	}
	if cfg.Lifetime > 0 {
		sm.Lifetime = cfg.Lifetime
	}
	sm.Cookie.Name = CookieName
	sm.Cookie.HttpOnly = true
	sm.Cookie.Path = "/"
	sm.Cookie.SameSite = http.SameSiteLaxMode
	sm.Cookie.Secure = cfg.Secure
	return sm
}
