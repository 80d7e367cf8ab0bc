package service

import (
	"net/http"

	"github.com/gorilla/sessions"
)

const sessionTokenKey = "access_token"

// NewSessionStore builds the cookie store that keeps the access token server-side signed.
func NewSessionStore(secret []byte, maxAge int, secure bool) *sessions.CookieStore {
	store := sessions.NewCookieStore(secret)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}
