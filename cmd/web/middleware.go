package main

import (
	"fmt"
	"net/http"

	"github.com/felixge/httpsnoop"

	"storefront/internal/models"
)

func secureHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Referrer-Policy", "origin-when-cross-origin")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "deny")
		next.ServeHTTP(w, r)
	})
}

func (app *application) logRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)
		app.metrics.RecordRequest(r.Context(), r.Method, m.Code, m.Duration)
		app.logger.Info("request",
			"ip", r.RemoteAddr,
			"proto", r.Proto,
			"method", r.Method,
			"uri", r.URL.RequestURI(),
			"status", m.Code,
			"duration", m.Duration,
		)
	})
}

func (app *application) recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				w.Header().Set("Connection", "close")
				app.serverError(w, r, fmt.Errorf("%s", err))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// requireAuthentication sends anonymous visitors to the sign-in page and
// marks the response uncacheable.
func (app *application) requireAuthentication(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := app.identity(r); !ok {
			http.Redirect(w, r, signinURL(r), http.StatusSeeOther)
			return
		}
		w.Header().Add("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

func (app *application) requireRole(role models.Role, next http.HandlerFunc) http.Handler {
	return app.requireAuthentication(func(w http.ResponseWriter, r *http.Request) {
		if id, _ := app.identity(r); id.Role != role {
			app.clientError(w, http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireGuest keeps signed-in users away from the sign-in and register
// pages.
func (app *application) requireGuest(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := app.identity(r); ok {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (app *application) requireAPIAuthentication(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := app.identity(r); !ok {
			app.errorJSON(w, r, http.StatusUnauthorized, "Not logged in")
			return
		}
		w.Header().Add("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

func (app *application) requireAPIRole(role models.Role, next http.HandlerFunc) http.Handler {
	return app.requireAPIAuthentication(func(w http.ResponseWriter, r *http.Request) {
		if id, _ := app.identity(r); id.Role != role {
			app.errorJSON(w, r, http.StatusForbidden, "Access denied")
			return
		}
		next.ServeHTTP(w, r)
	})
}
