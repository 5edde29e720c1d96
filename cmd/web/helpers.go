package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"runtime/debug"
	"strings"

	"storefront/internal/accounts"
	"storefront/internal/auth"
	"storefront/internal/cart"
	"storefront/internal/catalog"
	"storefront/internal/commerce"
	"storefront/internal/models"
	"storefront/internal/reviews"
)

const maxJSONBody = 1 << 20

type envelope map[string]any

func (app *application) serverError(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Error(err.Error(),
		"method", r.Method,
		"uri", r.URL.RequestURI(),
		"trace", string(debug.Stack()),
	)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func (app *application) clientError(w http.ResponseWriter, status int) {
	http.Error(w, http.StatusText(status), status)
}

func (app *application) notFound(w http.ResponseWriter) {
	app.clientError(w, http.StatusNotFound)
}

func (app *application) identity(r *http.Request) (auth.Identity, bool) {
	return app.gate.Identity(r.Context())
}

func (app *application) writeJSON(w http.ResponseWriter, status int, data any, headers http.Header) error {
	js, err := json.Marshal(data)
	if err != nil {
		return err
	}
	js = append(js, '\n')

	for key, value := range headers {
		w.Header()[key] = value
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(js)
	return nil
}

// readJSON decodes a single JSON value from the request body into dst.
func (app *application) readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var syntaxError *json.SyntaxError
		var typeError *json.UnmarshalTypeError
		var maxBytesError *http.MaxBytesError

		switch {
		case errors.As(err, &syntaxError):
			return models.Invalid("", "body contains badly-formed JSON (at character %d)", syntaxError.Offset)
		case errors.Is(err, io.ErrUnexpectedEOF):
			return models.Invalid("", "body contains badly-formed JSON")
		case errors.As(err, &typeError):
			if typeError.Field != "" {
				return models.Invalid(typeError.Field, "has the wrong type")
			}
			return models.Invalid("", "body contains incorrect JSON type (at character %d)", typeError.Offset)
		case errors.Is(err, io.EOF):
			return models.Invalid("", "body must not be empty")
		case errors.As(err, &maxBytesError):
			return models.Invalid("", "body must not be larger than %d bytes", maxBytesError.Limit)
		default:
			return err
		}
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return models.Invalid("", "body must only contain a single JSON value")
	}
	return nil
}

// messageJSON writes {"message": ...}, the shape of every error and of
// successes that carry no resource.
func (app *application) messageJSON(w http.ResponseWriter, r *http.Request, status int, message string) {
	if err := app.writeJSON(w, status, envelope{"message": message}, nil); err != nil {
		app.logger.Error("write error response", "uri", r.URL.RequestURI(), "error", err)
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func (app *application) errorJSON(w http.ResponseWriter, r *http.Request, status int, message string) {
	app.messageJSON(w, r, status, message)
}

// apiError maps a service error to its status code and message. Anything
// unrecognised is logged and reported as a 500.
func (app *application) apiError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := classify(err)
	if status >= http.StatusInternalServerError {
		app.logger.Error(err.Error(), "method", r.Method, "uri", r.URL.RequestURI(), "status", status)
	} else {
		app.logger.Debug("request rejected", "uri", r.URL.RequestURI(), "status", status, "error", err)
	}
	app.errorJSON(w, r, status, message)
}

func classify(err error) (int, string) {
	var (
		verr  *models.ValidationError
		uerrs commerce.UserErrors
		upErr *commerce.UpstreamError
	)

	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Error()
	case errors.Is(err, models.ErrNoRecord):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, reviews.ErrAlreadyReviewed):
		return http.StatusConflict, "You have already reviewed this product"
	case errors.Is(err, reviews.ErrNotPurchased):
		return http.StatusForbidden, "You can only review products you have purchased"
	case errors.Is(err, reviews.ErrNoCustomerRef):
		return http.StatusForbidden, "No customer account is linked to this user"
	case errors.Is(err, accounts.ErrSelfDemotion):
		return http.StatusBadRequest, "Cannot remove admin status from yourself"
	case errors.Is(err, accounts.ErrSelfDeletion):
		return http.StatusBadRequest, "Cannot delete your own account"
	case errors.Is(err, models.ErrDuplicateEmail):
		return http.StatusBadRequest, "User with this email already exists"
	case errors.Is(err, accounts.ErrInvalidToken):
		return http.StatusBadRequest, "Invalid or expired token"
	case errors.Is(err, models.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid email or password"
	case errors.Is(err, accounts.ErrRemoteCustomer):
		return http.StatusInternalServerError, "Failed to create customer account. Please try again later."
	case errors.Is(err, accounts.ErrResetUnavailable):
		return http.StatusServiceUnavailable, "Password reset is not available"
	case errors.Is(err, cart.ErrCartNotFound):
		return http.StatusNotFound, "Cart not found"
	case errors.Is(err, catalog.ErrNotFound):
		return http.StatusNotFound, "Not found"
	case errors.As(err, &uerrs):
		return http.StatusBadRequest, uerrs.Error()
	case errors.As(err, &upErr), errors.Is(err, commerce.ErrNotConfigured):
		return http.StatusBadGateway, "The store is temporarily unavailable"
	}
	return http.StatusInternalServerError, "Server error"
}

// safeRedirect keeps callback targets on this site.
func safeRedirect(target, fallback string) string {
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return fallback
	}
	return target
}

func signinURL(r *http.Request) string {
	return fmt.Sprintf("/auth/signin?callbackUrl=%s", url.QueryEscape(r.URL.RequestURI()))
}
