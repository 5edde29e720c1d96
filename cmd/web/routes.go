package main

import (
	"io/fs"
	"net/http"

	"github.com/bmizerany/pat"

	"storefront/internal/models"
	"storefront/internal/observability"
	"storefront/ui"
)

func (app *application) routes() http.Handler {
	mux := pat.New()

	// Pages
	mux.Get("/", http.HandlerFunc(app.home))
	mux.Get("/collections/:handle", http.HandlerFunc(app.showCollection))
	mux.Get("/products/:handle", http.HandlerFunc(app.showProduct))
	mux.Get("/cart", http.HandlerFunc(app.cartPage))

	mux.Get("/auth/signin", app.requireGuest(app.signinForm))
	mux.Post("/auth/signin", app.requireGuest(app.signin))
	mux.Get("/auth/register", app.requireGuest(app.registerForm))
	mux.Post("/auth/register", app.requireGuest(app.register))
	mux.Post("/auth/signout", http.HandlerFunc(app.signout))
	mux.Get("/auth/forgot-password", http.HandlerFunc(app.forgotPasswordForm))
	mux.Post("/auth/forgot-password", http.HandlerFunc(app.forgotPassword))
	mux.Get("/auth/reset-password", http.HandlerFunc(app.resetPasswordForm))
	mux.Post("/auth/reset-password", http.HandlerFunc(app.resetPassword))

	mux.Get("/account", app.requireAuthentication(app.accountPage))
	mux.Get("/account/orders", app.requireAuthentication(app.accountOrdersPage))
	mux.Get("/account/reviews", app.requireAuthentication(app.accountReviewsPage))
	mux.Get("/account/update", app.requireAuthentication(app.accountUpdateForm))
	mux.Post("/account/update", app.requireAuthentication(app.accountUpdate))

	mux.Get("/admin", app.requireRole(models.RoleAdmin, app.adminDashboard))
	mux.Get("/admin/reviews", app.requireRole(models.RoleAdmin, app.adminReviewsPage))
	mux.Get("/admin/users", app.requireRole(models.RoleAdmin, app.adminUsersPage))

	// JSON API
	mux.Get("/api/cart", http.HandlerFunc(app.apiGetCart))
	mux.Post("/api/cart", http.HandlerFunc(app.apiPostCart))
	mux.Patch("/api/cart", http.HandlerFunc(app.apiPatchCart))

	mux.Get("/api/reviews", http.HandlerFunc(app.apiListReviews))
	mux.Post("/api/reviews", app.requireAPIAuthentication(app.apiCreateReview))
	mux.Patch("/api/reviews/:id", app.requireAPIRole(models.RoleAdmin, app.apiModerateReview))

	mux.Post("/api/auth/register", http.HandlerFunc(app.apiRegister))
	mux.Post("/api/auth/login", http.HandlerFunc(app.apiLogin))
	mux.Post("/api/auth/logout", http.HandlerFunc(app.apiLogout))
	mux.Post("/api/auth/forgot-password", http.HandlerFunc(app.apiForgotPassword))
	mux.Post("/api/auth/reset-password", http.HandlerFunc(app.apiResetPassword))
	mux.Get("/api/auth/me", app.requireAPIAuthentication(app.apiMe))

	mux.Get("/api/account/reviews", app.requireAPIAuthentication(app.apiAccountReviews))
	mux.Get("/api/account/orders", app.requireAPIAuthentication(app.apiAccountOrders))
	mux.Patch("/api/account", app.requireAPIAuthentication(app.apiUpdateAccount))

	mux.Get("/api/admin/reviews", app.requireAPIRole(models.RoleAdmin, app.apiAdminReviews))
	mux.Get("/api/admin/users", app.requireAPIRole(models.RoleAdmin, app.apiAdminUsers))
	mux.Get("/api/admin/users/:id", app.requireAPIRole(models.RoleAdmin, app.apiAdminGetUser))
	mux.Patch("/api/admin/users/:id", app.requireAPIRole(models.RoleAdmin, app.apiAdminUpdateUser))
	mux.Del("/api/admin/users/:id", app.requireAPIRole(models.RoleAdmin, app.apiAdminDeleteUser))
	mux.Get("/api/commerce/health", app.requireAPIRole(models.RoleAdmin, app.apiCommerceHealth))

	static, _ := fs.Sub(ui.Files, "static")
	mux.Get("/static/", http.StripPrefix("/static", http.FileServer(http.FS(static))))

	handler := app.gate.LoadAndSave(mux)
	handler = secureHeaders(handler)
	handler = observability.ServerTimingMiddleware(app.obs)(handler)
	return app.recoverPanic(app.logRequest(handler))
}
