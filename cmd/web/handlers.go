package main

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"storefront/internal/accounts"
	"storefront/internal/catalog"
	"storefront/internal/commerce"
	"storefront/internal/models"
	"storefront/internal/purchase"
	"storefront/internal/reviews"
)

// --- BASE HELPERS ---

func (app *application) addDefaultData(td *TemplateData, r *http.Request) *TemplateData {
	if td == nil {
		td = &TemplateData{}
	}
	td.CurrentYear = time.Now().Year()
	td.Flash = app.gate.PopFlash(r.Context())

	if id, ok := app.identity(r); ok {
		td.IsAuthenticated = true
		td.IsAdmin = id.IsAdmin()
		td.UserEmail = id.Email
	}
	return td
}

func (app *application) render(w http.ResponseWriter, r *http.Request, status int, page string, data *TemplateData) {
	ts, ok := app.templateCache[page]
	if !ok {
		app.serverError(w, r, fmt.Errorf("the template %s does not exist", page))
		return
	}

	buf := new(bytes.Buffer)
	err := ts.ExecuteTemplate(buf, "base", app.addDefaultData(data, r))
	if err != nil {
		app.serverError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// formError renders page again with the message for err.
func (app *application) formError(w http.ResponseWriter, r *http.Request, page string, data *TemplateData, err error) {
	status, message := classify(err)
	if status >= http.StatusInternalServerError {
		app.logger.Error(err.Error(), "method", r.Method, "uri", r.URL.RequestURI())
	}
	if status == http.StatusNotFound || status == http.StatusConflict {
		status = http.StatusUnprocessableEntity
	}
	data.FormError = message
	app.render(w, r, status, page, data)
}

// --- CATALOG PAGES ---

func (app *application) home(w http.ResponseWriter, r *http.Request) {
	landing := app.catalog.Landing(r.Context(), app.cfg.FeaturedCollection)
	app.render(w, r, http.StatusOK, "home.page.tmpl", &TemplateData{Landing: landing})
}

func (app *application) showCollection(w http.ResponseWriter, r *http.Request) {
	col, err := app.catalog.Collection(r.Context(), r.URL.Query().Get(":handle"))
	if errors.Is(err, catalog.ErrNotFound) {
		app.notFound(w)
		return
	}
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	app.render(w, r, http.StatusOK, "collection.page.tmpl", &TemplateData{Collection: col})
}

func (app *application) showProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	product, err := app.catalog.Product(ctx, r.URL.Query().Get(":handle"))
	if errors.Is(err, catalog.ErrNotFound) {
		app.notFound(w)
		return
	}
	if err != nil {
		app.serverError(w, r, err)
		return
	}

	approved, err := app.reviews.ListPublic(ctx, product.ID)
	if err != nil {
		app.serverError(w, r, err)
		return
	}

	var userID string
	if id, ok := app.identity(r); ok {
		userID = id.UserID
	}
	eligibility, err := app.reviews.Eligibility(ctx, userID, product.ID)
	if err != nil {
		app.logger.Error("review eligibility", "product", product.ID, "error", err)
		eligibility = reviews.Eligibility{Reason: reviews.ReasonNotPurchased}
	}

	app.render(w, r, http.StatusOK, "product.page.tmpl", &TemplateData{
		Product:     product,
		Reviews:     approved,
		Summary:     reviews.Summarize(approved),
		Eligibility: eligibility,
	})
}

func (app *application) cartPage(w http.ResponseWriter, r *http.Request) {
	app.render(w, r, http.StatusOK, "cart.page.tmpl", nil)
}

// --- AUTH PAGES ---

func (app *application) signinForm(w http.ResponseWriter, r *http.Request) {
	app.render(w, r, http.StatusOK, "signin.page.tmpl", &TemplateData{
		CallbackURL: safeRedirect(r.URL.Query().Get("callbackUrl"), "/"),
	})
}

func (app *application) signin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		app.clientError(w, http.StatusBadRequest)
		return
	}

	email := r.PostForm.Get("email")
	data := &TemplateData{
		Form:        map[string]string{"email": email},
		CallbackURL: safeRedirect(r.PostForm.Get("callbackUrl"), "/"),
	}

	user, err := app.accounts.Authenticate(r.Context(), email, r.PostForm.Get("password"))
	if err != nil {
		app.formError(w, r, "signin.page.tmpl", data, err)
		return
	}
	if err := app.gate.Login(r.Context(), user); err != nil {
		app.serverError(w, r, err)
		return
	}

	http.Redirect(w, r, data.CallbackURL, http.StatusSeeOther)
}

func (app *application) signout(w http.ResponseWriter, r *http.Request) {
	if err := app.gate.Logout(r.Context()); err != nil {
		app.serverError(w, r, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (app *application) registerForm(w http.ResponseWriter, r *http.Request) {
	app.render(w, r, http.StatusOK, "register.page.tmpl", nil)
}

func (app *application) register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		app.clientError(w, http.StatusBadRequest)
		return
	}

	in := accounts.RegisterInput{
		Name:     r.PostForm.Get("name"),
		Email:    r.PostForm.Get("email"),
		Password: r.PostForm.Get("password"),
	}
	data := &TemplateData{Form: map[string]string{"name": in.Name, "email": in.Email}}

	if in.Password != r.PostForm.Get("confirmPassword") {
		app.formError(w, r, "register.page.tmpl", data, models.Invalid("password", "passwords do not match"))
		return
	}
	if _, err := app.accounts.Register(r.Context(), in); err != nil {
		app.formError(w, r, "register.page.tmpl", data, err)
		return
	}

	app.gate.Flash(r.Context(), "Your account has been created. Please sign in.")
	http.Redirect(w, r, "/auth/signin", http.StatusSeeOther)
}

const forgotPasswordMessage = "If an account with that email exists, a password reset link has been sent."

func (app *application) forgotPasswordForm(w http.ResponseWriter, r *http.Request) {
	app.render(w, r, http.StatusOK, "forgot_password.page.tmpl", nil)
}

func (app *application) forgotPassword(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		app.clientError(w, http.StatusBadRequest)
		return
	}

	email := r.PostForm.Get("email")
	data := &TemplateData{Form: map[string]string{"email": email}}
	if strings.TrimSpace(email) == "" {
		app.formError(w, r, "forgot_password.page.tmpl", data, models.Invalid("email", "is required"))
		return
	}
	if err := app.accounts.ForgotPassword(r.Context(), email); err != nil {
		app.formError(w, r, "forgot_password.page.tmpl", data, err)
		return
	}

	app.gate.Flash(r.Context(), forgotPasswordMessage)
	http.Redirect(w, r, "/auth/forgot-password", http.StatusSeeOther)
}

func (app *application) resetPasswordForm(w http.ResponseWriter, r *http.Request) {
	data := &TemplateData{Token: r.URL.Query().Get("token")}
	if data.Token == "" {
		data.FormError = "Invalid or missing token"
	}
	app.render(w, r, http.StatusOK, "reset_password.page.tmpl", data)
}

func (app *application) resetPassword(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		app.clientError(w, http.StatusBadRequest)
		return
	}

	token := r.PostForm.Get("token")
	password := r.PostForm.Get("password")
	data := &TemplateData{Token: token}

	if password != r.PostForm.Get("confirmPassword") {
		app.formError(w, r, "reset_password.page.tmpl", data, models.Invalid("password", "passwords do not match"))
		return
	}
	if err := app.accounts.ResetPassword(r.Context(), token, password); err != nil {
		app.formError(w, r, "reset_password.page.tmpl", data, err)
		return
	}

	app.gate.Flash(r.Context(), "Password reset successful. Please sign in.")
	http.Redirect(w, r, "/auth/signin", http.StatusSeeOther)
}

// --- ACCOUNT PAGES ---

func (app *application) currentUser(r *http.Request) (*models.User, error) {
	id, ok := app.identity(r)
	if !ok {
		return nil, models.ErrNoRecord
	}
	return app.accounts.GetUser(r.Context(), id.UserID)
}

func (app *application) accountPage(w http.ResponseWriter, r *http.Request) {
	user, err := app.currentUser(r)
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	app.render(w, r, http.StatusOK, "account.page.tmpl", &TemplateData{User: user})
}

// customerOrders returns the first page of the user's orders. Users
// without a linked customer have none.
func (app *application) customerOrders(r *http.Request, user *models.User, pageInfo string) (*commerce.OrderPage, error) {
	if user.CustomerRef == "" {
		return &commerce.OrderPage{Orders: []commerce.Order{}}, nil
	}
	id := app.ids.CustomerNumericID(user.CustomerRef)
	return app.shop.CustomerOrders(r.Context(), id, purchase.PageSize, pageInfo)
}

func (app *application) accountOrdersPage(w http.ResponseWriter, r *http.Request) {
	user, err := app.currentUser(r)
	if err != nil {
		app.serverError(w, r, err)
		return
	}

	data := &TemplateData{User: user}
	page, err := app.customerOrders(r, user, "")
	if err != nil {
		app.logger.Warn("order history unavailable", "user", user.ID, "error", err)
		data.OrdersUnavailable = true
	} else {
		data.Orders = page.Orders
	}
	app.render(w, r, http.StatusOK, "orders.page.tmpl", data)
}

func (app *application) accountReviewsPage(w http.ResponseWriter, r *http.Request) {
	id, _ := app.identity(r)
	mine, err := app.reviews.ListForUser(r.Context(), id.UserID)
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	app.render(w, r, http.StatusOK, "account_reviews.page.tmpl", &TemplateData{Reviews: mine})
}

func (app *application) accountUpdateForm(w http.ResponseWriter, r *http.Request) {
	user, err := app.currentUser(r)
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	app.render(w, r, http.StatusOK, "account_update.page.tmpl", &TemplateData{
		User: user,
		Form: map[string]string{"name": user.Name, "email": user.Email},
	})
}

func (app *application) accountUpdate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		app.clientError(w, http.StatusBadRequest)
		return
	}
	id, _ := app.identity(r)

	name := r.PostForm.Get("name")
	email := r.PostForm.Get("email")
	password := r.PostForm.Get("password")
	data := &TemplateData{Form: map[string]string{"name": name, "email": email}}

	// Blank form fields leave the stored value alone.
	var in accounts.ProfileInput
	if strings.TrimSpace(name) != "" {
		in.Name = &name
	}
	if strings.TrimSpace(email) != "" {
		in.Email = &email
	}
	if password != "" {
		if password != r.PostForm.Get("confirmPassword") {
			app.formError(w, r, "account_update.page.tmpl", data, models.Invalid("password", "passwords do not match"))
			return
		}
		in.Password = &password
	}

	user, err := app.accounts.UpdateProfile(r.Context(), id.UserID, in)
	if err != nil {
		app.formError(w, r, "account_update.page.tmpl", data, err)
		return
	}
	app.gate.Refresh(r.Context(), user)

	app.gate.Flash(r.Context(), "Your profile has been updated.")
	http.Redirect(w, r, "/account", http.StatusSeeOther)
}

// --- ADMIN PAGES ---

func (app *application) adminDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pending := models.ReviewPending
	queue, err := app.reviews.ListAdmin(ctx, reviews.AdminFilter{Status: &pending})
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	users, err := app.accounts.ListUsers(ctx)
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	app.render(w, r, http.StatusOK, "admin.page.tmpl", &TemplateData{
		PendingCount: len(queue),
		Users:        users,
	})
}

func (app *application) adminReviewsPage(w http.ResponseWriter, r *http.Request) {
	filter, err := adminFilterFromQuery(r)
	if err != nil {
		app.clientError(w, http.StatusBadRequest)
		return
	}
	list, err := app.reviews.ListAdmin(r.Context(), filter)
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	app.render(w, r, http.StatusOK, "admin_reviews.page.tmpl", &TemplateData{
		Reviews: list,
		Form:    map[string]string{"status": r.URL.Query().Get("status")},
	})
}

func (app *application) adminUsersPage(w http.ResponseWriter, r *http.Request) {
	users, err := app.accounts.ListUsers(r.Context())
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	id, _ := app.identity(r)
	app.render(w, r, http.StatusOK, "admin_users.page.tmpl", &TemplateData{
		Users: users,
		User:  &models.User{ID: id.UserID},
	})
}
