package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"storefront/internal/accounts"
	"storefront/internal/cart"
	"storefront/internal/commerce"
	"storefront/internal/models"
	"storefront/internal/reviews"
)

// --- CART ---

type cartResponse struct {
	*cart.Cart
	Subtotal commerce.Money `json:"subtotal"`
}

func (app *application) writeCart(w http.ResponseWriter, r *http.Request, status int, c *cart.Cart) {
	err := app.writeJSON(w, status, envelope{"cart": cartResponse{Cart: c, Subtotal: c.Subtotal()}}, nil)
	if err != nil {
		app.apiError(w, r, err)
	}
}

func (app *application) apiGetCart(w http.ResponseWriter, r *http.Request) {
	cartID := r.URL.Query().Get("cartId")
	if cartID == "" {
		app.errorJSON(w, r, http.StatusBadRequest, "Missing cartId")
		return
	}

	c, err := app.carts.Fetch(r.Context(), cartID)
	if err != nil {
		app.apiError(w, r, err)
		return
	}
	app.writeCart(w, r, http.StatusOK, c)
}

func (app *application) apiPostCart(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Action string           `json:"action"`
		CartID string           `json:"cartId"`
		Lines  []cart.LineInput `json:"lines"`
	}
	if err := app.readJSON(w, r, &input); err != nil {
		app.apiError(w, r, err)
		return
	}

	switch input.Action {
	case "create":
		c, err := app.carts.Create(r.Context(), input.Lines)
		if err != nil {
			app.apiError(w, r, err)
			return
		}
		app.writeCart(w, r, http.StatusCreated, c)
	case "add":
		if input.CartID == "" || len(input.Lines) == 0 {
			app.errorJSON(w, r, http.StatusBadRequest, "Missing cartId or lines")
			return
		}
		c, err := app.carts.Add(r.Context(), input.CartID, input.Lines)
		if err != nil {
			app.apiError(w, r, err)
			return
		}
		app.writeCart(w, r, http.StatusOK, c)
	default:
		app.errorJSON(w, r, http.StatusBadRequest, "Unknown action")
	}
}

func (app *application) apiPatchCart(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Action  string            `json:"action"`
		CartID  string            `json:"cartId"`
		LineIDs []string          `json:"lineIds"`
		Lines   []cart.LineUpdate `json:"lines"`
	}
	if err := app.readJSON(w, r, &input); err != nil {
		app.apiError(w, r, err)
		return
	}
	if input.CartID == "" {
		app.errorJSON(w, r, http.StatusBadRequest, "Missing cartId")
		return
	}

	var (
		c   *cart.Cart
		err error
	)
	switch input.Action {
	case "remove":
		c, err = app.carts.Remove(r.Context(), input.CartID, input.LineIDs)
	case "update":
		c, err = app.carts.Update(r.Context(), input.CartID, input.Lines)
	default:
		app.errorJSON(w, r, http.StatusBadRequest, "Unknown PATCH action")
		return
	}
	if err != nil {
		app.apiError(w, r, err)
		return
	}
	app.writeCart(w, r, http.StatusOK, c)
}

// --- REVIEWS ---

// apiListReviews serves the approved reviews of a product with an ETag so
// product pages can revalidate cheaply.
func (app *application) apiListReviews(w http.ResponseWriter, r *http.Request) {
	productID := r.URL.Query().Get("productId")
	if productID == "" {
		app.errorJSON(w, r, http.StatusBadRequest, "Missing productId")
		return
	}

	list, err := app.reviews.ListPublic(r.Context(), productID)
	if err != nil {
		app.apiError(w, r, err)
		return
	}

	body, err := json.Marshal(envelope{
		"reviews": reviews.PublicViews(list),
		"summary": reviews.Summarize(list),
	})
	if err != nil {
		app.apiError(w, r, err)
		return
	}
	etag := fmt.Sprintf(`"%016x"`, xxhash.Sum64(body))

	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")
	if etagMatches(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(append(body, '\n'))
}

func etagMatches(header, etag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}

func (app *application) apiCreateReview(w http.ResponseWriter, r *http.Request) {
	id, _ := app.identity(r)

	var input reviews.CreateInput
	if err := app.readJSON(w, r, &input); err != nil {
		app.apiError(w, r, err)
		return
	}

	review, err := app.reviews.Create(r.Context(), id.UserID, input)
	if err != nil {
		app.apiError(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusCreated, envelope{
		"message": "Review created successfully, pending admin approval",
		"review":  reviews.NewView(review),
	}, nil)
	if err != nil {
		app.apiError(w, r, err)
	}
}

func (app *application) apiModerateReview(w http.ResponseWriter, r *http.Request) {
	var input reviews.ModerateInput
	if err := app.readJSON(w, r, &input); err != nil {
		app.apiError(w, r, err)
		return
	}

	review, err := app.reviews.Moderate(r.Context(), r.URL.Query().Get(":id"), input)
	if err != nil {
		app.apiError(w, r, err)
		return
	}
	if err := app.writeJSON(w, http.StatusOK, envelope{"review": reviews.NewView(review)}, nil); err != nil {
		app.apiError(w, r, err)
	}
}

func adminFilterFromQuery(r *http.Request) (reviews.AdminFilter, error) {
	q := r.URL.Query()
	f := reviews.AdminFilter{ProductID: q.Get("productId")}

	if v := q.Get("approved"); v != "" {
		approved, err := strconv.ParseBool(v)
		if err != nil {
			return f, models.Invalid("approved", "must be true or false")
		}
		f.Approved = &approved
	}
	if v := q.Get("status"); v != "" {
		status, ok := models.ParseReviewStatus(v)
		if !ok {
			return f, models.Invalid("status", "must be one of PENDING, APPROVED, DENIED")
		}
		f.Status = &status
	}
	return f, nil
}

func (app *application) apiAdminReviews(w http.ResponseWriter, r *http.Request) {
	filter, err := adminFilterFromQuery(r)
	if err != nil {
		app.apiError(w, r, err)
		return
	}
	list, err := app.reviews.ListAdmin(r.Context(), filter)
	if err != nil {
		app.apiError(w, r, err)
		return
	}
	if err := app.writeJSON(w, http.StatusOK, envelope{"reviews": reviews.AdminViews(list)}, nil); err != nil {
		app.apiError(w, r, err)
	}
}

// --- AUTH ---

func (app *application) apiRegister(w http.ResponseWriter, r *http.Request) {
	var input accounts.RegisterInput
	if err := app.readJSON(w, r, &input); err != nil {
		app.apiError(w, r, err)
		return
	}

	user, err := app.accounts.Register(r.Context(), input)
	if err != nil {
		app.apiError(w, r, err)
		return
	}
	if err := app.writeJSON(w, http.StatusCreated, envelope{"message": "User created successfully", "user": user}, nil); err != nil {
		app.apiError(w, r, err)
	}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (app *application) apiLogin(w http.ResponseWriter, r *http.Request) {
	var input credentials
	if err := app.readJSON(w, r, &input); err != nil {
		app.apiError(w, r, err)
		return
	}

	user, err := app.accounts.Authenticate(r.Context(), input.Email, input.Password)
	if err != nil {
		app.apiError(w, r, err)
		return
	}
	if err := app.gate.Login(r.Context(), user); err != nil {
		app.apiError(w, r, err)
		return
	}
	if err := app.writeJSON(w, http.StatusOK, envelope{"user": user}, nil); err != nil {
		app.apiError(w, r, err)
	}
}

func (app *application) apiLogout(w http.ResponseWriter, r *http.Request) {
	if err := app.gate.Logout(r.Context()); err != nil {
		app.apiError(w, r, err)
		return
	}
	app.messageJSON(w, r, http.StatusOK, "Signed out")
}

func (app *application) apiForgotPassword(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Email string `json:"email"`
	}
	if err := app.readJSON(w, r, &input); err != nil {
		app.apiError(w, r, err)
		return
	}
	if strings.TrimSpace(input.Email) == "" {
		app.errorJSON(w, r, http.StatusBadRequest, "Email is required")
		return
	}

	if err := app.accounts.ForgotPassword(r.Context(), input.Email); err != nil {
		app.apiError(w, r, err)
		return
	}
	app.messageJSON(w, r, http.StatusOK, forgotPasswordMessage)
}

func (app *application) apiResetPassword(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := app.readJSON(w, r, &input); err != nil {
		app.apiError(w, r, err)
		return
	}
	if input.Token == "" || input.Password == "" {
		app.errorJSON(w, r, http.StatusBadRequest, "Token and password are required")
		return
	}

	if err := app.accounts.ResetPassword(r.Context(), input.Token, input.Password); err != nil {
		app.apiError(w, r, err)
		return
	}
	app.messageJSON(w, r, http.StatusOK, "Password reset successful")
}

func (app *application) apiMe(w http.ResponseWriter, r *http.Request) {
	user, err := app.currentUser(r)
	if err != nil {
		app.apiError(w, r, err)
		return
	}
	if err := app.writeJSON(w, http.StatusOK, envelope{"user": user}, nil); err != nil {
		app.apiError(w, r, err)
	}
}

// --- ACCOUNT ---

func (app *application) apiAccountReviews(w http.ResponseWriter, r *http.Request) {
	id, _ := app.identity(r)
	list, err := app.reviews.ListForUser(r.Context(), id.UserID)
	if err != nil {
		app.apiError(w, r, err)
		return
	}
	if err := app.writeJSON(w, http.StatusOK, envelope{"reviews": reviews.AdminViews(list)}, nil); err != nil {
		app.apiError(w, r, err)
	}
}

func (app *application) apiAccountOrders(w http.ResponseWriter, r *http.Request) {
	user, err := app.currentUser(r)
	if err != nil {
		app.apiError(w, r, err)
		return
	}

	page, err := app.customerOrders(r, user, r.URL.Query().Get("page_info"))
	if err != nil {
		app.apiError(w, r, err)
		return
	}
	if err := app.writeJSON(w, http.StatusOK, envelope{"orders": page.Orders, "next": page.Next}, nil); err != nil {
		app.apiError(w, r, err)
	}
}

func (app *application) apiUpdateAccount(w http.ResponseWriter, r *http.Request) {
	id, _ := app.identity(r)

	var input accounts.ProfileInput
	if err := app.readJSON(w, r, &input); err != nil {
		app.apiError(w, r, err)
		return
	}

	user, err := app.accounts.UpdateProfile(r.Context(), id.UserID, input)
	if err != nil {
		app.apiError(w, r, err)
		return
	}
	app.gate.Refresh(r.Context(), user)

	if err := app.writeJSON(w, http.StatusOK, envelope{"user": user}, nil); err != nil {
		app.apiError(w, r, err)
	}
}

// --- ADMIN ---

func (app *application) apiAdminUsers(w http.ResponseWriter, r *http.Request) {
	users, err := app.accounts.ListUsers(r.Context())
	if err != nil {
		app.apiError(w, r, err)
		return
	}
	if err := app.writeJSON(w, http.StatusOK, envelope{"users": users}, nil); err != nil {
		app.apiError(w, r, err)
	}
}

func (app *application) apiAdminGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := app.accounts.GetUser(r.Context(), r.URL.Query().Get(":id"))
	if err != nil {
		app.apiError(w, r, err)
		return
	}
	if err := app.writeJSON(w, http.StatusOK, envelope{"user": user}, nil); err != nil {
		app.apiError(w, r, err)
	}
}

func (app *application) apiAdminUpdateUser(w http.ResponseWriter, r *http.Request) {
	actor, _ := app.identity(r)

	var input struct {
		Role string `json:"role"`
	}
	if err := app.readJSON(w, r, &input); err != nil {
		app.apiError(w, r, err)
		return
	}

	user, err := app.accounts.ChangeRole(r.Context(), actor.UserID, r.URL.Query().Get(":id"), models.Role(input.Role))
	if err != nil {
		app.apiError(w, r, err)
		return
	}
	if err := app.writeJSON(w, http.StatusOK, envelope{"user": user}, nil); err != nil {
		app.apiError(w, r, err)
	}
}

func (app *application) apiAdminDeleteUser(w http.ResponseWriter, r *http.Request) {
	actor, _ := app.identity(r)

	if err := app.accounts.DeleteUser(r.Context(), actor.UserID, r.URL.Query().Get(":id")); err != nil {
		app.apiError(w, r, err)
		return
	}
	app.messageJSON(w, r, http.StatusOK, "User deleted successfully")
}

func (app *application) apiCommerceHealth(w http.ResponseWriter, r *http.Request) {
	res := app.shop.Probe(r.Context())

	status := http.StatusOK
	if !res.Healthy() {
		status = http.StatusBadGateway
	}
	if err := app.writeJSON(w, status, res, nil); err != nil {
		app.apiError(w, r, err)
	}
}
