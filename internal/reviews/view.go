package reviews

import (
	"time"

	"github.com/shopspring/decimal"

	"storefront/internal/models"
)

// View is the JSON shape of a review. Approved mirrors Status for clients
// that only know the boolean flag.
type View struct {
	ID            string              `json:"id"`
	UserID        string              `json:"userId"`
	ProductID     string              `json:"productId"`
	Rating        int                 `json:"rating"`
	Comment       string              `json:"comment"`
	Status        models.ReviewStatus `json:"status"`
	Approved      bool                `json:"approved"`
	AdminResponse *string             `json:"adminResponse"`
	CreatedAt     time.Time           `json:"createdAt"`
	UpdatedAt     time.Time           `json:"updatedAt"`
	User          *Author             `json:"user,omitempty"`
}

type Author struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

func NewView(r *models.Review) View {
	return View{
		ID:            r.ID,
		UserID:        r.UserID,
		ProductID:     r.ProductID,
		Rating:        r.Rating,
		Comment:       r.Comment,
		Status:        r.Status,
		Approved:      r.Approved(),
		AdminResponse: r.AdminResponse,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

// PublicViews shows the author's display name only.
func PublicViews(rs []*models.ReviewWithAuthor) []View {
	out := make([]View, 0, len(rs))
	for _, r := range rs {
		v := NewView(&r.Review)
		v.User = &Author{Name: r.AuthorDisplayName()}
		out = append(out, v)
	}
	return out
}

// AdminViews include the author's email.
func AdminViews(rs []*models.ReviewWithAuthor) []View {
	out := make([]View, 0, len(rs))
	for _, r := range rs {
		v := NewView(&r.Review)
		v.User = &Author{Name: r.AuthorName, Email: r.AuthorEmail}
		out = append(out, v)
	}
	return out
}

type Summary struct {
	Count   int             `json:"count"`
	Average decimal.Decimal `json:"average"`
}

// Summarize averages the ratings, rounded to one decimal place.
func Summarize(rs []*models.ReviewWithAuthor) Summary {
	if len(rs) == 0 {
		return Summary{}
	}
	var sum int64
	for _, r := range rs {
		sum += int64(r.Rating)
	}
	avg := decimal.NewFromInt(sum).Div(decimal.NewFromInt(int64(len(rs)))).Round(1)
	return Summary{Count: len(rs), Average: avg}
}
