package accounts

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"html"
	"net/url"

	"storefront/internal/mailer"
	"storefront/internal/models"
)

// ForgotPassword mails a reset link when the email belongs to an account.
// Unknown emails succeed silently so callers cannot discover accounts.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	if len(s.cfg.ResetSecret) == 0 {
		return ErrResetUnavailable
	}

	user, err := s.users.GetByEmail(ctx, normalizeLoose(email))
	if errors.Is(err, models.ErrNoRecord) {
		s.logger.Info("password reset requested for unknown email")
		return nil
	}
	if err != nil {
		return err
	}

	token, err := newToken()
	if err != nil {
		return err
	}
	err = s.tokens.Insert(ctx, &models.PasswordResetToken{
		Email:     user.Email,
		TokenHash: s.digest(token),
		ExpiresAt: s.now().Add(s.cfg.ResetTTL),
	})
	if err != nil {
		return err
	}

	link := fmt.Sprintf("%s/auth/reset-password?token=%s", s.cfg.BaseURL, url.QueryEscape(token))
	if err := s.mail.Send(ctx, resetMessage(user, link)); err != nil {
		// A failed send answers like an unknown email.
		s.logger.Error("password reset email not sent", "user", user.ID, "error", err)
		return nil
	}
	s.logger.Info("password reset email sent", "user", user.ID)
	return nil
}

// ResetPassword consumes a reset token. Every outstanding token for the
// account is invalidated on success.
func (s *Service) ResetPassword(ctx context.Context, token, password string) error {
	if len(s.cfg.ResetSecret) == 0 {
		return ErrResetUnavailable
	}
	if token == "" {
		return ErrInvalidToken
	}

	rec, err := s.tokens.GetByTokenHash(ctx, s.digest(token))
	if errors.Is(err, models.ErrNoRecord) {
		return ErrInvalidToken
	}
	if err != nil {
		return err
	}
	if rec.Expired(s.now()) {
		return ErrInvalidToken
	}
	if err := validatePassword(password); err != nil {
		return err
	}

	user, err := s.users.GetByEmail(ctx, rec.Email)
	if err != nil {
		return err
	}

	hash, err := s.hash(password)
	if err != nil {
		return err
	}
	if _, err := s.users.Update(ctx, user.ID, models.UserPatch{PasswordHash: &hash}); err != nil {
		return err
	}

	if user.CustomerRef != "" {
		id := s.cfg.IDs.CustomerNumericID(user.CustomerRef)
		if err := s.customers.SetCustomerPassword(ctx, id, password); err != nil {
			s.logger.Warn("commerce customer password not updated", "user", user.ID, "error", err)
		}
	}

	if err := s.tokens.DeleteByEmail(ctx, user.Email); err != nil {
		return err
	}
	s.logger.Info("password reset", "user", user.ID)
	return nil
}

func (s *Service) digest(token string) string {
	mac := hmac.New(sha256.New, s.cfg.ResetSecret)
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}

func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func normalizeLoose(email string) string {
	e, err := normalizeEmail(email)
	if err != nil {
		return email
	}
	return e
}

func resetMessage(user *models.User, link string) mailer.Message {
	name := user.DisplayName()
	return mailer.Message{
		To:      user.Email,
		Subject: "Reset your password",
		Text: fmt.Sprintf("Hi %s,\n\nYou recently requested to reset your password. Open the link below to choose a new one:\n\n%s\n\n"+
			"The link expires in one hour. If you did not request this, you can ignore this email.\n", name, link),
		HTML: fmt.Sprintf(`<p>Hi %s,</p><p>You recently requested to reset your password.</p>`+
			`<p><a href="%s">Choose a new password</a></p><p>The link expires in one hour. If you did not request this, you can ignore this email.</p>`,
			html.EscapeString(name), html.EscapeString(link)),
	}
}
