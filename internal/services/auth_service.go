package services

import (
	"fmt"
	"strings"
	"time"

	"careworks_backend/internal/auth"
	"careworks_backend/internal/email"
	"careworks_backend/internal/models"
	"careworks_backend/internal/repositories"
	"careworks_backend/internal/services/dto"
	"careworks_backend/pkg/apperrors"
)

const (
	verificationTokenTTL = 24 * time.Hour
	otpTTL               = 15 * time.Minute
)

type AuthService interface {
	Register(req *dto.RegisterRequest) error
	ResendVerification(emailAddr string) error
	VerifyEmail(rawToken string) error
	Login(req *dto.LoginRequest) (*dto.LoginResponse, error)
	ForgotPassword(emailAddr string) error
	VerifyOTP(emailAddr, otp string) error
	ResetPassword(emailAddr, newPassword string) error
	ChangePassword(userID, emailAddr, currentPassword, newPassword string) error
}

type AuthServiceImpl struct {
	userRepo      repositories.UserRepository
	emailProvider email.Provider
	frontendURL   string

	// now is a seam for expiry tests.
	now func() time.Time
}

func NewAuthService(
	userRepo repositories.UserRepository,
	emailProvider email.Provider,
	frontendURL string,
) AuthService {
	return &AuthServiceImpl{
		userRepo:      userRepo,
		emailProvider: emailProvider,
		frontendURL:   frontendURL,
		now:           time.Now,
	}
}

// Register creates an unverified account and emails the verification link.
// If the email cannot be delivered the request fails, but the account stays
// persisted; the recovery path is a later resend for the same address.
func (s *AuthServiceImpl) Register(req *dto.RegisterRequest) error {
	if err := auth.ValidatePassword(req.Password); err != nil {
		return apperrors.ErrWeakPassword
	}
	if req.Role == models.UserRoleAdmin || !req.Role.Valid() {
		// Admin accounts are seeded, never self-registered.
		return apperrors.ErrInvalidUserRole
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		return apperrors.InternalError(err)
	}

	rawToken, tokenHash, err := auth.NewVerificationToken()
	if err != nil {
		return apperrors.InternalError(err)
	}

	expiry := s.now().Add(verificationTokenTTL)
	user := &models.User{
		Email:                normalizeEmail(req.Email),
		PasswordHash:         hashedPassword,
		Role:                 req.Role,
		FirstName:            req.FirstName,
		LastName:             req.LastName,
		PhoneNumber:          req.PhoneNumber,
		IsVerified:           false,
		VerificationToken:    &tokenHash,
		VerificationTokenExp: &expiry,
	}

	if err := s.userRepo.Create(user); err != nil {
		if apperrors.Is(err, repositories.ErrUserAlreadyExists) {
			return apperrors.ErrEmailAlreadyExists
		}
		return apperrors.InternalError(err)
	}

	// Delivery is synchronous and on the critical path: the account above is
	// already persisted when this fails.
	if err := s.emailProvider.SendVerification(user.Email, s.verificationLink(rawToken)); err != nil {
		return mapDeliveryError(err)
	}

	return nil
}

// ResendVerification replaces the outstanding token. Tokens are single
// generation: the overwrite permanently invalidates the previous one even
// if it had not expired yet.
func (s *AuthServiceImpl) ResendVerification(emailAddr string) error {
	user, err := s.userRepo.FindByEmail(normalizeEmail(emailAddr))
	if err != nil {
		if apperrors.Is(err, repositories.ErrUserNotFound) {
			return apperrors.ErrAccountNotFound
		}
		return apperrors.InternalError(err)
	}

	if user.IsVerified {
		return apperrors.ErrAlreadyVerified
	}

	rawToken, tokenHash, err := auth.NewVerificationToken()
	if err != nil {
		return apperrors.InternalError(err)
	}

	expiry := s.now().Add(verificationTokenTTL)
	err = s.userRepo.UpdateFields(user.ID, map[string]interface{}{
		"verification_token":     tokenHash,
		"verification_token_exp": expiry,
	})
	if err != nil {
		return apperrors.InternalError(err)
	}

	if err := s.emailProvider.SendVerification(user.Email, s.verificationLink(rawToken)); err != nil {
		return mapDeliveryError(err)
	}

	return nil
}

// VerifyEmail consumes a verification token. The store lookup matches the
// token digest and a live expiry in one predicate; absent, wrong and expired
// tokens are indistinguishable to the caller.
func (s *AuthServiceImpl) VerifyEmail(rawToken string) error {
	user, err := s.userRepo.FindByVerificationToken(auth.HashToken(rawToken), s.now())
	if err != nil {
		if apperrors.Is(err, repositories.ErrUserNotFound) {
			return apperrors.ErrInvalidOrExpiredToken
		}
		return apperrors.InternalError(err)
	}

	// Flag flip and token clearing happen in a single update.
	err = s.userRepo.UpdateFields(user.ID, map[string]interface{}{
		"is_verified":            true,
		"verification_token":     nil,
		"verification_token_exp": nil,
	})
	if err != nil {
		return apperrors.InternalError(err)
	}

	return nil
}

// Login checks the credentials and issues a session token.
func (s *AuthServiceImpl) Login(req *dto.LoginRequest) (*dto.LoginResponse, error) {
	user, err := s.userRepo.FindByEmail(normalizeEmail(req.Email))
	if err != nil {
		if apperrors.Is(err, repositories.ErrUserNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, apperrors.InternalError(err)
	}

	if !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		return nil, apperrors.ErrInvalidCredentials
	}

	if !user.Role.Valid() {
		return nil, apperrors.ErrInvalidUserRole
	}

	token, err := auth.GenerateToken(user.ID, string(user.Role))
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	return &dto.LoginResponse{
		Token: token,
		User: dto.UserDTO{
			ID:       user.ID,
			Name:     user.DisplayName(),
			Email:    user.Email,
			Role:     user.Role,
			Approved: user.Approved,
		},
	}, nil
}

// ForgotPassword issues a reset OTP and emails it. Delivery failure fails
// the request, same policy as the verification mails.
func (s *AuthServiceImpl) ForgotPassword(emailAddr string) error {
	user, err := s.userRepo.FindByEmail(normalizeEmail(emailAddr))
	if err != nil {
		if apperrors.Is(err, repositories.ErrUserNotFound) {
			return apperrors.ErrAccountNotFound
		}
		return apperrors.InternalError(err)
	}

	code, err := auth.NewOTP()
	if err != nil {
		return apperrors.InternalError(err)
	}

	expiry := s.now().Add(otpTTL)
	err = s.userRepo.UpdateFields(user.ID, map[string]interface{}{
		"otp":     code,
		"otp_exp": expiry,
	})
	if err != nil {
		return apperrors.InternalError(err)
	}

	if err := s.emailProvider.SendOTP(user.Email, code); err != nil {
		return mapDeliveryError(err)
	}

	return nil
}

// VerifyOTP checks the submitted code and consumes it on success. Consuming
// happens at verification, not at reset completion, so a second attempt with
// the same code always fails.
func (s *AuthServiceImpl) VerifyOTP(emailAddr, otp string) error {
	user, err := s.userRepo.FindByEmail(normalizeEmail(emailAddr))
	if err != nil {
		if apperrors.Is(err, repositories.ErrUserNotFound) {
			return apperrors.ErrAccountNotFound
		}
		return apperrors.InternalError(err)
	}

	if user.OTP == nil || *user.OTP != otp {
		return apperrors.ErrInvalidOTP
	}
	if user.OTPExp == nil || user.OTPExp.Before(s.now()) {
		return apperrors.ErrOTPExpired
	}

	err = s.userRepo.UpdateFields(user.ID, map[string]interface{}{
		"otp":     nil,
		"otp_exp": nil,
	})
	if err != nil {
		return apperrors.InternalError(err)
	}

	return nil
}

// ResetPassword rehashes the password. It trusts that VerifyOTP succeeded
// earlier in the flow; the two calls are not linked by a proof token.
func (s *AuthServiceImpl) ResetPassword(emailAddr, newPassword string) error {
	user, err := s.userRepo.FindByEmail(normalizeEmail(emailAddr))
	if err != nil {
		if apperrors.Is(err, repositories.ErrUserNotFound) {
			return apperrors.ErrAccountNotFound
		}
		return apperrors.InternalError(err)
	}

	if err := auth.ValidatePassword(newPassword); err != nil {
		return apperrors.ErrWeakPassword
	}

	hashedPassword, err := auth.HashPassword(newPassword)
	if err != nil {
		return apperrors.InternalError(err)
	}

	err = s.userRepo.UpdateFields(user.ID, map[string]interface{}{
		"password_hash": hashedPassword,
	})
	if err != nil {
		return apperrors.InternalError(err)
	}

	return nil
}

// ChangePassword verifies the current password before setting a new one.
// The account is looked up by id and email together.
func (s *AuthServiceImpl) ChangePassword(userID, emailAddr, currentPassword, newPassword string) error {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		if apperrors.Is(err, repositories.ErrUserNotFound) {
			return apperrors.ErrAccountNotFound
		}
		return apperrors.InternalError(err)
	}
	if user.Email != normalizeEmail(emailAddr) {
		return apperrors.ErrAccountNotFound
	}

	if !auth.CheckPasswordHash(currentPassword, user.PasswordHash) {
		return apperrors.ErrIncorrectCurrentPassword
	}

	if err := auth.ValidatePassword(newPassword); err != nil {
		return apperrors.ErrWeakPassword
	}

	hashedPassword, err := auth.HashPassword(newPassword)
	if err != nil {
		return apperrors.InternalError(err)
	}

	err = s.userRepo.UpdateFields(user.ID, map[string]interface{}{
		"password_hash": hashedPassword,
	})
	if err != nil {
		return apperrors.InternalError(err)
	}

	return nil
}

// --- Helpers ---

func (s *AuthServiceImpl) verificationLink(rawToken string) string {
	return fmt.Sprintf("%s/verify-email?token=%s", s.frontendURL, rawToken)
}

func normalizeEmail(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// mapDeliveryError turns a classified notifier failure into the user-facing
// delivery error for the request.
func mapDeliveryError(err error) *apperrors.AppError {
	sendErr := email.ClassifyError(err)

	switch sendErr.Kind {
	case email.FailureInvalidRecipient:
		return apperrors.EmailDeliveryError(err, "Invalid email address")
	case email.FailureMailboxFull:
		return apperrors.EmailDeliveryError(err, "Recipient mailbox is full")
	case email.FailureConnection:
		return apperrors.EmailDeliveryError(err, "Email service is unreachable")
	case email.FailureAuth:
		return apperrors.EmailDeliveryError(err, "Email service rejected our credentials")
	default:
		return apperrors.EmailDeliveryError(err, "Failed to send email")
	}
}
