package services

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"careworks_backend/internal/auth"
	"careworks_backend/internal/email"
	"careworks_backend/internal/models"
	"careworks_backend/internal/repositories"
	"careworks_backend/internal/services/dto"
	"careworks_backend/pkg/apperrors"
)

func TestMain(m *testing.M) {
	auth.Init("test-secret", time.Hour)
	os.Exit(m.Run())
}

// fakeUserRepo is a map-backed store with the same partial-update and
// token-expiry semantics as the real one.
type fakeUserRepo struct {
	users  map[string]*models.User
	nextID int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*models.User)}
}

func (r *fakeUserRepo) FindByID(id string) (*models.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func (r *fakeUserRepo) FindByEmail(emailAddr string) (*models.User, error) {
	for _, user := range r.users {
		if user.Email == emailAddr {
			copied := *user
			return &copied, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func (r *fakeUserRepo) FindByVerificationToken(tokenHash string, now time.Time) (*models.User, error) {
	for _, user := range r.users {
		if user.VerificationToken != nil && *user.VerificationToken == tokenHash &&
			user.VerificationTokenExp != nil && user.VerificationTokenExp.After(now) {
			copied := *user
			return &copied, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func (r *fakeUserRepo) Create(user *models.User) error {
	if _, err := r.FindByEmail(user.Email); err == nil {
		return repositories.ErrUserAlreadyExists
	}
	r.nextID++
	user.ID = fmt.Sprintf("user-%d", r.nextID)
	copied := *user
	r.users[user.ID] = &copied
	return nil
}

func (r *fakeUserRepo) UpdateFields(id string, fields map[string]interface{}) error {
	user, ok := r.users[id]
	if !ok {
		return repositories.ErrUserNotFound
	}
	for column, value := range fields {
		switch column {
		case "is_verified":
			user.IsVerified = value.(bool)
		case "verification_token":
			user.VerificationToken = optString(value)
		case "verification_token_exp":
			user.VerificationTokenExp = optTime(value)
		case "otp":
			user.OTP = optString(value)
		case "otp_exp":
			user.OTPExp = optTime(value)
		case "password_hash":
			user.PasswordHash = value.(string)
		default:
			return fmt.Errorf("unexpected column %q", column)
		}
	}
	return nil
}

func optString(value interface{}) *string {
	if value == nil {
		return nil
	}
	s := value.(string)
	return &s
}

func optTime(value interface{}) *time.Time {
	if value == nil {
		return nil
	}
	t := value.(time.Time)
	return &t
}

// fakeNotifier records deliveries and can fail on demand.
type fakeNotifier struct {
	verifications []sentMail
	otps          []sentMail
	sendErr       error
}

type sentMail struct {
	to      string
	payload string
}

func (n *fakeNotifier) Send(*email.Email) error { return n.sendErr }

func (n *fakeNotifier) SendVerification(to, link string) error {
	if n.sendErr != nil {
		return n.sendErr
	}
	n.verifications = append(n.verifications, sentMail{to: to, payload: link})
	return nil
}

func (n *fakeNotifier) SendOTP(to, code string) error {
	if n.sendErr != nil {
		return n.sendErr
	}
	n.otps = append(n.otps, sentMail{to: to, payload: code})
	return nil
}

func (n *fakeNotifier) Validate() error { return nil }
func (n *fakeNotifier) Close() error    { return nil }

func (n *fakeNotifier) lastVerificationToken(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, n.verifications)
	link := n.verifications[len(n.verifications)-1].payload
	_, raw, found := strings.Cut(link, "token=")
	require.True(t, found, "link %q has no token parameter", link)
	return raw
}

type testClock struct {
	current time.Time
}

func (c *testClock) Now() time.Time { return c.current }

func (c *testClock) Advance(d time.Duration) { c.current = c.current.Add(d) }

func newTestService(t *testing.T) (*AuthServiceImpl, *fakeUserRepo, *fakeNotifier, *testClock) {
	t.Helper()
	repo := newFakeUserRepo()
	notifier := &fakeNotifier{}
	clock := &testClock{current: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc := &AuthServiceImpl{
		userRepo:      repo,
		emailProvider: notifier,
		frontendURL:   "http://localhost:3000",
		now:           clock.Now,
	}
	return svc, repo, notifier, clock
}

func registerRequest() *dto.RegisterRequest {
	return &dto.RegisterRequest{
		Email:       "jordan@example.com",
		Password:    "correct-horse",
		Role:        models.UserRoleWorker,
		FirstName:   "Jordan",
		LastName:    "Lee",
		PhoneNumber: "+61400000000",
	}
}

func mustRegister(t *testing.T, svc *AuthServiceImpl, repo *fakeUserRepo, req *dto.RegisterRequest) *models.User {
	t.Helper()
	require.NoError(t, svc.Register(req))
	user, err := repo.FindByEmail(strings.ToLower(strings.TrimSpace(req.Email)))
	require.NoError(t, err)
	return user
}

// --- Register ---

func TestRegister_PersistsUnverifiedAccount(t *testing.T) {
	svc, repo, notifier, clock := newTestService(t)

	req := registerRequest()
	req.Email = "  Jordan@Example.COM "
	user := mustRegister(t, svc, repo, req)

	assert.Equal(t, "jordan@example.com", user.Email)
	assert.False(t, user.IsVerified)
	assert.Equal(t, models.UserRoleWorker, user.Role)

	assert.NotEqual(t, req.Password, user.PasswordHash)
	assert.True(t, auth.CheckPasswordHash(req.Password, user.PasswordHash))

	require.NotNil(t, user.VerificationToken)
	require.NotNil(t, user.VerificationTokenExp)
	assert.True(t, user.VerificationTokenExp.Equal(clock.Now().Add(24*time.Hour)))

	// The store holds the digest; the mail carries the raw token.
	raw := notifier.lastVerificationToken(t)
	assert.Equal(t, auth.HashToken(raw), *user.VerificationToken)
	assert.Equal(t, "jordan@example.com", notifier.verifications[0].to)
	assert.Contains(t, notifier.verifications[0].payload, "http://localhost:3000/verify-email?token=")
}

func TestRegister_RejectsAdminAndUnknownRoles(t *testing.T) {
	svc, repo, notifier, _ := newTestService(t)

	for _, role := range []models.UserRole{models.UserRoleAdmin, models.UserRole("manager")} {
		req := registerRequest()
		req.Role = role
		err := svc.Register(req)
		assert.ErrorIs(t, err, apperrors.ErrInvalidUserRole, "role %q", role)
	}
	assert.Empty(t, repo.users)
	assert.Empty(t, notifier.verifications)
}

func TestRegister_WeakPassword(t *testing.T) {
	svc, repo, _, _ := newTestService(t)

	req := registerRequest()
	req.Password = "short"
	assert.ErrorIs(t, svc.Register(req), apperrors.ErrWeakPassword)
	assert.Empty(t, repo.users)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc, repo, _, _ := newTestService(t)

	mustRegister(t, svc, repo, registerRequest())

	again := registerRequest()
	again.FirstName = "Sam"
	assert.ErrorIs(t, svc.Register(again), apperrors.ErrEmailAlreadyExists)
	assert.Len(t, repo.users, 1)
}

func TestRegister_DeliveryFailureKeepsAccount(t *testing.T) {
	svc, repo, notifier, _ := newTestService(t)
	notifier.sendErr = &email.SendError{Kind: email.FailureInvalidRecipient, Err: errors.New("550 no such user")}

	err := svc.Register(registerRequest())

	var appErr *apperrors.AppError
	require.True(t, apperrors.As(err, &appErr))
	assert.Equal(t, apperrors.CodeEmailDeliveryFailed, appErr.Code)
	assert.Equal(t, "Invalid email address", appErr.Message)

	// The account survives the failed delivery and can recover via resend.
	_, findErr := repo.FindByEmail("jordan@example.com")
	assert.NoError(t, findErr)
}

// --- VerifyEmail ---

func TestVerifyEmail_ConsumesToken(t *testing.T) {
	svc, repo, notifier, _ := newTestService(t)
	user := mustRegister(t, svc, repo, registerRequest())

	raw := notifier.lastVerificationToken(t)
	require.NoError(t, svc.VerifyEmail(raw))

	stored := repo.users[user.ID]
	assert.True(t, stored.IsVerified)
	assert.Nil(t, stored.VerificationToken)
	assert.Nil(t, stored.VerificationTokenExp)

	// Single use.
	assert.ErrorIs(t, svc.VerifyEmail(raw), apperrors.ErrInvalidOrExpiredToken)
}

func TestVerifyEmail_WrongToken(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	user := mustRegister(t, svc, repo, registerRequest())

	err := svc.VerifyEmail("deadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef")
	assert.ErrorIs(t, err, apperrors.ErrInvalidOrExpiredToken)
	assert.False(t, repo.users[user.ID].IsVerified)
}

func TestVerifyEmail_ExpiredToken(t *testing.T) {
	svc, repo, notifier, clock := newTestService(t)
	user := mustRegister(t, svc, repo, registerRequest())
	raw := notifier.lastVerificationToken(t)

	clock.Advance(24*time.Hour + time.Second)

	assert.ErrorIs(t, svc.VerifyEmail(raw), apperrors.ErrInvalidOrExpiredToken)
	stored := repo.users[user.ID]
	assert.False(t, stored.IsVerified)
	assert.NotNil(t, stored.VerificationToken)
}

// --- ResendVerification ---

func TestResendVerification_ReplacesToken(t *testing.T) {
	svc, repo, notifier, _ := newTestService(t)
	user := mustRegister(t, svc, repo, registerRequest())
	firstRaw := notifier.lastVerificationToken(t)

	require.NoError(t, svc.ResendVerification("jordan@example.com"))
	require.Len(t, notifier.verifications, 2)
	secondRaw := notifier.lastVerificationToken(t)
	assert.NotEqual(t, firstRaw, secondRaw)

	// The overwrite invalidates the first token even though it has not expired.
	assert.ErrorIs(t, svc.VerifyEmail(firstRaw), apperrors.ErrInvalidOrExpiredToken)
	require.NoError(t, svc.VerifyEmail(secondRaw))
	assert.True(t, repo.users[user.ID].IsVerified)
}

func TestResendVerification_AlreadyVerified(t *testing.T) {
	svc, repo, notifier, _ := newTestService(t)
	mustRegister(t, svc, repo, registerRequest())
	require.NoError(t, svc.VerifyEmail(notifier.lastVerificationToken(t)))

	err := svc.ResendVerification("jordan@example.com")
	assert.ErrorIs(t, err, apperrors.ErrAlreadyVerified)
	assert.Len(t, notifier.verifications, 1)
}

func TestResendVerification_UnknownEmail(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	err := svc.ResendVerification("nobody@example.com")
	assert.ErrorIs(t, err, apperrors.ErrAccountNotFound)
}

// --- Login ---

func TestLogin_Succeeds(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	user := mustRegister(t, svc, repo, registerRequest())

	resp, err := svc.Login(&dto.LoginRequest{Email: "Jordan@Example.com", Password: "correct-horse"})
	require.NoError(t, err)

	claims, err := auth.ParseToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID())
	assert.Equal(t, "worker", claims.Role)

	assert.Equal(t, user.ID, resp.User.ID)
	assert.Equal(t, "Jordan Lee", resp.User.Name)
	assert.Equal(t, "jordan@example.com", resp.User.Email)
	assert.Equal(t, models.UserRoleWorker, resp.User.Role)
	assert.False(t, resp.User.Approved)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	mustRegister(t, svc, repo, registerRequest())

	// Unknown account and wrong password collapse to the same error.
	_, err := svc.Login(&dto.LoginRequest{Email: "nobody@example.com", Password: "correct-horse"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	_, err = svc.Login(&dto.LoginRequest{Email: "jordan@example.com", Password: "wrong-horse"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
}

func TestLogin_CorruptRole(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	user := mustRegister(t, svc, repo, registerRequest())
	repo.users[user.ID].Role = models.UserRole("superuser")

	_, err := svc.Login(&dto.LoginRequest{Email: "jordan@example.com", Password: "correct-horse"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidUserRole)
}

// --- ForgotPassword / VerifyOTP / ResetPassword ---

func TestForgotPassword_IssuesOTP(t *testing.T) {
	svc, repo, notifier, clock := newTestService(t)
	user := mustRegister(t, svc, repo, registerRequest())

	require.NoError(t, svc.ForgotPassword("jordan@example.com"))

	stored := repo.users[user.ID]
	require.NotNil(t, stored.OTP)
	assert.Len(t, *stored.OTP, 6)
	require.NotNil(t, stored.OTPExp)
	assert.True(t, stored.OTPExp.Equal(clock.Now().Add(15*time.Minute)))

	require.Len(t, notifier.otps, 1)
	assert.Equal(t, "jordan@example.com", notifier.otps[0].to)
	assert.Equal(t, *stored.OTP, notifier.otps[0].payload)
}

func TestForgotPassword_UnknownEmail(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	assert.ErrorIs(t, svc.ForgotPassword("nobody@example.com"), apperrors.ErrAccountNotFound)
}

func TestForgotPassword_DeliveryFailureMessages(t *testing.T) {
	cases := []struct {
		kind    email.FailureKind
		message string
	}{
		{email.FailureInvalidRecipient, "Invalid email address"},
		{email.FailureMailboxFull, "Recipient mailbox is full"},
		{email.FailureConnection, "Email service is unreachable"},
		{email.FailureAuth, "Email service rejected our credentials"},
		{email.FailureUnknown, "Failed to send email"},
	}
	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			svc, repo, notifier, _ := newTestService(t)
			mustRegister(t, svc, repo, registerRequest())
			notifier.sendErr = &email.SendError{Kind: tc.kind, Err: errors.New("smtp failure")}

			err := svc.ForgotPassword("jordan@example.com")

			var appErr *apperrors.AppError
			require.True(t, apperrors.As(err, &appErr))
			assert.Equal(t, apperrors.CodeEmailDeliveryFailed, appErr.Code)
			assert.Equal(t, tc.message, appErr.Message)
		})
	}
}

func TestVerifyOTP_ConsumesCode(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	user := mustRegister(t, svc, repo, registerRequest())
	require.NoError(t, svc.ForgotPassword("jordan@example.com"))
	code := *repo.users[user.ID].OTP

	require.NoError(t, svc.VerifyOTP("jordan@example.com", code))

	stored := repo.users[user.ID]
	assert.Nil(t, stored.OTP)
	assert.Nil(t, stored.OTPExp)

	// Consumed at verification, so a replay fails even before any reset.
	assert.ErrorIs(t, svc.VerifyOTP("jordan@example.com", code), apperrors.ErrInvalidOTP)
}

func TestVerifyOTP_Mismatch(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	user := mustRegister(t, svc, repo, registerRequest())
	require.NoError(t, svc.ForgotPassword("jordan@example.com"))
	code := *repo.users[user.ID].OTP

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}
	assert.ErrorIs(t, svc.VerifyOTP("jordan@example.com", wrong), apperrors.ErrInvalidOTP)

	// A failed attempt leaves the issued code usable.
	stored := repo.users[user.ID]
	require.NotNil(t, stored.OTP)
	assert.Equal(t, code, *stored.OTP)
	require.NoError(t, svc.VerifyOTP("jordan@example.com", code))
}

func TestVerifyOTP_Expired(t *testing.T) {
	svc, repo, _, clock := newTestService(t)
	user := mustRegister(t, svc, repo, registerRequest())
	require.NoError(t, svc.ForgotPassword("jordan@example.com"))
	code := *repo.users[user.ID].OTP

	clock.Advance(15*time.Minute + time.Second)

	assert.ErrorIs(t, svc.VerifyOTP("jordan@example.com", code), apperrors.ErrOTPExpired)
	assert.NotNil(t, repo.users[user.ID].OTP)
}

func TestVerifyOTP_ExactExpiryStillValid(t *testing.T) {
	svc, repo, _, clock := newTestService(t)
	user := mustRegister(t, svc, repo, registerRequest())
	require.NoError(t, svc.ForgotPassword("jordan@example.com"))
	code := *repo.users[user.ID].OTP

	clock.Advance(15 * time.Minute)

	assert.NoError(t, svc.VerifyOTP("jordan@example.com", code))
}

func TestVerifyOTP_NoneIssued(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	mustRegister(t, svc, repo, registerRequest())

	assert.ErrorIs(t, svc.VerifyOTP("jordan@example.com", "123456"), apperrors.ErrInvalidOTP)
}

func TestResetPassword_ReplacesHash(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	user := mustRegister(t, svc, repo, registerRequest())

	require.NoError(t, svc.ResetPassword("jordan@example.com", "brand-new-secret"))

	stored := repo.users[user.ID]
	assert.True(t, auth.CheckPasswordHash("brand-new-secret", stored.PasswordHash))
	assert.False(t, auth.CheckPasswordHash("correct-horse", stored.PasswordHash))
}

func TestResetPassword_WeakPassword(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	user := mustRegister(t, svc, repo, registerRequest())
	before := repo.users[user.ID].PasswordHash

	assert.ErrorIs(t, svc.ResetPassword("jordan@example.com", "short"), apperrors.ErrWeakPassword)
	assert.Equal(t, before, repo.users[user.ID].PasswordHash)
}

// --- ChangePassword ---

func TestChangePassword_Succeeds(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	user := mustRegister(t, svc, repo, registerRequest())

	err := svc.ChangePassword(user.ID, "jordan@example.com", "correct-horse", "brand-new-secret")
	require.NoError(t, err)
	assert.True(t, auth.CheckPasswordHash("brand-new-secret", repo.users[user.ID].PasswordHash))
}

func TestChangePassword_WrongCurrent(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	user := mustRegister(t, svc, repo, registerRequest())
	before := repo.users[user.ID].PasswordHash

	err := svc.ChangePassword(user.ID, "jordan@example.com", "wrong-horse", "brand-new-secret")
	assert.ErrorIs(t, err, apperrors.ErrIncorrectCurrentPassword)
	assert.Equal(t, before, repo.users[user.ID].PasswordHash)
}

func TestChangePassword_EmailMismatch(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	user := mustRegister(t, svc, repo, registerRequest())

	err := svc.ChangePassword(user.ID, "someone-else@example.com", "correct-horse", "brand-new-secret")
	assert.ErrorIs(t, err, apperrors.ErrAccountNotFound)
}
