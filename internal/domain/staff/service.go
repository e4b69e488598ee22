package staff

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
)

const (
	minPasswordLength = 8
	// bcrypt ignores or rejects anything past this many bytes.
	maxPasswordBytes = 72
)

// Revoker ends a session before its token expires.
type Revoker interface {
	RevokeSession(sess *auth.Session)
}

type Service struct {
	repo    Repository
	issuer  *auth.Issuer
	revoker Revoker
	logger  zerolog.Logger
	now     func() time.Time
	cost    int
}

func NewService(repo Repository, issuer *auth.Issuer, revoker Revoker, logger zerolog.Logger) *Service {
	return &Service{
		repo:    repo,
		issuer:  issuer,
		revoker: revoker,
		logger:  logger,
		now:     time.Now,
		cost:    bcrypt.DefaultCost,
	}
}

// LoginResult is returned to the client after a successful login.
type LoginResult struct {
	Token string        `json:"token"`
	User  *auth.Session `json:"user"`
}

var (
	dummyHashOnce sync.Once
	dummyHash     []byte
)

// burnCompare spends the time of a real password check so unknown
// identifiers cannot be told apart from wrong passwords by latency.
func (s *Service) burnCompare(secret string) {
	dummyHashOnce.Do(func() {
		dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), s.cost)
	})
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(secret))
}

// Login checks the credential and starts a session for clinicID. Unknown
// identifiers and wrong passwords fail identically; a disabled account is
// only reported once the password has matched.
func (s *Service) Login(ctx context.Context, clinicID, identifier, secret string) (*LoginResult, error) {
	email := strings.ToLower(strings.TrimSpace(identifier))
	if email == "" || secret == "" {
		return nil, apperr.InvalidCredentials()
	}

	acct, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			s.burnCompare(secret)
			s.logger.Info().Str("identifier", email).Msg("login failed")
			return nil, apperr.InvalidCredentials()
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(secret)); err != nil {
		s.logger.Info().Str("identifier", email).Msg("login failed")
		return nil, apperr.InvalidCredentials()
	}
	if !acct.Active {
		s.logger.Info().Str("identifier", email).Msg("login refused: account disabled")
		return nil, apperr.AccountDisabled()
	}

	token, sess, err := s.issuer.Issue(auth.Identity{
		UserID:   acct.ID.String(),
		Email:    acct.Email,
		Name:     acct.Name,
		Role:     acct.Role,
		ClinicID: clinicID,
	})
	if err != nil {
		return nil, err
	}

	if err := s.repo.RecordLogin(ctx, acct.ID, s.now().UTC()); err != nil {
		s.logger.Warn().Err(err).Str("user_id", sess.UserID).Msg("failed to record last login")
	}
	s.logger.Info().Str("user_id", sess.UserID).Str("role", string(sess.Role)).Str("clinic", clinicID).Msg("login")
	return &LoginResult{Token: token, User: sess}, nil
}

// Logout ends sess. It never fails: a missing or already revoked session is
// simply logged out.
func (s *Service) Logout(ctx context.Context, sess *auth.Session) {
	if sess == nil {
		return
	}
	if s.revoker != nil {
		s.revoker.RevokeSession(sess)
	}
	s.logger.Info().Str("user_id", sess.UserID).Msg("logout")
}

// CurrentUser returns the session attached to ctx.
func (s *Service) CurrentUser(ctx context.Context) (*auth.Session, error) {
	sess := auth.SessionFromContext(ctx)
	if sess == nil {
		return nil, apperr.Unauthenticated("no session")
	}
	return sess, nil
}

// IsAdmin reports whether the session attached to ctx belongs to an admin.
func (s *Service) IsAdmin(ctx context.Context) bool {
	return auth.SessionFromContext(ctx).IsAdmin()
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

func parseRole(s string) (auth.Role, error) {
	role, ok := auth.ParseRole(strings.ToLower(strings.TrimSpace(s)))
	if !ok {
		return "", apperr.Validation("role must be admin or employee", "role")
	}
	return role, nil
}

func checkPassword(p string) error {
	return checkPasswordField(p, "password")
}

func checkPasswordField(p, field string) error {
	if len(p) < minPasswordLength {
		return apperr.Validation(fmt.Sprintf("password must be at least %d characters", minPasswordLength), field)
	}
	if len(p) > maxPasswordBytes {
		return apperr.Validation(fmt.Sprintf("password must be at most %d bytes", maxPasswordBytes), field)
	}
	return nil
}

// CreateAccount adds an active account. Emails are stored lower-cased and are
// unique per clinic.
func (s *Service) CreateAccount(ctx context.Context, in NewAccount) (*Account, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	name := strings.TrimSpace(in.Name)

	var fields []string
	var problems []string
	if !validEmail(email) {
		fields = append(fields, "email")
		problems = append(problems, "email is not a valid address")
	}
	if name == "" {
		fields = append(fields, "name")
		problems = append(problems, "name is required")
	}
	if len(fields) > 0 {
		return nil, apperr.Validation(strings.Join(problems, "; "), fields...)
	}
	role, err := parseRole(in.Role)
	if err != nil {
		return nil, err
	}
	if err := checkPassword(in.Password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, err
	}

	a := &Account{
		ID:           uuid.New(),
		Email:        email,
		Name:         name,
		Role:         role,
		Active:       true,
		PasswordHash: string(hash),
	}
	if err := s.repo.Create(ctx, a); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return nil, apperr.Wrap(apperr.KindConflict, err, "an account with this email already exists")
		}
		return nil, err
	}
	s.logger.Info().Str("user_id", a.ID.String()).Str("role", string(a.Role)).Msg("staff account created")
	return a, nil
}

func (s *Service) ListAccounts(ctx context.Context) ([]*Account, error) {
	return s.repo.List(ctx)
}

// UpdateAccount applies patch to account id on behalf of actorID. Admins may
// not disable or demote themselves, so a clinic always keeps one admin able
// to log in.
func (s *Service) UpdateAccount(ctx context.Context, actorID string, id uuid.UUID, patch AccountPatch) (*Account, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	self := a.ID.String() == actorID

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, apperr.Validation("name is required", "name")
		}
		a.Name = name
	}
	if patch.Role != nil {
		role, err := parseRole(*patch.Role)
		if err != nil {
			return nil, err
		}
		if self && role != a.Role {
			return nil, apperr.Validation("you cannot change your own role", "role")
		}
		a.Role = role
	}
	if patch.Active != nil {
		if self && !*patch.Active {
			return nil, apperr.Validation("you cannot disable your own account", "active")
		}
		a.Active = *patch.Active
	}
	if patch.Password != nil {
		if err := checkPassword(*patch.Password); err != nil {
			return nil, err
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*patch.Password), s.cost)
		if err != nil {
			return nil, err
		}
		a.PasswordHash = string(hash)
	}

	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	s.logger.Info().Str("user_id", a.ID.String()).Bool("active", a.Active).Str("role", string(a.Role)).Msg("staff account updated")
	return a, nil
}

// ChangePassword lets the holder of sess replace their own password after
// proving the current one.
func (s *Service) ChangePassword(ctx context.Context, sess *auth.Session, current, next string) error {
	if sess == nil {
		return apperr.Unauthenticated("no session")
	}
	id, err := uuid.Parse(sess.UserID)
	if err != nil {
		return apperr.Unauthenticated("session has no staff account")
	}
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(current)); err != nil {
		s.logger.Info().Str("user_id", sess.UserID).Msg("password change refused: current password mismatch")
		return apperr.Validation("current password is incorrect", "current_password")
	}
	if next == current {
		return apperr.Validation("new password must differ from the current one", "new_password")
	}
	if err := checkPasswordField(next, "new_password"); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), s.cost)
	if err != nil {
		return err
	}
	a.PasswordHash = string(hash)
	if err := s.repo.Update(ctx, a); err != nil {
		return err
	}
	s.logger.Info().Str("user_id", sess.UserID).Msg("password changed")
	return nil
}

// Disable blocks further logins for email. Used by the CLI.
func (s *Service) Disable(ctx context.Context, email string) (*Account, error) {
	a, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, err
	}
	inactive := false
	return s.UpdateAccount(ctx, "", a.ID, AccountPatch{Active: &inactive})
}
