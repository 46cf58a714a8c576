// Package users handles accounts, sessions and role management.
package users

import (
	"context"
	"fmt"
	"strings"
	"time"

	"campus-events/internal/actor"
	"campus-events/internal/apperr"
	"campus-events/internal/auth"
	"campus-events/internal/logger"
	"campus-events/internal/models"
	"campus-events/internal/store"
	"campus-events/internal/utils"
	"campus-events/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

var (
	viewUsersRoles  = actor.AnyUser("view users")
	listUsersRoles  = actor.NewCapability("list users", actor.RoleAdmin)
	manageRoleRoles = actor.NewCapability("change user roles", actor.RoleAdmin)
	profileRoles    = actor.AnyUser("manage own profile")
)

type Service struct {
	store       *store.Store
	issuer      *auth.Issuer
	revocations auth.Revocations
	log         *logger.Logger
	hashCost    int
	now         func() time.Time
}

type Option func(*Service)

// WithHashCost lowers the bcrypt cost in tests.
func WithHashCost(cost int) Option {
	return func(s *Service) { s.hashCost = cost }
}

func WithRevocations(r auth.Revocations) Option {
	return func(s *Service) { s.revocations = r }
}

func NewService(st *store.Store, issuer *auth.Issuer, log *logger.Logger, opts ...Option) *Service {
	s := &Service{
		store:    st,
		issuer:   issuer,
		log:      log,
		hashCost: bcrypt.DefaultCost,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Self-registration cannot create admins.
type RegisterInput struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Role     string `json:"role" validate:"omitempty,oneof=student organizer"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type Session struct {
	User      *models.User `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	role := actor.RoleStudent
	if in.Role != "" {
		r, err := actor.ParseRole(in.Role)
		if err != nil {
			return nil, err
		}
		role = r
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return nil, apperr.Persistence("failed to hash password", err)
	}
	u := &models.User{
		ID:           utils.NewID(),
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    s.now().UTC(),
	}

	if _, err := s.store.UserByEmail(ctx, in.Email); err == nil {
		return nil, apperr.Conflict("a user with this email already exists")
	} else if !store.IsNotFound(err) {
		return nil, apperr.Persistence("failed to register user", err)
	}
	if err := s.store.InsertUser(ctx, u); err != nil {
		if store.IsUniqueViolation(err) {
			return nil, apperr.Conflict("a user with this email already exists")
		}
		return nil, apperr.Persistence("failed to register user", err)
	}

	s.log.Info("AUTH", fmt.Sprintf("Registered user %s as %s", u.ID, u.Role))
	return s.session(u)
}

func (s *Service) Login(ctx context.Context, in LoginInput) (*Session, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	u, err := s.store.UserByEmail(ctx, in.Email)
	if err != nil {
		if store.IsNotFound(err) {
			s.log.LogSecurity("LOGIN_FAILED", "unknown email "+in.Email)
			return nil, apperr.Unauthenticated("invalid email or password")
		}
		return nil, apperr.Persistence("failed to log in", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.Password)); err != nil {
		s.log.LogSecurity("LOGIN_FAILED", "wrong password for "+u.ID)
		return nil, apperr.Unauthenticated("invalid email or password")
	}
	return s.session(u)
}

// Logout revokes the presented token until it would have expired.
func (s *Service) Logout(ctx context.Context, claims *auth.Claims) error {
	if claims == nil {
		return apperr.Unauthenticated("authentication required")
	}
	if s.revocations == nil || claims.ID == "" {
		return nil
	}
	if err := s.revocations.Revoke(ctx, claims.ID, claims.ExpiresIn(s.now())); err != nil {
		return apperr.Persistence("failed to log out", err)
	}
	return nil
}

// Resolve implements auth.Accounts. The stored role and email win over the
// token's, so a role change applies on the next request. External subjects
// get an account on first sight; local tokens of deleted users are rejected.
func (s *Service) Resolve(ctx context.Context, c *auth.Claims) error {
	u, err := s.store.UserByID(ctx, c.UserID)
	if store.IsNotFound(err) && !c.Local() {
		u, err = s.provision(ctx, c)
	}
	if err != nil {
		if store.IsNotFound(err) {
			return fmt.Errorf("%w: account no longer exists", auth.ErrInvalidToken)
		}
		return err
	}
	c.Email = u.Email
	c.Name = u.Name
	c.Role = u.Role
	return nil
}

// provision creates the local account of an identity-provider subject. The
// provider may grant student or organizer; admin is only given by UpdateRole.
func (s *Service) provision(ctx context.Context, c *auth.Claims) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(c.Email))
	if email == "" {
		return nil, fmt.Errorf("%w: identity provider sent no email", auth.ErrInvalidToken)
	}
	name := strings.TrimSpace(c.Name)
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}
	role := c.Role
	if role != actor.RoleOrganizer {
		role = actor.RoleStudent
	}
	u := &models.User{
		ID:    c.UserID,
		Name:  name,
		Email: email,
		// No password: external accounts cannot use the local login.
		PasswordHash: "",
		Role:         role,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.InsertUser(ctx, u); err != nil {
		if !store.IsUniqueViolation(err) {
			return nil, err
		}
		// A concurrent first request may have created it.
		if existing, getErr := s.store.UserByID(ctx, c.UserID); getErr == nil {
			return existing, nil
		}
		s.log.LogSecurity("PROVISION_REJECTED", "email "+email+" already belongs to another account")
		return nil, fmt.Errorf("%w: email already belongs to another account", auth.ErrInvalidToken)
	}
	s.log.Info("AUTH", fmt.Sprintf("Provisioned %s account %s from %s", u.Role, u.ID, c.Issuer))
	return u, nil
}

func (s *Service) session(u *models.User) (*Session, error) {
	token, exp, err := s.issuer.Issue(u.Actor())
	if err != nil {
		return nil, apperr.Persistence("failed to issue token", err)
	}
	return &Session{User: u, Token: token, ExpiresAt: exp}, nil
}

func (s *Service) Me(ctx context.Context, a actor.Actor) (*models.User, error) {
	if err := viewUsersRoles.Check(a); err != nil {
		return nil, err
	}
	return s.user(ctx, a.UserID)
}

func (s *Service) Get(ctx context.Context, a actor.Actor, id string) (*models.User, error) {
	if err := viewUsersRoles.Check(a); err != nil {
		return nil, err
	}
	return s.user(ctx, id)
}

func (s *Service) user(ctx context.Context, id string) (*models.User, error) {
	u, err := s.store.UserByID(ctx, id)
	if err != nil {
		return nil, store.Classify(err, "user")
	}
	return u, nil
}

func (s *Service) List(ctx context.Context, a actor.Actor) ([]models.User, error) {
	if err := listUsersRoles.Check(a); err != nil {
		return nil, err
	}
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, apperr.Persistence("failed to list users", err)
	}
	return users, nil
}

func (s *Service) UpdateRole(ctx context.Context, a actor.Actor, id, role string) (*models.User, error) {
	if err := manageRoleRoles.Check(a); err != nil {
		return nil, err
	}
	r, err := actor.ParseRole(role)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateUserRole(ctx, id, r); err != nil {
		return nil, store.Classify(err, "user")
	}
	s.log.Info("AUTH", fmt.Sprintf("Admin %s set role of %s to %s", a.UserID, id, r))
	return s.user(ctx, id)
}

// Profile is a user together with their optional details. Details is nil
// until the user saves a profile.
type Profile struct {
	User    *models.User        `json:"user"`
	Details *models.UserProfile `json:"profile"`
}

// ProfileInput replaces every profile detail; Name is changed only when set.
type ProfileInput struct {
	Name           *string `json:"name" validate:"omitempty,min=1,max=100"`
	Department     string  `json:"department" validate:"max=100"`
	StudentID      string  `json:"student_id" validate:"max=50"`
	GraduationYear *int    `json:"graduation_year" validate:"omitempty,min=1900,max=2200"`
	Position       string  `json:"position" validate:"max=100"`
	Bio            string  `json:"bio" validate:"max=2000"`
	ContactInfo    string  `json:"contact_info" validate:"max=500"`
}

func (s *Service) Profile(ctx context.Context, a actor.Actor) (*Profile, error) {
	if err := profileRoles.Check(a); err != nil {
		return nil, err
	}
	return s.profile(ctx, s.store, a.UserID)
}

func (s *Service) profile(ctx context.Context, st *store.Store, userID string) (*Profile, error) {
	u, err := st.UserByID(ctx, userID)
	if err != nil {
		return nil, store.Classify(err, "user")
	}
	p := &Profile{User: u}
	details, err := st.ProfileFor(ctx, userID)
	switch {
	case err == nil:
		p.Details = details
	case !store.IsNotFound(err):
		return nil, apperr.Persistence("failed to load profile", err)
	}
	return p, nil
}

// UpdateProfile saves the actor's name and profile details together.
func (s *Service) UpdateProfile(ctx context.Context, a actor.Actor, in ProfileInput) (*Profile, error) {
	if err := profileRoles.Check(a); err != nil {
		return nil, err
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		in.Name = &name
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	var p *Profile
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx *store.Store) error {
		if in.Name != nil {
			if err := tx.UpdateUserName(ctx, a.UserID, *in.Name); err != nil {
				return store.Classify(err, "user")
			}
		}
		err := tx.UpsertProfile(ctx, &models.UserProfile{
			UserID:         a.UserID,
			Department:     strings.TrimSpace(in.Department),
			StudentID:      strings.TrimSpace(in.StudentID),
			GraduationYear: in.GraduationYear,
			Position:       strings.TrimSpace(in.Position),
			Bio:            in.Bio,
			ContactInfo:    in.ContactInfo,
			UpdatedAt:      s.now().UTC(),
		})
		if err != nil {
			return err
		}
		p, err = s.profile(ctx, tx, a.UserID)
		return err
	})
	if err != nil {
		return nil, apperr.Persistence("failed to update profile", err)
	}
	s.log.Info("AUTH", fmt.Sprintf("User %s updated their profile", a.UserID))
	return p, nil
}

func (s *Service) Departments(ctx context.Context) ([]models.Department, error) {
	deps, err := s.store.ListDepartments(ctx)
	if err != nil {
		return nil, apperr.Persistence("failed to list departments", err)
	}
	return deps, nil
}
