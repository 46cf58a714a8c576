package users_test

import (
	"context"
	"testing"
	"time"

	"campus-events/internal/actor"
	"campus-events/internal/apperr"
	"campus-events/internal/auth"
	"campus-events/internal/logger"
	"campus-events/internal/models"
	"campus-events/internal/store"
	"campus-events/internal/testutil"
	"campus-events/internal/users"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/golang-jwt/jwt/v5"
	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"
)

type fixture struct {
	db       *bun.DB
	svc      *users.Service
	store    *store.Store
	verifier *auth.HMACVerifier
}

func newFixture(t *testing.T) *fixture {
	db := testutil.NewTestDB(t)
	st := store.New(db)
	revocations := auth.NewMemoryRevocations()
	return &fixture{
		db: db,
		svc: users.NewService(st, auth.NewIssuer("secret", time.Hour), logger.Discard(),
			users.WithHashCost(bcrypt.MinCost), users.WithRevocations(revocations)),
		store:    st,
		verifier: auth.NewHMACVerifier("secret", revocations),
	}
}

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sess, err := f.svc.Register(ctx, users.RegisterInput{
		Name: "Ada", Email: " Ada@Campus.test ", Password: "secret123",
	})
	require.NoError(t, err)
	assert.Equal(t, "ada@campus.test", sess.User.Email)
	assert.Equal(t, actor.RoleStudent, sess.User.Role)
	assert.NotEqual(t, "secret123", sess.User.PasswordHash)

	claims, err := f.verifier.Verify(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, claims.UserID)

	login, err := f.svc.Login(ctx, users.LoginInput{Email: "ADA@campus.test", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, login.User.ID)

	_, err = f.svc.Login(ctx, users.LoginInput{Email: "ada@campus.test", Password: "wrong"})
	assert.True(t, apperr.Is(err, apperr.KindUnauthenticated))

	_, err = f.svc.Login(ctx, users.LoginInput{Email: "nobody@campus.test", Password: "secret123"})
	assert.True(t, apperr.Is(err, apperr.KindUnauthenticated))
}

func TestRegister_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, users.RegisterInput{Name: "A", Email: "a@campus.test", Password: "secret123", Role: "organizer"})
	require.NoError(t, err)

	tests := []struct {
		name string
		in   users.RegisterInput
		kind apperr.Kind
	}{
		{"duplicate email", users.RegisterInput{Name: "B", Email: "A@campus.test", Password: "secret123"}, apperr.KindConflict},
		{"bad email", users.RegisterInput{Name: "B", Email: "nope", Password: "secret123"}, apperr.KindValidation},
		{"short password", users.RegisterInput{Name: "B", Email: "b@campus.test", Password: "123"}, apperr.KindValidation},
		{"self-made admin", users.RegisterInput{Name: "B", Email: "b@campus.test", Password: "secret123", Role: "admin"}, apperr.KindValidation},
		{"unknown role", users.RegisterInput{Name: "B", Email: "b@campus.test", Password: "secret123", Role: "dean"}, apperr.KindValidation},
		{"missing name", users.RegisterInput{Email: "b@campus.test", Password: "secret123"}, apperr.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Register(ctx, tt.in)
			assert.True(t, apperr.Is(err, tt.kind), "got %v", err)
		})
	}
}

func TestLogout_RevokesToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess, err := f.svc.Register(ctx, users.RegisterInput{Name: "A", Email: "a@campus.test", Password: "secret123"})
	require.NoError(t, err)

	claims, err := f.verifier.Verify(ctx, sess.Token)
	require.NoError(t, err)
	require.NoError(t, f.svc.Logout(ctx, claims))

	_, err = f.verifier.Verify(ctx, sess.Token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	assert.True(t, apperr.Is(f.svc.Logout(ctx, nil), apperr.KindUnauthenticated))
}

func TestRoleManagement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	student, err := f.svc.Register(ctx, users.RegisterInput{Name: "S", Email: "s@campus.test", Password: "secret123"})
	require.NoError(t, err)
	adminUser, err := f.svc.Register(ctx, users.RegisterInput{Name: "Root", Email: "root@campus.test", Password: "secret123"})
	require.NoError(t, err)
	require.NoError(t, f.store.UpdateUserRole(ctx, adminUser.User.ID, actor.RoleAdmin))
	admin := actor.Actor{UserID: adminUser.User.ID, Role: actor.RoleAdmin}

	_, err = f.svc.List(ctx, student.User.Actor())
	assert.True(t, apperr.Is(err, apperr.KindAuthorization))

	all, err := f.svc.List(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	updated, err := f.svc.UpdateRole(ctx, admin, student.User.ID, "Organizer")
	require.NoError(t, err)
	assert.Equal(t, actor.RoleOrganizer, updated.Role)

	_, err = f.svc.UpdateRole(ctx, admin, student.User.ID, "dean")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = f.svc.UpdateRole(ctx, admin, "missing", "student")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = f.svc.UpdateRole(ctx, student.User.Actor(), adminUser.User.ID, "student")
	assert.True(t, apperr.Is(err, apperr.KindAuthorization))
}

func TestMeGetAndDepartments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess, err := f.svc.Register(ctx, users.RegisterInput{Name: "A", Email: "a@campus.test", Password: "secret123"})
	require.NoError(t, err)

	me, err := f.svc.Me(ctx, sess.User.Actor())
	require.NoError(t, err)
	assert.Equal(t, "A", me.Name)

	_, err = f.svc.Me(ctx, actor.Anonymous())
	assert.True(t, apperr.Is(err, apperr.KindUnauthenticated))

	_, err = f.svc.Get(ctx, sess.User.Actor(), "missing")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	deps, err := f.svc.Departments(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, deps)
}

func TestProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := testutil.CreateUser(t, f.db, "grace", actor.RoleStudent)

	p, err := f.svc.Profile(ctx, u.Actor())
	require.NoError(t, err)
	assert.Equal(t, u.ID, p.User.ID)
	assert.Nil(t, p.Details, "no profile saved yet")

	name := "  Grace Hopper "
	year := 2027
	p, err = f.svc.UpdateProfile(ctx, u.Actor(), users.ProfileInput{
		Name:           &name,
		Department:     "Computer Science",
		StudentID:      "CS-1906",
		GraduationYear: &year,
		Bio:            "compilers",
	})
	require.NoError(t, err)
	assert.Equal(t, "Grace Hopper", p.User.Name)
	require.NotNil(t, p.Details)
	assert.Equal(t, "CS-1906", p.Details.StudentID)
	assert.Equal(t, 2027, *p.Details.GraduationYear)

	// Details are replaced as a whole; the name stays when omitted.
	p, err = f.svc.UpdateProfile(ctx, u.Actor(), users.ProfileInput{Position: "TA"})
	require.NoError(t, err)
	assert.Equal(t, "Grace Hopper", p.User.Name)
	assert.Equal(t, "TA", p.Details.Position)
	assert.Empty(t, p.Details.StudentID)
	assert.Nil(t, p.Details.GraduationYear)

	count, err := f.db.NewSelect().Model((*models.UserProfile)(nil)).Where("user_id = ?", u.ID).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	bad := 1850
	_, err = f.svc.UpdateProfile(ctx, u.Actor(), users.ProfileInput{GraduationYear: &bad})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	blank := "   "
	_, err = f.svc.UpdateProfile(ctx, u.Actor(), users.ProfileInput{Name: &blank})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = f.svc.Profile(ctx, actor.Anonymous())
	assert.True(t, apperr.Is(err, apperr.KindUnauthenticated))
}

func TestResolve_LocalTokensFollowStoredAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sess, err := f.svc.Register(ctx, users.RegisterInput{Name: "Alan", Email: "alan@campus.test", Password: "secret123"})
	require.NoError(t, err)
	claims, err := f.verifier.Verify(ctx, sess.Token)
	require.NoError(t, err)
	require.True(t, claims.Local())

	require.NoError(t, f.store.UpdateUserRole(ctx, sess.User.ID, actor.RoleOrganizer))
	require.NoError(t, f.svc.Resolve(ctx, claims))
	assert.Equal(t, actor.RoleOrganizer, claims.Role, "stored role wins over the token's")

	_, err = f.db.NewDelete().Model((*models.User)(nil)).Where("id = ?", sess.User.ID).Exec(ctx)
	require.NoError(t, err)
	claims, err = f.verifier.Verify(ctx, sess.Token)
	require.NoError(t, err)
	assert.ErrorIs(t, f.svc.Resolve(ctx, claims), auth.ErrInvalidToken)
}

func external(sub, email, name string, role actor.Role) *auth.Claims {
	return &auth.Claims{
		UserID: sub,
		Email:  email,
		Name:   name,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:  "https://sso.campus.test",
			Subject: sub,
		},
	}
}

func TestResolve_ProvisionsExternalSubjects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c := external("sso|42", "Linus@Campus.test", "", actor.RoleAdmin)
	require.NoError(t, f.svc.Resolve(ctx, c))
	assert.Equal(t, actor.RoleStudent, c.Role, "providers cannot grant admin")

	u, err := f.store.UserByID(ctx, "sso|42")
	require.NoError(t, err)
	assert.Equal(t, "linus@campus.test", u.Email)
	assert.Equal(t, "linus", u.Name)

	_, err = f.svc.Login(ctx, users.LoginInput{Email: "linus@campus.test", Password: "guess"})
	assert.True(t, apperr.Is(err, apperr.KindUnauthenticated), "external accounts have no local password")

	// Second sight reuses the account and its stored role.
	require.NoError(t, f.store.UpdateUserRole(ctx, "sso|42", actor.RoleAdmin))
	again := external("sso|42", "linus@campus.test", "Linus", actor.RoleStudent)
	require.NoError(t, f.svc.Resolve(ctx, again))
	assert.Equal(t, actor.RoleAdmin, again.Role)

	org := external("sso|43", "margaret@campus.test", "Margaret", actor.RoleOrganizer)
	require.NoError(t, f.svc.Resolve(ctx, org))
	assert.Equal(t, actor.RoleOrganizer, org.Role)

	assert.ErrorIs(t, f.svc.Resolve(ctx, external("sso|44", "", "", actor.RoleStudent)), auth.ErrInvalidToken)

	_, err = f.svc.Register(ctx, users.RegisterInput{Name: "Local", Email: "taken@campus.test", Password: "secret123"})
	require.NoError(t, err)
	assert.ErrorIs(t, f.svc.Resolve(ctx, external("sso|45", "taken@campus.test", "", actor.RoleStudent)), auth.ErrInvalidToken)
}
