package auth

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/roach88/rollbook/internal/record"
	"github.com/roach88/rollbook/internal/store"
)

func newTestService(t *testing.T, opts ...Option) (*Service, *store.Store) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	svc, err := New(s, append([]Option{WithCost(bcrypt.MinCost)}, opts...)...)
	require.NoError(t, err)
	return svc, s
}

func TestBootstrap_SeedsOnce(t *testing.T) {
	svc, s := newTestService(t)
	ctx := t.Context()

	res, err := svc.Bootstrap(ctx)
	require.NoError(t, err)
	assert.True(t, res.DefaultAdminCreated)
	assert.Equal(t, "admin", res.Username)

	res, err = svc.Bootstrap(ctx)
	require.NoError(t, err)
	assert.False(t, res.DefaultAdminCreated)

	u, err := s.GetUser(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, record.RoleAdmin, u.Role)
	assert.True(t, u.MustChangePassword)
	assert.NotEqual(t, "admin", u.PasswordHash, "password must be stored hashed")

	login, err := svc.Authenticate(ctx, "admin", "admin")
	require.NoError(t, err)
	assert.True(t, login.OK)
	assert.True(t, login.MustChangePassword)
}

func TestBootstrap_CustomAdmin(t *testing.T) {
	svc, _ := newTestService(t, WithDefaultAdmin("root", "s3cret"))
	ctx := t.Context()

	res, err := svc.Bootstrap(ctx)
	require.NoError(t, err)
	assert.Equal(t, "root", res.Username)

	login, err := svc.Login(ctx, "root", "s3cret", record.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, "root", login.Username)
}

func TestNew_RejectsBadOptions(t *testing.T) {
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer s.Close()

	_, err = New(s, WithCost(bcrypt.MaxCost+1))
	assert.True(t, record.IsValidation(err), "got %v", err)

	_, err = New(s, WithCost(bcrypt.MinCost), WithDefaultAdmin("", "x"))
	assert.True(t, record.IsValidation(err), "got %v", err)
}

func TestAuthenticate_Failures(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := t.Context()
	require.NoError(t, svc.CreateUser(ctx, "alice", "pw", record.RoleStudent, "S1"))

	tests := []struct {
		name     string
		username string
		password string
	}{
		{"wrong password", "alice", "nope"},
		{"unknown user", "bob", "pw"},
		{"empty password", "alice", ""},
		{"case differs", "Alice", "pw"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := svc.Authenticate(ctx, tt.username, tt.password)
			require.NoError(t, err)
			assert.Equal(t, Result{}, res)
		})
	}
}

func TestAuthenticate_Success(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := t.Context()
	require.NoError(t, svc.CreateUser(ctx, "alice", "pw", record.RoleStudent, "S1"))

	res, err := svc.Authenticate(ctx, "alice", "pw")
	require.NoError(t, err)
	assert.Equal(t, Result{OK: true, Username: "alice", Role: record.RoleStudent, StudentID: "S1"}, res)
}

func TestAuthenticate_UpgradesLegacyHash(t *testing.T) {
	svc, s := newTestService(t)
	ctx := t.Context()

	require.NoError(t, s.CreateUser(ctx, record.User{
		Username:     "old",
		PasswordHash: LegacyHash("secret"),
		Role:         record.RoleAdmin,
	}))

	res, err := svc.Authenticate(ctx, "old", "secret")
	require.NoError(t, err)
	assert.True(t, res.OK)

	u, err := s.GetUser(ctx, "old")
	require.NoError(t, err)
	assert.False(t, IsLegacyHash(u.PasswordHash))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("secret")))

	res, err = svc.Authenticate(ctx, "old", "secret")
	require.NoError(t, err)
	assert.True(t, res.OK)
}

func TestAuthenticate_LegacyWrongPasswordNotUpgraded(t *testing.T) {
	svc, s := newTestService(t)
	ctx := t.Context()
	legacy := LegacyHash("secret")
	require.NoError(t, s.CreateUser(ctx, record.User{Username: "old", PasswordHash: legacy, Role: record.RoleStudent}))

	res, err := svc.Authenticate(ctx, "old", "wrong")
	require.NoError(t, err)
	assert.False(t, res.OK)

	u, err := s.GetUser(ctx, "old")
	require.NoError(t, err)
	assert.Equal(t, legacy, u.PasswordHash)
}

func TestRequireRole(t *testing.T) {
	admin := Result{OK: true, Username: "admin", Role: record.RoleAdmin}

	assert.NoError(t, RequireRole(admin, record.RoleAdmin))
	assert.True(t, record.IsAuthorization(RequireRole(admin, record.RoleStudent)))
	assert.True(t, record.IsAuth(RequireRole(Result{}, record.RoleAdmin)))
}

func TestLogin_RoleMismatch(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := t.Context()
	require.NoError(t, svc.CreateUser(ctx, "S1", "S1", record.RoleStudent, "S1"))

	_, err := svc.Login(ctx, "S1", "S1", record.RoleAdmin)
	assert.True(t, record.IsAuthorization(err), "got %v", err)

	_, err = svc.Login(ctx, "S1", "bad", record.RoleStudent)
	assert.True(t, record.IsAuth(err), "got %v", err)
}

func TestChangePassword(t *testing.T) {
	svc, s := newTestService(t)
	ctx := t.Context()
	_, err := svc.ProvisionStudent(ctx, "S1")
	require.NoError(t, err)

	err = svc.ChangePassword(ctx, "S1", "wrong", "new")
	assert.True(t, record.IsAuth(err), "got %v", err)

	// credentials are checked before the new password
	err = svc.ChangePassword(ctx, "S1", "wrong", "")
	assert.True(t, record.IsAuth(err), "got %v", err)

	err = svc.ChangePassword(ctx, "S1", "S1", "")
	assert.True(t, record.IsValidation(err), "got %v", err)

	require.NoError(t, svc.ChangePassword(ctx, "S1", "S1", "new"))

	res, err := svc.Authenticate(ctx, "S1", "S1")
	require.NoError(t, err)
	assert.False(t, res.OK)

	res, err = svc.Authenticate(ctx, "S1", "new")
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.False(t, res.MustChangePassword)

	u, err := s.GetUser(ctx, "S1")
	require.NoError(t, err)
	assert.False(t, u.MustChangePassword)
}

func TestResetPassword(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := t.Context()
	_, err := svc.Bootstrap(ctx)
	require.NoError(t, err)
	_, err = svc.ProvisionStudent(ctx, "student1")
	require.NoError(t, err)

	t.Run("wrong admin password", func(t *testing.T) {
		err := svc.ResetPassword(ctx, "admin", "wrongpass", "student1", "newpw")
		assert.True(t, record.IsAuthorization(err), "got %v", err)

		res, err := svc.Authenticate(ctx, "student1", "student1")
		require.NoError(t, err)
		assert.True(t, res.OK, "password must be unchanged")
	})

	t.Run("non-admin caller", func(t *testing.T) {
		err := svc.ResetPassword(ctx, "student1", "student1", "admin", "x")
		assert.True(t, record.IsAuthorization(err), "got %v", err)
	})

	t.Run("missing target", func(t *testing.T) {
		err := svc.ResetPassword(ctx, "admin", "admin", "ghost", "x")
		assert.True(t, record.IsNotFound(err), "got %v", err)
	})

	t.Run("empty new password", func(t *testing.T) {
		err := svc.ResetPassword(ctx, "admin", "admin", "student1", "")
		assert.True(t, record.IsValidation(err), "got %v", err)
	})

	t.Run("success", func(t *testing.T) {
		require.NoError(t, svc.ResetPassword(ctx, "admin", "admin", "student1", "newpw"))

		res, err := svc.Authenticate(ctx, "student1", "newpw")
		require.NoError(t, err)
		assert.True(t, res.OK)
		assert.True(t, res.MustChangePassword)
	})
}

func TestCreateUser_Duplicate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := t.Context()

	require.NoError(t, svc.CreateUser(ctx, "u", "pw", record.RoleStudent, ""))
	err := svc.CreateUser(ctx, "u", "pw2", record.RoleAdmin, "")
	assert.True(t, record.IsDuplicateKey(err), "got %v", err)

	err = svc.CreateUser(ctx, "v", "", record.RoleStudent, "")
	assert.True(t, record.IsValidation(err), "got %v", err)

	ok, err := svc.UserExists(ctx, "u")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestProvisionStudent(t *testing.T) {
	svc, s := newTestService(t)
	ctx := t.Context()

	created, err := svc.ProvisionStudent(ctx, "S9")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = svc.ProvisionStudent(ctx, "S9")
	require.NoError(t, err)
	assert.False(t, created)

	u, err := s.GetUser(ctx, "S9")
	require.NoError(t, err)
	assert.Equal(t, record.RoleStudent, u.Role)
	assert.Equal(t, "S9", u.StudentID)
	assert.True(t, u.MustChangePassword)

	res, err := svc.Login(ctx, "S9", "S9", record.RoleStudent)
	require.NoError(t, err)
	assert.Equal(t, "S9", res.StudentID)
}
