package auth

import (
	"context"
	"fmt"

	"github.com/roach88/rollbook/internal/record"
)

// Default credentials seeded by Bootstrap when no account exists.
const (
	DefaultAdminUsername = "admin"
	DefaultAdminPassword = "admin"
)

// dummyPassword is hashed once per Service so unknown usernames still pay
// for a bcrypt comparison.
const dummyPassword = "rollbook-dummy-password"

// UserStore is the subset of the record store the service needs.
type UserStore interface {
	GetUser(ctx context.Context, username string) (record.User, error)
	UserExists(ctx context.Context, username string) (bool, error)
	CreateUser(ctx context.Context, u record.User) error
	SetPassword(ctx context.Context, username, hash string, mustChange bool) error
	SeedAdmin(ctx context.Context, u record.User) (bool, error)
}

// Result is the outcome of Authenticate. The zero value is a failed login.
type Result struct {
	OK                 bool        `json:"ok"`
	Username           string      `json:"username,omitempty"`
	Role               record.Role `json:"role,omitempty"`
	StudentID          string      `json:"student_id,omitempty"`
	MustChangePassword bool        `json:"must_change_password"`
}

// BootstrapResult reports what Bootstrap did.
type BootstrapResult struct {
	DefaultAdminCreated bool   `json:"default_admin_created"`
	Username            string `json:"username,omitempty"`
}

// Option configures a Service.
type Option func(*options)

type options struct {
	cost          int
	adminUsername string
	adminPassword string
}

// WithCost sets the bcrypt cost for new hashes. 0 selects bcrypt's default.
func WithCost(cost int) Option {
	return func(o *options) { o.cost = cost }
}

// WithDefaultAdmin overrides the credentials Bootstrap seeds.
func WithDefaultAdmin(username, password string) Option {
	return func(o *options) {
		o.adminUsername = username
		o.adminPassword = password
	}
}

// Service authenticates users and manages their passwords.
type Service struct {
	users     UserStore
	hasher    *Hasher
	dummyHash string
	opts      options
}

// New creates a Service over users.
func New(users UserStore, opts ...Option) (*Service, error) {
	o := options{
		adminUsername: DefaultAdminUsername,
		adminPassword: DefaultAdminPassword,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.adminUsername == "" || o.adminPassword == "" {
		return nil, record.Errorf(record.ErrCodeValidation, "default admin credentials must be non-empty")
	}

	hasher, err := NewHasher(o.cost)
	if err != nil {
		return nil, record.WrapError(record.ErrCodeValidation, "invalid bcrypt cost", err)
	}
	dummy, err := hasher.Hash(dummyPassword)
	if err != nil {
		return nil, err
	}

	return &Service{users: users, hasher: hasher, dummyHash: dummy, opts: o}, nil
}

// Hash returns the hash that would be stored for password.
func (s *Service) Hash(password string) (string, error) {
	return s.hasher.Hash(password)
}

// Authenticate checks a username and password.
//
// An unknown user and a wrong password both return a zero Result and a nil
// error. A matching legacy hash is upgraded to bcrypt before returning.
func (s *Service) Authenticate(ctx context.Context, username, password string) (Result, error) {
	u, err := s.users.GetUser(ctx, username)
	if record.IsNotFound(err) {
		s.hasher.Verify(s.dummyHash, password)
		return Result{}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("authenticate: %w", err)
	}

	if !s.hasher.Verify(u.PasswordHash, password) {
		return Result{}, nil
	}

	if s.hasher.NeedsRehash(u.PasswordHash) {
		hash, err := s.hasher.Hash(password)
		if err != nil {
			return Result{}, fmt.Errorf("authenticate: %w", err)
		}
		if err := s.users.SetPassword(ctx, u.Username, hash, u.MustChangePassword); err != nil {
			return Result{}, fmt.Errorf("authenticate: upgrade hash: %w", err)
		}
	}

	return Result{
		OK:                 true,
		Username:           u.Username,
		Role:               u.Role,
		StudentID:          u.StudentID,
		MustChangePassword: u.MustChangePassword,
	}, nil
}

// RequireRole returns nil if res is a successful login with the given role.
func RequireRole(res Result, role record.Role) error {
	if !res.OK {
		return record.Errorf(record.ErrCodeAuth, "invalid username or password")
	}
	if res.Role != role {
		return record.Errorf(record.ErrCodeAuthorization, "account %q is registered as %q, not %q", res.Username, res.Role, role)
	}
	return nil
}

// Login authenticates and requires role in one step.
func (s *Service) Login(ctx context.Context, username, password string, role record.Role) (Result, error) {
	res, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return Result{}, err
	}
	if err := RequireRole(res, role); err != nil {
		return Result{}, err
	}
	return res, nil
}

// ChangePassword replaces a user's own password after verifying the old one.
// The old password is checked before the new one is looked at.
// A successful change clears the must-change flag.
func (s *Service) ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error {
	res, err := s.Authenticate(ctx, username, oldPassword)
	if err != nil {
		return err
	}
	if !res.OK {
		return record.Errorf(record.ErrCodeAuth, "current password is incorrect")
	}
	if newPassword == "" {
		return record.Errorf(record.ErrCodeValidation, "new password is required")
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	return s.users.SetPassword(ctx, res.Username, hash, false)
}

// ResetPassword lets an admin overwrite another user's password.
//
// The admin credentials are checked first; anything other than a valid admin
// login is ErrCodeAuthorization and leaves the target untouched. The target
// must change the new password on next login.
func (s *Service) ResetPassword(ctx context.Context, adminUser, adminPassword, target, newPassword string) error {
	res, err := s.Authenticate(ctx, adminUser, adminPassword)
	if err != nil {
		return err
	}
	if !res.OK || res.Role != record.RoleAdmin {
		return record.Errorf(record.ErrCodeAuthorization, "admin authentication failed")
	}
	if newPassword == "" {
		return record.Errorf(record.ErrCodeValidation, "new password is required")
	}

	exists, err := s.users.UserExists(ctx, target)
	if err != nil {
		return fmt.Errorf("reset password: %w", err)
	}
	if !exists {
		return record.Errorf(record.ErrCodeNotFound, "user %q not found", target)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	return s.users.SetPassword(ctx, target, hash, true)
}

// CreateUser hashes password and inserts the account.
// Returns ErrCodeDuplicateKey if the username is taken.
func (s *Service) CreateUser(ctx context.Context, username, password string, role record.Role, studentID string) error {
	if password == "" {
		return record.Errorf(record.ErrCodeValidation, "password is required")
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}
	return s.users.CreateUser(ctx, record.User{
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		StudentID:    studentID,
	})
}

// UserExists reports whether username has an account.
func (s *Service) UserExists(ctx context.Context, username string) (bool, error) {
	return s.users.UserExists(ctx, username)
}

// ProvisionStudent creates the login for a newly inserted student.
//
// The username and initial password are both the student id, and the
// password must be changed on first login. Returns false without error
// if an account with that name already exists.
func (s *Service) ProvisionStudent(ctx context.Context, studentID string) (bool, error) {
	if studentID == "" {
		return false, record.Errorf(record.ErrCodeValidation, "student id is required")
	}
	exists, err := s.users.UserExists(ctx, studentID)
	if err != nil {
		return false, fmt.Errorf("provision student: %w", err)
	}
	if exists {
		return false, nil
	}

	hash, err := s.hasher.Hash(studentID)
	if err != nil {
		return false, err
	}
	err = s.users.CreateUser(ctx, record.User{
		Username:           studentID,
		PasswordHash:       hash,
		Role:               record.RoleStudent,
		StudentID:          studentID,
		MustChangePassword: true,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// Bootstrap seeds the default admin if the users table is empty.
func (s *Service) Bootstrap(ctx context.Context) (BootstrapResult, error) {
	hash, err := s.hasher.Hash(s.opts.adminPassword)
	if err != nil {
		return BootstrapResult{}, err
	}
	created, err := s.users.SeedAdmin(ctx, record.User{
		Username:           s.opts.adminUsername,
		PasswordHash:       hash,
		Role:               record.RoleAdmin,
		MustChangePassword: true,
	})
	if err != nil {
		return BootstrapResult{}, fmt.Errorf("bootstrap: %w", err)
	}
	if !created {
		return BootstrapResult{}, nil
	}
	return BootstrapResult{DefaultAdminCreated: true, Username: s.opts.adminUsername}, nil
}
