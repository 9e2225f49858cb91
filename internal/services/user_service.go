package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/isdelr/msgboard-be/internal/models"
	"golang.org/x/crypto/bcrypt"
)

// UserServiceProvider defines the interface for user services.
type UserServiceProvider interface {
	CreateUser(ctx context.Context, username, password string, bio *string) (models.User, error)
	GetUserByID(ctx context.Context, id int64) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
	Authenticate(ctx context.Context, username, password string) (models.User, error)
}

// UserService provides business logic for user management.
type UserService struct {
	db *sql.DB
}

// NewUserService creates a new UserService.
func NewUserService(db *sql.DB) *UserService {
	return &UserService{db: db}
}

// CreateUser registers a new user, hashing their password.
func (s *UserService) CreateUser(ctx context.Context, username, password string, bio *string) (models.User, error) {
	if username == "" || password == "" {
		return models.User{}, fmt.Errorf("%w: must specify username and password", ErrInvalid)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	created := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO users(username, password_hash, bio, created_at) VALUES(?, ?, ?, ?)",
		username, string(hashedPassword), bio, created)
	if err != nil {
		// The UNIQUE index on username is the source of truth for
		// duplicates; checking first would race with other inserts.
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return models.User{}, fmt.Errorf("%w: username %s", ErrConflict, username)
		}
		return models.User{}, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return models.User{}, err
	}

	return models.User{
		ID:        id,
		Username:  username,
		Bio:       bio,
		CreatedAt: created,
	}, nil
}

// GetUserByID retrieves a single user by their numeric ID.
func (s *UserService) GetUserByID(ctx context.Context, id int64) (models.User, error) {
	return s.getUser(ctx, "SELECT id, username, bio, created_at FROM users WHERE id = ?", id)
}

// GetUserByUsername retrieves a single user by their username.
func (s *UserService) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	return s.getUser(ctx, "SELECT id, username, bio, created_at FROM users WHERE username = ?", username)
}

func (s *UserService) getUser(ctx context.Context, query string, arg interface{}) (models.User, error) {
	var user models.User
	var bio sql.NullString
	row := s.db.QueryRowContext(ctx, query, arg)
	err := row.Scan(&user.ID, &user.Username, &bio, &user.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return models.User{}, fmt.Errorf("%w: no user matching %v", ErrNotFound, arg)
		}
		return models.User{}, err
	}
	if bio.Valid {
		user.Bio = &bio.String
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return user, nil
}

// Authenticate verifies a user's credentials. Unknown usernames and wrong
// passwords return errors that callers must not distinguish to clients.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (models.User, error) {
	var user models.User
	var bio sql.NullString
	row := s.db.QueryRowContext(ctx,
		"SELECT id, username, bio, password_hash, created_at FROM users WHERE username = ?", username)
	err := row.Scan(&user.ID, &user.Username, &bio, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return models.User{}, fmt.Errorf("authentication failed: user not found")
		}
		return models.User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return models.User{}, fmt.Errorf("authentication failed: invalid password")
	}

	if bio.Valid {
		user.Bio = &bio.String
	}
	user.CreatedAt = user.CreatedAt.UTC()

	// Don't hand the password hash back to callers
	user.PasswordHash = ""
	return user, nil
}
