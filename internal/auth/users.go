package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ariefcatur/go-storefront/internal/postgres"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleOperator Role = "operator"
)

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         Role      `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

type Repo struct{ DB postgres.DBTX }

func HashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	return string(b), err
}

func CheckPassword(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// Register creates a customer account.
func (r *Repo) Register(ctx context.Context, email, name, password string) (User, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return User{}, err
	}
	u := User{ID: uuid.NewString(), Email: strings.ToLower(strings.TrimSpace(email)), Name: name, Role: RoleCustomer, PasswordHash: hash}
	err = r.DB.QueryRow(ctx, `
		INSERT INTO users(id, email, name, password_hash, role) VALUES ($1,$2,$3,$4,$5)
		RETURNING created_at`, u.ID, u.Email, u.Name, u.PasswordHash, u.Role).Scan(&u.CreatedAt)
	if postgres.IsUniqueViolation(err) {
		return User{}, ErrEmailTaken
	}
	return u, err
}

// Authenticate compares the password; an unknown email and a wrong
// password give the same error.
func (r *Repo) Authenticate(ctx context.Context, email, password string) (User, error) {
	var u User
	err := r.DB.QueryRow(ctx, `SELECT id, email, name, role, password_hash, created_at FROM users WHERE email=$1`,
		strings.ToLower(strings.TrimSpace(email))).
		Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.PasswordHash, &u.CreatedAt)
	if postgres.IsNoRows(err) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}
	if !CheckPassword(u.PasswordHash, password) {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

func (r *Repo) ByID(ctx context.Context, id string) (User, error) {
	var u User
	err := r.DB.QueryRow(ctx, `SELECT id, email, name, role, password_hash, created_at FROM users WHERE id=$1`, id).
		Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.PasswordHash, &u.CreatedAt)
	if postgres.IsNoRows(err) {
		return User{}, ErrUserNotFound
	}
	return u, err
}
