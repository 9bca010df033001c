package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/debugferro/identity-be/internal/displayname"
	"github.com/debugferro/identity-be/internal/metrics"
	"github.com/debugferro/identity-be/internal/models"
)

var (
	// ErrNotFound indicates the requested user does not exist.
	ErrNotFound = errors.New("user not found")
	// ErrEmailTaken indicates the email is already registered.
	ErrEmailTaken = errors.New("email already registered")
	// ErrDisplayNameTaken indicates a caller-chosen display name is in use.
	ErrDisplayNameTaken = errors.New("display name already taken")
)

// UserServiceProvider defines the interface for user services.
type UserServiceProvider interface {
	GetUserByID(ctx context.Context, id string) (models.User, error)
	GetUserByDisplayName(ctx context.Context, name string) (models.User, error)
	ListUsers(ctx context.Context, limit int) ([]models.User, error)
	CreateUser(ctx context.Context, input CreateUserInput) (models.User, error)
	UpdateUser(ctx context.Context, id, firstName, lastName, email string) (models.User, error)
	UpdatePassword(ctx context.Context, id, currentPassword, newPassword string) error
	DeleteUser(ctx context.Context, id string) error
	AuthenticateUser(ctx context.Context, email, password string) (models.User, error)
	IsDisplayNameTaken(ctx context.Context, name string) (bool, error)
}

// CreateUserInput carries the fields needed to register a user. DisplayName
// is optional; when empty one is allocated from the name parts.
type CreateUserInput struct {
	FirstName   string
	LastName    string
	Email       string
	Password    string
	DisplayName string
}

// UserService provides business logic for user management.
type UserService struct {
	db        *sql.DB
	allocator *displayname.Allocator
	eventSvc  EventServiceProvider
}

// NewUserService creates a new UserService.
func NewUserService(db *sql.DB, eventSvc EventServiceProvider) *UserService {
	s := &UserService{db: db, eventSvc: eventSvc}
	s.allocator = displayname.NewAllocator(s)
	return s
}

// IsTaken reports whether any user already holds the display name.
func (s *UserService) IsTaken(ctx context.Context, name string) (bool, error) {
	var n int
	row := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM users WHERE display_name = ?", name)
	if err := row.Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// CountMatching counts users whose display name is the base or the base
// followed by a strictly numeric suffix. GLOB narrows the candidate rows
// (case-sensitive, digit anchored right after the base) but also matches
// tails like "2nd", so the exact numeric check happens in Go.
func (s *UserService) CountMatching(ctx context.Context, base string) (int, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT display_name FROM users WHERE display_name = ? OR display_name GLOB ?",
		base, base+"[0-9]*")
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return 0, err
		}
		if name == base || hasNumericSuffix(name, base) {
			count++
		}
	}
	return count, rows.Err()
}

// hasNumericSuffix reports whether name is base followed by digits only.
func hasNumericSuffix(name, base string) bool {
	rest, ok := strings.CutPrefix(name, base)
	if !ok || rest == "" {
		return false
	}
	for _, r := range rest {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// IsDisplayNameTaken exposes the taken check for the availability endpoint.
func (s *UserService) IsDisplayNameTaken(ctx context.Context, name string) (bool, error) {
	return s.IsTaken(ctx, name)
}

// GetUserByID retrieves a single user by their ID.
func (s *UserService) GetUserByID(ctx context.Context, id string) (models.User, error) {
	return s.getUser(ctx, "SELECT id, first_name, last_name, display_name, email, created_at FROM users WHERE id = ?", id)
}

// GetUserByDisplayName retrieves a single user by their display name.
func (s *UserService) GetUserByDisplayName(ctx context.Context, name string) (models.User, error) {
	return s.getUser(ctx, "SELECT id, first_name, last_name, display_name, email, created_at FROM users WHERE display_name = ?", name)
}

func (s *UserService) getUser(ctx context.Context, query, arg string) (models.User, error) {
	var user models.User
	row := s.db.QueryRowContext(ctx, query, arg)
	err := row.Scan(&user.ID, &user.FirstName, &user.LastName, &user.DisplayName, &user.Email, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, err
	}
	return user, nil
}

// getUserByEmail also loads the password hash, for authentication.
func (s *UserService) getUserByEmail(ctx context.Context, email string) (models.User, error) {
	var user models.User
	row := s.db.QueryRowContext(ctx, "SELECT id, first_name, last_name, display_name, email, password_hash, created_at FROM users WHERE email = ?", email)
	err := row.Scan(&user.ID, &user.FirstName, &user.LastName, &user.DisplayName, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, err
	}
	return user, nil
}

// ListUsers retrieves up to limit users, newest first.
func (s *UserService) ListUsers(ctx context.Context, limit int) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, first_name, last_name, display_name, email, created_at FROM users ORDER BY created_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var user models.User
		if err := rows.Scan(&user.ID, &user.FirstName, &user.LastName, &user.DisplayName, &user.Email, &user.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// createAttempts bounds how many times an insert losing the display_name
// UNIQUE race is retried before the final attempt forces a random token.
const createAttempts = 3

// CreateUser registers a new user, hashing their password and assigning a
// unique display name before the record is persisted. A user that arrives
// with a display name keeps it; one is never re-assigned.
func (s *UserService) CreateUser(ctx context.Context, input CreateUserInput) (models.User, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.User{
		ID:           uuid.New().String(),
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		Email:        strings.ToLower(strings.TrimSpace(input.Email)),
		PasswordHash: string(hashedPassword),
	}

	chosen := strings.TrimSpace(input.DisplayName)
	for attempt := 0; attempt < createAttempts; attempt++ {
		result := displayname.Result{Name: chosen, Strategy: displayname.StrategyChosen}
		switch {
		case chosen != "":
			// Caller picked the name; the UNIQUE constraint is the arbiter.
		case attempt == createAttempts-1:
			// Terminal retry: skip the allocator and take a random token so
			// creation still succeeds.
			name, err := displayname.RandomName(8)
			if err != nil {
				return models.User{}, err
			}
			result = displayname.Result{Name: name, Strategy: displayname.StrategyRandom}
		default:
			result, err = s.allocator.Allocate(ctx, user.FirstName, user.LastName)
			if err != nil {
				return models.User{}, err
			}
		}
		user.DisplayName = result.Name

		err = s.insertUser(ctx, user)
		if err == nil {
			metrics.AllocationTotal.WithLabelValues(string(result.Strategy)).Inc()
			s.recordCreated(user, result.Strategy)
			user.PasswordHash = ""
			return user, nil
		}
		if isUniqueViolation(err, "users.email") {
			return models.User{}, ErrEmailTaken
		}
		if !isUniqueViolation(err, "users.display_name") {
			return models.User{}, err
		}
		if chosen != "" {
			return models.User{}, ErrDisplayNameTaken
		}
		// Lost the allocation race; loop and allocate again.
		log.Warn().Str("display_name", user.DisplayName).Int("attempt", attempt+1).Msg("Display name insert race, reallocating")
	}
	// Unreachable: the terminal attempt uses a fresh random token.
	return models.User{}, fmt.Errorf("could not assign display name for %s", user.Email)
}

func (s *UserService) insertUser(ctx context.Context, user models.User) error {
	stmt, err := s.db.PrepareContext(ctx, "INSERT INTO users(id, first_name, last_name, display_name, email, password_hash) VALUES(?, ?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx, user.ID, user.FirstName, user.LastName, user.DisplayName, user.Email, user.PasswordHash)
	return err
}

func (s *UserService) recordCreated(user models.User, strategy displayname.Strategy) {
	metrics.RegistrationsTotal.Inc()
	level := "info"
	if strategy == displayname.StrategyRandom {
		level = "warn"
	}
	msg := fmt.Sprintf("User %s registered with display name %q (%s)", user.Email, user.DisplayName, strategy)
	if err := s.eventSvc.CreateEvent("user.register", level, msg, &user.ID); err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("Failed to record registration event")
	}
}

// UpdateUser updates a user's profile information. The display name is
// deliberately not touched: it is assigned once, at creation.
func (s *UserService) UpdateUser(ctx context.Context, id, firstName, lastName, email string) (models.User, error) {
	stmt, err := s.db.PrepareContext(ctx, "UPDATE users SET first_name = ?, last_name = ?, email = ? WHERE id = ?")
	if err != nil {
		return models.User{}, err
	}
	defer stmt.Close()

	res, err := stmt.ExecContext(ctx, firstName, lastName, strings.ToLower(strings.TrimSpace(email)), id)
	if err != nil {
		if isUniqueViolation(err, "users.email") {
			return models.User{}, ErrEmailTaken
		}
		return models.User{}, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return models.User{}, ErrNotFound
	}
	return s.GetUserByID(ctx, id)
}

// UpdatePassword verifies the current password, then hashes and sets a new password for a user.
func (s *UserService) UpdatePassword(ctx context.Context, id, currentPassword, newPassword string) error {
	var hash string
	row := s.db.QueryRowContext(ctx, "SELECT password_hash FROM users WHERE id = ?", id)
	if err := row.Scan(&hash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}

	// Check if the current password is correct
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(currentPassword)); err != nil {
		return fmt.Errorf("current password is incorrect")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash new password: %w", err)
	}

	_, err = s.db.ExecContext(ctx, "UPDATE users SET password_hash = ? WHERE id = ?", string(hashedPassword), id)
	return err
}

// DeleteUser removes a user from the database.
func (s *UserService) DeleteUser(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	if err := s.eventSvc.CreateEvent("user.delete", "info", fmt.Sprintf("User %s deleted", id), &id); err != nil {
		log.Error().Err(err).Str("user_id", id).Msg("Failed to record deletion event")
	}
	return nil
}

// AuthenticateUser verifies a user's credentials.
func (s *UserService) AuthenticateUser(ctx context.Context, email, password string) (models.User, error) {
	user, err := s.getUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return models.User{}, fmt.Errorf("authentication failed: user not found")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return models.User{}, fmt.Errorf("authentication failed: invalid password")
	}

	// Don't send the password hash to the client
	user.PasswordHash = ""
	return user, nil
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure on
// the given column. modernc.org/sqlite exposes constraint errors as text.
func isUniqueViolation(err error, column string) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed: "+column)
}
