package services

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"

	"github.com/Wikid82/equiptrack/internal/config"
	"github.com/Wikid82/equiptrack/internal/logger"
	"github.com/Wikid82/equiptrack/internal/models"
	"github.com/Wikid82/equiptrack/internal/util"
)

const (
	maxFailedLogins = 5
	loginLockout    = 15 * time.Minute
	minPasswordLen  = 8
)

type AuthService struct {
	db     *gorm.DB
	config config.Config
	now    func() time.Time
}

func NewAuthService(db *gorm.DB, cfg config.Config) *AuthService {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 8 * time.Hour
	}
	return &AuthService{db: db, config: cfg, now: time.Now}
}

// Claims is the session credential payload. The user id travels in the
// standard "sub" claim.
type Claims struct {
	CompanyID uint        `json:"company_id"`
	Role      models.Role `json:"role"`
	Email     string      `json:"email"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim.
func (c *Claims) UserID() (uint, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil || id == 0 {
		return 0, ErrInvalidToken
	}
	return uint(id), nil
}

// Login verifies the credentials and returns a signed token. Five
// consecutive failures lock the account for fifteen minutes.
func (s *AuthService) Login(email, password string) (string, *models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var user models.User
	if err := s.db.Where("email = ?", email).First(&user).Error; err != nil {
		return "", nil, ErrInvalidCredentials
	}

	now := s.now()
	if user.IsLockedOut(now) {
		return "", nil, ErrAccountLocked
	}
	if !user.Enabled {
		return "", nil, ErrAccountDisabled
	}

	if !user.CheckPassword(password) {
		user.FailedLoginAttempts++
		if user.FailedLoginAttempts >= maxFailedLogins {
			until := now.Add(loginLockout)
			user.LockedUntil = &until
			logger.Log().WithField("user_id", user.ID).Warn("Account locked after repeated failed logins")
		}
		if err := s.db.Model(&user).Select("failed_login_attempts", "locked_until").Updates(&user).Error; err != nil {
			return "", nil, fmt.Errorf("record failed login: %w", err)
		}
		return "", nil, ErrInvalidCredentials
	}

	user.FailedLoginAttempts = 0
	user.LockedUntil = nil
	user.LastLogin = &now
	if err := s.db.Model(&user).Select("failed_login_attempts", "locked_until", "last_login").Updates(&user).Error; err != nil {
		return "", nil, fmt.Errorf("record login: %w", err)
	}

	token, err := s.GenerateToken(&user)
	if err != nil {
		return "", nil, err
	}
	return token, &user, nil
}

// GenerateToken signs an HS256 session token for user.
func (s *AuthService) GenerateToken(user *models.User) (string, error) {
	now := s.now()
	claims := Claims{
		CompanyID: user.CompanyID,
		Role:      user.Role,
		Email:     user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.TokenTTL)),
			Issuer:    "equiptrack",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken checks the signature and expiry of a session token.
func (s *AuthService) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.config.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if _, err := claims.UserID(); err != nil {
		return nil, err
	}
	return claims, nil
}

// AuthenticateToken validates the token and loads its user, rejecting
// deleted or disabled accounts.
func (s *AuthService) AuthenticateToken(tokenString string) (*models.User, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	id, _ := claims.UserID()
	user, err := s.GetUserByID(id)
	if errors.Is(err, ErrNotFound) {
		return nil, &AuthError{Reason: "user not found"}
	}
	if err != nil {
		return nil, err
	}
	if !user.Enabled {
		return nil, ErrAccountDisabled
	}
	return user, nil
}

func (s *AuthService) GetUserByID(id uint) (*models.User, error) {
	var user models.User
	err := s.db.First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	return &user, nil
}

// CreateUserInput describes a new account in the admin's company.
type CreateUserInput struct {
	Email    string
	Password string
	Name     string
	Role     string
}

// CreateUser adds a user to the acting admin's company.
func (s *AuthService) CreateUser(actor Actor, in CreateUserInput) (*models.User, error) {
	if !actor.Role.AtLeast(models.RoleAdmin) {
		return nil, fmt.Errorf("%w: only admins can create users", ErrPermissionDenied)
	}

	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, invalid("email", "must be a valid email address")
	}
	if len(in.Password) < minPasswordLen {
		return nil, invalid("password", "must be at least %d characters", minPasswordLen)
	}
	role := models.RoleEmployee
	if in.Role != "" {
		parsed, err := models.ParseRole(in.Role)
		if err != nil {
			return nil, invalid("role", "%s", err.Error())
		}
		role = parsed
	}

	var count int64
	if err := s.db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if count > 0 {
		return nil, invalid("email", "is already registered")
	}

	user := &models.User{
		CompanyID: actor.CompanyID,
		Email:     email,
		Name:      strings.TrimSpace(in.Name),
		Role:      role,
		Enabled:   true,
	}
	if err := user.SetPassword(in.Password); err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	if err := s.db.Create(user).Error; err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	logger.Log().WithField("user_id", user.ID).WithField("created_by", actor.UserID).
		WithField("role", role).Info("User created")
	return user, nil
}

// ResetPassword sets a new password for email and clears any login lockout.
func (s *AuthService) ResetPassword(email, password string) error {
	if len(password) < minPasswordLen {
		return invalid("password", "must be at least %d characters", minPasswordLen)
	}
	email = strings.ToLower(strings.TrimSpace(email))

	var user models.User
	if err := s.db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("user %s: %w", util.SanitizeForLog(email), ErrNotFound)
		}
		return fmt.Errorf("load user: %w", err)
	}
	if err := user.SetPassword(password); err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.FailedLoginAttempts = 0
	user.LockedUntil = nil
	return s.db.Model(&user).Select("password_hash", "failed_login_attempts", "locked_until").Updates(&user).Error
}
