package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/RhaCode/Groci-Smart-sub000/internal/apierror"
	"github.com/RhaCode/Groci-Smart-sub000/internal/config"
	"github.com/RhaCode/Groci-Smart-sub000/internal/dto"
	"github.com/RhaCode/Groci-Smart-sub000/internal/model"
	"github.com/RhaCode/Groci-Smart-sub000/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is deliberately indistinguishable between a
// missing user and a wrong password.
var ErrInvalidCredentials = errors.New("invalid username or password")

var validRoles = map[string]bool{"shopper": true, "moderator": true, "admin": true}

type AuthService interface {
	Register(ctx context.Context, req dto.RegisterRequest) (dto.UserResponse, error)
	Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*dto.LoginResponse, error)
	GetProfile(ctx context.Context, userID uuid.UUID) (dto.UserResponse, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, req dto.UpdateProfileRequest) (dto.UserResponse, error)
	ListUsers(ctx context.Context, includeInactive bool) ([]dto.UserResponse, error)
	SetRole(ctx context.Context, userID uuid.UUID, role string) (dto.UserResponse, error)
	DeactivateUser(ctx context.Context, userID uuid.UUID) error
	ReactivateUser(ctx context.Context, userID uuid.UUID) error
}

type authService struct {
	repo repository.UserRepository
	cfg  *config.Config
}

func NewAuthService(repo repository.UserRepository, cfg *config.Config) AuthService {
	return &authService{repo: repo, cfg: cfg}
}

func mapUser(u model.User) dto.UserResponse {
	return dto.UserResponse{
		ID:          u.ID.String(),
		Username:    u.Username,
		Name:        u.Name,
		Email:       u.Email,
		Role:        u.Role,
		PhoneNumber: u.PhoneNumber,
		BudgetLimit: u.BudgetLimit,
		Active:      u.Active,
	}
}

func (s *authService) Register(ctx context.Context, req dto.RegisterRequest) (dto.UserResponse, error) {
	username := strings.ToLower(strings.TrimSpace(req.Username))
	if _, err := s.repo.FindByUsername(ctx, username); err == nil {
		return dto.UserResponse{}, apierror.Validation("Username %q is already taken", username)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), 12)
	if err != nil {
		return dto.UserResponse{}, err
	}
	user := &model.User{
		Username:     username,
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hash),
		Role:         "shopper",
		Active:       true,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return dto.UserResponse{}, err
	}
	return mapUser(*user), nil
}

func (s *authService) Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error) {
	user, err := s.repo.FindByUsername(ctx, req.Username)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.Active {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.tokenPair(user)
}

func (s *authService) Refresh(ctx context.Context, refreshToken string) (*dto.LoginResponse, error) {
	token, err := jwt.Parse(refreshToken, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, errors.New("refresh token invalid or expired")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid claims")
	}
	userIDStr, ok := claims["user_id"].(string)
	if !ok {
		return nil, errors.New("malformed token")
	}
	uid, err := uuid.Parse(userIDStr)
	if err != nil {
		return nil, errors.New("malformed token")
	}

	user, err := s.repo.FindByID(ctx, uid)
	if err != nil || !user.Active {
		return nil, errors.New("user not found or inactive")
	}
	return s.tokenPair(user)
}

func (s *authService) tokenPair(user *model.User) (*dto.LoginResponse, error) {
	accessToken, err := s.generateToken(user, time.Duration(s.cfg.JWTExpirationHours)*time.Hour)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.generateToken(user, time.Duration(s.cfg.JWTRefreshHours)*time.Hour)
	if err != nil {
		return nil, err
	}
	return &dto.LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "bearer",
		ExpiresIn:    s.cfg.JWTExpirationHours * 3600,
		User:         mapUser(*user),
	}, nil
}

func (s *authService) generateToken(user *model.User, duration time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"user_id":  user.ID.String(),
		"username": user.Username,
		"role":     user.Role,
		"exp":      time.Now().Add(duration).Unix(),
		"iat":      time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}

func (s *authService) GetProfile(ctx context.Context, userID uuid.UUID) (dto.UserResponse, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return dto.UserResponse{}, notFound(err, "User not found")
	}
	return mapUser(*user), nil
}

func (s *authService) UpdateProfile(ctx context.Context, userID uuid.UUID, req dto.UpdateProfileRequest) (dto.UserResponse, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return dto.UserResponse{}, notFound(err, "User not found")
	}
	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.Email != nil {
		user.Email = req.Email
	}
	if req.PhoneNumber != nil {
		user.PhoneNumber = req.PhoneNumber
	}
	if req.BudgetLimit != nil {
		if req.BudgetLimit.IsNegative() {
			return dto.UserResponse{}, apierror.Validation("budget_limit must be zero or positive")
		}
		user.BudgetLimit = req.BudgetLimit
	}
	if err := s.repo.Update(ctx, user); err != nil {
		return dto.UserResponse{}, err
	}
	return mapUser(*user), nil
}

func (s *authService) ListUsers(ctx context.Context, includeInactive bool) ([]dto.UserResponse, error) {
	users, err := s.repo.List(ctx, includeInactive)
	if err != nil {
		return nil, err
	}
	resp := make([]dto.UserResponse, len(users))
	for i, u := range users {
		resp[i] = mapUser(u)
	}
	return resp, nil
}

func (s *authService) SetRole(ctx context.Context, userID uuid.UUID, role string) (dto.UserResponse, error) {
	if !validRoles[role] {
		return dto.UserResponse{}, apierror.Validation("Unknown role %q", role)
	}
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return dto.UserResponse{}, notFound(err, "User not found")
	}
	user.Role = role
	if err := s.repo.Update(ctx, user); err != nil {
		return dto.UserResponse{}, err
	}
	return mapUser(*user), nil
}

func (s *authService) DeactivateUser(ctx context.Context, userID uuid.UUID) error {
	if _, err := s.repo.FindByID(ctx, userID); err != nil {
		return notFound(err, "User not found")
	}
	return s.repo.Deactivate(ctx, userID)
}

func (s *authService) ReactivateUser(ctx context.Context, userID uuid.UUID) error {
	if _, err := s.repo.FindByID(ctx, userID); err != nil {
		return notFound(err, "User not found")
	}
	return s.repo.Reactivate(ctx, userID)
}
