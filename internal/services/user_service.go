package services

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/calmwave/calmwave/internal/models"
	"github.com/calmwave/calmwave/internal/repositories/postgres"
	"github.com/calmwave/calmwave/internal/utils"
)

const tokenTTL = 24 * time.Hour

type UserService interface {
	Register(ctx context.Context, name, email, password string) (*models.User, error)
	// Login verifies the credentials and returns a signed bearer token.
	Login(ctx context.Context, email, password string) (string, *models.User, error)
	Get(ctx context.Context, id string) (*models.User, error)
	// Update changes the profile name and, when newPassword is non-empty,
	// rehashes the stored credential.
	Update(ctx context.Context, id, name, newPassword string) (*models.User, error)
	Delete(ctx context.Context, id string) error
}

type userService struct {
	users postgres.UserRepository
	log   *logrus.Logger
}

func NewUserService(users postgres.UserRepository, log *logrus.Logger) UserService {
	return &userService{users: users, log: log}
}

func (s *userService) Register(ctx context.Context, name, email, password string) (*models.User, error) {
	const op = "UserService.Register"

	if email == "" || password == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "email and password are required", nil)
	}
	if len(password) < 8 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "password must be at least 8 characters", nil)
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, utils.E(utils.CodeConflict, op, "email already registered", nil)
	} else if !errors.Is(err, utils.ErrNotFound) {
		return nil, utils.E(utils.CodeInternal, op, "failed to check email", err)
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to hash password", err)
	}

	u := &models.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         models.RoleUser,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
	if err := s.users.Insert(ctx, u); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to create user", err)
	}

	s.log.WithFields(logrus.Fields{"user_id": u.ID, "email": email}).Info("user registered")
	return u, nil
}

func (s *userService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	const op = "UserService.Login"

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return "", nil, utils.E(utils.CodeUnauthorized, op, "invalid credentials", nil)
		}
		return "", nil, utils.E(utils.CodeInternal, op, "failed to load user", err)
	}
	if !utils.CheckPassword(u.PasswordHash, password) {
		return "", nil, utils.E(utils.CodeUnauthorized, op, "invalid credentials", nil)
	}

	tok, err := signToken(u)
	if err != nil {
		return "", nil, utils.E(utils.CodeInternal, op, "failed to sign token", err)
	}
	return tok, u, nil
}

func (s *userService) Get(ctx context.Context, id string) (*models.User, error) {
	const op = "UserService.Get"

	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "user not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to load user", err)
	}
	return u, nil
}

func (s *userService) Update(ctx context.Context, id, name, newPassword string) (*models.User, error) {
	const op = "UserService.Update"

	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "user not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to load user", err)
	}

	if name != "" {
		u.Name = name
	}
	if newPassword != "" {
		if len(newPassword) < 8 {
			return nil, utils.E(utils.CodeInvalidArgument, op, "password must be at least 8 characters", nil)
		}
		hash, err := utils.HashPassword(newPassword)
		if err != nil {
			return nil, utils.E(utils.CodeInternal, op, "failed to hash password", err)
		}
		u.PasswordHash = hash
	}
	u.UpdatedAt = time.Now().UTC()

	if err := s.users.Update(ctx, u); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to update user", err)
	}

	s.log.WithField("user_id", u.ID).Info("profile updated")
	return u, nil
}

func (s *userService) Delete(ctx context.Context, id string) error {
	const op = "UserService.Delete"

	if err := s.users.Delete(ctx, id); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to delete user", err)
	}
	s.log.WithField("user_id", id).Info("user deleted")
	return nil
}

func signToken(u *models.User) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  u.ID,
		"role": string(u.Role),
		"iat":  now.Unix(),
		"exp":  now.Add(tokenTTL).Unix(),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString([]byte(os.Getenv("JWT_SECRET")))
}
