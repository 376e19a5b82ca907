package service

import (
	"errors"
	"time"

	"formquiz_backend/internal/config"
	"formquiz_backend/internal/model"
	"formquiz_backend/internal/repository"
	"formquiz_backend/internal/util"
	"formquiz_backend/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type AuthService struct {
	UserRepo *repository.UserRepository
	Cfg      *config.Config
}

func NewAuthService(userRepo *repository.UserRepository, cfg *config.Config) *AuthService {
	return &AuthService{
		UserRepo: userRepo,
		Cfg:      cfg,
	}
}

// AuthResult 登录/注册成功后返回的令牌
type AuthResult struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := util.GenerateJWT(user, s.Cfg.JWT.Secret, s.Cfg.JWT.ExpireTime)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, User: user}, nil
}

func (s *AuthService) Register(name, email, password string) (*AuthResult, error) {
	_, err := s.UserRepo.FindByEmail(email)
	if err == nil {
		return nil, util.ErrEmailRegistered
	} else if !errors.Is(err, util.ErrNotFound) {
		return nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user := &model.User{Name: name, Email: email, Password: string(hashedPassword)}
	if err := s.UserRepo.Create(user); err != nil {
		if repository.IsDuplicateKey(err) {
			return nil, util.ErrEmailRegistered
		}
		return nil, err
	}

	logger.Log.Info("user registered", zap.Uint("user_id", user.ID))
	return s.issue(user)
}

// Login 账号不存在与密码错误返回同一个错误
func (s *AuthService) Login(email, password string) (*AuthResult, error) {
	user, err := s.UserRepo.FindByEmail(email)
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			return nil, util.ErrInvalidLogin
		}
		return nil, err
	}
	if user.Password == "" {
		return nil, util.ErrInvalidLogin
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, util.ErrInvalidLogin
	}

	now := time.Now()
	if err := s.UserRepo.TouchLastLogin(user.ID, now); err != nil {
		logger.Log.Warn("failed to record last login", zap.Uint("user_id", user.ID), zap.Error(err))
	} else {
		user.LastLoginAt = &now
	}
	return s.issue(user)
}

func (s *AuthService) Me(userID uint) (*model.User, error) {
	user, err := s.UserRepo.FindByID(userID)
	if errors.Is(err, util.ErrNotFound) {
		return nil, util.ErrUserNotFound
	}
	return user, err
}
