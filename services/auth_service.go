package services

import (
	"chat-relay/auth"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/repositories"
	"fmt"
)

type IAuthService interface {
	Login(username, password string) (Session, error)
	Register(username, password string) (Session, error)
}

// Session is what a successful login or registration hands back:
// the token to store in the cookie and the identity it carries.
type Session struct {
	Token    string
	Identity domain.Identity
}

type AuthService struct {
	userRepository repositories.IUserRepository
	tokens         *auth.TokenManager
}

func NewAuthService(repo repositories.IUserRepository, tokens *auth.TokenManager) IAuthService {
	return &AuthService{userRepository: repo, tokens: tokens}
}

func (s *AuthService) Register(username, password string) (Session, error) {
	// Business rules are checked before any expensive hashing.
	if err := auth.ValidateRegister(auth.RegisterRequest{Username: username, Password: password}); err != nil {
		return Session{}, err
	}

	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return Session{}, fmt.Errorf("hashing failed: %w", err)
	}

	user, err := s.userRepository.CreateUser(username, hashedPassword)
	if err != nil {
		return Session{}, err
	}
	return s.issue(user.Identity())
}

func (s *AuthService) Login(username, password string) (Session, error) {
	user, err := s.userRepository.GetUserByUsername(username)
	if err != nil {
		// Same error for unknown users and wrong passwords
		return Session{}, errors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil || !match {
		return Session{}, errors.ErrInvalidCredentials
	}
	return s.issue(user.Identity())
}

func (s *AuthService) issue(identity domain.Identity) (Session, error) {
	token, err := s.tokens.GenerateToken(identity)
	if err != nil {
		return Session{}, errors.ErrTokenGeneration
	}
	return Session{Token: token, Identity: identity}, nil
}
