package services

import (
	"chat-relay/domain"
	"chat-relay/repositories"

	"github.com/samber/lo"
)

type IChatService interface {
	History(cmd domain.GetConversationCommand) ([]domain.Message, *string, error)
	People() ([]domain.Identity, error)
}

type ChatService struct {
	messageRepository repositories.IMessageRepository
	userRepository    repositories.IUserRepository
}

func NewChatService(messages repositories.IMessageRepository, users repositories.IUserRepository) *ChatService {
	return &ChatService{messageRepository: messages, userRepository: users}
}

// History returns the conversation between the two identities, oldest first.
func (s *ChatService) History(cmd domain.GetConversationCommand) ([]domain.Message, *string, error) {
	return s.messageRepository.GetConversation(cmd.UserID, cmd.OtherID, cmd.Cursor)
}

// People lists every registered account, without credentials.
func (s *ChatService) People() ([]domain.Identity, error) {
	users, err := s.userRepository.ListUsers()
	if err != nil {
		return nil, err
	}
	return lo.Map(users, func(u domain.User, _ int) domain.Identity {
		return u.Identity()
	}), nil
}
