package repositories

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func TestUserRepository_CreateAndGet(t *testing.T) {
	req := require.New(t)
	repo := NewUserRepository(openTestDB(t))

	created, err := repo.CreateUser("alice", "$argon2id$hash")
	req.NoError(err)
	req.NotEmpty(created.ID)

	found, err := repo.GetUserByUsername("alice")
	req.NoError(err)
	req.Equal(created, found)
}

func TestUserRepository_DuplicateUsername(t *testing.T) {
	req := require.New(t)
	repo := NewUserRepository(openTestDB(t))

	_, err := repo.CreateUser("alice", "hash")
	req.NoError(err)

	_, err = repo.CreateUser("alice", "other")
	req.ErrorIs(err, errors.ErrUserAlreadyExists)
}

func TestUserRepository_UnknownUser(t *testing.T) {
	req := require.New(t)
	repo := NewUserRepository(openTestDB(t))

	_, err := repo.GetUserByUsername("ghost")
	req.ErrorIs(err, errors.ErrInvalidCredentials)
}

func TestUserRepository_ListUsers(t *testing.T) {
	req := require.New(t)
	repo := NewUserRepository(openTestDB(t))

	for _, name := range []string{"carol", "alice", "bob"} {
		_, err := repo.CreateUser(name, "hash")
		req.NoError(err)
	}

	users, err := repo.ListUsers()
	req.NoError(err)
	req.Equal([]string{"alice", "bob", "carol"}, lo.Map(users, func(u domain.User, _ int) string { return u.Username }))
}
