package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Jingwu-01/Robotaxi-backend/src/helpers"

	"golang.org/x/crypto/argon2"
)

type PasswordHash struct {
	Hash    []byte `json:"hash"`
	Salt    []byte `json:"salt"`
	Method  string `json:"method"`  // "argon2id"
	Time    uint32 `json:"time"`    // time parameter for Argon2
	Memory  uint32 `json:"memory"`  // memory parameter in KiB
	Threads uint8  `json:"threads"` // threads parameter
	KeyLen  uint32 `json:"keylen"`  // length of the hash in bytes
}

// User is one API client allowed to drive simulations
type User struct {
	ID             string
	Username       string
	PasswordHash   PasswordHash
	CreatedAt      time.Time
	LastModifiedAt time.Time
}

// UserStore manages secure storage of API credentials
type UserStore struct {
	encryptionKey []byte       // Key used to encrypt the storage file
	filePath      string       // Path to the storage file
	users         []User       // In-memory cache of users
	mu            sync.RWMutex // Mutex for thread safety
	dirty         bool         // Whether the store has unsaved changes
}

// AddUser hashes the password and adds the user to the store
func (s *UserStore) AddUser(username, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existingUser := range s.users {
		if existingUser.Username == username {
			return errors.New("username already exists")
		}
	}

	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}

	// Argon2id parameters recommended by OWASP
	timeParam := uint32(1)
	memory := uint32(64 * 1024)
	threads := uint8(4)
	keyLen := uint32(32)
	hash := argon2.IDKey([]byte(password), salt, timeParam, memory, threads, keyLen)

	now := time.Now()
	s.users = append(s.users, User{
		ID:       helpers.GenerateUUID(),
		Username: username,
		PasswordHash: PasswordHash{
			Hash:    hash,
			Salt:    salt,
			Method:  "argon2id",
			Time:    timeParam,
			Memory:  memory,
			Threads: threads,
			KeyLen:  keyLen,
		},
		CreatedAt:      now,
		LastModifiedAt: now,
	})
	s.dirty = true
	return nil
}

// VerifyCredentials checks if the provided credentials are valid
func (s *UserStore) VerifyCredentials(username, password string) (bool, *User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, storedUser := range s.users {
		if storedUser.Username == username {
			hash := argon2.IDKey(
				[]byte(password),
				storedUser.PasswordHash.Salt,
				storedUser.PasswordHash.Time,
				storedUser.PasswordHash.Memory,
				storedUser.PasswordHash.Threads,
				storedUser.PasswordHash.KeyLen,
			)
			if SlowEqual(hash, storedUser.PasswordHash.Hash) {
				user := storedUser
				return true, &user, nil
			}
			return false, nil, nil
		}
	}
	return false, nil, nil
}

// ListUsers returns a list of all usernames
func (s *UserStore) ListUsers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	usernames := make([]string, len(s.users))
	for i, user := range s.users {
		usernames[i] = user.Username
	}
	return usernames
}
