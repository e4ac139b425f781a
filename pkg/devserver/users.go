package devserver

import (
	"errors"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

var errUserExists = errors.New("username already exists")

type userStore struct {
	mu     sync.RWMutex
	hashes map[string][]byte
	cost   int
}

func newUserStore(cost int) *userStore {
	return &userStore{hashes: make(map[string][]byte), cost: cost}
}

func (u *userStore) create(username, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), u.cost)
	if err != nil {
		return err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, ok := u.hashes[username]; ok {
		return errUserExists
	}
	u.hashes[username] = hash
	return nil
}

func (u *userStore) check(username, password string) bool {
	u.mu.RLock()
	hash, ok := u.hashes[username]
	u.mu.RUnlock()
	if !ok {
		return false
	}
	return bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil
}
