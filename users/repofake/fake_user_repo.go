package fakeuserrepo

import (
	"errors"
	"strings"
	"sync"

	"github.com/jrsteele09/go-auth-session/users"
)

var _ users.AccountRepo = (*FakeUserRepo)(nil)

type FakeUserRepo struct {
	accounts    map[int]*users.Account
	identifiers map[string]int // lower-cased username or email to id
	nextID      int
	lock        sync.RWMutex
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		accounts:    make(map[int]*users.Account),
		identifiers: make(map[string]int),
		nextID:      1,
	}
}

func (ur *FakeUserRepo) Upsert(account *users.Account) error {
	if account == nil {
		return errors.New("nil account")
	}
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if account.ID == 0 {
		account.ID = ur.nextID
	}
	if account.ID >= ur.nextID {
		ur.nextID = account.ID + 1
	}
	ur.accounts[account.ID] = account
	if account.Username != "" {
		ur.identifiers[strings.ToLower(account.Username)] = account.ID
	}
	if account.Email != "" {
		ur.identifiers[strings.ToLower(account.Email)] = account.ID
	}
	return nil
}

func (ur *FakeUserRepo) GetByIdentifier(identifier string) (*users.Account, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	id, ok := ur.identifiers[strings.ToLower(strings.TrimSpace(identifier))]
	if !ok {
		return nil, errors.New("not found")
	}
	return ur.accounts[id], nil
}

func (ur *FakeUserRepo) GetByID(id int) (*users.Account, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	account, ok := ur.accounts[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return account, nil
}
