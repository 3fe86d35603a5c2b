package users

// AccountRepo is the stub identity service's user directory.
type AccountRepo interface {
	Upsert(account *Account) error
	GetByIdentifier(identifier string) (*Account, error) // username or email
	GetByID(id int) (*Account, error)
}
