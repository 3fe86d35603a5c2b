package auth

import "errors"

var (
	MissingIdentityClientErr = errors.New("identity client is required")
	MissingStoreErr          = errors.New("client store is required")
	MissingValidatorErr      = errors.New("session validator is required")
)
