// Package domain contains entities without transport logic, just meta-data
// and the pure state machines that guard them.
package domain

import (
	"errors"
	"strconv"
)

const (
	MaxUsernameLen = 36
	MaxTitleLen    = 200
)

var (
	ErrUsernameTooLong = errors.New("username too long")
	ErrUsernameEmpty   = errors.New("username empty")
)

type UserID int64

func (id UserID) String() string { return strconv.FormatInt(int64(id), 10) }

// User is a resolved caller identity. The core never authenticates;
// it receives a User already bound by the transport middleware.
type User struct {
	ID       UserID `json:"id"`
	Username string `json:"username"`
}

func NewUser(id UserID, username string) (*User, error) {
	if len(username) == 0 {
		return nil, ErrUsernameEmpty
	}
	if len(username) > MaxUsernameLen {
		return nil, ErrUsernameTooLong
	}
	return &User{ID: id, Username: username}, nil
}
