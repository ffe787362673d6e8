package model

// User is the canonical "current user" value. The zero value is the
// logged-out sentinel.
type User struct {
	ID         string
	Name       string
	Email      string
	IsLoggedIn bool
}

// EmptyUser returns the logged-out sentinel.
func EmptyUser() User {
	return User{}
}

// IsEmpty reports whether u is the logged-out sentinel.
func (u User) IsEmpty() bool {
	return u == User{}
}

// Valid reports whether u satisfies the user invariant: a logged-in user
// always carries an id and an email.
func (u User) Valid() bool {
	if !u.IsLoggedIn {
		return u.ID == ""
	}
	return u.ID != "" && u.Email != ""
}
