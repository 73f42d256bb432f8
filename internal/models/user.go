package models

// User is a directory record referenced by positions and orders via UserID.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// UserUpdate carries the optional fields of a PATCH request; nil means "leave unchanged".
type UserUpdate struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
}
