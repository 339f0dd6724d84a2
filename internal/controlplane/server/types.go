package server

import "time"

// Account is the stored account row. The password column holds the
// AES-GCM-encrypted credential; plaintext never touches the database.
type Account struct {
	Username    string    `json:"username"`
	PasswordEnc string    `json:"-"`
	Plugin      string    `json:"plugin"`
	Args        string    `json:"args"`
	RSN         string    `json:"rsn"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// accountView is an account joined with its live agent status for listings.
type accountView struct {
	Account
	HasPassword bool       `json:"hasPassword"`
	Status      string     `json:"status"`
	PID         *int       `json:"pid"`
	StartTime   *time.Time `json:"startTime"`
}
