package domain

// PasswordPair is the "new password / repeat password" pair from the
// profile form. Both empty means no change was requested.
type PasswordPair struct {
	Password1 string `json:"password_1" form:"password_1"`
	Password2 string `json:"password_2" form:"password_2"`
}
