package users

// Credential is the record stored under the username key. Password holds a
// bcrypt hash; records written by older clients may still carry plaintext.
// Session changes on every register, rename and password change, and tokens
// are only honored while they carry the current value.
type Credential struct {
	Username string `json:"username,omitempty"`
	Password string `json:"password"`
	Session  string `json:"session,omitempty"`
}
