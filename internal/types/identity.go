package types

import "strings"

// Identity is the signed-in user as seen by the client.
type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	IsAdmin     bool   `json:"is_admin"`
}

// DefaultNickname is the name pre-filled in the review form: the display
// name, else the local part of the email.
func (i *Identity) DefaultNickname() string {
	if i == nil {
		return ""
	}
	if name := strings.TrimSpace(i.DisplayName); name != "" {
		return name
	}
	local, _, _ := strings.Cut(i.Email, "@")
	return local
}

// Clone returns a copy so callers cannot mutate shared session state.
func (i *Identity) Clone() *Identity {
	if i == nil {
		return nil
	}
	c := *i
	return &c
}

// Credentials are what the sign-in form collects. SignUp creates the account
// first.
type Credentials struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name,omitempty"`
	SignUp      bool   `json:"sign_up,omitempty"`
}
