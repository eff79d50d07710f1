package rpc

import "github.com/FACorreiaa/bungmap/internal/types"

// AuthServiceName is the fully-qualified name of the auth service.
const AuthServiceName = "bungmap.auth.v1.AuthService"

// Auth service procedures.
const (
	AuthServiceSignUpProcedure  = "/" + AuthServiceName + "/SignUp"
	AuthServiceSignInProcedure  = "/" + AuthServiceName + "/SignIn"
	AuthServiceSessionProcedure = "/" + AuthServiceName + "/Session"
)

type SignUpRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionResponse carries a bearer token and the identity it was issued to.
type SessionResponse struct {
	AccessToken string          `json:"access_token"`
	ExpiresAt   int64           `json:"expires_at"`
	Identity    *types.Identity `json:"identity"`
}
