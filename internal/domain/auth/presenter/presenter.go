package presenter

import (
	"github.com/FACorreiaa/bungmap/internal/domain/auth/service"
	"github.com/FACorreiaa/bungmap/internal/rpc"
)

// SessionResponse renders a signed-in session as its RPC response.
func SessionResponse(session *service.Session) rpc.SessionResponse {
	if session == nil {
		return rpc.SessionResponse{}
	}

	resp := rpc.SessionResponse{Identity: session.Identity}
	if session.Token != nil {
		resp.AccessToken = session.Token.Token
		resp.ExpiresAt = session.Token.ExpiresAt.Unix()
	}
	return resp
}
