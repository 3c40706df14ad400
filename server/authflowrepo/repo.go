package authflowrepo

import "time"

// AuthFlowState is what the portal remembers between sending the browser to
// the hosted login page and receiving the callback.
type AuthFlowState struct {
	ClientID     string // Browser session that started the flow
	CodeVerifier string
	Nonce        string
	ReturnURL    string
	CreatedAt    time.Time
}

type Repo interface {
	Upsert(state string, authState *AuthFlowState) error
	Get(state string) (*AuthFlowState, error)
	Delete(state string) error

	// Sweep drops flows created before cutoff and returns how many were removed
	Sweep(cutoff time.Time) int
}
