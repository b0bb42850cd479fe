package core

import "time"

// ResultMeta carries caller-supplied data attached to an AuthResult
type ResultMeta struct {
	AppName    string
	IssuedAt   time.Time
	VerifiedAt time.Time
	Metadata   map[string]string
}

// AuthResult is the record handed to the session/user layer after a login
type AuthResult struct {
	PublicKey  string            `json:"publicKey"`
	Address    string            `json:"address"`
	Scheme     string            `json:"scheme"`
	Challenge  string            `json:"challenge"`
	AppName    string            `json:"appName,omitempty"`
	IssuedAt   time.Time         `json:"issuedAt"`
	VerifiedAt time.Time         `json:"verifiedAt"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// BuildResult assembles the result of a successful verification. It does no I/O.
func BuildResult(identity VerifiedIdentity, challenge Challenge, meta ResultMeta) AuthResult {
	result := AuthResult{
		PublicKey:  identity.PublicKey,
		Address:    identity.Address,
		Scheme:     identity.Scheme,
		Challenge:  challenge.Value,
		AppName:    meta.AppName,
		IssuedAt:   meta.IssuedAt,
		VerifiedAt: meta.VerifiedAt,
	}
	if result.IssuedAt.IsZero() {
		result.IssuedAt = challenge.IssuedAt
	}

	if len(meta.Metadata) > 0 {
		result.Metadata = make(map[string]string, len(meta.Metadata))
		for k, v := range meta.Metadata {
			result.Metadata[k] = v
		}
	}

	return result
}

// Identity returns the verified identity part of the result
func (r AuthResult) Identity() VerifiedIdentity {
	return VerifiedIdentity{
		Scheme:    r.Scheme,
		PublicKey: r.PublicKey,
		Address:   r.Address,
	}
}
