package auth

import (
	"context"
	"encoding/json"
)

type credentialOverrideKey struct{}

// CredentialOverride lets a single request override the pipeline's
// configured credentials. It is only ever carried on a context — never
// deserialized from request JSON — so a caller can't smuggle arbitrary
// credentials in through the wire payload.
type CredentialOverride struct {
	APIKey string
}

func (c CredentialOverride) String() string {
	if c.APIKey == "" {
		return "CredentialOverride{}"
	}
	return "CredentialOverride{APIKey:***}"
}

// MarshalJSON masks the key so logging a struct containing this value
// never leaks it.
func (c CredentialOverride) MarshalJSON() ([]byte, error) {
	type masked struct {
		APIKey string `json:"api_key,omitempty"`
	}
	out := masked{}
	if c.APIKey != "" {
		out.APIKey = "***"
	}
	return json.Marshal(out)
}

// WithCredentialOverride attaches c to ctx. Passing an empty override is
// a no-op.
func WithCredentialOverride(ctx context.Context, c CredentialOverride) context.Context {
	if c.APIKey == "" {
		return ctx
	}
	return context.WithValue(ctx, credentialOverrideKey{}, c)
}

// CredentialOverrideFromContext reads back an override attached by
// WithCredentialOverride.
func CredentialOverrideFromContext(ctx context.Context) (CredentialOverride, bool) {
	v := ctx.Value(credentialOverrideKey{})
	if v == nil {
		return CredentialOverride{}, false
	}
	c, ok := v.(CredentialOverride)
	return c, ok
}
