// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"strings"
)

const (
	MaxPeerIDLen       = 64
	MaxDisplayNameLen  = 36
	DefaultDisplayName = "guest"
)

var (
	ErrPeerIDEmpty         = errors.New("peer id empty")
	ErrPeerIDTooLong       = errors.New("peer id too long")
	ErrDisplayNameTooLong  = errors.New("display name too long")
	ErrDisplayNameEmpty    = errors.New("display name empty")
	ErrPeerIDBadChar       = errors.New("peer id may only contain letters, digits, '.', '_' and '-'")
)

// PeerID is assigned by the transport and unique within a channel. Clients
// use it in file and element names, so it is restricted to [A-Za-z0-9._-]
// and can not be a path component like "..".
type PeerID string

func (p PeerID) Validate() error {
	if len(p) == 0 {
		return ErrPeerIDEmpty
	}
	if len(p) > MaxPeerIDLen {
		return ErrPeerIDTooLong
	}
	for _, r := range string(p) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '.', r == '_', r == '-':
		default:
			return ErrPeerIDBadChar
		}
	}
	if strings.Trim(string(p), ".") == "" {
		return ErrPeerIDBadChar
	}
	return nil
}

// Identity is the opaque authenticated user handed over by the identity provider.
type Identity struct {
	ID          PeerID `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
	PhotoURL    string `json:"photo_url,omitempty"`
}

// NewIdentity is a tiny helper to avoid ad-hoc struct literals in adapters.
func NewIdentity(id PeerID, displayName string) (*Identity, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}
	i := &Identity{ID: id, DisplayName: DefaultDisplayName}
	if displayName != "" {
		if err := i.SetDisplayName(displayName); err != nil {
			return nil, err
		}
	}
	return i, nil
}

func (i *Identity) SetDisplayName(name string) error {
	if len(name) == 0 {
		return ErrDisplayNameEmpty
	}
	if len(name) > MaxDisplayNameLen {
		return ErrDisplayNameTooLong
	}
	i.DisplayName = name
	return nil
}

// WithDisplayName returns a renamed copy; shared identities are never mutated.
func (i Identity) WithDisplayName(name string) (*Identity, error) {
	if err := i.SetDisplayName(name); err != nil {
		return nil, err
	}
	return &i, nil
}
