// Package refresh mints the opaque view refresh tokens that tell a map surface
// to rebuild itself.
package refresh

import (
	"strconv"
	"sync/atomic"
	"time"
)

// Token identifies one geometry recomputation. Consumers compare tokens for
// equality only; the value carries no time semantics.
type Token uint64

// Zero is the token of a view that has never been rendered.
const Zero Token = 0

// String renders the token as an opaque key.
func (t Token) String() string {
	return strconv.FormatUint(uint64(t), 36)
}

// IsZero reports whether t is the zero token.
func (t Token) IsZero() bool { return t == Zero }

// MarshalText implements encoding.TextMarshaler.
func (t Token) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Token) UnmarshalText(b []byte) error {
	v, err := strconv.ParseUint(string(b), 36, 64)
	if err != nil {
		return err
	}
	*t = Token(v)
	return nil
}

// Minter issues strictly increasing tokens. It is safe for concurrent use.
type Minter struct {
	last atomic.Uint64
}

// NewMinter returns a Minter seeded from the current time so tokens from
// different sessions rarely collide.
func NewMinter() *Minter {
	return NewMinterAt(uint64(time.Now().UnixMilli()))
}

// NewMinterAt returns a Minter whose first token is seed+1.
func NewMinterAt(seed uint64) *Minter {
	m := &Minter{}
	m.last.Store(seed)
	return m
}

// Next returns a token strictly greater than every token previously returned.
func (m *Minter) Next() Token {
	return Token(m.last.Add(1))
}

// Last returns the most recently minted token, or the seed if none was minted.
func (m *Minter) Last() Token {
	return Token(m.last.Load())
}
