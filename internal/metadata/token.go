package metadata

import (
	"errors"
	"fmt"
)

// Token is an opaque metadata token, meaningful only relative to the module
// of the method that contains it.
type Token uint32

// Token tables.
const (
	TableTypeRef   uint8 = 0x01
	TableTypeDef   uint8 = 0x02
	TableField     uint8 = 0x04
	TableMethod    uint8 = 0x06
	TableMemberRef uint8 = 0x0A
	TableTypeSpec  uint8 = 0x1B
)

// MakeToken combines a table and a 1-based row.
func MakeToken(table uint8, row uint32) Token {
	return Token(uint32(table)<<24 | row&0x00FFFFFF)
}

// Table returns the table byte of the token.
func (t Token) Table() uint8 { return uint8(t >> 24) }

// Row returns the 1-based row of the token.
func (t Token) Row() uint32 { return uint32(t) & 0x00FFFFFF }

// String renders the token as 0xTTRRRRRR.
func (t Token) String() string { return fmt.Sprintf("0x%08X", uint32(t)) }

var (
	// ErrTokenNotFound reports a token with no row in the scope's tables.
	ErrTokenNotFound = errors.New("token not found")
	// ErrOpenGeneric reports an entry that needs generic type arguments.
	ErrOpenGeneric = errors.New("entry requires generic type arguments")
	// ErrKindMismatch reports a token that refers to a different kind of entity.
	ErrKindMismatch = errors.New("token refers to a different kind of member")
)

// Scope resolves tokens to descriptors. typeArgs substitutes generic
// parameters; nil resolves the entry as written.
type Scope interface {
	Name() string
	ResolveType(tok Token, typeArgs []*Type) (*Type, error)
	ResolveMethod(tok Token, typeArgs []*Type) (*Method, error)
	ResolveField(tok Token, typeArgs []*Type) (*Field, error)
}
