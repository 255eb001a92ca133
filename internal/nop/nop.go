// Package nop encodes and decodes the 18-digit tax object identifier (NOP).
//
// A NOP is made of seven fixed-width numeric fields:
//
//	PP RR DDD VVV BBB SSSS T
//	|  |  |   |   |   |    +- object type (1)
//	|  |  |   |   |   +------ sequence (4)
//	|  |  |   |   +---------- block (3)
//	|  |  |   +-------------- village (3)
//	|  |  +------------------ district (3)
//	|  +--------------------- regency (2)
//	+------------------------ province (2)
package nop

import (
	"errors"
	"fmt"
	"strings"
)

// Length is the number of digits in a canonical NOP.
const Length = 18

// Province code space accepted by Decode.
const (
	MinProvince = 11
	MaxProvince = 94
)

// Sentinel kinds carried by DecodeError.
var (
	ErrInvalidLength    = errors.New("invalid length")
	ErrNonNumeric       = errors.New("non-numeric character")
	ErrOutOfRange       = errors.New("component out of range")
	ErrComponentTooLong = errors.New("component too long")
)

// DecodeError describes why a raw identifier or component set was rejected.
// It matches its Kind with errors.Is.
type DecodeError struct {
	Kind  error
	Field string
	Value string
}

func (e *DecodeError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("nop: %v: %q", e.Kind, e.Value)
	}
	return fmt.Sprintf("nop: %s: %v: %q", e.Field, e.Kind, e.Value)
}

func (e *DecodeError) Unwrap() error { return e.Kind }

// field describes one fixed-width segment of the identifier.
type field struct {
	name  string
	width int
}

var layout = [...]field{
	{"province", 2},
	{"regency", 2},
	{"district", 3},
	{"village", 3},
	{"block", 3},
	{"sequence", 4},
	{"object_type", 1},
}

// Components is the seven-field decomposition of a NOP. Values may be given
// without leading zeros when encoding.
type Components struct {
	Province   string `json:"province" binding:"required"`
	Regency    string `json:"regency" binding:"required"`
	District   string `json:"district" binding:"required"`
	Village    string `json:"village" binding:"required"`
	Block      string `json:"block" binding:"required"`
	Sequence   string `json:"sequence" binding:"required"`
	ObjectType string `json:"object_type" binding:"required"`
}

func (c Components) values() [len(layout)]string {
	return [...]string{c.Province, c.Regency, c.District, c.Village, c.Block, c.Sequence, c.ObjectType}
}

// TaxObjectID is a validated NOP. The zero value is not a valid identifier;
// construct one with Decode.
type TaxObjectID struct {
	Province   string
	Regency    string
	District   string
	Village    string
	Block      string
	Sequence   string
	ObjectType string
}

// Components returns the zero-padded fields of id.
func (id TaxObjectID) Components() Components {
	return Components(id)
}

// String returns the canonical 18-digit form.
func (id TaxObjectID) String() string {
	return id.Province + id.Regency + id.District + id.Village + id.Block + id.Sequence + id.ObjectType
}

// Formatted returns the dot-grouped display form PP.RR.DDD.VVV.BBB.SSSS.T.
func (id TaxObjectID) Formatted() string {
	return Format(id.String())
}

// RegionCode is province followed by regency, used to select penalty rules.
func (id TaxObjectID) RegionCode() string {
	return id.Province + id.Regency
}

// IsZero reports whether id was never decoded.
func (id TaxObjectID) IsZero() bool {
	return id == TaxObjectID{}
}

// Decode validates raw and splits it into its components.
func Decode(raw string) (TaxObjectID, error) {
	if len(raw) != Length {
		return TaxObjectID{}, &DecodeError{Kind: ErrInvalidLength, Value: raw}
	}
	if !isDigits(raw) {
		return TaxObjectID{}, &DecodeError{Kind: ErrNonNumeric, Value: raw}
	}

	var parts [len(layout)]string
	offset := 0
	for i, f := range layout {
		parts[i] = raw[offset : offset+f.width]
		offset += f.width
	}

	province := int(parts[0][0]-'0')*10 + int(parts[0][1]-'0')
	if province < MinProvince || province > MaxProvince {
		return TaxObjectID{}, &DecodeError{Kind: ErrOutOfRange, Field: layout[0].name, Value: parts[0]}
	}

	return TaxObjectID{
		Province:   parts[0],
		Regency:    parts[1],
		District:   parts[2],
		Village:    parts[3],
		Block:      parts[4],
		Sequence:   parts[5],
		ObjectType: parts[6],
	}, nil
}

// Encode zero-pads each component to its width and concatenates them.
// It does not range-check the province; pass the result to Decode for that.
func Encode(c Components) (string, error) {
	var b strings.Builder
	b.Grow(Length)

	for i, v := range c.values() {
		f := layout[i]
		if len(v) > f.width {
			return "", &DecodeError{Kind: ErrComponentTooLong, Field: f.name, Value: v}
		}
		if !isDigits(v) {
			return "", &DecodeError{Kind: ErrNonNumeric, Field: f.name, Value: v}
		}
		b.WriteString(strings.Repeat("0", f.width-len(v)))
		b.WriteString(v)
	}

	return b.String(), nil
}

// Format dot-groups an 18-character string for display. Input of any other
// length is returned unchanged.
func Format(raw string) string {
	if len(raw) != Length {
		return raw
	}

	var b strings.Builder
	b.Grow(Length + len(layout) - 1)
	offset := 0
	for i, f := range layout {
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(raw[offset : offset+f.width])
		offset += f.width
	}
	return b.String()
}

// Normalize strips the separators users commonly type or paste
// (dots, dashes, spaces) so that a formatted NOP can be decoded.
func Normalize(raw string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '-', ' ', '\t':
			return -1
		}
		return r
	}, strings.TrimSpace(raw))
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
