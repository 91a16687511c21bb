// README: ABO/Rh blood type vocabulary.
package bloodtype

import (
	"errors"
	"strings"
)

type Type string

const (
	APos  Type = "A+"
	ANeg  Type = "A-"
	BPos  Type = "B+"
	BNeg  Type = "B-"
	ABPos Type = "AB+"
	ABNeg Type = "AB-"
	OPos  Type = "O+"
	ONeg  Type = "O-"
)

var ErrUnknownType = errors.New("unknown blood type")

var all = []Type{APos, ANeg, BPos, BNeg, ABPos, ABNeg, OPos, ONeg}

// All returns the eight types in a fixed order.
func All() []Type {
	out := make([]Type, len(all))
	copy(out, all)
	return out
}

func (t Type) Valid() bool {
	_, ok := recipients[t]
	return ok
}

func (t Type) String() string { return string(t) }

// Parse accepts "ab+", " O- " and similar spellings.
func Parse(s string) (Type, error) {
	t := Type(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", ErrUnknownType
	}
	return t, nil
}
