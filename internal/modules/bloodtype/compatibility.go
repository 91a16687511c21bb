// README: Canonical donor → recipient compatibility table and the values derived from it.
package bloodtype

// recipients is the only compatibility table. Every other lookup derives from it.
var recipients = map[Type][]Type{
	ONeg:  {ONeg, OPos, ANeg, APos, BNeg, BPos, ABNeg, ABPos},
	OPos:  {OPos, APos, BPos, ABPos},
	ANeg:  {ANeg, APos, ABNeg, ABPos},
	APos:  {APos, ABPos},
	BNeg:  {BNeg, BPos, ABNeg, ABPos},
	BPos:  {BPos, ABPos},
	ABNeg: {ABNeg, ABPos},
	ABPos: {ABPos},
}

const (
	GradeIdentical    = 10
	GradeCompatible   = 8
	GradeIncompatible = 0
)

// rarity scores, higher is rarer.
var rarity = map[Type]int{
	ABNeg: 100,
	BNeg:  90,
	ABPos: 80,
	ANeg:  70,
	ONeg:  60,
	BPos:  50,
	APos:  40,
	OPos:  30,
}

const defaultRarity = 50

// IsCompatible reports whether blood from donor may be given to recipient.
func IsCompatible(donor, recipient Type) bool {
	for _, r := range recipients[donor] {
		if r == recipient {
			return true
		}
	}
	return false
}

// CompatibleDonors lists the donor types that can give to recipient.
func CompatibleDonors(recipient Type) []Type {
	var out []Type
	for _, d := range all {
		if IsCompatible(d, recipient) {
			out = append(out, d)
		}
	}
	return out
}

// CompatibleRecipients lists the recipient types that can receive from donor.
func CompatibleRecipients(donor Type) []Type {
	rs := recipients[donor]
	out := make([]Type, len(rs))
	copy(out, rs)
	return out
}

// Grade scores a donor/recipient pair: identical 10, compatible 8, otherwise 0.
func Grade(donor, recipient Type) int {
	switch {
	case !IsCompatible(donor, recipient):
		return GradeIncompatible
	case donor == recipient:
		return GradeIdentical
	default:
		return GradeCompatible
	}
}

// Rarity returns the rarity score of t; unknown types score 50.
func Rarity(t Type) int {
	if v, ok := rarity[t]; ok {
		return v
	}
	return defaultRarity
}
