// Package keyderivation ships two example SecurityAccess key derivations.
// Neither is a real vehicle algorithm; both exist to exercise the pluggable
// security.KeyDerivation contract.
package keyderivation

import "github.com/roffe/gouds/security"

// Placeholder is a 16-bit rotate / add / xor derivation in the shape used
// by a number of GM-era ECUs. The constants vary per vehicle family and
// access level; callers supply their own.
func Placeholder(rotate uint, postRotateAdd, xor1, add, xor2 uint16) security.KeyDerivation {
	rotate %= 16
	return func(seed []byte, level byte) []byte {
		var s uint16
		switch {
		case len(seed) >= 2:
			s = uint16(seed[0])<<8 | uint16(seed[1])
		case len(seed) == 1:
			s = uint16(seed[0])
		}
		k := s>>rotate | s<<(16-rotate)
		k += postRotateAdd
		k ^= xor1
		k += add
		k ^= xor2
		return []byte{byte(k >> 8), byte(k)}
	}
}
