package keyderivation

import (
	"crypto/aes"
	"fmt"

	"github.com/chmike/cmac-go"

	"github.com/roffe/gouds/security"
)

// CMAC derives keys as AES-CMAC(secret, seed || level) truncated to keyLen
// bytes. Newer ECUs replace the classic bit-twiddling schemes with exactly
// this construction.
func CMAC(secret []byte, keyLen int) (security.KeyDerivation, error) {
	if keyLen < 1 || keyLen > 16 {
		return nil, fmt.Errorf("key length %d out of range 1-16", keyLen)
	}
	// fail on a bad secret now instead of during the exchange
	if _, err := cmac.New(aes.NewCipher, secret); err != nil {
		return nil, err
	}
	return func(seed []byte, level byte) []byte {
		mac, err := cmac.New(aes.NewCipher, secret)
		if err != nil {
			return nil
		}
		mac.Write(seed)
		mac.Write([]byte{level})
		return mac.Sum(nil)[:keyLen]
	}, nil
}
