// Package security drives the UDS SecurityAccess (0x27) seed/key exchange.
// The key derivation itself is vehicle-family specific and injected by the
// caller; this package only sequences the two-step dance and reports what
// happened.
package security

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/roffe/gouds/uds"
)

// KeyDerivation computes the key the ECU expects for a seed at a given
// access level. Implementations are assumed fast; the exchange blocks on
// them.
type KeyDerivation func(seed []byte, level byte) []byte

// Observation records one seed/key attempt for auditing and algorithm
// analysis. Key is empty when the ECU was already unlocked.
type Observation struct {
	Level    byte
	Seed     []byte
	Key      []byte
	Accepted bool
	NRC      uds.NegativeResponseCode
}

func (o *Observation) String() string {
	if o.Accepted {
		return fmt.Sprintf("level 0x%02X seed % X key % X accepted", o.Level, o.Seed, o.Key)
	}
	return fmt.Sprintf("level 0x%02X seed % X key % X denied (%s)", o.Level, o.Seed, o.Key, o.NRC)
}

var ErrEvenLevel = errors.New("security access level must be odd")

// Controller runs seed/key exchanges on one client.
type Controller struct {
	c      *uds.Client
	derive KeyDerivation
}

func New(c *uds.Client, derive KeyDerivation) *Controller {
	return &Controller{
		c:      c,
		derive: derive,
	}
}

// Unlock requests the seed for an odd level, derives the key and sends it.
// A seed that is empty or all zeroes means the ECU is already unlocked; the
// key step is skipped. A failed key is not retried: ECUs enforce attempt
// counters with cooldown penalties. The Observation is returned alongside
// the error whenever a seed was obtained, so denied attempts stay auditable.
func (s *Controller) Unlock(ctx context.Context, level byte) (*Observation, error) {
	if level%2 == 0 {
		return nil, ErrEvenLevel
	}

	pos, err := s.c.Request(ctx, uds.SecurityAccessRequestSeed(level))
	if err != nil {
		return nil, err
	}
	if len(pos.Body) < 1 {
		return nil, &uds.MalformedResponseError{Service: pos.Service, Reason: "missing level echo", Raw: pos.Raw}
	}
	if pos.Body[0] != level {
		return nil, &uds.MalformedResponseError{
			Service: pos.Service,
			Reason:  fmt.Sprintf("level echo 0x%02X, want 0x%02X", pos.Body[0], level),
			Raw:     pos.Raw,
		}
	}

	seed := make([]byte, len(pos.Body)-1)
	copy(seed, pos.Body[1:])
	obs := &Observation{Level: level, Seed: seed}

	if allZero(seed) {
		log.Printf("security access level 0x%02X already granted", level)
		obs.Accepted = true
		return obs, nil
	}

	obs.Key = s.derive(seed, level)
	_, err = s.c.Request(ctx, uds.SecurityAccessSendKey(level, obs.Key))
	if err != nil {
		var neg *uds.Negative
		if errors.As(err, &neg) {
			obs.NRC = neg.Code
			log.Printf("security access denied: %s", obs)
			return obs, err
		}
		return obs, err
	}

	obs.Accepted = true
	log.Printf("security access granted: level 0x%02X", level)
	return obs, nil
}

// allZero also covers the empty seed; both mean "already unlocked".
func allZero(seed []byte) bool {
	for _, b := range seed {
		if b != 0x00 {
			return false
		}
	}
	return true
}
