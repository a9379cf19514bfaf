package auth

import (
	"golang.org/x/crypto/bcrypt"
)

// Cost is the fixed bcrypt work factor (10 rounds).
const Cost = bcrypt.DefaultCost

type Hasher struct {
	cost int

	// dummy is compared against when no stored hash exists so that a
	// missing account costs the same as a wrong password.
	dummy []byte
}

func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = Cost
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("devconnector-dummy"), cost)
	if err != nil {
		panic("auth: generate dummy hash: " + err.Error())
	}
	return &Hasher{cost: cost, dummy: dummy}
}

func (h *Hasher) Hash(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (h *Hasher) Verify(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

// Burn spends one comparison's worth of CPU without checking anything.
func (h *Hasher) Burn(plaintext string) {
	_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(plaintext))
}
