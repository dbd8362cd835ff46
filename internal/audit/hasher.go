package audit

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/crypto/sha3"
)

// Hasher — подключаемый дайджест цепочки. Сама логика журнала криптографии
// не знает: примитив выбирается при сборке.
type Hasher interface {
	Sum(data []byte) string
	Name() string
}

// SHA256Hasher — дайджест по умолчанию.
type SHA256Hasher struct{}

func (SHA256Hasher) Sum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func (SHA256Hasher) Name() string { return "sha256" }

// SHA3Hasher — альтернативный примитив (SHA3-256).
type SHA3Hasher struct{}

func (SHA3Hasher) Sum(data []byte) string {
	sum := sha3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func (SHA3Hasher) Name() string { return "sha3-256" }
