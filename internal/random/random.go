package random

import (
	"crypto/rand"
	"math/big"
)

var allowedLetters = []rune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ")

func Letters(n uint) (string, error) {
	letters := make([]rune, n)
	for i := range letters {
		letterIndex, err := rand.Int(rand.Reader, big.NewInt(int64(len(allowedLetters))))
		if err != nil {
			return "", err
		}
		letters[i] = allowedLetters[letterIndex.Int64()]
	}
	return string(letters), nil
}

const (
	caseNumberMin  = 1000
	caseNumberSpan = 9000
)

// CaseNumber returns a random number in [1000, 9999] used to salt the environment
// description so that repeated sessions produce different casts.
func CaseNumber() (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(caseNumberSpan))
	if err != nil {
		return 0, err
	}
	return caseNumberMin + int(n.Int64()), nil
}
