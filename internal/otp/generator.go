package otp

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const alphanumericChars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Generator produces one-time passcodes from crypto/rand.
type Generator struct {
	length       int
	alphanumeric bool
}

// NewGenerator returns a Generator. Lengths below one fall back to six.
func NewGenerator(length int, alphanumeric bool) *Generator {
	if length < 1 {
		length = 6
	}
	return &Generator{length: length, alphanumeric: alphanumeric}
}

// Length returns the configured code length.
func (g *Generator) Length() int {
	return g.length
}

// Generate returns a fresh code. Numeric codes are uniform over
// [10^(n-1), 10^n-1], so they never carry a leading zero; alphanumeric
// codes pick each position uniformly from digits and uppercase letters.
func (g *Generator) Generate() (string, error) {
	if g.alphanumeric {
		return g.generateAlphanumeric()
	}
	return g.generateNumeric()
}

func (g *Generator) generateNumeric() (string, error) {
	min := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(g.length-1)), nil)
	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(g.length)), nil)
	span := new(big.Int).Sub(max, min) // 9 * 10^(n-1) values

	n, err := rand.Int(rand.Reader, span)
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}

	return new(big.Int).Add(min, n).String(), nil
}

func (g *Generator) generateAlphanumeric() (string, error) {
	charCount := big.NewInt(int64(len(alphanumericChars)))

	code := make([]byte, g.length)
	for i := range code {
		idx, err := rand.Int(rand.Reader, charCount)
		if err != nil {
			return "", fmt.Errorf("failed to generate code: %w", err)
		}
		code[i] = alphanumericChars[idx.Int64()]
	}

	return string(code), nil
}
