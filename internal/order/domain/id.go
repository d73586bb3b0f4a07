package domain

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
)

type IDGenerator interface {
	NewID(now time.Time) (string, error)
}

const (
	idAlphabet  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	suffixLen   = 4
	idTimestamp = "20060102150405"
)

// TimestampGenerator produces ORD-<YYYYMMDDHHMMSS>-<XXXX>. Two ids minted in
// the same second collide with probability 1/36^4; the store rejects a
// duplicate and the caller draws again.
type TimestampGenerator struct {
	Rand io.Reader
}

func (g TimestampGenerator) NewID(now time.Time) (string, error) {
	r := g.Rand
	if r == nil {
		r = rand.Reader
	}
	suffix := make([]byte, 0, suffixLen)
	buf := make([]byte, 8)
	for len(suffix) < suffixLen {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", fmt.Errorf("read random suffix: %w", err)
		}
		for _, b := range buf {
			// 252 is the largest multiple of 36 below 256.
			if b >= 252 || len(suffix) == suffixLen {
				continue
			}
			suffix = append(suffix, idAlphabet[int(b)%len(idAlphabet)])
		}
	}
	return fmt.Sprintf("ORD-%s-%s", now.UTC().Format(idTimestamp), suffix), nil
}

// UUIDGenerator produces ORD-<uuid v7>, which does not collide in practice.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID(time.Time) (string, error) {
	u, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid: %w", err)
	}
	return "ORD-" + strings.ToUpper(u.String()), nil
}

func NewIDGenerator(strategy string) (IDGenerator, error) {
	switch strategy {
	case "", "timestamp":
		return TimestampGenerator{}, nil
	case "uuid":
		return UUIDGenerator{}, nil
	default:
		return nil, fmt.Errorf("unknown order id strategy %q", strategy)
	}
}
