package app

import (
	"math/rand"
	"strconv"
	"sync"
	"time"
)

// shareCodeAlphabet has no 0, O, 1 or I.
const shareCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

type codeGenerator struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func newCodeGenerator() *codeGenerator {
	return &codeGenerator{rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// pin returns a 6 digit number without a leading zero.
func (g *codeGenerator) pin() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return strconv.Itoa(100000 + g.rnd.Intn(900000))
}

func (g *codeGenerator) shareCode() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	b := make([]byte, 6)
	for i := range b {
		b[i] = shareCodeAlphabet[g.rnd.Intn(len(shareCodeAlphabet))]
	}
	return string(b)
}
