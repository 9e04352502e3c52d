package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
)

const ticketIDAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// GenerateOrderID returns a collision-resistant order identifier.
func GenerateOrderID() string {
	return "ORDER-" + uuid.NewString()
}

// GenerateTicketID returns a globally unique ticket identifier safe to
// print as a barcode: timestamp plus 9 random base36 characters.
func GenerateTicketID() string {
	var sb strings.Builder
	for i := 0; i < 9; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(ticketIDAlphabet))))
		if err != nil {
			// crypto/rand failing means the process is in serious
			// trouble; fall back to a uuid rather than a short id.
			return "TKT-" + strings.ToUpper(uuid.NewString())
		}
		sb.WriteByte(ticketIDAlphabet[n.Int64()])
	}
	return fmt.Sprintf("TKT-%d-%s", time.Now().UnixMilli(), sb.String())
}
