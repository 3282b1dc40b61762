package orders

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/lib/pq"
)

// GenerateOrderNumber produces the customer-facing order reference:
// ORD-<millisecond timestamp>-<3-digit random>. Collisions are possible, so
// the insert retries with a fresh number on a unique violation.
func GenerateOrderNumber() string {
	return fmt.Sprintf("ORD-%d-%03d", time.Now().UnixMilli(), rand.Intn(1000))
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
