package utils

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewCorrelationID returns a short id that is shown to the customer and logged with the fault
func NewCorrelationID() string {
	return strings.ToUpper(uuid.NewString()[:8])
}

// GenerateOrderNumber generates a unique, sortable order number
func GenerateOrderNumber() string {
	id := uuid.New()
	return fmt.Sprintf("PED%s%s", time.Now().Format("060102"), strings.ToUpper(id.String()[:8]))
}

// OrderKey derives a stable key from the phone and the cart lines an order is built from.
// Retrying checkout over the same lines yields the same key, whatever their order.
func OrderKey(phone string, lineIDs []uint) string {
	ids := make([]string, len(lineIDs))
	sorted := append([]uint(nil), lineIDs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	for i, id := range sorted {
		ids[i] = strconv.FormatUint(uint64(id), 10)
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(phone+":"+strings.Join(ids, ","))).String()
}
