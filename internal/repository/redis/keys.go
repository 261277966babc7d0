package redis

import (
	"fmt"

	"github.com/google/uuid"
)

const ns = "badcourt:v1"

func KeyCourtGeneration(courtID int64) string {
	return fmt.Sprintf("%s:court:%d:gen", ns, courtID)
}

// KeyCourtAvailability is scoped by the court generation so that bumping
// the generation drops every cached day at once.
func KeyCourtAvailability(courtID, gen int64, day string) string {
	return fmt.Sprintf("%s:court:%d:g%d:availability:%s", ns, courtID, gen, day)
}

func KeyPendingGate() string {
	return ns + ":orders:pending"
}

func KeyIdemReserve(courtID int64, userID, idemKey string) string {
	return fmt.Sprintf("%s:idem:reserve:%d:%s:%s", ns, courtID, userID, idemKey)
}

func KeyOrderLock(orderID uuid.UUID) string {
	return fmt.Sprintf("%s:lock:order:%s", ns, orderID)
}

func KeyRateLimit(scope, id string) string {
	return fmt.Sprintf("%s:rl:%s:%s", ns, scope, id)
}

func ChannelCourtsChanged() string {
	return ns + ":courts:changed"
}
