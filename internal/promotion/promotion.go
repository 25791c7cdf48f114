// Package promotion implements the payment status total order and the
// monotonic promotion rule.
package promotion

// Status is the finite set of payment statuses.
type Status string

const (
	Pending Status = "pending"
	Failed Status = "failed"
	Paid Status = "paid"
	Received Status = "received"
	Waived Status = "waived"
	Refunded Status = "refunded"
)

// rank implements the total order: pending(10) < failed(15) < paid(20) ≈
// received(20) < waived(25) < refunded(40).
var rank = map[Status]int{
	Pending: 10,
	Failed: 15,
	Paid: 20,
	Received: 20,
	Waived: 25,
	Refunded: 40,
}

// Rank returns the numeric rank of a status, or -1 if unknown.
func Rank(s Status) int {
	if r, ok := rank[s]; ok {
		return r
	}
	return -1
}

// CanPromote reports whether target may be written over current under the
// monotonic promotion rule: rank(target) >= rank(current). This function is
// pure and has no exception for demotion — refund resync's explicit
// allowDemotion opt-out lives at the call site (internal/handlers), never
// here, so every demoting write in the codebase is locatable by searching
// for allowDemotion.
func CanPromote(current, target Status) bool {
	return Rank(target) >= Rank(current)
}

// SameRank reports whether two statuses share a rank (paid and received both
// rank 20). The received/paid cross-update behavior is left open; callers
// treat same-rank writes as "last authoritative event wins, else idempotent
// ACK" rather than as promotion or demotion.
func SameRank(a, b Status) bool {
	return Rank(a) == Rank(b)
}
