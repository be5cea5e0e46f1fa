package utils

import (
	"github.com/denisbrodbeck/machineid"
)

// InstanceID returns a stable identifier for this orchestrator process,
// derived from the host machine id. It has no bearing on correctness —
// the store's unique constraints are what actually arbitrate races
// between replicas claiming the same round — but it lets log lines and
// metrics be attributed to a specific replica when several run behind
// a load balancer.
func InstanceID() string {
	id, err := machineid.ProtectedID("edgeorchestra")
	if err != nil {
		return "unknown"
	}
	return id
}
