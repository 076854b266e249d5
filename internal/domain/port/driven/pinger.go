package driven

import "context"

// Pinger is implemented by backing services whose reachability is reported
// by the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}
