package cluster

import "time"

// Tunables of the in-process cluster, the moral equivalent of the server
// flags tests flip. Set them before building a MiniCluster.
var (
	// HeartbeatInterval is how long tablet assignment takes after a create or
	// alter is accepted. Tests shrink it to speed up completion polling.
	HeartbeatInterval = 50 * time.Millisecond

	// LogPreallocateSegments controls whether the tablet server reserves row
	// storage up front. Disabled when creating many tablets to save memory.
	LogPreallocateSegments = true
)
