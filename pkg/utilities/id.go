package utilities

import (
	"os"
	"strconv"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/segmentio/ksuid"
)

// NewSessionID returns a KSUID used to correlate the log lines of one
// account session.
func NewSessionID() string {
	return ksuid.New().String()
}

// NewCycleID generates a snowflake ID string for one orchestration cycle,
// using the node ID from SNOWFLAKE_NODE (default 1).
func NewCycleID() string {
	nodeEnv := os.Getenv("SNOWFLAKE_NODE")
	if nodeEnv == "" {
		return NewCycleIDWithNode(1)
	}
	nodeID, err := strconv.ParseInt(nodeEnv, 10, 64)
	if err != nil {
		return NewCycleIDWithNode(1)
	}
	return NewCycleIDWithNode(nodeID)
}

// NewCycleIDWithNode generates a snowflake ID string using the provided node ID.
// If the node cannot be initialized, it falls back to a KSUID string.
func NewCycleIDWithNode(nodeID int64) string {
	nodesMu.Lock()
	node, ok := nodes[nodeID]
	if !ok {
		var err error
		if node, err = snowflake.NewNode(nodeID); err != nil {
			nodesMu.Unlock()
			return NewSessionID()
		}
		nodes[nodeID] = node
	}
	nodesMu.Unlock()
	return node.Generate().String()
}

// one generator per node id keeps ids unique within a millisecond
var (
	nodesMu sync.Mutex
	nodes   = map[int64]*snowflake.Node{}
)
