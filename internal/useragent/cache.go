// Package useragent assigns each account a stable user agent.
package useragent

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math/rand/v2"
	"os"
	"strings"
	"sync"

	"github.com/zainarain279/Dropee/pkg/utilities"
)

var defaultPool = []string{
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_5 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Mobile/15E148",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 16_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Mobile/15E148",
	"Mozilla/5.0 (iPad; CPU OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Mobile/15E148",
	"Mozilla/5.0 (Linux; Android 14; SM-S918B Build/UP1A.231005.007; wv) AppleWebKit/537.36 (KHTML, like Gecko) Version/4.0 Chrome/127.0.6533.103 Mobile Safari/537.36",
	"Mozilla/5.0 (Linux; Android 13; Pixel 7 Build/TQ3A.230901.001; wv) AppleWebKit/537.36 (KHTML, like Gecko) Version/4.0 Chrome/127.0.6533.64 Mobile Safari/537.36",
	"Mozilla/5.0 (Linux; Android 12; M2101K6G Build/SKQ1.210908.001; wv) AppleWebKit/537.36 (KHTML, like Gecko) Version/4.0 Chrome/126.0.6478.134 Mobile Safari/537.36",
}

// Cache is a get-or-create identity -> user agent map persisted as JSON.
type Cache struct {
	mu     sync.Mutex
	path   string
	pool   []string
	agents map[string]string
}

// Load reads path; a missing file starts an empty cache. A nil or empty pool
// uses the built-in one.
func Load(path string, pool []string) (*Cache, error) {
	if len(pool) == 0 {
		pool = defaultPool
	}
	c := &Cache{path: path, pool: pool, agents: map[string]string{}}
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read user agent cache: %w", err)
	}
	if len(b) > 0 {
		if err := json.Unmarshal(b, &c.agents); err != nil {
			return nil, fmt.Errorf("decode user agent cache: %w", err)
		}
	}
	return c, nil
}

// Get returns the agent assigned to identity, assigning and persisting a
// random one on first use. created reports a new assignment. A persistence
// error still returns the assigned agent, which stays in memory.
func (c *Cache) Get(identity string) (agent string, created bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ua, ok := c.agents[identity]; ok {
		return ua, false, nil
	}
	ua := c.pool[rand.IntN(len(c.pool))]
	c.agents[identity] = ua
	if err := c.save(); err != nil {
		return ua, true, err
	}
	return ua, true, nil
}

func (c *Cache) save() error {
	if c.path == "" {
		return nil
	}
	b, err := json.MarshalIndent(c.agents, "", "  ")
	if err != nil {
		return err
	}
	if err := utilities.WriteFileAtomic(c.path, b); err != nil {
		return fmt.Errorf("write user agent cache: %w", err)
	}
	return nil
}

// Platform derives the sec-ch-ua-platform value from a user agent.
func Platform(ua string) string {
	l := strings.ToLower(ua)
	switch {
	case strings.Contains(l, "iphone"), strings.Contains(l, "ipad"):
		return "ios"
	case strings.Contains(l, "android"):
		return "android"
	default:
		return "Unknown"
	}
}
