package meld

// Config holds global configuration for the system engine's thread pool.
var Config config = config{defaultWorkerCount: 4}

type config struct {
	defaultWorkerCount int
}

// SetDefaultWorkerCount configures how many workers Factory.NewThreadPool
// starts when called with n <= 0.
func (c *config) SetDefaultWorkerCount(n int) {
	c.defaultWorkerCount = n
}
