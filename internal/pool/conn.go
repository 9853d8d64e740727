package pool

import (
	"database/sql"
	"time"

	"sqlgateway/internal/logger"
)

// Conn is a scoped checkout from a managed pool. It embeds *sql.Conn, so
// callers query through it directly; Close returns the connection to the
// pool and disarms the leak watchdog.
type Conn struct {
	*sql.Conn

	database string
	leak     *time.Timer
}

func newConn(inner *sql.Conn, database string, leakThreshold time.Duration) *Conn {
	c := &Conn{Conn: inner, database: database}
	if leakThreshold > 0 {
		c.leak = time.AfterFunc(leakThreshold, func() {
			logger.WithComponent("pool").Warn("connection held beyond leak detection threshold",
				"database", database, "threshold", leakThreshold.String())
		})
	}
	return c
}

// Close releases the checkout. Safe to defer on every exit path.
func (c *Conn) Close() error {
	if c.leak != nil {
		c.leak.Stop()
	}
	return c.Conn.Close()
}
