// Package history stores the responses of processed commands so a repeated
// command can be answered without running its handler again.
package history

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"access-api/fail"
	"access-api/result"
)

// ErrDuplicate is returned by Store.Save when a record for the same command
// and action already exists.
var ErrDuplicate = errors.New("history record already exists")

// Record is the stored outcome of one command. Records are never updated.
type Record struct {
	CommandID string
	Action    string
	Date      time.Time
	Payload   string
}

// Store is one generation of the history keyspace.
type Store interface {
	Find(ctx context.Context, commandID, action string) (result.Option[Record], error)
	// Save inserts rec and returns ErrDuplicate if the key is taken.
	Save(ctx context.Context, rec Record) error
}

// Chain reads stores in priority order and writes to the first one only.
// Older generations are kept as read-only fallbacks for records written
// before a migration.
type Chain struct {
	stores []Store
	logger *log.Logger
}

func NewChain(logger *log.Logger, primary Store, fallbacks ...Store) *Chain {
	if primary == nil {
		panic("history.NewChain: primary store is nil")
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	stores := make([]Store, 0, 1+len(fallbacks))
	stores = append(stores, primary)
	for _, s := range fallbacks {
		if s != nil {
			stores = append(stores, s)
		}
	}
	return &Chain{stores: stores, logger: logger}
}

// Find returns the first record found for the key.
func (c *Chain) Find(ctx context.Context, commandID, action string) result.Result[result.Option[Record]] {
	for i, s := range c.stores {
		rec, err := s.Find(ctx, commandID, action)
		if err != nil {
			return result.Failure[result.Option[Record]](fail.Database("history lookup", err))
		}
		if rec.IsSome() {
			if i > 0 {
				c.logger.WithFields(log.Fields{"command_id": commandID, "action": action, "generation": i}).
					Debug("history record served from legacy store")
			}
			return result.Success(rec)
		}
	}
	return result.Success(result.None[Record]())
}

// Save writes rec to the primary store. When another writer got there first
// the stored record wins and is returned instead of rec.
func (c *Chain) Save(ctx context.Context, rec Record) result.Result[Record] {
	primary := c.stores[0]
	err := primary.Save(ctx, rec)
	if err == nil {
		return result.Success(rec)
	}
	if !errors.Is(err, ErrDuplicate) {
		return result.Failure[Record](fail.Database("history write", err))
	}

	existing, err := primary.Find(ctx, rec.CommandID, rec.Action)
	if err != nil {
		return result.Failure[Record](fail.Database("history lookup", err))
	}
	winner, ok := existing.Get()
	if !ok {
		return result.Failure[Record](fail.Database("history write", ErrDuplicate))
	}
	c.logger.WithFields(log.Fields{"command_id": rec.CommandID, "action": rec.Action}).
		Warn("concurrent duplicate command, returning first stored response")
	return result.Success(winner)
}
