// Package storage creates the Azure Storage clients shared by the history
// store, the tender repository and the incident queue.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
)

const queueAlreadyExists = "QueueAlreadyExists"

var transientStatusCodes = []int{408, 429, 500, 502, 503, 504}

func retryPolicy(maxRetries int32, maxDelay time.Duration) azcore.ClientOptions {
	return azcore.ClientOptions{
		Retry: policy.RetryOptions{
			MaxRetries:    maxRetries,
			TryTimeout:    30 * time.Second,
			RetryDelay:    time.Second,
			MaxRetryDelay: maxDelay,
			StatusCodes:   transientStatusCodes,
		},
	}
}

// Storage hands out table and queue clients for one storage account.
type Storage struct {
	connStr string
	tables  *aztables.ServiceClient
}

func New(connStr string) (*Storage, error) {
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &aztables.ClientOptions{
		ClientOptions: retryPolicy(3, 15*time.Second),
	})
	if err != nil {
		return nil, fmt.Errorf("table service: %w", err)
	}
	return &Storage{connStr: connStr, tables: svc}, nil
}

func (s *Storage) Table(name string) *aztables.Client {
	return s.tables.NewClient(name)
}

// Queue returns a client for the named queue. Incidents are rare, so queue
// calls retry longer than table calls.
func (s *Storage) Queue(name string) (*azqueue.QueueClient, error) {
	return azqueue.NewQueueClientFromConnectionString(s.connStr, name, &azqueue.ClientOptions{
		ClientOptions: retryPolicy(5, time.Minute),
	})
}

// EnsureTables creates the named tables. Empty names and existing tables are
// skipped.
func (s *Storage) EnsureTables(ctx context.Context, names ...string) error {
	for _, name := range names {
		if name == "" {
			continue
		}
		if _, err := s.Table(name).CreateTable(ctx, nil); !createdOrExists(err, string(aztables.TableAlreadyExists)) {
			return fmt.Errorf("create table %s: %w", name, err)
		}
	}
	return nil
}

// EnsureQueues is EnsureTables for queues.
func (s *Storage) EnsureQueues(ctx context.Context, names ...string) error {
	for _, name := range names {
		if name == "" {
			continue
		}
		q, err := s.Queue(name)
		if err != nil {
			return fmt.Errorf("queue %s: %w", name, err)
		}
		if _, err := q.Create(ctx, nil); !createdOrExists(err, queueAlreadyExists) {
			return fmt.Errorf("create queue %s: %w", name, err)
		}
	}
	return nil
}

// createdOrExists reports whether err is nil or carries the service error code.
func createdOrExists(err error, code string) bool {
	if err == nil {
		return true
	}
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.ErrorCode == code
}
