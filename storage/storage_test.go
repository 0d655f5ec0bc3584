package storage

import (
	"errors"
	"fmt"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
)

func TestCreatedOrExists(t *testing.T) {
	exists := &azcore.ResponseError{ErrorCode: string(aztables.TableAlreadyExists), StatusCode: 409}
	tests := []struct {
		name string
		err  error
		code string
		want bool
	}{
		{name: "created", err: nil, code: queueAlreadyExists, want: true},
		{name: "exists", err: exists, code: string(aztables.TableAlreadyExists), want: true},
		{name: "wrapped", err: fmt.Errorf("create: %w", exists), code: string(aztables.TableAlreadyExists), want: true},
		{name: "otherCode", err: exists, code: queueAlreadyExists, want: false},
		{name: "plain", err: errors.New("dial tcp: refused"), code: queueAlreadyExists, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := createdOrExists(tt.err, tt.code); got != tt.want {
				t.Fatalf("createdOrExists = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewRejectsBadConnectionString(t *testing.T) {
	if _, err := New("not a connection string"); err == nil {
		t.Fatalf("expected error")
	}
}

const azurite = "DefaultEndpointsProtocol=http;AccountName=devstoreaccount1;" +
	"AccountKey=Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw==;" +
	"TableEndpoint=http://127.0.0.1:10002/devstoreaccount1;QueueEndpoint=http://127.0.0.1:10001/devstoreaccount1;"

func TestNewDevelopmentStorage(t *testing.T) {
	s, err := New(azurite)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if s.Table("Tenders") == nil {
		t.Fatalf("expected table client")
	}
	if _, err := s.Queue("incidents"); err != nil {
		t.Fatalf("queue: %v", err)
	}
}
