package history

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/bytedance/sonic"

	"access-api/result"
)

const edmDateTime = "Edm.DateTime"

type tableEntity struct {
	PartitionKey string `json:"PartitionKey"`
	RowKey       string `json:"RowKey"`
}

type historyEntity struct {
	tableEntity
	CommandDate     time.Time `json:"CommandDate"`
	CommandDateType string    `json:"CommandDate@odata.type"`
	JSONData        string    `json:"JsonData"`
}

// TableStore keeps records in an Azure table, partitioned by command id with
// the action as row key.
type TableStore struct {
	table *aztables.Client
}

func NewTableStore(table *aztables.Client) *TableStore {
	return &TableStore{table: table}
}

func (s *TableStore) Find(ctx context.Context, commandID, action string) (result.Option[Record], error) {
	resp, err := s.table.GetEntity(ctx, tableKey(commandID), tableKey(action), nil)
	if err != nil {
		if responseStatus(err) == http.StatusNotFound {
			return result.None[Record](), nil
		}
		return result.None[Record](), err
	}
	rec, err := decodeHistoryEntity(resp.Value)
	if err != nil {
		return result.None[Record](), err
	}
	return result.Some(rec), nil
}

func (s *TableStore) Save(ctx context.Context, rec Record) error {
	payload, err := encodeHistoryEntity(rec)
	if err != nil {
		return err
	}
	if _, err := s.table.AddEntity(ctx, payload, nil); err != nil {
		if responseStatus(err) == http.StatusConflict {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func encodeHistoryEntity(rec Record) ([]byte, error) {
	ent := historyEntity{
		tableEntity:     tableEntity{PartitionKey: tableKey(rec.CommandID), RowKey: tableKey(rec.Action)},
		CommandDate:     rec.Date.UTC(),
		CommandDateType: edmDateTime,
		JSONData:        rec.Payload,
	}
	return sonic.ConfigStd.Marshal(ent)
}

func decodeHistoryEntity(data []byte) (Record, error) {
	var ent historyEntity
	if err := sonic.ConfigStd.Unmarshal(data, &ent); err != nil {
		return Record{}, err
	}
	return Record{
		CommandID: untableKey(ent.PartitionKey),
		Action:    untableKey(ent.RowKey),
		Date:      ent.CommandDate,
		Payload:   ent.JSONData,
	}, nil
}

// Table keys may not contain '/', '\\', '#' or '?'.
var (
	keyEscaper   = strings.NewReplacer("%", "%25", "/", "%2F", "\\", "%5C", "#", "%23", "?", "%3F")
	keyUnescaper = strings.NewReplacer("%25", "%", "%2F", "/", "%5C", "\\", "%23", "#", "%3F", "?")
)

func tableKey(s string) string   { return keyEscaper.Replace(s) }
func untableKey(s string) string { return keyUnescaper.Replace(s) }

func responseStatus(err error) int {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		return respErr.StatusCode
	}
	return 0
}
