package tender

import (
	"context"
	"errors"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/bytedance/sonic"

	"access-api/result"
)

type tableEntity struct {
	PartitionKey string `json:"PartitionKey"`
	RowKey       string `json:"RowKey"`
}

// tenderEntity keeps the access fields as columns and the lots as JSON.
type tenderEntity struct {
	tableEntity
	Owner         string `json:"Owner"`
	Token         string `json:"Token"`
	Status        string `json:"Status"`
	StatusDetails string `json:"StatusDetails"`
	JSONLots      string `json:"JsonLots"`
	ETag          string `json:"odata.etag,omitempty"`
}

// TableRepository stores tenders in an Azure table with cpid as partition
// key and ocid as row key.
type TableRepository struct {
	table *aztables.Client
}

func NewTableRepository(table *aztables.Client) *TableRepository {
	return &TableRepository{table: table}
}

func (r *TableRepository) Find(ctx context.Context, cpid, ocid string) (result.Option[Tender], error) {
	resp, err := r.table.GetEntity(ctx, cpid, ocid, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound {
			return result.None[Tender](), nil
		}
		return result.None[Tender](), err
	}
	t, err := decodeTenderEntity(resp.Value)
	if err != nil {
		return result.None[Tender](), err
	}
	if t.etag == "" {
		t.etag = resp.ETag
	}
	return result.Some(t), nil
}

// Save replaces the stored tender. A tender that was read from the table is
// only written if nobody changed it in between.
func (r *TableRepository) Save(ctx context.Context, t Tender) error {
	payload, err := encodeTenderEntity(t)
	if err != nil {
		return err
	}
	if t.etag == "" {
		_, err = r.table.UpsertEntity(ctx, payload, &aztables.UpsertEntityOptions{UpdateMode: aztables.UpdateModeReplace})
		return err
	}
	etag := t.etag
	_, err = r.table.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{IfMatch: &etag, UpdateMode: aztables.UpdateModeReplace})
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) && respErr.StatusCode == http.StatusPreconditionFailed {
		return ErrConflict
	}
	return err
}

func encodeTenderEntity(t Tender) ([]byte, error) {
	lots := t.Lots
	if lots == nil {
		lots = []Lot{}
	}
	data, err := sonic.ConfigStd.MarshalToString(lots)
	if err != nil {
		return nil, err
	}
	return sonic.ConfigStd.Marshal(tenderEntity{
		tableEntity:   tableEntity{PartitionKey: t.Cpid, RowKey: t.Ocid},
		Owner:         t.Owner,
		Token:         t.Token,
		Status:        string(t.Status),
		StatusDetails: string(t.StatusDetails),
		JSONLots:      data,
	})
}

func decodeTenderEntity(data []byte) (Tender, error) {
	var ent tenderEntity
	if err := sonic.ConfigStd.Unmarshal(data, &ent); err != nil {
		return Tender{}, err
	}
	var lots []Lot
	if ent.JSONLots != "" {
		if err := sonic.ConfigStd.UnmarshalFromString(ent.JSONLots, &lots); err != nil {
			return Tender{}, err
		}
	}
	return Tender{
		Cpid:          ent.PartitionKey,
		Ocid:          ent.RowKey,
		Owner:         ent.Owner,
		Token:         ent.Token,
		Status:        Status(ent.Status),
		StatusDetails: StatusDetails(ent.StatusDetails),
		Lots:          lots,
		etag:          azcore.ETag(ent.ETag),
	}, nil
}
