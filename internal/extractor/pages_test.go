package extractor

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"bill-reconciliation-service/internal/models"
	"bill-reconciliation-service/pkg/errors"
)

func namedRecord(name string) *models.Record {
	r := models.NewRecord()
	r.ItemName = name
	r.SetPrice(models.RolePurchase, decimal.NewFromInt(1))
	return r
}

func TestExtractPages_PreservesPageOrder(t *testing.T) {
	pages := []Page{{Index: 2}, {Index: 0}, {Index: 1}, {Index: 3}}

	// Earlier pages finish last.
	fn := func(ctx context.Context, page Page) ([]*models.Record, error) {
		time.Sleep(time.Duration(4-page.Index) * 5 * time.Millisecond)
		return []*models.Record{
			namedRecord(fmt.Sprintf("p%d-a", page.Index)),
			namedRecord(fmt.Sprintf("p%d-b", page.Index)),
		}, nil
	}

	records, failures, err := ExtractPages(context.Background(), pages, fn, PageOptions{Bill: "test", MaxConcurrent: 4})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %v", failures)
	}

	want := []string{"p0-a", "p0-b", "p1-a", "p1-b", "p2-a", "p2-b", "p3-a", "p3-b"}
	if len(records) != len(want) {
		t.Fatalf("expected %d records, got %d", len(want), len(records))
	}
	for i, name := range want {
		if records[i].ItemName != name {
			t.Errorf("record %d = %s, want %s", i, records[i].ItemName, name)
		}
	}
}

func TestExtractPages_PartialFailure(t *testing.T) {
	pages := []Page{{Index: 0, Text: "ok"}, {Index: 1, Text: "bad"}, {Index: 2, Text: "ok"}}

	fn := func(ctx context.Context, page Page) ([]*models.Record, error) {
		if page.Text == "bad" {
			return nil, stderrors.New("provider timeout")
		}
		return []*models.Record{namedRecord(fmt.Sprint(page.Index))}, nil
	}

	records, failures, err := ExtractPages(context.Background(), pages, fn, PageOptions{MaxConcurrent: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 || records[0].ItemName != "0" || records[1].ItemName != "2" {
		t.Errorf("unexpected records: %v", records)
	}
	if len(failures) != 1 {
		t.Fatalf("expected 1 failure, got %d", len(failures))
	}
	if failures[0].Context["page"] != 1 {
		t.Errorf("expected failure for page 1, got %v", failures[0].Context["page"])
	}
}

func TestExtractPages_InvalidIndices(t *testing.T) {
	fn := func(ctx context.Context, page Page) ([]*models.Record, error) {
		t.Error("no page should be extracted")
		return nil, nil
	}

	tests := []struct {
		name  string
		pages []Page
		code  errors.ErrorCode
	}{
		{"negative", []Page{{Index: 0}, {Index: -1}}, errors.CodeOutOfRange},
		{"duplicate", []Page{{Index: 1}, {Index: 1}}, errors.CodeDuplicate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ExtractPages(context.Background(), tt.pages, fn, PageOptions{})
			if !errors.IsCode(err, tt.code) {
				t.Errorf("expected %s error, got %v", tt.code, err)
			}
		})
	}
}

func TestExtractPages_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fn := func(ctx context.Context, page Page) ([]*models.Record, error) {
		return []*models.Record{namedRecord("x")}, nil
	}

	_, _, err := ExtractPages(ctx, []Page{{Index: 0}, {Index: 1}}, fn, PageOptions{})
	if !stderrors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestExtractPages_Empty(t *testing.T) {
	records, failures, err := ExtractPages(context.Background(), nil, nil, PageOptions{})
	if err != nil || len(records) != 0 || len(failures) != 0 {
		t.Errorf("expected empty result, got %v %v %v", records, failures, err)
	}
}
