package reconciler

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"bill-reconciliation-service/internal/extractor"
	"bill-reconciliation-service/internal/matcher"
	"bill-reconciliation-service/internal/models"
	"bill-reconciliation-service/internal/session"
	"bill-reconciliation-service/pkg/errors"
)

const purchaseBill = `S.No  Item  HSN  Qty  Rate
A1   Samsung TV   8528   1   ₹45000
B7   LG Fridge   8418   2   ₹30000`

const saleBill = `S.No  Item  HSN  Qty  Rate
A1   Samsung TV 55in   8528   1   ₹50000`

// fakeProvider answers every page with the same text or error
type fakeProvider struct {
	mu    sync.Mutex
	text  string
	err   error
	calls int
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) ExtractPage(ctx context.Context, data []byte, mimeType string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.text, f.err
}

func newTestService(t *testing.T, provider *fakeProvider) *Service {
	t.Helper()

	var service *Service
	var err error
	if provider == nil {
		service, err = NewService(nil, nil, DefaultConfig())
	} else {
		service, err = NewService(nil, provider, DefaultConfig())
	}
	if err != nil {
		t.Fatalf("Failed to create service: %v", err)
	}
	return service
}

func createSession(t *testing.T, service *Service) string {
	t.Helper()
	sess, err := service.Store().Create(context.Background())
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	return sess.ID
}

func TestService_ProcessBillAndReconcile(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t, nil)
	id := createSession(t, service)

	purchase, err := service.ProcessBill(ctx, id, models.RolePurchase, "purchase.txt",
		[]extractor.Page{{Index: 0, Text: purchaseBill}})
	if err != nil {
		t.Fatalf("ProcessBill(purchase) failed: %v", err)
	}
	if purchase.TotalItems != 2 || len(purchase.Records) != 2 || purchase.HasFailures() {
		t.Fatalf("unexpected purchase result: %+v", purchase)
	}
	if purchase.Records[0].SourceFile != "purchase.txt" {
		t.Errorf("expected source file to be recorded, got %q", purchase.Records[0].SourceFile)
	}

	if _, err := service.ProcessBill(ctx, id, models.RoleSale, "sale.txt",
		[]extractor.Page{{Index: 0, Text: saleBill}}); err != nil {
		t.Fatalf("ProcessBill(sale) failed: %v", err)
	}

	result, err := service.Reconcile(ctx, id)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	if len(result.Matched) != 1 || len(result.UnmatchedPurchases) != 1 || len(result.UnmatchedSales) != 0 {
		t.Fatalf("unexpected partition: %d/%d/%d",
			len(result.Matched), len(result.UnmatchedPurchases), len(result.UnmatchedSales))
	}
	if !result.Matched[0].ProfitLoss.Equal(decimal.NewFromInt(5000)) {
		t.Errorf("expected profit 5000, got %s", result.Matched[0].ProfitLoss)
	}
	if !result.Summary.TotalUnmatchedPurchaseValue.Equal(decimal.NewFromInt(30000)) {
		t.Errorf("expected unmatched purchase value 30000, got %s", result.Summary.TotalUnmatchedPurchaseValue)
	}

	sess, err := service.Store().Get(ctx, id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if sess.Status != session.StatusCompleted || sess.Summary == nil || sess.Result == nil {
		t.Errorf("expected the outcome to be stored on the session, got %+v", sess)
	}
}

func TestService_ImagePages(t *testing.T) {
	ctx := context.Background()
	provider := &fakeProvider{
		text: "```json\n[{\"serial_number\": \"a1\", \"item_name\": \"Samsung TV 55in\", \"hsn_code\": \"8528\", \"quantity\": 1, \"price\": 50000}]\n```",
	}
	service := newTestService(t, provider)

	result, err := service.ExtractBill(ctx, models.RoleSale, "sale.png",
		[]extractor.Page{{Index: 0, Image: []byte("png"), MIMEType: "image/png"}})
	if err != nil {
		t.Fatalf("ExtractBill failed: %v", err)
	}

	if provider.calls != 1 {
		t.Errorf("expected one provider call, got %d", provider.calls)
	}
	if len(result.Records) != 1 {
		t.Fatalf("expected one record, got %d", len(result.Records))
	}
	r := result.Records[0]
	if r.SerialNumber != "A1" || r.SalePrice == nil || !r.SalePrice.Equal(decimal.NewFromInt(50000)) {
		t.Errorf("unexpected record: %s", r)
	}
}

func TestService_PartialPageFailure(t *testing.T) {
	ctx := context.Background()
	provider := &fakeProvider{err: stderrors.New("model unavailable")}
	service := newTestService(t, provider)

	pages := []extractor.Page{
		{Index: 1, Image: []byte("png"), MIMEType: "image/png"},
		{Index: 0, Text: purchaseBill},
	}

	result, err := service.ExtractBill(ctx, models.RolePurchase, "bill", pages)
	if err != nil {
		t.Fatalf("ExtractBill failed: %v", err)
	}

	if len(result.Records) != 2 {
		t.Errorf("expected the text page records to survive, got %d", len(result.Records))
	}
	if !result.HasFailures() || result.Failures.Total != 1 {
		t.Fatalf("expected one failed page, got %+v", result.Failures)
	}
	if result.Failures.Errors[0].Context["page"] != 1 {
		t.Errorf("expected failure on page 1, got %v", result.Failures.Errors[0].Context["page"])
	}
}

func TestService_ImageWithoutProvider(t *testing.T) {
	service := newTestService(t, nil)

	result, err := service.ExtractBill(context.Background(), models.RoleSale, "scan.jpg",
		[]extractor.Page{{Index: 0, Image: []byte("jpg"), MIMEType: "image/jpeg"}})
	if err != nil {
		t.Fatalf("ExtractBill failed: %v", err)
	}
	if !result.HasFailures() || !result.Failures.HasCode(errors.CodeMissingConfig) {
		t.Errorf("expected missing_config failure, got %+v", result.Failures)
	}
	if len(result.Records) != 0 {
		t.Errorf("expected no records, got %d", len(result.Records))
	}
}

func TestService_Errors(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t, nil)

	emptyID := createSession(t, service)

	purchaseOnly := createSession(t, service)
	if _, err := service.ProcessBill(ctx, purchaseOnly, models.RolePurchase, "p.txt",
		[]extractor.Page{{Index: 0, Text: purchaseBill}}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		err  error
		code errors.ErrorCode
	}{
		{"reconcile without purchases", errOf(service.Reconcile(ctx, emptyID)), errors.CodeMissingPurchases},
		{"reconcile without sales", errOf(service.Reconcile(ctx, purchaseOnly)), errors.CodeMissingSales},
		{"reconcile unknown session", errOf(service.Reconcile(ctx, "nope")), errors.CodeSessionNotFound},
		{"bill for unknown session", errOf(service.ProcessBill(ctx, "nope", models.RoleSale, "s.txt", nil)), errors.CodeSessionNotFound},
		{"bill with bad role", errOf(service.ExtractBill(ctx, models.Role("refund"), "s.txt", nil)), errors.CodeInvalidRole},
		{"negative page index", errOf(service.ExtractBill(ctx, models.RoleSale, "s.txt", []extractor.Page{{Index: -1}})), errors.CodeOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.IsCode(tt.err, tt.code) {
				t.Errorf("expected %s, got %v", tt.code, tt.err)
			}
		})
	}
}

func errOf(_ interface{}, err error) error {
	return err
}

func TestService_ReconcileRecords(t *testing.T) {
	service := newTestService(t, nil)

	t.Run("empty inputs", func(t *testing.T) {
		result := service.ReconcileRecords(nil, nil)
		if len(result.Matched) != 0 || result.Summary.TotalMatchedItems != 0 {
			t.Errorf("unexpected result: %+v", result)
		}
		if !result.Summary.TotalProfitLossPercentage.IsZero() {
			t.Error("expected zero percentage for empty inputs")
		}
	})

	t.Run("normalizes before matching", func(t *testing.T) {
		p := &models.Record{SerialNumber: " a1 ", HSNCode: "8528", ItemName: "TV", Quantity: 0}
		p.SetPrice(models.RolePurchase, decimal.NewFromInt(100))
		s := &models.Record{SerialNumber: "A1", HSNCode: "8528", ItemName: "TV", Quantity: 1}
		s.SetPrice(models.RoleSale, decimal.NewFromInt(90))

		result := service.ReconcileRecords([]*models.Record{p}, []*models.Record{s})
		if len(result.Matched) != 1 {
			t.Fatalf("expected a match after normalization, got %+v", result.MatchResult)
		}
		if result.Summary.LossItemsCount != 1 {
			t.Errorf("expected one loss item, got %d", result.Summary.LossItemsCount)
		}
		if result.Preprocessing.RecordsFixed != 1 {
			t.Errorf("expected one fixed record, got %d", result.Preprocessing.RecordsFixed)
		}
		if p.SerialNumber != " a1 " {
			t.Error("input record must not be modified")
		}
	})
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default", func(c *Config) {}, false},
		{"zero pages", func(c *Config) { c.MaxConcurrentPages = 0 }, true},
		{"zero size", func(c *Config) { c.MaxFileSize = 0 }, true},
		{"bad matching", func(c *Config) { c.Matching = &matcher.MatchingConfig{} }, true},
		{"no matching", func(c *Config) { c.Matching = nil }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			if err := config.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	config := DefaultConfig()
	config.MaxConcurrentPages = -1
	if _, err := NewService(nil, nil, config); !errors.IsCode(err, errors.CodeInvalidConfig) {
		t.Errorf("expected invalid_config from NewService, got %v", err)
	}
}
