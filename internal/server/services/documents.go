package services

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/invoicekeeper/internal/common"
	"github.com/dmitrijs2005/invoicekeeper/internal/logging"
	"github.com/dmitrijs2005/invoicekeeper/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type DocumentStore interface {
	ListDocuments(ctx context.Context, t models.DocumentType) ([]models.Document, error)
	GetDocumentByID(ctx context.Context, id string) (models.Document, error)
	SaveDocument(ctx context.Context, doc models.Document) error
}

type NumberAllocator interface {
	Allocate(ctx context.Context, t models.DocumentType) (int, error)
	Claim(ctx context.Context, t models.DocumentType, number int) error
}

type CustomerInput struct {
	Name    string `json:"name" validate:"required,max=200"`
	Email   string `json:"email" validate:"omitempty,email"`
	Address string `json:"address" validate:"max=500"`
	Phone   string `json:"phone" validate:"max=50"`
}

type LineItemInput struct {
	Description string  `json:"description" validate:"required"`
	Quantity    float64 `json:"quantity" validate:"gte=0"`
	UnitPrice   float64 `json:"unitPrice" validate:"gte=0"`
}

// CreateDocumentInput is what the new invoice/estimate/receipt forms submit.
// Number 0 lets the numbering service pick the next number.
type CreateDocumentInput struct {
	Type     string          `json:"type" validate:"omitempty,oneof=invoice estimate receipt lead"`
	Number   int             `json:"number" validate:"gte=0"`
	Date     string          `json:"date" validate:"required,datetime=2006-01-02"`
	DueDate  string          `json:"dueDate" validate:"omitempty,datetime=2006-01-02"`
	Customer CustomerInput   `json:"customer"`
	Items    []LineItemInput `json:"items" validate:"dive"`
	Tax      *float64        `json:"tax" validate:"omitempty,gte=0"`
	Notes    string          `json:"notes"`
	Tags     []string        `json:"tags"`
}

type Dashboard struct {
	RecentInvoices  []models.Document              `json:"recentInvoices"`
	ActiveEstimates []models.Document              `json:"activeEstimates"`
	RecentReceipts  []models.Document              `json:"recentReceipts"`
	State           map[models.DocumentType]string `json:"state"`
}

const dashboardSize = 5

// Listing states reported next to (possibly empty) listings.
const (
	StateOK           = "ok"
	StateUnconfigured = "unconfigured"
	StateUnavailable  = "unavailable"
)

// ListingState classifies the error returned by Store.ListDocuments.
func ListingState(err error) string {
	switch {
	case err == nil:
		return StateOK
	case errors.Is(err, common.ErrBackendUnconfigured):
		return StateUnconfigured
	default:
		return StateUnavailable
	}
}

type DocumentService struct {
	store   DocumentStore
	numbers NumberAllocator
	now     func() time.Time
	logger  logging.Logger
}

func NewDocumentService(store DocumentStore, numbers NumberAllocator, logger logging.Logger) *DocumentService {
	return &DocumentService{
		store:   store,
		numbers: numbers,
		now:     time.Now,
		logger:  logger.With("module", "documents"),
	}
}

// Create builds a draft document from in, numbers it and saves it.
func (s *DocumentService) Create(ctx context.Context, in CreateDocumentInput) (models.Document, error) {
	if err := checkStruct(in); err != nil {
		return models.Document{}, err
	}

	t := models.TypeInvoice
	if in.Type != "" {
		t = models.DocumentType(in.Type)
	}

	number := in.Number
	if number == 0 {
		n, err := s.numbers.Allocate(ctx, t)
		if err != nil {
			return models.Document{}, err
		}
		number = n
	} else if err := s.numbers.Claim(ctx, t, number); err != nil {
		return models.Document{}, err
	}

	items := make([]models.LineItem, 0, len(in.Items))
	subtotal := decimal.Zero
	for _, it := range in.Items {
		qty := decimal.NewFromFloat(it.Quantity)
		price := decimal.NewFromFloat(it.UnitPrice)
		total := qty.Mul(price).Round(2)
		subtotal = subtotal.Add(total)
		items = append(items, models.LineItem{
			ID:          uuid.NewString(),
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Total:       total.InexactFloat64(),
		})
	}

	grand := subtotal
	if in.Tax != nil {
		grand = grand.Add(decimal.NewFromFloat(*in.Tax))
	}

	tags := in.Tags
	if tags == nil {
		tags = []string{}
	}

	ts := models.Timestamp(s.now())
	doc := models.Document{
		ID:      models.FormatID(t, number),
		Number:  number,
		Type:    t,
		Date:    in.Date,
		DueDate: in.DueDate,
		Customer: models.Customer{
			ID:      uuid.NewString(),
			Name:    in.Customer.Name,
			Email:   in.Customer.Email,
			Address: in.Customer.Address,
			Phone:   in.Customer.Phone,
		},
		LineItems: items,
		Subtotal:  subtotal.InexactFloat64(),
		Tax:       in.Tax,
		Total:     grand.InexactFloat64(),
		Notes:     in.Notes,
		Status:    models.StatusDraft,
		Tags:      tags,
		CreatedAt: ts,
		UpdatedAt: ts,
	}

	if err := s.store.SaveDocument(ctx, doc); err != nil {
		return models.Document{}, err
	}
	s.logger.Info(ctx, "document created", "type", t, "id", doc.ID)
	return doc, nil
}

// Dashboard collects the most recent invoices, non-void estimates and
// receipts. A failed listing shows up as an empty list plus its state.
func (s *DocumentService) Dashboard(ctx context.Context) Dashboard {
	d := Dashboard{State: make(map[models.DocumentType]string, 3)}

	invoices, err := s.store.ListDocuments(ctx, models.TypeInvoice)
	d.State[models.TypeInvoice] = ListingState(err)
	d.RecentInvoices = head(invoices, dashboardSize)

	estimates, err := s.store.ListDocuments(ctx, models.TypeEstimate)
	d.State[models.TypeEstimate] = ListingState(err)
	active := make([]models.Document, 0, dashboardSize)
	for _, e := range estimates {
		if e.Status != models.StatusVoid {
			active = append(active, e)
		}
	}
	d.ActiveEstimates = head(active, dashboardSize)

	receipts, err := s.store.ListDocuments(ctx, models.TypeReceipt)
	d.State[models.TypeReceipt] = ListingState(err)
	d.RecentReceipts = head(receipts, dashboardSize)

	return d
}

func head(docs []models.Document, n int) []models.Document {
	if docs == nil {
		return []models.Document{}
	}
	if len(docs) > n {
		return docs[:n]
	}
	return docs
}
