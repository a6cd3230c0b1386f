// Package models holds the document and settings types shared by every layer.
// The JSON field names match the files already present on disk and on the
// remote WebDAV store, so they must not change.
package models

import (
	"fmt"
	"strings"
	"time"
)

// DocumentType selects the storage partition of a document.
type DocumentType string

const (
	TypeInvoice  DocumentType = "invoice"
	TypeEstimate DocumentType = "estimate"
	TypeReceipt  DocumentType = "receipt"
	TypeLead     DocumentType = "lead"
)

// AllTypes lists every document type, leads included.
var AllTypes = []DocumentType{TypeInvoice, TypeEstimate, TypeReceipt, TypeLead}

// PrimaryTypes are the types searched by id lookups and accepted by imports,
// in lookup order.
var PrimaryTypes = []DocumentType{TypeInvoice, TypeEstimate, TypeReceipt}

// ParseType converts s into a known DocumentType.
func ParseType(s string) (DocumentType, bool) {
	t := DocumentType(strings.ToLower(strings.TrimSpace(s)))
	return t, t.Valid()
}

func (t DocumentType) Valid() bool {
	switch t {
	case TypeInvoice, TypeEstimate, TypeReceipt, TypeLead:
		return true
	}
	return false
}

// Primary reports whether t is one of PrimaryTypes.
func (t DocumentType) Primary() bool {
	return t.Valid() && t != TypeLead
}

// Prefix is the id prefix for documents of type t.
func (t DocumentType) Prefix() string {
	switch t {
	case TypeInvoice:
		return "INV"
	case TypeEstimate:
		return "EST"
	case TypeReceipt:
		return "RCT"
	case TypeLead:
		return "LEAD"
	}
	return strings.ToUpper(string(t))
}

// Container is the directory/collection holding documents of type t.
func (t DocumentType) Container() string {
	return string(t) + "s"
}

type Status string

const (
	StatusDraft Status = "draft"
	StatusSent  Status = "sent"
	StatusPaid  Status = "paid"
	StatusVoid  Status = "void"
)

// Customer is embedded in a Document and has no lifecycle of its own.
type Customer struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email,omitempty"`
	Address string `json:"address,omitempty"`
	Phone   string `json:"phone,omitempty"`
}

// LineItem.Total is quantity*unitPrice at creation time and is trusted on read.
type LineItem struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unitPrice"`
	Total       float64 `json:"total"`
}

type Document struct {
	ID        string       `json:"id"`
	Number    int          `json:"number"`
	Type      DocumentType `json:"type"`
	Date      string       `json:"date"`
	DueDate   string       `json:"dueDate,omitempty"`
	Customer  Customer     `json:"customer"`
	LineItems []LineItem   `json:"lineItems"`
	Subtotal  float64      `json:"subtotal"`
	Tax       *float64     `json:"tax,omitempty"`
	Total     float64      `json:"total"`
	Notes     string       `json:"notes,omitempty"`
	Status    Status       `json:"status"`
	Tags      []string     `json:"tags"`
	CreatedAt string       `json:"createdAt"`
	UpdatedAt string       `json:"updatedAt"`
}

// FormatID builds the canonical id, e.g. INV-0007.
func FormatID(t DocumentType, number int) string {
	return fmt.Sprintf("%s-%04d", t.Prefix(), number)
}

// ValidID reports whether id can be used as a single file name.
func ValidID(id string) bool {
	if strings.TrimSpace(id) == "" || id == "." || id == ".." {
		return false
	}
	return !strings.ContainsAny(id, `/\`) && !strings.Contains(id, "..")
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// SortTime parses Date for ordering. Unparseable dates yield the zero time
// and therefore sort last in a descending listing.
func (d Document) SortTime() time.Time {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, d.Date); err == nil {
			return t
		}
	}
	return time.Time{}
}

const timestampLayout = "2006-01-02T15:04:05.000Z"

// Timestamp renders t the way createdAt/updatedAt are stored.
func Timestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}
