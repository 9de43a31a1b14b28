package receipt

import (
	"encoding/xml"
	"fmt"
	"io"
	"time"

	"github.com/procura-erp/procura-erp/internal/allocation"
)

// Preview is the parsed content of an uploaded invoice XML. Nothing is
// persisted at this stage; the caller reviews the lines and then
// creates the receipt.
type Preview struct {
	Number       string        `json:"number"`
	SupplierCNPJ string        `json:"supplier_cnpj"`
	SupplierName string        `json:"supplier_name"`
	IssuedAt     time.Time     `json:"issued_at"`
	Total        float64       `json:"total"`
	Lines        []PreviewLine `json:"lines"`
}

// PreviewLine is one parsed invoice item.
type PreviewLine struct {
	Code        string  `json:"code"`
	Description string  `json:"description"`
	Qty         float64 `json:"qty"`
	UnitPrice   float64 `json:"unit_price"`
}

type invoiceXML struct {
	XMLName  xml.Name `xml:"invoice"`
	Number   string   `xml:"number"`
	IssuedAt string   `xml:"issued_at"`
	Supplier struct {
		CNPJ string `xml:"cnpj"`
		Name string `xml:"name"`
	} `xml:"supplier"`
	Total string `xml:"total"`
	Items []struct {
		Code        string `xml:"code"`
		Description string `xml:"description"`
		Qty         string `xml:"qty"`
		UnitPrice   string `xml:"unit_price"`
	} `xml:"items>item"`
}

// ParseInvoiceXML reads a simplified invoice document into a Preview.
// Decimal fields accept both comma and dot notation. When the total is
// absent it is derived from the lines.
func ParseInvoiceXML(r io.Reader) (Preview, error) {
	var doc invoiceXML
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return Preview{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if doc.Number == "" {
		return Preview{}, fmt.Errorf("%w: invoice number missing", ErrValidation)
	}
	if len(doc.Items) == 0 {
		return Preview{}, fmt.Errorf("%w: invoice has no items", ErrValidation)
	}

	preview := Preview{
		Number:       doc.Number,
		SupplierCNPJ: doc.Supplier.CNPJ,
		SupplierName: doc.Supplier.Name,
		Total:        allocation.ParseDecimal(doc.Total),
	}
	if doc.IssuedAt != "" {
		if issued, err := time.Parse("2006-01-02", doc.IssuedAt); err == nil {
			preview.IssuedAt = issued
		}
	}

	var derived float64
	for _, item := range doc.Items {
		line := PreviewLine{
			Code:        item.Code,
			Description: item.Description,
			Qty:         allocation.ParseDecimal(item.Qty),
			UnitPrice:   allocation.ParseDecimal(item.UnitPrice),
		}
		if line.Qty <= 0 {
			return Preview{}, fmt.Errorf("%w: item %q has no quantity", ErrValidation, item.Code)
		}
		derived += line.Qty * line.UnitPrice
		preview.Lines = append(preview.Lines, line)
	}
	if preview.Total <= 0 {
		preview.Total = allocation.Round2(derived)
	}
	return preview, nil
}
