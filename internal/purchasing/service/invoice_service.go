package service

import (
	"context"

	catrepo "github.com/haldiram/distribution/internal/catalog/repository"
	"github.com/haldiram/distribution/internal/purchasing/repository"
	"github.com/shopspring/decimal"
)

// InvoiceLine one priced line with its GST share.
type InvoiceLine struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	GSTRate   decimal.Decimal `json:"gst_rate"`
	GSTAmount decimal.Decimal `json:"gst_amount"`
}

// Invoice GST breakdown for a purchase order. GST splits evenly into CGST
// and SGST; net_total is rounded to the nearest rupee with the difference
// carried in round_off.
type Invoice struct {
	POID     string          `json:"po_id"`
	POCode   string          `json:"po_code"`
	VendorID string          `json:"vendor_id"`
	Lines    []InvoiceLine   `json:"lines"`
	Subtotal decimal.Decimal `json:"subtotal"`
	GSTTotal decimal.Decimal `json:"gst_total"`
	CGST     decimal.Decimal `json:"cgst"`
	SGST     decimal.Decimal `json:"sgst"`
	RoundOff decimal.Decimal `json:"round_off"`
	NetTotal decimal.Decimal `json:"net_total"`
}

// InvoiceService computes invoice totals off the stored line prices. Money
// math runs on decimals; float fields are only converted at the edges.
type InvoiceService struct {
	poRepo      *repository.PORepository
	productRepo *catrepo.ProductRepository
}

func NewInvoiceService(repos *repository.Repositories, catRepos *catrepo.Repositories) *InvoiceService {
	return &InvoiceService{
		poRepo:      repos.PO,
		productRepo: catRepos.Product,
	}
}

// Generate builds the GST invoice for a purchase order from its stored items
// and each product's master GST rate.
func (s *InvoiceService) Generate(ctx context.Context, poID string) (*Invoice, error) {
	po, err := s.poRepo.FindByID(ctx, poID)
	if err != nil {
		return nil, err
	}

	hundred := decimal.NewFromInt(100)
	subtotal := decimal.Zero
	gstTotal := decimal.Zero

	inv := &Invoice{
		POID:     po.ID,
		POCode:   po.POCode,
		VendorID: po.VendorID,
		Lines:    make([]InvoiceLine, 0, len(po.Items)),
	}
	for _, item := range po.Items {
		product, err := s.productRepo.FindByID(ctx, item.ProductID)
		if err != nil {
			return nil, err
		}
		unitPrice := decimal.NewFromFloat(item.UnitPrice)
		lineSubtotal := unitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		gstRate := decimal.NewFromFloat(product.GSTRate)
		gstAmount := lineSubtotal.Mul(gstRate).Div(hundred).Round(2)

		inv.Lines = append(inv.Lines, InvoiceLine{
			ProductID: item.ProductID,
			Name:      product.Name,
			Quantity:  item.Quantity,
			UnitPrice: unitPrice,
			Subtotal:  lineSubtotal,
			GSTRate:   gstRate,
			GSTAmount: gstAmount,
		})
		subtotal = subtotal.Add(lineSubtotal)
		gstTotal = gstTotal.Add(gstAmount)
	}

	gross := subtotal.Add(gstTotal)
	net := gross.Round(0)

	inv.Subtotal = subtotal
	inv.GSTTotal = gstTotal
	inv.CGST = gstTotal.Div(decimal.NewFromInt(2)).Round(2)
	inv.SGST = gstTotal.Sub(inv.CGST)
	inv.RoundOff = net.Sub(gross)
	inv.NetTotal = net
	return inv, nil
}
