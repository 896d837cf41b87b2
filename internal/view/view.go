// Package view shapes store state into what the list and detail screens
// render.
package view

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/fairyhunter13/product-catalog-store/internal/model"
	"github.com/fairyhunter13/product-catalog-store/internal/store"
)

const (
	listTitle   = "Products"
	detailTitle = "Product Detail"
)

// ProductRow is one line of the product list.
type ProductRow struct {
	ID          int    `json:"id"`
	ProductName string `json:"productName"`
	ProductCode string `json:"productCode,omitempty"`
	Price       string `json:"price"`
	Selected    bool   `json:"selected"`
}

// ListView is the product list screen.
type ListView struct {
	PageTitle    string       `json:"pageTitle"`
	Products     []ProductRow `json:"products"`
	SelectedID   int          `json:"selectedId,omitempty"`
	ErrorMessage string       `json:"errorMessage,omitempty"`
}

// DetailView is the product detail screen.
type DetailView struct {
	PageTitle    string         `json:"pageTitle"`
	Product      *model.Product `json:"product,omitempty"`
	Price        string         `json:"price,omitempty"`
	Reviews      []model.Review `json:"reviews,omitempty"`
	Loading      bool           `json:"loading"`
	ErrorMessage string         `json:"errorMessage,omitempty"`
}

// List builds the list screen from st.
func List(st store.State) ListView {
	rows := make([]ProductRow, 0, len(st.Products.Data))
	for _, p := range st.Products.Data {
		rows = append(rows, ProductRow{
			ID:          p.ID,
			ProductName: p.ProductName,
			ProductCode: p.ProductCode,
			Price:       FormatCurrency(p.Price),
			Selected:    p.ID == st.SelectedID,
		})
	}
	return ListView{
		PageTitle:    listTitle,
		Products:     rows,
		SelectedID:   st.SelectedID,
		ErrorMessage: st.Products.Error,
	}
}

// Detail builds the detail screen from st.
func Detail(st store.State) DetailView {
	v := DetailView{
		PageTitle:    detailTitle,
		Loading:      st.DetailLoading,
		ErrorMessage: st.Detail.Error,
	}
	if p := st.Detail.Data; p != nil {
		v.PageTitle = detailTitle + " for: " + p.ProductName
		v.Product = p
		v.Price = FormatCurrency(p.Price)
		v.Reviews = p.Reviews
	}
	return v
}

const dollar = "$"

var usPrinter = message.NewPrinter(language.AmericanEnglish)

// FormatCurrency renders d as US dollars, e.g. "$1,234.50" or "-$3.00".
func FormatCurrency(d decimal.Decimal) string {
	r := d.Round(2)
	amount := usPrinter.Sprint(number.Decimal(r.Abs().InexactFloat64(), number.Scale(2)))
	if r.IsNegative() {
		return "-" + dollar + amount
	}
	return dollar + amount
}
