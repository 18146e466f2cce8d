package main

import (
	"encoding/json"
	"fmt"
	"html"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"gopkg.in/yaml.v3"

	"github.com/hanko-field/miniapp/internal/cart"
	"github.com/hanko-field/miniapp/internal/domain"
	"github.com/hanko-field/miniapp/internal/initdata"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

type printer struct {
	out    io.Writer
	format string
	strip  *bluemonday.Policy
}

func newPrinter(out io.Writer, format string) (*printer, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	switch format {
	case formatTable, formatJSON, formatYAML:
	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
	return &printer{out: out, format: format, strip: bluemonday.StrictPolicy()}, nil
}

// encode writes v in the structured formats and reports whether it did so.
func (p *printer) encode(v any) (bool, error) {
	switch p.format {
	case formatJSON:
		enc := json.NewEncoder(p.out)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(p.out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return true, err
		}
		return true, enc.Close()
	}
	return false, nil
}

// text renders storefront HTML as a single line of plain text.
func (p *printer) text(s string) string {
	plain := html.UnescapeString(p.strip.Sanitize(s))
	return strings.Join(strings.Fields(plain), " ")
}

func (p *printer) table(headers []string, rows [][]string) error {
	tw := tabwriter.NewWriter(p.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

func (p *printer) products(products []domain.Product) error {
	if products == nil {
		products = []domain.Product{}
	}
	if done, err := p.encode(products); done {
		return err
	}
	rows := make([][]string, 0, len(products))
	for _, product := range products {
		rows = append(rows, []string{
			product.ID.String(),
			p.text(product.Name),
			product.EffectivePrice().String(),
			product.StockStatus,
		})
	}
	return p.table([]string{"ID", "NAME", "PRICE", "STOCK"}, rows)
}

func (p *printer) product(product domain.Product) error {
	if done, err := p.encode(product); done {
		return err
	}
	categories := make([]string, 0, len(product.Categories))
	for _, c := range product.Categories {
		categories = append(categories, p.text(c.Name))
	}
	rows := [][]string{
		{"ID", product.ID.String()},
		{"NAME", p.text(product.Name)},
		{"PRICE", product.EffectivePrice().String()},
		{"REGULAR PRICE", product.RegularPrice.String()},
		{"STOCK", product.StockStatus},
		{"CATEGORIES", strings.Join(categories, ", ")},
		{"IMAGE", product.FirstImageSrc()},
		{"DESCRIPTION", p.text(firstNonEmpty(product.ShortDescription, product.Description))},
	}
	return p.table([]string{"FIELD", "VALUE"}, rows)
}

func (p *printer) categories(categories []domain.Category) error {
	if categories == nil {
		categories = []domain.Category{}
	}
	if done, err := p.encode(categories); done {
		return err
	}
	rows := make([][]string, 0, len(categories))
	for _, c := range categories {
		rows = append(rows, []string{c.ID.String(), p.text(c.Name), fmt.Sprint(c.Count)})
	}
	return p.table([]string{"ID", "NAME", "COUNT"}, rows)
}

func (p *printer) cart(view cart.View) error {
	if view.Items == nil {
		view.Items = []cart.LineItem{}
	}
	if done, err := p.encode(view); done {
		return err
	}
	if view.IsEmpty {
		_, err := fmt.Fprintln(p.out, "cart is empty")
		return err
	}
	rows := make([][]string, 0, len(view.Items)+1)
	for _, item := range view.Items {
		rows = append(rows, []string{
			item.ProductID.String(),
			item.VariationID.String(),
			p.text(item.Name),
			fmt.Sprint(item.Quantity),
			item.Price.String(),
		})
	}
	rows = append(rows, []string{"", "", "TOTAL", fmt.Sprint(view.TotalItems), view.TotalPrice})
	return p.table([]string{"PRODUCT", "VARIATION", "NAME", "QTY", "PRICE"}, rows)
}

type outcomeReport struct {
	Outcome cart.Outcome `json:"outcome" yaml:"outcome"`
	Cart    cart.View    `json:"cart" yaml:"cart"`
}

func (p *printer) outcome(outcome cart.Outcome, view cart.View) error {
	if view.Items == nil {
		view.Items = []cart.LineItem{}
	}
	if done, err := p.encode(outcomeReport{Outcome: outcome, Cart: view}); done {
		return err
	}
	if _, err := fmt.Fprintln(p.out, outcome.String()); err != nil {
		return err
	}
	return p.cart(view)
}

func (p *printer) order(order domain.Order) error {
	if done, err := p.encode(order); done {
		return err
	}
	rows := [][]string{
		{"ORDER", order.ID.String()},
		{"STATUS", order.Status},
		{"TOTAL", strings.TrimSpace(order.Total.String() + " " + order.Currency)},
	}
	if order.OrderKey != "" {
		rows = append(rows, []string{"KEY", order.OrderKey})
	}
	return p.table([]string{"FIELD", "VALUE"}, rows)
}

type initDataReport struct {
	Verification string            `json:"verification" yaml:"verification"`
	Error        string            `json:"error,omitempty" yaml:"error,omitempty"`
	QueryID      string            `json:"query_id,omitempty" yaml:"query_id,omitempty"`
	AuthDate     string            `json:"auth_date,omitempty" yaml:"auth_date,omitempty"`
	User         *initdata.User    `json:"user,omitempty" yaml:"user,omitempty"`
	Language     string            `json:"language,omitempty" yaml:"language,omitempty"`
	Fields       map[string]string `json:"fields" yaml:"fields"`
}

func (r *initDataReport) fill(data initdata.Data) {
	r.QueryID = data.QueryID
	if !data.AuthDate.IsZero() {
		r.AuthDate = data.AuthDate.Format(time.RFC3339)
	}
	r.User = data.User
	if data.User != nil {
		if tag := data.User.Language(); tag.String() != "und" {
			r.Language = tag.String()
		}
	}
	r.Fields = data.Fields
	if r.Fields == nil {
		r.Fields = map[string]string{}
	}
}

func (p *printer) initData(report initDataReport) error {
	if done, err := p.encode(report); done {
		return err
	}
	rows := [][]string{{"verification", report.Verification}}
	if report.Error != "" {
		rows = append(rows, []string{"error", report.Error})
	}
	if report.QueryID != "" {
		rows = append(rows, []string{"query_id", report.QueryID})
	}
	if report.AuthDate != "" {
		rows = append(rows, []string{"auth_date", report.AuthDate})
	}
	if report.User != nil {
		rows = append(rows, []string{"user", fmt.Sprintf("%d %s", report.User.ID, report.User.DisplayName())})
	}
	if report.Language != "" {
		rows = append(rows, []string{"language", report.Language})
	}
	keys := make([]string, 0, len(report.Fields))
	for k := range report.Fields {
		if k == "user" || k == "hash" || k == "query_id" || k == "auth_date" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		rows = append(rows, []string{k, report.Fields[k]})
	}
	return p.table([]string{"FIELD", "VALUE"}, rows)
}
