package main

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/hanko-field/miniapp/internal/cart"
	"github.com/hanko-field/miniapp/internal/domain"
	"github.com/hanko-field/miniapp/internal/initdata"
)

func runProducts(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "products")
	var (
		search   string
		category string
		page     int
		perPage  int
	)
	fs.StringVar(&search, "search", "", "search term")
	fs.StringVar(&category, "category", "", "category id")
	fs.IntVar(&page, "page", 0, "result page")
	fs.IntVar(&perPage, "per-page", 0, "results per page")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	params := url.Values{}
	if search != "" {
		params.Set("search", search)
	}
	if category != "" {
		params.Set("category", category)
	}
	if page > 0 {
		params.Set("page", strconv.Itoa(page))
	}
	if perPage > 0 {
		params.Set("per_page", strconv.Itoa(perPage))
	}

	products, err := a.client.FetchProducts(ctx, params)
	if err != nil {
		return err
	}
	return a.printer.products(products)
}

func runProduct(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	product, err := a.client.FetchProductByID(ctx, domain.ParseScalar(args[0]))
	if err != nil {
		return err
	}
	return a.printer.product(product)
}

func runCategories(ctx context.Context, a *app, args []string) error {
	if len(args) != 0 {
		return errUsage
	}
	categories, err := a.client.FetchCategories(ctx, nil)
	if err != nil {
		return err
	}
	return a.printer.categories(categories)
}

func runCart(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		return a.printer.cart(a.cart.View())
	}

	sub, rest := args[0], args[1:]
	switch sub {
	case "show":
		return a.printer.cart(a.cart.View())
	case "add":
		return runCartAdd(ctx, a, rest)
	case "update":
		return runCartUpdate(ctx, a, rest)
	case "remove":
		return runCartRemove(ctx, a, rest)
	case "clear":
		return a.printer.outcome(a.cart.Apply(ctx, cart.Clear()))
	default:
		return errUsage
	}
}

// runCartAdd fetches the product so the line item carries its current name,
// price and image.
func runCartAdd(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "cart add")
	var (
		quantity  int
		variation string
	)
	fs.IntVar(&quantity, "qty", 1, "quantity to add")
	fs.StringVar(&variation, "variation", "", "variation id")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errUsage
	}

	product, err := a.client.FetchProductByID(ctx, domain.ParseScalar(fs.Arg(0)))
	if err != nil {
		return err
	}
	if variation != "" {
		product.VariationID = domain.ParseScalar(variation)
	}
	return a.printer.outcome(a.cart.Apply(ctx, cart.AddItem(product, quantity)))
}

func runCartUpdate(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "cart update")
	var variation string
	fs.StringVar(&variation, "variation", "", "variation id")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return errUsage
	}
	quantity, err := strconv.Atoi(fs.Arg(1))
	if err != nil {
		return fmt.Errorf("quantity must be an integer: %w", errUsage)
	}
	return a.printer.outcome(a.cart.Apply(ctx, cart.SetQuantity(domain.ParseScalar(fs.Arg(0)), quantity, domain.ParseScalar(variation))))
}

func runCartRemove(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "cart remove")
	var variation string
	fs.StringVar(&variation, "variation", "", "variation id")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errUsage
	}
	return a.printer.outcome(a.cart.Apply(ctx, cart.RemoveItem(domain.ParseScalar(fs.Arg(0)), domain.ParseScalar(variation))))
}

func runCheckout(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "checkout")
	var note, token string
	fs.StringVar(&note, "note", "", "customer note")
	fs.StringVar(&token, "init-data", "", "initData token (defaults to MINIAPP_INIT_DATA)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	payload := &domain.OrderRequest{
		LineItems:    a.cart.LineItems(),
		CustomerNote: firstNonEmpty(note),
	}
	order, err := a.client.CreateOrder(ctx, payload, firstNonEmpty(token, a.cfg.Telegram.InitData))
	if err != nil {
		return err
	}
	a.logger.Info("order created", zap.String("order_id", order.ID.String()), zap.Int("line_items", len(payload.LineItems)))

	a.cart.Apply(ctx, cart.RemoveOrdered(payload.LineItems))
	return a.printer.order(order)
}

func runInitData(_ context.Context, a *app, args []string) error {
	if len(args) == 0 || args[0] != "inspect" {
		return errUsage
	}
	fs := newFlagSet(a, "initdata inspect")
	var (
		botToken string
		maxAge   time.Duration
	)
	fs.StringVar(&botToken, "bot-token", "", "bot token used to verify the hash (defaults to MINIAPP_TELEGRAM_BOT_TOKEN)")
	fs.DurationVar(&maxAge, "max-age", a.cfg.Telegram.InitDataMaxAge, "maximum token age, 0 disables the check")
	if err := parseFlags(fs, args[1:]); err != nil {
		return err
	}
	if fs.NArg() > 1 {
		return errUsage
	}

	raw := firstNonEmpty(fs.Arg(0), a.cfg.Telegram.InitData)
	botToken = firstNonEmpty(botToken, a.cfg.Telegram.BotToken)

	report := initDataReport{}
	var (
		data initdata.Data
		err  error
	)
	if botToken == "" {
		data, err = initdata.Parse(raw)
		report.Verification = "skipped"
	} else {
		data, err = initdata.Validate(raw, botToken, maxAge, time.Now())
		report.Verification = "valid"
		if err != nil {
			report.Verification = "invalid"
			report.Error = err.Error()
		}
	}
	if err != nil && report.Verification != "invalid" {
		return err
	}
	report.fill(data)
	return a.printer.initData(report)
}
