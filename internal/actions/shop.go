package actions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	cartapp "github.com/dmehra2102/shop-assistant/internal/cart/application"
	invapp "github.com/dmehra2102/shop-assistant/internal/inventory/application"
	invdomain "github.com/dmehra2102/shop-assistant/internal/inventory/domain"
	orderapp "github.com/dmehra2102/shop-assistant/internal/order/application"
	orderdomain "github.com/dmehra2102/shop-assistant/internal/order/domain"
)

type Catalog interface {
	Search(ctx context.Context, query string) ([]invdomain.Product, error)
}

type Carts interface {
	AddItem(ctx context.Context, userID, product string, quantity int) (cartapp.Summary, error)
	View(ctx context.Context, userID string) (cartapp.View, error)
}

type Orders interface {
	PlaceOrder(ctx context.Context, userID string) (orderapp.Confirmation, error)
	Status(ctx context.Context, orderID string) (orderdomain.Order, error)
}

// Shop returns every shop action wired to the given services.
func Shop(log *slog.Logger, catalog Catalog, carts Carts, orders Orders) []Action {
	return []Action{
		SearchProduct{log: log, catalog: catalog},
		AddToCart{log: log, carts: carts},
		ViewCart{log: log, carts: carts},
		PlaceOrder{log: log, orders: orders},
		OrderStatus{log: log, orders: orders},
		FAQ{},
		Fallback{},
	}
}

type SearchProduct struct {
	log     *slog.Logger
	catalog Catalog
}

func (SearchProduct) Name() string { return "action_search_product" }

func (a SearchProduct) Run(ctx context.Context, t Tracker) []Message {
	query := t.Slot("product")
	products, err := a.catalog.Search(ctx, query)
	switch {
	case errors.Is(err, invapp.ErrMissingProduct):
		return say("Could you please specify what product you're looking for?")
	case err != nil:
		return say("An error occurred while searching for products. Please try again later.")
	case len(products) == 0:
		return say(fmt.Sprintf("Sorry, I couldn't find %s in our store.", invdomain.NormalizeName(query)))
	}

	found := make([]string, 0, len(products))
	for _, p := range products {
		found = append(found, fmt.Sprintf("• %s:\n  Price: %s\n  Stock: %d units\n  ID: %s\n",
			p.Name, money(p.Price), p.Stock, p.ID))
	}
	return say("Here's what I found:\n\n" + strings.Join(found, "\n"))
}

type AddToCart struct {
	log   *slog.Logger
	carts Carts
}

func (AddToCart) Name() string  { return "action_add_to_cart" }
func (AddToCart) Mutates() bool { return true }

func (a AddToCart) Run(ctx context.Context, t Tracker) []Message {
	qty, err := t.Quantity()
	if err != nil {
		return say("Please provide a valid quantity.")
	}
	product := invdomain.NormalizeName(t.Slot("product"))

	sum, err := a.carts.AddItem(ctx, t.SenderID, product, qty)
	var limit *cartapp.StockLimitError
	switch {
	case errors.Is(err, cartapp.ErrMalformedQuantity):
		return say("Please provide a valid quantity.")
	case errors.Is(err, cartapp.ErrMissingProduct):
		return say("Please specify the product you want to add.")
	case errors.Is(err, invdomain.ErrProductNotFound):
		return say(fmt.Sprintf("Sorry, %s is not available.", product))
	case errors.As(err, &limit):
		return say(fmt.Sprintf("Sorry, only %d units available.", limit.Available))
	case err != nil:
		return say("An error occurred while adding the product to your cart.")
	}

	if sum.Merged {
		return say(fmt.Sprintf("Updated %s quantity to %d in your cart.", product, sum.Line.Quantity))
	}
	return say(fmt.Sprintf("Added %d %s(s) to your cart.", qty, product))
}

type ViewCart struct {
	log   *slog.Logger
	carts Carts
}

func (ViewCart) Name() string { return "action_view_cart" }

func (a ViewCart) Run(ctx context.Context, t Tracker) []Message {
	v, err := a.carts.View(ctx, t.SenderID)
	switch {
	case errors.Is(err, cartapp.ErrEmptyCart):
		return say("Your cart is empty.")
	case err != nil:
		return say("An error occurred while retrieving your cart.")
	}

	var b strings.Builder
	b.WriteString("🛒 Your Cart:\n\n")
	for _, l := range v.Lines {
		status := "✅ In Stock"
		if !l.InStock {
			status = fmt.Sprintf("⚠️ Only %d available", l.Available)
		}
		fmt.Fprintf(&b, "• %s\n  Quantity: %d\n  Price: %s each\n  Subtotal: %s\n  Status: %s\n\n",
			title(l.Product), l.Quantity, money(l.UnitPrice), money(l.Subtotal), status)
	}
	fmt.Fprintf(&b, "\nTotal: %s", money(v.Total))
	if v.HasShortage {
		b.WriteString("\n\n⚠️ Some items have insufficient stock. Please update quantities.")
	}
	return say(b.String())
}

type PlaceOrder struct {
	log    *slog.Logger
	orders Orders
}

func (PlaceOrder) Name() string  { return "action_place_order" }
func (PlaceOrder) Mutates() bool { return true }

func (a PlaceOrder) Run(ctx context.Context, t Tracker) []Message {
	conf, err := a.orders.PlaceOrder(ctx, t.SenderID)
	var short *orderapp.InsufficientStockError
	switch {
	case errors.Is(err, orderapp.ErrEmptyCart):
		return say("Your cart is empty.")
	case errors.As(err, &short):
		lines := make([]string, 0, len(short.Products))
		for _, p := range short.Products {
			lines = append(lines, "• "+p)
		}
		return say("Cannot place order. These items have insufficient stock:\n" + strings.Join(lines, "\n"))
	case errors.Is(err, orderapp.ErrTransactionFailed):
		return say("Failed to place order. Please try again.")
	case err != nil:
		a.log.Error("unexpected place order error", "user_id", t.SenderID, "err", err)
		return say("An error occurred while placing your order. Please try again later.")
	}

	return say(fmt.Sprintf("✅ Order placed successfully!\n\n"+
		"Order ID: %s\n"+
		"Total Amount: %s\n\n"+
		"You will receive a confirmation email shortly.\n"+
		"Track your order status using the order ID.", conf.OrderID, money(conf.TotalAmount)))
}

type OrderStatus struct {
	log    *slog.Logger
	orders Orders
}

func (OrderStatus) Name() string { return "action_order_status" }

func (a OrderStatus) Run(ctx context.Context, t Tracker) []Message {
	o, err := a.orders.Status(ctx, t.Slot("order_id"))
	switch {
	case errors.Is(err, orderapp.ErrMissingOrderID):
		return say("Please provide your order ID.")
	case errors.Is(err, orderdomain.ErrOrderNotFound):
		return say("I couldn't find any order with that ID.")
	case err != nil:
		return say("An error occurred while retrieving order status. Please try again later.")
	}
	return say(formatOrder(o))
}

func formatOrder(o orderdomain.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Order Status %s\n\n", o.Status.Emoji())
	fmt.Fprintf(&b, "Order ID: %s\n", o.ID)
	fmt.Fprintf(&b, "Status: %s\n", title(string(o.Status)))
	fmt.Fprintf(&b, "Placed on: %s\n", o.CreatedAt.UTC().Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "Total Amount: %s\n\n", money(o.TotalAmount))
	b.WriteString("Items:\n")
	for _, it := range o.Items {
		fmt.Fprintf(&b, "• %s\n  Quantity: %d\n  Price: %s\n", title(it.Product), it.Quantity, money(it.UnitPrice))
	}
	if o.Status == orderdomain.StatusShipped {
		tracking := o.TrackingNumber
		if tracking == "" {
			tracking = "N/A"
		}
		fmt.Fprintf(&b, "\nTracking Number: %s", tracking)
	}
	return b.String()
}

var faqAnswers = map[string]string{
	"shipping": "Our standard shipping takes 3-5 business days.",
	"returns":  "You can return your product within 30 days of purchase.",
	"payment":  "We accept credit cards, debit cards, and PayPal.",
}

type FAQ struct{}

func (FAQ) Name() string { return "action_faq" }

func (FAQ) Run(_ context.Context, t Tracker) []Message {
	if answer, ok := faqAnswers[strings.ToLower(t.Slot("faq_topic"))]; ok {
		return say(answer)
	}
	return say("Could you please specify your query? For example, you can ask about shipping, returns, or payment.")
}

type Fallback struct{}

func (Fallback) Name() string { return "action_nlu_fallback" }

func (Fallback) Run(context.Context, Tracker) []Message {
	return say("I'm sorry, I didn't understand that. Can you try rephrasing your question?")
}
