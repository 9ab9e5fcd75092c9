// Package view renders storefront pages as plain text.
//
// Renderers only read query results and authorization decisions; they never
// call the gateway or touch the cache.
package view

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/Skotchmaster/storefront/internal/authz"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/mutation"
	"github.com/Skotchmaster/storefront/internal/query"
)

const currency = "₹"

func Money(m models.Money) string {
	return currency + humanize.Comma(int64(m))
}

func table(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func header(w io.Writer, title string) {
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, strings.Repeat("=", len([]rune(title))))
}

// status renders the non-success states shared by every page. It reports
// whether the page body should still be drawn.
func status[T any](w io.Writer, r query.Result[T], what string) bool {
	switch r.Status {
	case query.Idle:
		fmt.Fprintf(w, "%s unavailable: not connected\n", what)
		return false
	case query.Loading:
		if !r.HasData {
			fmt.Fprintf(w, "Loading %s...\n", what)
			return false
		}
		fmt.Fprintln(w, "(refreshing)")
	case query.Error:
		if !r.HasData {
			fmt.Fprintf(w, "Could not load %s: %v\n", what, r.Err)
			return false
		}
		fmt.Fprintf(w, "(showing last known %s, refresh failed: %v)\n", what, r.Err)
	}
	if r.Stale {
		fmt.Fprintf(w, "(updated %s)\n", humanize.Time(r.FetchedAt))
	}
	return true
}

func Products(w io.Writer, category string, r query.Result[[]models.Product]) {
	title := "Products"
	if category != "" && category != models.CategoryAll {
		title += " · " + category
	}
	header(w, title)
	fmt.Fprintf(w, "Categories: %s\n\n", strings.Join(models.BrowseCategories(), " | "))
	if !status(w, r, "products") {
		return
	}
	if len(r.Data) == 0 {
		fmt.Fprintln(w, "No products found in this category.")
		return
	}
	tw := table(w)
	fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tPRICE")
	for _, p := range r.Data {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", p.ID, p.Name, p.Category, Money(p.Price))
	}
	tw.Flush()
}

func Product(w io.Writer, r query.Result[models.Option[models.Product]]) {
	if !status(w, r, "product") {
		return
	}
	p, ok := r.Data.Get()
	if !ok {
		fmt.Fprintln(w, "Product not found.")
		return
	}
	header(w, p.Name)
	fmt.Fprintf(w, "Category: %s\nPrice:    %s\nImage:    %s\n", p.Category, Money(p.Price), p.Image.DirectURL())
}

// Cart renders the cart page. While busy (a quantity change in flight) every
// quantity control shows as disabled.
func Cart(w io.Writer, r query.Result[models.CartSummary], busy bool) {
	header(w, "Shopping Cart")
	if !status(w, r, "cart") {
		return
	}
	s := r.Data
	if s.IsEmpty() {
		fmt.Fprintln(w, "Your cart is empty.")
		return
	}
	tw := table(w)
	fmt.Fprintln(tw, "ID\tITEM\tPRICE\tQTY\tSUBTOTAL\t")
	for _, it := range s.Items {
		sub, err := it.Subtotal()
		subText := Money(sub)
		if err != nil {
			subText = "overflow"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t\n",
			it.Product.ID, it.Product.Name, Money(it.Product.Price), quantityControl(it.Quantity, busy), subText)
	}
	tw.Flush()
	fmt.Fprintf(w, "\nItems: %d\nTotal: %s\n", s.TotalItems, Money(s.Total))
}

// quantityControl shows [-] disabled at quantity 1; removal deletes a line.
func quantityControl(qty int64, busy bool) string {
	if busy {
		return fmt.Sprintf("(-) %d (+)", qty)
	}
	if qty <= 1 {
		return fmt.Sprintf("(-) %d [+]", qty)
	}
	return fmt.Sprintf("[-] %d [+]", qty)
}

// ErrRedirectToCart is returned by Checkout when there is nothing to check out.
var ErrRedirectToCart = errors.New("cart is empty")

func Checkout(w io.Writer, r query.Result[models.CartSummary], method models.PaymentMethod, placing bool) error {
	header(w, "Checkout")
	if !status(w, r, "cart") {
		return nil
	}
	if r.Data.IsEmpty() {
		return ErrRedirectToCart
	}
	fmt.Fprintln(w, "Order Summary")
	tw := table(w)
	for _, it := range r.Data.Items {
		sub, _ := it.Subtotal()
		fmt.Fprintf(tw, "  %s x %d\t%s\n", it.Product.Name, it.Quantity, Money(sub))
	}
	fmt.Fprintf(tw, "  Total\t%s\n", Money(r.Data.Total))
	tw.Flush()

	fmt.Fprintln(w, "\nPayment Method")
	for _, m := range models.PaymentMethods {
		mark := "( )"
		if m == method {
			mark = "(x)"
		}
		fmt.Fprintf(w, "  %s %s\n", mark, m.Label())
	}
	if method == models.PaymentUPI {
		fmt.Fprintln(w, "  Scan the QR code with your UPI app to pay, then place the order.")
	}
	if placing {
		fmt.Fprintln(w, "\nPlacing Order...")
	}
	return nil
}

func OrderConfirmation(w io.Writer, r query.Result[models.Order]) {
	if !status(w, r, "order") {
		return
	}
	o := r.Data
	header(w, "Order Confirmed!")
	fmt.Fprintf(w, "Order #%d · %s · %s\n", o.ID, o.Status, o.PaymentMethod.Label())
	orderLines(w, o)
}

func orderLines(w io.Writer, o models.Order) {
	tw := table(w)
	for _, it := range o.Products {
		sub, _ := it.Subtotal()
		fmt.Fprintf(tw, "  %s x %d\t%s\n", it.Product.Name, it.Quantity, Money(sub))
	}
	fmt.Fprintf(tw, "  Total\t%s\n", Money(o.Total))
	tw.Flush()
}

func Orders(w io.Writer, title string, r query.Result[[]models.Order]) {
	header(w, title)
	if !status(w, r, "orders") {
		return
	}
	if len(r.Data) == 0 {
		fmt.Fprintln(w, "No orders yet.")
		return
	}
	tw := table(w)
	fmt.Fprintln(tw, "ORDER\tSTATUS\tPAYMENT\tITEMS\tTOTAL\tOWNER")
	for _, o := range r.Data {
		var items int64
		for _, it := range o.Products {
			items += it.Quantity
		}
		fmt.Fprintf(tw, "#%d\t%s\t%s\t%d\t%s\t%s\n", o.ID, o.Status, o.PaymentMethod, items, Money(o.Total), o.Owner)
	}
	tw.Flush()
}

func Profile(w io.Writer, r query.Result[models.Option[models.UserProfile]]) {
	header(w, "Profile")
	if !status(w, r, "profile") {
		return
	}
	p, ok := r.Data.Get()
	if !ok {
		fmt.Fprintln(w, "No profile saved yet.")
		return
	}
	fmt.Fprintf(w, "Name:    %s\nAddress: %s\nPhone:   %s\n", p.Name, p.Address, p.Phone)
}

func Role(w io.Writer, r query.Result[models.UserRole]) {
	if !status(w, r, "role") {
		return
	}
	fmt.Fprintf(w, "Role: %s\n", r.Data)
}

func AccessDenied(w io.Writer) {
	header(w, "Access Denied")
	fmt.Fprintln(w, "You don't have permission to access this page.")
	fmt.Fprintln(w, "This area is restricted to administrators only.")
}

// Restricted draws body only for a granted decision. An unresolved decision
// draws a neutral placeholder, never the denial screen.
func Restricted(w io.Writer, d authz.Decision, body func(io.Writer)) {
	switch {
	case d.CanRender():
		body(w)
	case d.ShowDenial():
		AccessDenied(w)
	default:
		if d.Err != nil {
			fmt.Fprintf(w, "Checking permissions... (%v)\n", d.Err)
			return
		}
		fmt.Fprintln(w, "Checking permissions...")
	}
}

// Toast is the one-line notice shown after a mutation.
func Toast(w io.Writer, err error, success string) {
	if err == nil {
		fmt.Fprintln(w, success)
		return
	}
	var merr *mutation.Error
	if errors.As(err, &merr) {
		fmt.Fprintf(w, "error: %s\n", merr.Error())
		return
	}
	fmt.Fprintf(w, "error: %v\n", err)
}

// Progress renders an upload progress bar.
func Progress(w io.Writer, pct int) {
	const width = 20
	filled := pct * width / 100
	fmt.Fprintf(w, "\rUploading [%s%s] %3d%%", strings.Repeat("#", filled), strings.Repeat(".", width-filled), pct)
	if pct >= 100 {
		fmt.Fprintln(w)
	}
}
