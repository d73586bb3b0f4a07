package domain

// ValidateStock reports whether every requested product has enough stock in
// products. Quantities for the same product are summed. Unknown products are
// unavailable. Names come back in first-requested order.
func ValidateStock(lines []StockLine, products map[string]Product) (bool, []string) {
	wanted := make(map[string]int, len(lines))
	order := make([]string, 0, len(lines))
	for _, l := range lines {
		if _, seen := wanted[l.Product]; !seen {
			order = append(order, l.Product)
		}
		wanted[l.Product] += l.Quantity
	}

	var unavailable []string
	for _, name := range order {
		p, ok := products[name]
		if !ok || wanted[name] > p.Stock {
			unavailable = append(unavailable, name)
		}
	}
	return len(unavailable) == 0, unavailable
}
