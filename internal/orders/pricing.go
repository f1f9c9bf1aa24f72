package orders

// Subtotal sums the line totals using the prices captured on the order.
func Subtotal(items []OrderItem) int {
	total := 0
	for _, it := range items {
		total += it.PriceCents * it.Qty
	}
	return total
}

// Total is subtotal plus shipping. Line prices always come from the catalog
// at reservation time, never from the client.
func Total(items []OrderItem, shippingCents int) int {
	return Subtotal(items) + shippingCents
}
