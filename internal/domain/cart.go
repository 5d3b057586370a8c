package domain

// CartLine is one entry in a cart. Item is a snapshot of the catalog item at
// the time it was added: catalog price changes later do not retroactively
// change the line. Quantity never drops below 1; removal is how a line
// leaves the cart.
type CartLine struct {
	Item          CatalogItem `json:"item" bson:"item"`
	Quantity      int         `json:"quantity" bson:"quantity"`
	SelectedColor string      `json:"selected_color,omitempty" bson:"selected_color,omitempty"`
}

// Matches reports whether the line has the given line identity. Two lines
// with the same item id but different selected colors are distinct entries.
func (l CartLine) Matches(id, color string) bool {
	return l.Item.ID == id && l.SelectedColor == color
}

// Subtotal is the snapshotted price times quantity, before any offer.
func (l CartLine) Subtotal() float64 {
	return l.Item.Price * float64(l.Quantity)
}
