package cart

// Outcome is the result of a successful cart mutation
type Outcome string

const (
	OutcomeAdded         Outcome = "added"
	OutcomeUpdated       Outcome = "updated"
	OutcomeLimitExceeded Outcome = "limit_exceeded"
	OutcomeDecreased     Outcome = "decreased"
	OutcomeRemoved       Outcome = "removed"
)

// Message returns the text shown to the shopper.
func (o Outcome) Message() string {
	switch o {
	case OutcomeAdded:
		return "Product added to cart"
	case OutcomeUpdated:
		return "Quantity updated in the cart"
	case OutcomeLimitExceeded:
		return "Quantity Limit exceeded"
	case OutcomeDecreased:
		return "Quantity decreased in the cart"
	case OutcomeRemoved:
		return "Product removed from cart"
	}
	return ""
}

// Changed reports whether the outcome mutated the cart
func (o Outcome) Changed() bool {
	return o != OutcomeLimitExceeded && o != ""
}
