package cart

// Reason explains why a mutation was rejected.
type Reason string

const (
	ReasonInvalidProduct  Reason = "invalid_product"
	ReasonInvalidQuantity Reason = "invalid_quantity"
	ReasonNotFound        Reason = "not_found"
)

// Outcome reports whether a mutation changed the cart. A rejected mutation
// leaves the cart untouched; callers are free to ignore it.
type Outcome struct {
	Applied bool   `json:"applied" yaml:"applied"`
	Reason  Reason `json:"reason,omitempty" yaml:"reason,omitempty"`
}

func applied() Outcome { return Outcome{Applied: true} }

func rejected(reason Reason) Outcome { return Outcome{Reason: reason} }

func (o Outcome) String() string {
	if o.Applied {
		return "applied"
	}
	return "rejected: " + string(o.Reason)
}
