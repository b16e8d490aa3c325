package domain

const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// Principal is the authenticated caller handed over by the auth layer.
type Principal struct {
	UserID string
	Role   string
}

func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// Owns reports whether the principal placed the order.
func (p Principal) Owns(o *Order) bool { return o != nil && o.CustomerID == p.UserID }
