package models

import (
	"fmt"
	"math"
	"time"
)

// Role is the closed set of roles a user can hold.
type Role int

const (
	RoleUnknown Role = iota
	RoleBuyer
	RoleSeller
)

func ParseRole(s string) (Role, error) {
	switch s {
	case "buyer":
		return RoleBuyer, nil
	case "seller":
		return RoleSeller, nil
	default:
		return RoleUnknown, fmt.Errorf("unknown role %q", s)
	}
}

func (r Role) String() string {
	switch r {
	case RoleBuyer:
		return "buyer"
	case RoleSeller:
		return "seller"
	default:
		return "unknown"
	}
}

func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Version is the optimistic concurrency token of a stored record.
// Every successful write increments it.
type Version int64

// Denominations lists the accepted coins, largest first.
var Denominations = [...]int{100, 50, 20, 10, 5}

const SmallestDenomination = 5

// MaxAmount bounds balances, prices and stock to the range of the INTEGER
// columns they are stored in.
const MaxAmount = math.MaxInt32

func IsDenomination(coin int) bool {
	for _, d := range Denominations {
		if d == coin {
			return true
		}
	}
	return false
}

type User struct {
	ID        int       `json:"id"`
	Username  string    `json:"username"`
	Password  string    `json:"-"`
	Role      Role      `json:"role"`
	Balance   int       `json:"deposit"`
	Version   Version   `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Product struct {
	ID        int       `json:"id"`
	Name      string    `json:"productName"`
	SellerID  int       `json:"sellerId"`
	Stock     int       `json:"amountAvailable"`
	Price     int       `json:"cost"`
	Version   Version   `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Principal is the already authenticated caller of a core operation.
type Principal struct {
	ID   int
	Role Role
}

type PurchaseResult struct {
	TotalSpent       int     `json:"totalSpent"`
	PurchasedProduct Product `json:"purchasedProduct"`
	Change           []int   `json:"change"`
}
