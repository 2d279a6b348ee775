// Package access decides who may do what. Ownership is derived by walking
// from a resource to its parent; nothing here touches storage except through
// the Lookup the Evaluator is given.
package access

import (
	"fmt"

	"shop-service/internal/models"
)

// Actor is the user a request acts on behalf of.
type Actor struct {
	UserID        int64
	Authenticated bool
}

// Anonymous is an unauthenticated actor.
var Anonymous = Actor{}

// User returns an authenticated actor.
func User(id int64) Actor {
	return Actor{UserID: id, Authenticated: true}
}

func (a Actor) String() string {
	if !a.Authenticated {
		return "anonymous"
	}
	return fmt.Sprintf("user:%d", a.UserID)
}

// Owner is the accountable owner of a resource. The zero value is NoOwner.
type Owner struct {
	userID int64
	valid  bool
}

// NoOwner is the owner of an order whose client was removed.
var NoOwner = Owner{}

// OwnedBy returns an owner for a user id.
func OwnedBy(userID int64) Owner {
	return Owner{userID: userID, valid: true}
}

// Is reports whether the actor is this owner. NoOwner never matches and an
// anonymous actor never matches.
func (o Owner) Is(a Actor) bool {
	return o.valid && a.Authenticated && o.userID == a.UserID
}

// UserID returns the owner's id and false for NoOwner.
func (o Owner) UserID() (int64, bool) {
	return o.userID, o.valid
}

func OwnerOfShop(s *models.Shop) Owner {
	return OwnedBy(s.OwnerID)
}

// OwnerOfProduct resolves through the product's shop. A shop that is not the
// product's parent resolves to NoOwner.
func OwnerOfProduct(p *models.Product, shop *models.Shop) Owner {
	if shop == nil || p.ShopID != shop.ID {
		return NoOwner
	}
	return OwnerOfShop(shop)
}

func OwnerOfOrder(o *models.Order) Owner {
	if o.ClientID == nil {
		return NoOwner
	}
	return OwnedBy(*o.ClientID)
}

// OwnerOfLineItem resolves through the item's order.
func OwnerOfLineItem(li *models.LineItem, order *models.Order) Owner {
	if order == nil || li.OrderID != order.ID {
		return NoOwner
	}
	return OwnerOfOrder(order)
}
