package access

import (
	"context"
	"fmt"
	"net/http"

	"shop-service/internal/apperr"
	"shop-service/internal/models"
	"shop-service/internal/util"
)

// Verb is the class of an operation.
type Verb int

const (
	Safe Verb = iota
	Unsafe
)

func (v Verb) String() string {
	if v == Safe {
		return "safe"
	}
	return "unsafe"
}

// VerbOf classifies an HTTP method.
func VerbOf(method string) Verb {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return Safe
	default:
		return Unsafe
	}
}

// RuleKind selects the decision procedure of a Rule.
type RuleKind int

const (
	KindAuthenticatedOrReadOnly RuleKind = iota
	KindResourceOwner
	KindShopScoped
	KindOrderScoped
)

// Rule is a named permission rule attached to an endpoint.
type Rule struct {
	Kind RuleKind
	Name string
}

var (
	// AuthenticatedOrReadOnly lets anyone read and any signed-in user write.
	AuthenticatedOrReadOnly = Rule{Kind: KindAuthenticatedOrReadOnly, Name: "authenticated_or_read_only"}
	// ResourceOwner lets anyone read and only the resource owner write.
	ResourceOwner = Rule{Kind: KindResourceOwner, Name: "resource_owner"}
	// ShopScoped lets anyone read and only the owner of the path's shop write.
	ShopScoped = Rule{Kind: KindShopScoped, Name: "shop_scoped"}
	// OrderScoped gates line items by the path's order according to the Policy.
	OrderScoped = Rule{Kind: KindOrderScoped, Name: "order_scoped"}
)

// Scope is what the rule is evaluated against: the owner of an already
// loaded resource, or identifiers taken from the request path.
type Scope struct {
	Owner   Owner
	ShopID  *int64
	OrderID *int64
}

func ForResource(owner Owner) Scope { return Scope{Owner: owner} }

func ForShop(shopID int64) Scope { return Scope{ShopID: &shopID} }

func ForOrder(orderID int64) Scope { return Scope{OrderID: &orderID} }

// Policy decides who may read line items.
type Policy int

const (
	// PolicyPermissiveRead lets the shop owner read, never write, line items
	// of orders placed in their shop.
	PolicyPermissiveRead Policy = iota
	// PolicyStrict restricts line items to the order owner.
	PolicyStrict
)

func (p Policy) String() string {
	if p == PolicyStrict {
		return "strict"
	}
	return "permissive-read"
}

// ParsePolicy parses "strict" or "permissive-read".
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "strict":
		return PolicyStrict, nil
	case "permissive-read", "":
		return PolicyPermissiveRead, nil
	default:
		return 0, fmt.Errorf("unknown line item policy %q", s)
	}
}

// Lookup resolves parents named in a request path. Missing rows must be
// reported as apperr.NotFound.
type Lookup interface {
	GetShop(ctx context.Context, id int64) (*models.Shop, error)
	GetOrder(ctx context.Context, id int64) (*models.Order, error)
}

// Evaluator applies rules. It has no side effects besides parent lookups.
type Evaluator struct {
	lookup Lookup
	policy Policy
}

func NewEvaluator(lookup Lookup, policy Policy) *Evaluator {
	return &Evaluator{lookup: lookup, policy: policy}
}

func (e *Evaluator) Policy() Policy { return e.policy }

// Authorize returns nil when the actor may perform the verb. A parent that
// does not exist yields apperr.NotFound, never PermissionDenied.
func (e *Evaluator) Authorize(ctx context.Context, actor Actor, verb Verb, rule Rule, scope Scope) error {
	err := e.authorize(ctx, actor, verb, rule, scope)
	if err != nil && apperr.KindOf(err) != apperr.KindNotFound {
		util.PermissionDenialsTotal.WithLabelValues(rule.Name, apperr.KindOf(err).String()).Inc()
	}
	return err
}

func (e *Evaluator) authorize(ctx context.Context, actor Actor, verb Verb, rule Rule, scope Scope) error {
	switch rule.Kind {
	case KindAuthenticatedOrReadOnly:
		if verb == Safe {
			return nil
		}
		return requireAuthenticated(actor)

	case KindResourceOwner:
		if verb == Safe {
			return nil
		}
		return requireOwner(actor, scope.Owner)

	case KindShopScoped:
		if verb == Safe || scope.ShopID == nil {
			return nil
		}
		shop, err := e.lookup.GetShop(ctx, *scope.ShopID)
		if err != nil {
			return err
		}
		return requireOwner(actor, OwnerOfShop(shop))

	case KindOrderScoped:
		if scope.OrderID == nil {
			return nil
		}
		order, err := e.lookup.GetOrder(ctx, *scope.OrderID)
		if err != nil {
			return err
		}
		if OwnerOfOrder(order).Is(actor) {
			return nil
		}
		if verb == Safe && e.policy == PolicyPermissiveRead && actor.Authenticated {
			shop, err := e.lookup.GetShop(ctx, order.ShopID)
			if err != nil {
				return err
			}
			if OwnerOfShop(shop).Is(actor) {
				return nil
			}
		}
		return requireOwner(actor, NoOwner)
	}

	return fmt.Errorf("unknown rule kind %d", rule.Kind)
}

func requireAuthenticated(actor Actor) error {
	if !actor.Authenticated {
		return apperr.Unauthenticated("authentication credentials were not provided")
	}
	return nil
}

func requireOwner(actor Actor, owner Owner) error {
	if err := requireAuthenticated(actor); err != nil {
		return err
	}
	if !owner.Is(actor) {
		return apperr.PermissionDenied("%s is not permitted to perform this action", actor)
	}
	return nil
}
