package state

import (
	"context"
	"fmt"
	"log/slog"
)

// LineItem is one cart product entry, keyed by product id.
type LineItem struct {
	ID       string
	Name     string
	Image    string
	Category string
	Price    float64
	Quantity int
}

// Cart is the specialized writer over the container's write primitive.
//
// Every operation recomputes the cart aggregates by folding over all line
// items and commits the result as a shallow-replace of the entire cart key.
// Shallow-replace is what makes removal stick: a deep-merged delete would be
// resurrected by concurrent deep-merge traffic.
type Cart struct {
	c *Container
}

// Cart returns the cart writer for this container.
func (c *Container) Cart() *Cart {
	return &Cart{c: c}
}

// Add inserts a new line item, or increments the quantity of an existing one
// by the requested amount (default 1), recomputing its subtotal and the cart
// aggregates. A missing product id is a validation error: logged, dropped.
func (k *Cart) Add(ctx context.Context, item LineItem) error {
	if item.ID == "" {
		err := newValidationError("cart add requires a product id")
		slog.Warn("cart operation dropped", "error", err)
		return err
	}
	return k.c.applyCart(ctx, cartOp{kind: cartOpAdd, item: item})
}

// Remove deletes the line item and recomputes aggregates. Removing an id
// that is not in the cart is a no-op write.
func (k *Cart) Remove(ctx context.Context, id string) error {
	if id == "" {
		err := newValidationError("cart remove requires a product id")
		slog.Warn("cart operation dropped", "error", err)
		return err
	}
	return k.c.applyCart(ctx, cartOp{kind: cartOpRemove, id: id})
}

// SetQuantity updates a line item's quantity and subtotal. A quantity below
// one behaves as Remove.
func (k *Cart) SetQuantity(ctx context.Context, id string, qty int) error {
	if id == "" {
		err := newValidationError("cart setQuantity requires a product id")
		slog.Warn("cart operation dropped", "error", err)
		return err
	}
	return k.c.applyCart(ctx, cartOp{kind: cartOpSetQuantity, id: id, qty: qty})
}

// applyCart runs one cart operation through the single write entry point.
// Before readiness the descriptor is queued; cart ops cannot be captured as
// payloads early because they fold over the hydrated cart.
func (c *Container) applyCart(ctx context.Context, op cartOp) error {
	c.mu.Lock()
	if !c.ready {
		c.pendingCart.Append(op)
		queued := c.pendingCart.Len()
		c.mu.Unlock()
		slog.Debug("cart operation queued before readiness", "pending", queued)
		return nil
	}

	c.updating.Store(true)
	next := Copy(c.tree)
	if err := applyCartOp(next, op); err != nil {
		c.updating.Store(false)
		c.mu.Unlock()
		slog.Warn("cart operation dropped", "error", err)
		return err
	}
	c.tree = next
	c.updating.Store(false)

	n := c.makeNotificationLocked(NotifyUpdated)
	subs := c.subscribersLocked()
	c.mu.Unlock()

	c.persistState(ctx, n.Tree)

	for _, fn := range subs {
		fn(n)
	}
	return nil
}

// applyCartOp rebuilds the cart key of dst for one operation. The whole cart
// section is substituted, which is the shallow-replace discipline scoped to
// exactly the key being replaced.
func applyCartOp(dst Tree, op cartOp) error {
	products := cartProducts(dst)

	switch op.kind {
	case cartOpAdd:
		if op.item.ID == "" {
			return newValidationError("cart add requires a product id")
		}
		qty := op.item.Quantity
		if qty < 1 {
			qty = 1
		}
		if line, ok := products[op.item.ID].(Tree); ok {
			newQty := asFloat(line["quantity"]) + float64(qty)
			price := asFloat(line["price"])
			line["quantity"] = newQty
			line["subtotal"] = price * newQty
		} else {
			products[op.item.ID] = Tree{
				"id":       op.item.ID,
				"name":     op.item.Name,
				"image":    op.item.Image,
				"category": op.item.Category,
				"price":    op.item.Price,
				"quantity": float64(qty),
				"subtotal": op.item.Price * float64(qty),
			}
		}

	case cartOpRemove:
		delete(products, op.id)

	case cartOpSetQuantity:
		if op.qty < 1 {
			delete(products, op.id)
			break
		}
		line, ok := products[op.id].(Tree)
		if !ok {
			return newValidationError(fmt.Sprintf("cart setQuantity: no line item %q", op.id))
		}
		line["quantity"] = float64(op.qty)
		line["subtotal"] = asFloat(line["price"]) * float64(op.qty)

	default:
		return fmt.Errorf("unknown cart operation: %d", op.kind)
	}

	dst["cart"] = foldCart(products)
	return nil
}

// cartProducts extracts a mutable copy-safe products map from the tree's
// cart section. A missing or malformed section yields an empty map.
func cartProducts(t Tree) Tree {
	cart, ok := t["cart"].(Tree)
	if !ok {
		return Tree{}
	}
	products, ok := cart["products"].(Tree)
	if !ok {
		return Tree{}
	}
	return products
}

// foldCart recomputes cart aggregates over all surviving line items:
// productCount = sum of quantities, subTotal = sum of line subtotals,
// total = subTotal (no tax or shipping modeled).
func foldCart(products Tree) Tree {
	var count, subTotal float64
	for _, v := range products {
		line, ok := v.(Tree)
		if !ok {
			continue
		}
		count += asFloat(line["quantity"])
		subTotal += asFloat(line["subtotal"])
	}
	return Tree{
		"productCount": count,
		"products":     products,
		"subTotal":     subTotal,
		"total":        subTotal,
	}
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}
