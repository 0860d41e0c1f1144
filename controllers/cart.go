package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"flipzone/apperr"
	"flipzone/cart"
	"flipzone/envelope"
	"flipzone/events"
	"flipzone/metrics"
	"flipzone/middleware"
)

const publishTimeout = 2 * time.Second

// CartController handles cart-related requests
type CartController struct {
	Cart      *cart.Store
	Publisher events.Publisher
	Metrics   *metrics.Metrics
	logger    *log.Entry
}

// NewCartController creates a new CartController
func NewCartController(store *cart.Store, publisher events.Publisher, m *metrics.Metrics) *CartController {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &CartController{
		Cart:      store,
		Publisher: publisher,
		Metrics:   m,
		logger:    log.WithField("component", "cart-controller"),
	}
}

// addToCartRequest accepts {"product_id": "<hex>"} and the storefront's older
// {"_id": {"$oid": "<hex>"}} or {"_id": "<hex>"} shapes.
type addToCartRequest struct {
	ProductID string          `json:"product_id"`
	LegacyID  json.RawMessage `json:"_id"`
}

func (req addToCartRequest) productID() (primitive.ObjectID, error) {
	raw := req.ProductID
	if raw == "" && len(req.LegacyID) > 0 {
		var oid struct {
			OID string `json:"$oid"`
		}
		trimmed := bytes.TrimSpace(req.LegacyID)
		if len(trimmed) > 0 && trimmed[0] == '{' {
			if err := json.Unmarshal(trimmed, &oid); err == nil {
				raw = oid.OID
			}
		} else {
			_ = json.Unmarshal(trimmed, &raw)
		}
	}
	return parseID(raw, "Invalid product ID")
}

// AddToCart adds one unit of a product to the caller's cart
func (cc *CartController) AddToCart(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		envelope.Error(w, err)
		return
	}

	var req addToCartRequest
	if err := decodeJSON(r, &req); err != nil {
		envelope.Error(w, err)
		return
	}
	productID, err := req.productID()
	if err != nil {
		envelope.Error(w, err)
		return
	}

	outcome, err := cc.Cart.AddItem(r.Context(), id.UserID, productID)
	cc.respondMutation(w, r, "add", outcome, err, id.UserID, productID)
}

// RemoveFromCart takes one unit of a product out of the caller's cart
func (cc *CartController) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		envelope.Error(w, err)
		return
	}
	productID, err := parseID(mux.Vars(r)["product_id"], "Invalid product ID")
	if err != nil {
		envelope.Error(w, err)
		return
	}

	outcome, err := cc.Cart.RemoveItem(r.Context(), id.UserID, productID)
	cc.respondMutation(w, r, "remove", outcome, err, id.UserID, productID)
}

// GetCart returns the caller's cart lines
func (cc *CartController) GetCart(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		envelope.Error(w, err)
		return
	}
	lines, err := cc.Cart.Lines(r.Context(), id.UserID)
	if err != nil {
		cc.fail(w, "list", err)
		return
	}
	envelope.JSON(w, http.StatusOK, lines)
}

// GetProductCount reports how many units of a product the caller holds. Anonymous
// callers get 0.
func (cc *CartController) GetProductCount(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		envelope.JSON(w, http.StatusOK, map[string]int{"quantity": 0})
		return
	}
	productID, err := parseID(mux.Vars(r)["product_id"], "Invalid product ID")
	if err != nil {
		envelope.Error(w, err)
		return
	}

	n, err := cc.Cart.CountForProduct(r.Context(), id.UserID, productID)
	if err != nil {
		cc.fail(w, "count", err)
		return
	}
	envelope.JSON(w, http.StatusOK, map[string]int{"quantity": n})
}

// GetTotal returns the cart total at captured prices
func (cc *CartController) GetTotal(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		envelope.Error(w, err)
		return
	}
	total, err := cc.Cart.ComputeTotal(r.Context(), id.UserID)
	if err != nil {
		cc.fail(w, "total", err)
		return
	}
	envelope.JSON(w, http.StatusOK, map[string]float64{"total": total})
}

func (cc *CartController) GetSummary(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		envelope.Error(w, err)
		return
	}
	summary, err := cc.Cart.Summary(r.Context(), id.UserID)
	if err != nil {
		cc.fail(w, "summary", err)
		return
	}
	envelope.JSON(w, http.StatusOK, summary)
}

// ClearCart empties the caller's cart
func (cc *CartController) ClearCart(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		envelope.Error(w, err)
		return
	}
	n, err := cc.Cart.Clear(r.Context(), id.UserID)
	if err != nil {
		cc.fail(w, "clear", err)
		return
	}
	if n > 0 {
		e := events.NewEvent(events.TypeCartCleared, id.UserID.Hex(), "")
		e.Count = n
		cc.publish(r.Context(), e)
	}
	envelope.JSON(w, http.StatusOK, envelope.Message{Status: "cleared", Message: "Cart cleared"})
}

func (cc *CartController) respondMutation(w http.ResponseWriter, r *http.Request, op string, outcome cart.Outcome, err error, userID, productID primitive.ObjectID) {
	if err != nil {
		cc.fail(w, op, err)
		return
	}
	if cc.Metrics != nil {
		cc.Metrics.RecordCartMutation(op, string(outcome))
	}
	if eventType, ok := eventTypes[outcome]; ok {
		cc.publish(r.Context(), events.NewEvent(eventType, userID.Hex(), productID.Hex()))
	}
	envelope.JSON(w, http.StatusOK, envelope.Message{Status: string(outcome), Message: outcome.Message()})
}

var eventTypes = map[cart.Outcome]string{
	cart.OutcomeAdded:     events.TypeItemAdded,
	cart.OutcomeUpdated:   events.TypeItemUpdated,
	cart.OutcomeDecreased: events.TypeItemDecreased,
	cart.OutcomeRemoved:   events.TypeItemRemoved,
}

// publish is best effort: the cart write already happened.
func (cc *CartController) publish(ctx context.Context, e events.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := cc.Publisher.Publish(ctx, e); err != nil {
		cc.logger.WithError(err).WithField("type", e.Type).Warn("cart event dropped")
		if cc.Metrics != nil {
			cc.Metrics.RecordEventDropped()
		}
	}
}

func (cc *CartController) fail(w http.ResponseWriter, op string, err error) {
	if cc.Metrics != nil {
		cc.Metrics.RecordCartFailure(op, string(apperr.KindOf(err)))
	}
	envelope.Error(w, err)
}
