package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nifastore/nifa/internal/format"
	"github.com/nifastore/nifa/internal/model"
	"github.com/nifastore/nifa/internal/store"
)

// Notifier fans catalog news out to every stored subscription and prunes
// subscriptions the push service reports as gone.
type Notifier struct {
	service *Service
	subs    *store.PushStore
	logger  *slog.Logger
}

func NewNotifier(svc *Service, subs *store.PushStore, logger *slog.Logger) *Notifier {
	return &Notifier{service: svc, subs: subs, logger: logger}
}

func productPayload(p model.Product) Payload {
	return Payload{
		Title: "Novidade em " + p.Category,
		Body:  p.ProductName + " por " + format.Currency(p.PriceClients),
		URL:   fmt.Sprintf("/products/%d", p.ID),
		Tag:   fmt.Sprintf("product-%d", p.ID),
	}
}

// NotifyNewProduct announces p and returns how many deliveries succeeded.
func (n *Notifier) NotifyNewProduct(ctx context.Context, p model.Product) int {
	subs, err := n.subs.ListAll()
	if err != nil {
		n.logger.Error("list subscriptions", "error", err)
		return 0
	}

	payload := productPayload(p)
	sent := 0
	for i := range subs {
		sub := &subs[i]
		err := n.service.Send(ctx, sub, payload)
		switch {
		case err == nil:
			sent++
		case errors.Is(err, ErrExpired):
			if err := n.subs.DeleteByEndpoint(sub.Endpoint); err != nil {
				n.logger.Error("prune subscription", "id", sub.ID, "error", err)
			} else {
				n.logger.Info("pruned expired subscription", "id", sub.ID)
			}
		default:
			n.logger.Warn("push delivery failed", "id", sub.ID, "error", err)
		}
	}

	n.logger.Info("new product announced", "product_id", p.ID, "sent", sent, "subscriptions", len(subs))
	return sent
}
