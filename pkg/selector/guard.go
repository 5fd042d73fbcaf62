package selector

import (
	"context"

	"github.com/relayai/relay-oss/internal/resilience"
)

// GuardedClient wraps a ChatClient with a circuit breaker so a failing
// endpoint is backed off instead of being hit on every routing decision.
type GuardedClient struct {
	client  ChatClient
	breaker *resilience.Breaker
}

// NewGuardedClient wraps the given client. A nil breaker gets the default
// configuration.
func NewGuardedClient(client ChatClient, breaker *resilience.Breaker) *GuardedClient {
	if breaker == nil {
		breaker = resilience.NewBreaker(resilience.DefaultBreakerConfig())
	}
	return &GuardedClient{client: client, breaker: breaker}
}

// Complete implements ChatClient.
func (g *GuardedClient) Complete(ctx context.Context, prompt string) (string, error) {
	var answer string
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		answer, err = g.client.Complete(ctx, prompt)
		return err
	})
	return answer, err
}
