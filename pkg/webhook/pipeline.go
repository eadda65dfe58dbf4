package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/go-github/v84/github"
	"github.com/heathcliff26/hookguard/pkg/ipfilter"
	"golang.org/x/sync/errgroup"
)

// GitHub rejects payloads above 25MB
const MaxPayloadSize = 25 << 20

// Delivery is a single inbound webhook request, as received.
type Delivery struct {
	Event      string
	DeliveryID string
	Signature  string
	// Raw request body, the signature is computed over these exact bytes
	Body     []byte
	ClientIP string
	Owner    string
}

// SourceValidator decides if a caller address may deliver webhooks.
type SourceValidator interface {
	IsAllowed(ctx context.Context, ip string) bool
}

// Pipeline runs the checks a webhook request has to pass before it is dispatched.
type Pipeline struct {
	secret   string
	owners   *OwnerAuthorizer
	resolver ipfilter.ClientIPResolver
	source   SourceValidator

	verify func(body []byte, signature string, secret string) bool
}

// Create a new pipeline. When source is nil, the caller address is not validated.
func NewPipeline(secret string, owners *OwnerAuthorizer, resolver ipfilter.ClientIPResolver, source SourceValidator) *Pipeline {
	return &Pipeline{
		secret:   secret,
		owners:   owners,
		resolver: resolver,
		source:   source,
		verify:   VerifySignature,
	}
}

// Verify reads the request and checks that it is complete, comes from an allowed owner,
// carries a valid signature and, if enabled, originates from an allowed address.
// The owner is always checked before the signature.
func (p *Pipeline) Verify(ctx context.Context, req *http.Request) (*Delivery, error) {
	delivery, err := ReadDelivery(req)
	if err != nil {
		return nil, err
	}
	delivery.ClientIP = p.resolver.Resolve(req)

	// The source check only records its result, so an authentication failure always takes precedence
	sourceAllowed := true

	g, gctx := errgroup.WithContext(ctx)
	if p.source != nil {
		g.Go(func() error {
			sourceAllowed = p.source.IsAllowed(gctx, delivery.ClientIP)
			return nil
		})
	}
	g.Go(func() error {
		return p.authenticate(delivery)
	})

	err = g.Wait()
	if err != nil {
		return nil, err
	}
	if !sourceAllowed {
		return nil, ErrSourceNotAllowed
	}
	return delivery, nil
}

func (p *Pipeline) authenticate(delivery *Delivery) error {
	decision := p.owners.Authorize(delivery.Owner)
	switch decision.Result {
	case MissingOwner:
		return &ShapeError{Field: "repository.owner.login"}
	case Denied:
		return &AuthorizationError{Owner: delivery.Owner, Reason: decision.Reason}
	}

	if !p.verify(delivery.Body, delivery.Signature, p.secret) {
		return ErrAuthenticity
	}
	return nil
}

// ReadDelivery extracts the webhook headers and the raw body from req.
// All headers are checked before the body is read.
func ReadDelivery(req *http.Request) (*Delivery, error) {
	delivery := &Delivery{
		Event:      github.WebHookType(req),
		DeliveryID: github.DeliveryID(req),
		Signature:  req.Header.Get(github.SHA256SignatureHeader),
	}
	switch {
	case delivery.Signature == "":
		return nil, &ShapeError{Field: github.SHA256SignatureHeader}
	case delivery.Event == "":
		return nil, &ShapeError{Field: "X-GitHub-Event"}
	case delivery.DeliveryID == "":
		return nil, &ShapeError{Field: "X-GitHub-Delivery"}
	}

	body, err := io.ReadAll(io.LimitReader(req.Body, MaxPayloadSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	if len(body) > MaxPayloadSize {
		return nil, ErrPayloadTooLarge
	}
	if len(body) == 0 {
		return nil, &ShapeError{Field: "body"}
	}
	delivery.Body = body
	delivery.Owner = ownerLogin(body)

	return delivery, nil
}

// Decode only the owner, the raw body stays untouched for signature verification
func ownerLogin(body []byte) string {
	var payload struct {
		Repository struct {
			Owner struct {
				Login string `json:"login"`
			} `json:"owner"`
		} `json:"repository"`
	}
	err := json.Unmarshal(body, &payload)
	if err != nil {
		slog.Debug("Failed to decode repository owner from payload", slog.String("err", err.Error()))
		return ""
	}
	return payload.Repository.Owner.Login
}
