package authz

import (
	"github.com/apiward/oauth1gw/internal/observability"
)

// Gate is the post-authentication permission check.
type Gate struct {
	logger      observability.Logger
	registry    *Registry
	permissions PermissionSet
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithGateLogger sets the logger.
func WithGateLogger(logger observability.Logger) GateOption {
	return func(g *Gate) {
		g.logger = logger
	}
}

// NewGate creates a gate over the registry and permission relation.
func NewGate(registry *Registry, permissions PermissionSet, opts ...GateOption) *Gate {
	g := &Gate{
		logger:      observability.NopLogger(),
		registry:    registry,
		permissions: permissions,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Allow decides whether the consumer may invoke the operation. Operations
// that do not require authentication are always allowed, regardless of the
// permission relation or whether an identity is present.
func (g *Gate) Allow(consumerID, operationID string) bool {
	if !g.registry.RequiresAuth(operationID) {
		return true
	}
	if consumerID == "" {
		return false
	}
	allowed := g.permissions.IsPermitted(consumerID, operationID)
	if !allowed {
		g.logger.Debug("operation denied",
			observability.String("consumer", consumerID),
			observability.String("operation", operationID))
	}
	return allowed
}

// Registry exposes the operation registry for challenge construction.
func (g *Gate) Registry() *Registry {
	return g.registry
}
