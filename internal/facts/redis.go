package facts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/stevehiehn/deployspec/internal/deployment"
	dserrors "github.com/stevehiehn/deployspec/internal/errors"
)

// DefaultPrefix namespaces fact documents in Redis.
const DefaultPrefix = "deployspec:facts"

// Redis reads JSON fact documents kept per hierarchy level, portfolio down to build.
// Every level present is merged over Base, more specific levels winning.
type Redis struct {
	Client redis.UniversalClient
	Prefix string
	Base   Provider
}

// NewRedis connects to addr. base may be nil.
func NewRedis(addr, prefix string, base Provider) *Redis {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Redis{
		Client: redis.NewClient(&redis.Options{Addr: addr}),
		Prefix: prefix,
		Base:   base,
	}
}

// Key is the document key of d at scope.
func (r *Redis) Key(d deployment.Details, scope deployment.Scope) string {
	parts := []string{r.Prefix, d.Client, d.Portfolio}
	switch scope {
	case deployment.ScopeApp:
		parts = append(parts, d.App)
	case deployment.ScopeBranch:
		parts = append(parts, d.App, d.BranchShortName())
	case deployment.ScopeBuild, "":
		parts = append(parts, d.App, d.BranchShortName(), d.Build)
	}
	return strings.Join(parts, ":")
}

func (r *Redis) GetFacts(ctx context.Context, d deployment.Details) (Facts, error) {
	base := Facts{}
	if r.Base != nil {
		var err error
		if base, err = r.Base.GetFacts(ctx, d); err != nil {
			return nil, err
		}
	}

	var layers []Facts
	for _, sc := range []deployment.Scope{deployment.ScopePortfolio, deployment.ScopeApp, deployment.ScopeBranch, deployment.ScopeBuild} {
		key := r.Key(d, sc)
		raw, err := r.Client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, dserrors.NewFactsError(fmt.Sprintf("reading facts %s", key), err)
		}
		var layer Facts
		if err := json.Unmarshal(raw, &layer); err != nil {
			return nil, dserrors.NewFactsError(fmt.Sprintf("decoding facts %s", key), err)
		}
		layers = append(layers, layer)
	}
	return Merge(base, layers...)
}

// Put stores f as the document of d at scope.
func (r *Redis) Put(ctx context.Context, d deployment.Details, scope deployment.Scope, f Facts) error {
	raw, err := json.Marshal(f)
	if err != nil {
		return dserrors.NewFactsError("encoding facts", err)
	}
	if err := r.Client.Set(ctx, r.Key(d, scope), raw, 0).Err(); err != nil {
		return dserrors.NewFactsError("writing facts", err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.Client.Close()
}
