package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/integrationos/gateway/internal/app/domain"
	"github.com/integrationos/gateway/internal/app/ports"
	"github.com/integrationos/gateway/internal/cache"
)

var (
	// ErrInvalidAccessKey indicates an unknown, inactive or deleted access credential.
	ErrInvalidAccessKey = errors.New("invalid access key")
	// ErrUnknownConnection indicates no usable connection for the tenant and key.
	ErrUnknownConnection = errors.New("unknown connection")
	// ErrInvalidListQuery indicates malformed paging parameters.
	ErrInvalidListQuery = errors.New("invalid list query")
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type AccessStores struct {
	EventAccess           ports.Store[domain.EventAccess]
	Connections           ports.Store[domain.Connection]
	ConnectionDefinitions ports.Store[domain.ConnectionDefinition]
	OAuthDefinitions      ports.Store[domain.FrontendOAuthConnectionDefinition]
	ModelDefinitions      ports.Store[domain.ConnectionModelDefinition]
}

type AccessCaches struct {
	EventAccess           *cache.Cache[string, domain.EventAccess]
	Connections           *cache.Cache[cache.ConnectionKey, domain.Connection]
	ConnectionDefinitions *cache.Cache[cache.FilterKey, domain.ReadResponse[domain.ConnectionDefinition]]
	OAuthDefinitions      *cache.Cache[cache.FilterKey, domain.ReadResponse[domain.FrontendOAuthConnectionDefinition]]
	ModelDefinitions      *cache.Cache[cache.FilterKey, domain.ReadResponse[domain.ConnectionModelDefinition]]
}

// AccessService resolves credentials and configuration through the caches,
// falling back to the stores on a miss. Store misses are never cached.
type AccessService struct {
	stores AccessStores
	caches AccessCaches
}

func NewAccessService(stores AccessStores, caches AccessCaches) *AccessService {
	return &AccessService{stores: stores, caches: caches}
}

// EventAccess resolves an access credential to the identity allowed to use it.
func (s *AccessService) EventAccess(ctx context.Context, credential string) (domain.EventAccess, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return domain.EventAccess{}, ErrInvalidAccessKey
	}
	if access, ok := s.caches.EventAccess.Get(credential); ok {
		return access, nil
	}

	access, err := s.stores.EventAccess.GetOne(ctx, ports.Filter{
		"accessKey": credential,
		"active":    true,
		"deleted":   false,
	})
	if errors.Is(err, ports.ErrNotFound) {
		return domain.EventAccess{}, ErrInvalidAccessKey
	}
	if err != nil {
		return domain.EventAccess{}, fmt.Errorf("lookup event access: %w", err)
	}
	s.caches.EventAccess.Add(credential, access)
	return access, nil
}

// Connection resolves the connection key presented by tenantID.
func (s *AccessService) Connection(ctx context.Context, tenantID, connectionKey string) (domain.Connection, error) {
	key := cache.ConnectionKey{TenantID: strings.TrimSpace(tenantID), Credential: strings.TrimSpace(connectionKey)}
	if key.TenantID == "" || key.Credential == "" {
		return domain.Connection{}, ErrUnknownConnection
	}
	if conn, ok := s.caches.Connections.Get(key); ok {
		return conn, nil
	}

	conn, err := s.stores.Connections.GetOne(ctx, ports.Filter{
		"key":                key.Credential,
		"ownership.clientId": key.TenantID,
		"active":             true,
		"deleted":            false,
	})
	if errors.Is(err, ports.ErrNotFound) {
		return domain.Connection{}, ErrUnknownConnection
	}
	if err != nil {
		return domain.Connection{}, fmt.Errorf("lookup connection: %w", err)
	}
	s.caches.Connections.Add(key, conn)
	return conn, nil
}

// ConnectionDefinitions lists definitions matching query. A nil query lists everything.
func (s *AccessService) ConnectionDefinitions(ctx context.Context, query map[string]string) (domain.ReadResponse[domain.ConnectionDefinition], error) {
	return listCached(ctx, s.stores.ConnectionDefinitions, s.caches.ConnectionDefinitions, query)
}

// OAuthDefinitions lists frontend OAuth definitions matching query.
func (s *AccessService) OAuthDefinitions(ctx context.Context, query map[string]string) (domain.ReadResponse[domain.FrontendOAuthConnectionDefinition], error) {
	return listCached(ctx, s.stores.OAuthDefinitions, s.caches.OAuthDefinitions, query)
}

// ModelDefinitions lists the platform model mappings used by passthrough calls.
func (s *AccessService) ModelDefinitions(ctx context.Context, query map[string]string) (domain.ReadResponse[domain.ConnectionModelDefinition], error) {
	return listCached(ctx, s.stores.ModelDefinitions, s.caches.ModelDefinitions, query)
}

func listCached[T any](
	ctx context.Context,
	store ports.Store[T],
	entries *cache.Cache[cache.FilterKey, domain.ReadResponse[T]],
	query map[string]string,
) (domain.ReadResponse[T], error) {
	key := cache.NewFilterKey(query)
	if page, ok := entries.Get(key); ok {
		return page, nil
	}

	filter, opts, err := parseListQuery(query)
	if err != nil {
		return domain.ReadResponse[T]{}, err
	}
	rows, err := store.GetMany(ctx, filter, opts)
	if err != nil {
		return domain.ReadResponse[T]{}, fmt.Errorf("list documents: %w", err)
	}
	total, err := store.Count(ctx, filter)
	if err != nil {
		return domain.ReadResponse[T]{}, fmt.Errorf("count documents: %w", err)
	}

	page := domain.ReadResponse[T]{Rows: rows, Total: total, Skip: opts.Skip, Limit: opts.Limit}
	entries.Add(key, page)
	return page, nil
}

// parseListQuery splits paging parameters from equality filters. Boolean literals filter as booleans.
func parseListQuery(query map[string]string) (ports.Filter, ports.ListOptions, error) {
	filter := ports.Filter{"deleted": false}
	opts := ports.ListOptions{Limit: defaultListLimit}
	for key, value := range query {
		switch key {
		case "limit":
			limit, err := strconv.ParseInt(value, 10, 64)
			if err != nil || limit <= 0 {
				return nil, opts, fmt.Errorf("%w: limit %q", ErrInvalidListQuery, value)
			}
			opts.Limit = min(limit, maxListLimit)
		case "skip":
			skip, err := strconv.ParseInt(value, 10, 64)
			if err != nil || skip < 0 {
				return nil, opts, fmt.Errorf("%w: skip %q", ErrInvalidListQuery, value)
			}
			opts.Skip = skip
		default:
			if strings.HasPrefix(key, "$") {
				return nil, opts, fmt.Errorf("%w: field %q", ErrInvalidListQuery, key)
			}
			switch value {
			case "true":
				filter[key] = true
			case "false":
				filter[key] = false
			default:
				filter[key] = value
			}
		}
	}
	return filter, opts, nil
}
