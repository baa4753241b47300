package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/DoMinHoo/Du-An-Tot-Nghiep--sub000/internal/domain"
	apperrors "github.com/DoMinHoo/Du-An-Tot-Nghiep--sub000/pkg/errors"
)

// saveIfVersionScript writes the cart only when the stored version still
// matches the caller's expectation. An absent key counts as version 0.
var saveIfVersionScript = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
local expected = tonumber(ARGV[2])
if current then
	local decoded = cjson.decode(current)
	if tonumber(decoded['version']) ~= expected then
		return 0
	end
elseif expected ~= 0 then
	return 0
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
return 1
`)

// CartRepository implements repository.CartRepository using Redis. Carts are
// stored as JSON blobs keyed by owner identity with a sliding TTL.
type CartRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCartRepository creates a new Redis-backed cart repository.
func NewCartRepository(client *redis.Client, ttl time.Duration) *CartRepository {
	return &CartRepository{
		client: client,
		ttl:    ttl,
	}
}

// Get retrieves the cart for the given owner.
func (r *CartRepository) Get(ctx context.Context, owner domain.Identity) (*domain.Cart, error) {
	data, err := r.client.Get(ctx, owner.Key()).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, apperrors.NotFound("cart", owner.Key())
		}
		return nil, fmt.Errorf("redis get cart: %w", err)
	}

	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("unmarshal cart: %w", err)
	}
	return &cart, nil
}

// Save persists the cart with the configured TTL.
func (r *CartRepository) Save(ctx context.Context, owner domain.Identity, cart *domain.Cart) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart: %w", err)
	}

	if err := r.client.Set(ctx, owner.Key(), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set cart: %w", err)
	}
	return nil
}

// SaveIfVersion persists the cart only when the stored version still equals
// expectedVersion. The check and the write run in one Redis script, so two
// concurrent editors cannot both win.
func (r *CartRepository) SaveIfVersion(ctx context.Context, owner domain.Identity, cart *domain.Cart, expectedVersion int64) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart: %w", err)
	}

	ok, err := saveIfVersionScript.Run(ctx, r.client,
		[]string{owner.Key()}, data, expectedVersion, r.ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("redis save cart: %w", err)
	}
	if ok == 0 {
		return domain.ErrStaleState
	}
	return nil
}

// Delete removes the cart for the given owner.
func (r *CartRepository) Delete(ctx context.Context, owner domain.Identity) error {
	if err := r.client.Del(ctx, owner.Key()).Err(); err != nil {
		return fmt.Errorf("redis del cart: %w", err)
	}
	return nil
}
