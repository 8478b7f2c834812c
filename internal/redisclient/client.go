package redisclient

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// Client keeps display projections in Redis: lot availability for cart and
// catalog views, and verification markers for fast settlement replays. The
// database stays authoritative; every reader falls back to it on a miss.
type Client struct {
	rdb       *redis.Client
	verifyTTL time.Duration
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db, verifyTTLSec int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{
		rdb:       rdb,
		verifyTTL: time.Duration(verifyTTLSec) * time.Second,
	}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func lotKey(lotID int64) string {
	return fmt.Sprintf("lot:available:%d", lotID)
}

// SetLotAvailability writes a lot's remaining quantity into the projection
func (c *Client) SetLotAvailability(ctx context.Context, lotID int64, available int) error {
	return c.rdb.Set(ctx, lotKey(lotID), available, 0).Err()
}

// GetLotAvailability reads a lot's cached remaining quantity. The second
// return is false on a cache miss.
func (c *Client) GetLotAvailability(ctx context.Context, lotID int64) (int, bool, error) {
	val, err := c.rdb.Get(ctx, lotKey(lotID)).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	available, err := strconv.Atoi(val)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt availability value for lot %d: %w", lotID, err)
	}
	return available, true, nil
}

// DeleteLotAvailability drops a lot from the projection
func (c *Client) DeleteLotAvailability(ctx context.Context, lotID int64) error {
	return c.rdb.Del(ctx, lotKey(lotID)).Err()
}

func verifyKey(orderID int64) string {
	return fmt.Sprintf("order:verified:%d", orderID)
}

// MarkOrderVerified records that an order's payment verification settled, so
// retried verifications can short-circuit without a database round trip
func (c *Client) MarkOrderVerified(ctx context.Context, orderID int64) error {
	return c.rdb.Set(ctx, verifyKey(orderID), "1", c.verifyTTL).Err()
}

// IsOrderVerified reports whether an order carries a verification marker
func (c *Client) IsOrderVerified(ctx context.Context, orderID int64) (bool, error) {
	n, err := c.rdb.Exists(ctx, verifyKey(orderID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
