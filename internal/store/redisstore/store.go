// Package redisstore keeps every slot as a `<prefix><slot>` key holding the unix time it was
// first seen.
package redisstore

import (
	"context"
	"fmt"
	"slices"
	"slotwatch/internal/components/assert"
	"slotwatch/internal/components/chrono"
	"slotwatch/internal/components/telemetry"
	"slotwatch/internal/slots"
	"strings"

	"github.com/redis/go-redis/v9"
)

const (
	report_store_lookup = "store.lookup"
	report_store_put    = "store.put"
	report_store_list   = "store.list"
)

const DefaultPrefix = "slotwatch:timeslot:"

type Config struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	Prefix   string `json:"prefix"`
}

type Store struct {
	client *redis.Client
	prefix string
	time   chrono.API
	tel    telemetry.API
}

func Open(cfg Config, time chrono.API, tel telemetry.API) Store {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewStore(client, cfg.Prefix, time, tel)
}

func NewStore(client *redis.Client, prefix string, time chrono.API, tel telemetry.API) Store {
	assert.NotNil(client)
	assert.NotNil(time)
	assert.NotNil(tel)

	if prefix == "" {
		prefix = DefaultPrefix
	}
	return Store{
		client: client,
		prefix: prefix,
		time:   time,
		tel:    telemetry.NewScopedAPI("redisstore", tel),
	}
}

func (s Store) Close() error {
	return s.client.Close()
}

func (s Store) Lookup(ctx context.Context, ids []string) (slots.Lookup, error) {
	if len(ids) == 0 {
		return slots.Lookup{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.prefix + id
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		s.tel.ReportBroken(report_store_lookup, err, len(ids))
		return slots.Lookup{}, fmt.Errorf("mget: %w", err)
	}

	var out slots.Lookup
	for i, v := range values {
		if v == nil {
			continue
		}
		out.Confirmed = append(out.Confirmed, ids[i])
	}
	slices.Sort(out.Confirmed)
	out.Confirmed = slices.Compact(out.Confirmed)
	return out, nil
}

// Put sets every key that does not exist yet in one pipeline.
func (s Store) Put(ctx context.Context, ids []string) error {
	now := s.time.Now().Unix()
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ids {
			pipe.SetNX(ctx, s.prefix+id, now, 0)
		}
		return nil
	})
	if err != nil {
		s.tel.ReportBroken(report_store_put, err, len(ids))
		return fmt.Errorf("pipelined setnx: %w", err)
	}
	return nil
}

func (s Store) List(ctx context.Context) ([]string, error) {
	out := []string{}
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		out = append(out, strings.TrimPrefix(iter.Val(), s.prefix))
	}
	err := iter.Err()
	if err != nil {
		s.tel.ReportBroken(report_store_list, err)
		return nil, fmt.Errorf("scan: %w", err)
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}
