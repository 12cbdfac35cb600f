/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package conciliacion

import (
	"context"
	"embed"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"github.com/Dussand/conciliacion-Gmoney/config"
	"github.com/Dussand/conciliacion-Gmoney/converter"
	"github.com/Dussand/conciliacion-Gmoney/database"
	"github.com/Dussand/conciliacion-Gmoney/ingest"
	"github.com/Dussand/conciliacion-Gmoney/internal/cache"
	redis_db "github.com/Dussand/conciliacion-Gmoney/internal/redis-db"
	"github.com/Dussand/conciliacion-Gmoney/matcher"
	"github.com/Dussand/conciliacion-Gmoney/model"
	"github.com/Dussand/conciliacion-Gmoney/table"
)

//go:embed sql/*.sql
var SQLFiles embed.FS

var tracer = otel.Tracer("conciliacion.reconcile")

// Converter turns the provider's text export into a table.
type Converter interface {
	ConvertTable(ctx context.Context, filename string, export io.Reader) (*table.Table, error)
}

// SummaryPublisher hands the per-date summary rows to the logging webhook.
type SummaryPublisher interface {
	PublishSummaries(ctx context.Context, payloads []model.SummaryPayload) error
}

// Conciliacion runs reconciliations and serves their results.
type Conciliacion struct {
	cnf        *config.Configuration
	datasource database.IDataSource
	cache      cache.Cache
	publisher  SummaryPublisher
	locks      redis.UniversalClient
	converter  Converter
	matcher    *matcher.Matcher
	ledger     ingest.SourceSpec
	provider   ingest.SourceSpec
	policy     ingest.WindowPolicy
	now        func() time.Time
}

type Option func(*Conciliacion)

// WithCache replaces the Redis report cache.
func WithCache(c cache.Cache) Option {
	return func(r *Conciliacion) { r.cache = c }
}

// WithLocks sets the Redis client holding the per-operator run locks.
func WithLocks(client redis.UniversalClient) Option {
	return func(r *Conciliacion) { r.locks = client }
}

// WithPublisher replaces the asynq summary queue.
func WithPublisher(p SummaryPublisher) Option {
	return func(r *Conciliacion) { r.publisher = p }
}

// WithConverter replaces the conversion webhook client.
func WithConverter(c Converter) Option {
	return func(r *Conciliacion) { r.converter = c }
}

// WithClock sets the time source used for windows and run timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Conciliacion) { r.now = now }
}

// NewConciliacion builds a Conciliacion from the loaded configuration. Redis is
// only dialed for the cache, locks and queue that were not supplied through opts.
//
// Parameters:
// - db database.IDataSource: Where run summaries are stored.
// - opts ...Option: Replacements for the default collaborators.
//
// Returns:
// - *Conciliacion: The ready instance.
// - error: An error if the configuration is invalid or Redis is unreachable.
func NewConciliacion(db database.IDataSource, opts ...Option) (*Conciliacion, error) {
	cnf, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	c, err := NewOffline(cnf)
	if err != nil {
		return nil, err
	}
	c.datasource = db
	for _, opt := range opts {
		opt(c)
	}

	if c.cache == nil || c.locks == nil {
		redisClient, err := redis_db.NewRedisClient([]string{cnf.Redis.Dns}, cnf.Redis.SkipTLSVerify)
		if err != nil {
			return nil, fmt.Errorf("error connecting to redis: %w", err)
		}
		if c.cache == nil {
			c.cache = cache.NewCache(redisClient.Client())
		}
		if c.locks == nil {
			c.locks = redisClient.Client()
		}
	}
	if c.publisher == nil {
		queue, err := NewQueue(cnf)
		if err != nil {
			return nil, err
		}
		c.publisher = queue
	}
	return c, nil
}

// NewOffline builds a Conciliacion that can only Compare: nothing is persisted,
// cached or published.
func NewOffline(cnf *config.Configuration) (*Conciliacion, error) {
	rc := cnf.Reconciliation

	m, err := matcher.New(matcherOptions(rc))
	if err != nil {
		return nil, fmt.Errorf("invalid matcher configuration: %w", err)
	}

	cutoff := config.DEFAULT_CUTOFF_HOUR
	if rc.CutoffHour != nil {
		cutoff = *rc.CutoffHour
	}
	policy, err := ingest.LoadWindowPolicy(rc.TimeZone, cutoff, rc.LagDays)
	if err != nil {
		return nil, err
	}

	ledger := sourceSpec(m.Options().A.Name, rc.Ledger)
	provider := sourceSpec(m.Options().B.Name, rc.Provider)
	for _, spec := range []ingest.SourceSpec{ledger, provider} {
		if err := spec.Validate(); err != nil {
			return nil, fmt.Errorf("invalid %s source: %w", spec.Name, err)
		}
	}

	retryElapsed := time.Duration(cnf.Converter.MaxRetryElapsedMs) * time.Millisecond
	conv := converter.New(cnf.Converter.Url, time.Duration(cnf.Converter.Timeout)*time.Second,
		converter.WithRetry(500*time.Millisecond, retryElapsed))

	return &Conciliacion{
		cnf:       cnf,
		converter: conv,
		matcher:   m,
		ledger:    ledger,
		provider:  provider,
		policy:    policy,
		now:       time.Now,
	}, nil
}

func matcherOptions(rc config.ReconciliationConfig) matcher.Options {
	opts := matcher.DefaultOptions()
	opts.A = matcherSource(opts.A, rc.Ledger)
	opts.B = matcherSource(opts.B, rc.Provider)
	if rc.AggregateJoin != "" {
		opts.AggregateJoin = matcher.JoinMode(rc.AggregateJoin)
	}
	return opts
}

func matcherSource(def matcher.Source, sc config.SourceConfig) matcher.Source {
	src := def
	if sc.Label != "" {
		src.Label = sc.Label
	}
	if sc.DateColumn != "" {
		src.DateColumn = sc.DateColumn
	}
	if sc.AmountColumn != "" {
		src.AmountColumn = sc.AmountColumn
	}
	if sc.Suffix != "" {
		src.Suffix = sc.Suffix
	}
	return src
}

func sourceSpec(name string, sc config.SourceConfig) ingest.SourceSpec {
	return ingest.SourceSpec{
		Name:            name,
		IDColumn:        sc.IDColumn,
		AmountColumn:    sc.AmountColumn,
		DateColumn:      sc.DateColumn,
		TimestampColumn: sc.TimestampColumn,
		HourColumn:      sc.HourColumn,
		StatusColumn:    sc.StatusColumn,
		SettledStatuses: sc.SettledStatuses,
		TextColumns:     sc.TextColumns,
		DropColumns:     sc.DropColumns,
		ApplyWindow:     sc.ApplyWindow != nil && *sc.ApplyWindow,
	}
}

// Matcher returns the matcher runs use, for rendering labels.
func (c *Conciliacion) Matcher() *matcher.Matcher {
	return c.matcher
}
