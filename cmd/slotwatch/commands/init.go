package commands

import (
	"context"
	"fmt"
	"slotwatch/internal/components/chrono"
	"slotwatch/internal/components/telemetry"
	"slotwatch/internal/job"
	"slotwatch/internal/notify"
	"slotwatch/internal/notify/emailnotify"
	"slotwatch/internal/notify/natsnotify"
	"slotwatch/internal/notify/snsnotify"
	"slotwatch/internal/scrapers/page"
	"slotwatch/internal/slots"
	"slotwatch/internal/store/dynamo"
	"slotwatch/internal/store/redisstore"
	"slotwatch/internal/store/sqlstore"
	"slotwatch/lib/awsutil"
	"slotwatch/lib/restyutil"
)

type closeFunc func()

func noopClose() {}

func initScraper(config Config, dump restyutil.Output, tel telemetry.API) (page.Client, error) {
	err := config.ValidateScrape()
	if err != nil {
		return page.Client{}, err
	}
	return page.NewClient(page.Options{
		Url:              config.Page.Url,
		Selector:         config.Page.Selector,
		UserAgent:        config.Page.UserAgent,
		Timeout:          config.Page.Timeout(),
		CloudflareBypass: config.Page.CloudflareBypass,
		Dump:             dump,
	}, tel)
}

// slotStore is what the commands need from a backend, every backend can also be listed.
type slotStore interface {
	slots.Store
	slots.Lister
}

func initStore(ctx context.Context, config Config, clock chrono.API, tel telemetry.API) (slotStore, closeFunc, error) {
	err := config.ValidateStore()
	if err != nil {
		return nil, nil, err
	}

	switch config.Store.Kind {
	case StoreDynamo:
		cfg, err := awsutil.Load(ctx, config.Store.Dynamo.Aws)
		if err != nil {
			return nil, nil, err
		}
		return dynamo.New(cfg, config.Store.Dynamo.Aws, config.Store.Dynamo.Table, tel), noopClose, nil
	case StoreSqlite:
		s, err := sqlstore.Open(config.Store.Sqlite.Path, clock, tel)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return s, func() { s.Close() }, nil
	case StoreRedis:
		s := redisstore.Open(config.Store.Redis, clock, tel)
		return s, func() { s.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown store kind '%s'", config.Store.Kind)
}

func initNotifier(ctx context.Context, config Config, tel telemetry.API) (slots.Notifier, closeFunc, error) {
	err := config.ValidateNotify()
	if err != nil {
		return nil, nil, err
	}

	switch config.Notify.Kind {
	case NotifyLog:
		return notify.NewLogNotifier(tel), noopClose, nil
	case NotifySns:
		cfg, err := awsutil.Load(ctx, config.Notify.Sns.Aws)
		if err != nil {
			return nil, nil, err
		}
		return snsnotify.New(cfg, config.Notify.Sns.Aws, config.Notify.Sns.TopicArn, tel), noopClose, nil
	case NotifyEmail:
		return emailnotify.NewNotifier(config.Notify.Email, tel), noopClose, nil
	case NotifyNats:
		n, closer, err := natsnotify.Connect(config.Notify.Nats, tel)
		if err != nil {
			return nil, nil, err
		}
		return n, closer, nil
	}
	return nil, nil, fmt.Errorf("unknown notify kind '%s'", config.Notify.Kind)
}

// initRunner wires everything a full run needs, the returned close function releases the
// store and notifier connections.
func initRunner(ctx context.Context, config Config, clock chrono.API, tel telemetry.API) (job.Runner, closeFunc, error) {
	err := config.Validate()
	if err != nil {
		return job.Runner{}, nil, err
	}

	scraper, err := initScraper(config, nil, tel)
	if err != nil {
		return job.Runner{}, nil, err
	}
	store, closeStore, err := initStore(ctx, config, clock, tel)
	if err != nil {
		return job.Runner{}, nil, err
	}
	notifier, closeNotifier, err := initNotifier(ctx, config, tel)
	if err != nil {
		closeStore()
		return job.Runner{}, nil, err
	}

	runner := job.NewRunner(scraper, store, notifier, tel)
	return runner, func() {
		closeNotifier()
		closeStore()
	}, nil
}
