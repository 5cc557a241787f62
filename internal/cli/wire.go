package cli

import (
	"database/sql"
	"fmt"

	"github.com/mrsingh86/chronicled/internal/chain"
	"github.com/mrsingh86/chronicled/internal/chronicle"
	"github.com/mrsingh86/chronicled/internal/config"
	"github.com/mrsingh86/chronicled/internal/notify"
	"github.com/mrsingh86/chronicled/internal/store"
)

// app bundles the wired services a command needs. Close the db when done.
type app struct {
	cfg     config.Config
	db      *sql.DB
	events  *chronicle.Store
	repo    *store.ChainRepository
	service *chain.Service
	sweeper *chain.Sweeper
}

func openApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	db, err := store.Open(cfg.Paths.DBPath)
	if err != nil {
		return nil, err
	}
	events, err := chronicle.NewStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	repo, err := store.NewChainRepository(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	rules := chain.Rules{
		InternalParties:    cfg.Detection.InternalParties,
		DefaultActionOwner: cfg.Detection.DefaultActionOwner,
		DelayDaysByIssue:   chain.DefaultRules().DelayDaysByIssue,
	}
	opts := []chain.Option{chain.WithRules(rules)}
	if cfg.Notify.Kafka.Enabled {
		if cfg.Notify.Kafka.Brokers == "" {
			db.Close()
			return nil, fmt.Errorf("kafka feed enabled but no brokers configured")
		}
		opts = append(opts, chain.WithFeed(notify.NewKafkaFeed(cfg.Notify.Kafka)))
	}
	var alert chain.Alerter
	if cfg.Notify.Slack.Enabled {
		alert = notify.NewSlackNotifier(cfg.Notify.Slack)
		opts = append(opts, chain.WithAlerter(alert))
	}
	service := chain.NewService(events, repo, opts...)
	sweeper := chain.NewSweeper(repo, chain.SweepConfig{StaleAfter: cfg.Detection.StaleAfter()}, alert)

	return &app{cfg: cfg, db: db, events: events, repo: repo, service: service, sweeper: sweeper}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}
