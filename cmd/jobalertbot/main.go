package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/pachmu/skill_feed_alert_bot/config"
	"github.com/pachmu/skill_feed_alert_bot/internal/bot"
	"github.com/pachmu/skill_feed_alert_bot/internal/db"
	"github.com/pachmu/skill_feed_alert_bot/internal/feed"
	"github.com/pachmu/skill_feed_alert_bot/internal/match"
	"github.com/pachmu/skill_feed_alert_bot/internal/worker"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

var configPath = flag.String("config", "", "Path to optional config file")

func main() {
	flag.Parse()
	conf, err := config.GetConfig(*configPath)
	if err != nil {
		logrus.Fatal(err)
	}
	setupLogging(conf.Log)

	notifier, err := bot.NewTelegramNotifier(conf.Bot)
	if err != nil {
		logrus.Fatal(err)
	}

	var limiter *rate.Limiter
	if conf.Scan.Pacing > 0 {
		limiter = rate.NewLimiter(rate.Every(conf.Scan.Pacing), 1)
	}
	openStore := func(ctx context.Context) (worker.SeenStore, error) {
		s, err := db.NewSQLiteDB(ctx, conf.Sqlite.Datasource)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	matcher := match.New(conf.Scan.Skills)
	logrus.Infof("Watching %s for skills %v", conf.Feed.URL, matcher.Skills())
	scanner := worker.NewScanner(
		feed.NewRSS(conf.Feed.URL, conf.Feed.Timeout),
		openStore,
		matcher,
		notifier,
		limiter,
	)

	ctx, cancel := context.WithCancel(context.Background())
	errGr, ctx := errgroup.WithContext(ctx)
	errGr.Go(func() error {
		quitCh := make(chan os.Signal, 1)
		signal.Notify(quitCh, os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
		defer signal.Stop(quitCh)
		select {
		case sig := <-quitCh:
			logrus.Warnf("Received %s, stopping scan", sig)
		case <-ctx.Done():
		}

		cancel()
		return nil
	})

	errGr.Go(func() error {
		defer cancel()
		_, err := scanner.Run(ctx)
		return err
	})

	if err := errGr.Wait(); err != nil {
		logrus.Fatal(err)
	}
}

func setupLogging(conf config.Log) {
	if conf.JSON {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(conf.Level)
	if err != nil {
		logrus.Warnf("Unknown log level %q, using info", conf.Level)
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}
