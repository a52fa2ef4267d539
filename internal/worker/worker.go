package worker

import (
	"context"

	"github.com/pachmu/skill_feed_alert_bot/internal/bot"
	"github.com/pachmu/skill_feed_alert_bot/internal/feed"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// SeenStore is the durable set of links that were already notified.
type SeenStore interface {
	Contains(ctx context.Context, link string) (bool, error)
	Add(ctx context.Context, link string) error
	Close() error
}

// counter is implemented by stores that can report their size.
type counter interface {
	Count(ctx context.Context) (int, error)
}

// StoreOpener opens and initializes the seen store for one scan.
type StoreOpener func(ctx context.Context) (SeenStore, error)

// Matcher returns the configured skills a title mentions.
type Matcher interface {
	Match(title string) []string
}

// Notifier delivers one alert and reports whether it was accepted.
type Notifier interface {
	Notify(ctx context.Context, a bot.Alert) bool
}

// Outcome is the terminal state of an entry within a scan.
type Outcome string

const (
	OutcomeSeen     Outcome = "seen"
	OutcomeNoMatch  Outcome = "no-match"
	OutcomeNotified Outcome = "notified"
	OutcomeFailed   Outcome = "failed"
)

// Report summarizes a finished scan.
type Report struct {
	ScanID   string
	Total    int
	Seen     int
	NoMatch  int
	Notified int
	Failed   int
}

func (r *Report) record(o Outcome) {
	switch o {
	case OutcomeSeen:
		r.Seen++
	case OutcomeNoMatch:
		r.NoMatch++
	case OutcomeNotified:
		r.Notified++
	case OutcomeFailed:
		r.Failed++
	}
}

// Scanner runs the fetch, filter, notify and commit pipeline.
type Scanner struct {
	source   feed.Source
	open     StoreOpener
	matcher  Matcher
	notifier Notifier
	limiter  *rate.Limiter
	log      logrus.FieldLogger
}

// NewScanner returns a Scanner. A nil limiter disables pacing between alerts.
func NewScanner(source feed.Source, open StoreOpener, matcher Matcher, notifier Notifier, limiter *rate.Limiter) *Scanner {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return &Scanner{
		source:   source,
		open:     open,
		matcher:  matcher,
		notifier: notifier,
		limiter:  limiter,
		log:      logrus.StandardLogger(),
	}
}

// Run performs one scan. Errors are returned only for failures that stop the
// whole scan: fetching the feed, opening the store, or reading and writing it.
// A failed alert is logged and retried on the next scan.
func (s *Scanner) Run(ctx context.Context) (Report, error) {
	report := Report{ScanID: uuid.NewString()}
	log := s.log.WithField("scan", report.ScanID)
	log.Info("Scanning for new roles...")

	entries, err := s.source.Fetch(ctx)
	if err != nil {
		return report, errors.Wrap(err, "scan aborted")
	}
	report.Total = len(entries)
	log.Infof("Fetched %d entries", len(entries))

	store, err := s.open(ctx)
	if err != nil {
		return report, errors.Wrap(err, "failed to open seen store")
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Errorf("failed to close seen store: %v", err)
		}
	}()

	for _, e := range entries {
		outcome, err := s.process(ctx, store, e, log.WithField("link", e.Link))
		if err != nil {
			return report, err
		}
		report.record(outcome)
	}

	fields := logrus.Fields{
		"total":    report.Total,
		"seen":     report.Seen,
		"no_match": report.NoMatch,
		"notified": report.Notified,
		"failed":   report.Failed,
	}
	if c, ok := store.(counter); ok {
		if n, err := c.Count(ctx); err == nil {
			fields["stored"] = n
		}
	}
	log.WithFields(fields).Info("Scan complete.")
	return report, nil
}

func (s *Scanner) process(ctx context.Context, store SeenStore, e feed.Entry, log logrus.FieldLogger) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return "", errors.WithStack(err)
	}

	seen, err := store.Contains(ctx, e.Link)
	if err != nil {
		return "", err
	}
	if seen {
		return OutcomeSeen, nil
	}

	skills := s.matcher.Match(e.Title)
	if len(skills) == 0 {
		return OutcomeNoMatch, nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return "", errors.WithStack(err)
	}
	if !s.notifier.Notify(ctx, bot.Alert{Title: e.Title, Link: e.Link, Skills: skills}) {
		log.Warnf("Alert failed, will retry next scan: %s", e.Title)
		return OutcomeFailed, nil
	}

	// The alert is out; record it even if the scan is being cancelled.
	if err := store.Add(context.WithoutCancel(ctx), e.Link); err != nil {
		return "", err
	}
	log.Infof("Alert sent: %s", e.Title)
	return OutcomeNotified, nil
}
