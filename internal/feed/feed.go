// Package feed reads job entries from a remote RSS/Atom feed.
package feed

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Entry is one job posting. Link identifies the posting across scans.
type Entry struct {
	Title string
	Link  string
}

// Source produces the current batch of entries.
type Source interface {
	Fetch(ctx context.Context) ([]Entry, error)
}

// RSS fetches entries from a feed URL.
type RSS struct {
	url    string
	parser *gofeed.Parser
	log    logrus.FieldLogger
}

// NewRSS returns a Source reading url with the given request timeout.
func NewRSS(url string, timeout time.Duration) *RSS {
	parser := gofeed.NewParser()
	parser.Client = &http.Client{Timeout: timeout}
	return &RSS{
		url:    url,
		parser: parser,
		log:    logrus.StandardLogger(),
	}
}

// Fetch downloads and parses the feed. Items without any link are dropped.
func (r *RSS) Fetch(ctx context.Context) ([]Entry, error) {
	fd, err := r.parser.ParseURLWithContext(r.url, ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch feed %s", r.url)
	}

	entries := make([]Entry, 0, len(fd.Items))
	for _, item := range fd.Items {
		if item == nil {
			continue
		}
		link := strings.TrimSpace(item.Link)
		if link == "" && len(item.Links) > 0 {
			link = strings.TrimSpace(item.Links[0])
		}
		if link == "" {
			r.log.Warnf("Feed item %q has no link, skipping", item.Title)
			continue
		}
		entries = append(entries, Entry{
			Title: strings.TrimSpace(item.Title),
			Link:  link,
		})
	}
	return entries, nil
}
