package web

import (
	"net/http"
	"sync"
	"time"

	"cyclecal/internal/ics"
	appLog "cyclecal/internal/log"
	"cyclecal/internal/model"
)

const feedName = "Cycle"

// feedCache holds the last rendered iCalendar body. It is valid for one
// (today, condensed) pair until the next state change. A body rendered
// before an invalidation is never stored.
type feedCache struct {
	mu        sync.Mutex
	gen       uint64
	valid     bool
	today     model.Date
	condensed bool
	body      string
}

// get returns the cached body on a hit, and the generation a fresh
// render must be stored under on a miss.
func (c *feedCache) get(today model.Date, condensed bool) (string, uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.valid || !c.today.Equal(today) || c.condensed != condensed {
		return "", c.gen, false
	}
	return c.body, c.gen, true
}

func (c *feedCache) set(gen uint64, today model.Date, condensed bool, body string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	c.valid, c.today, c.condensed, c.body = true, today, condensed, body
}

func (c *feedCache) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.valid = false
	c.body = ""
}

// renderFeed builds the feed body for today.
func (s *Server) renderFeed(today model.Date, condensed bool) string {
	return ics.Feed(s.tracker.Overlays(today, condensed), ics.FeedOptions{
		Name:  feedName,
		Stamp: time.Now(),
	})
}

// warmFeed rebuilds the cached feed for the default view.
func (s *Server) warmFeed() {
	today := s.today()
	_, gen, _ := s.feed.get(today, s.cfg.CondensedLabels)
	body := s.renderFeed(today, s.cfg.CondensedLabels)
	s.feed.set(gen, today, s.cfg.CondensedLabels, body)
	appLog.Debug("feed cache rebuilt", "today", today.String(), "bytes", len(body))
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	today, ok := s.todayParam(w, r)
	if !ok {
		return
	}
	condensed := s.condensedParam(r)

	body, gen, hit := s.feed.get(today, condensed)
	if !hit {
		body = s.renderFeed(today, condensed)
		s.feed.set(gen, today, condensed, body)
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}
