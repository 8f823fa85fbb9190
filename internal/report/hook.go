package report

import (
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Collector is a logrus hook feeding every entry with an "event" field at
// info level or above into a Report.
type Collector struct {
	mu  sync.Mutex
	rep *Report
}

func NewCollector() *Collector { return &Collector{rep: New()} }

func (c *Collector) Levels() []logrus.Level {
	return []logrus.Level{logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel, logrus.WarnLevel, logrus.InfoLevel}
}

func (c *Collector) Fire(e *logrus.Entry) error {
	ev, ok := e.Data["event"].(string)
	if !ok || ev == "" {
		return nil
	}
	var fields map[string]string
	for k, v := range e.Data {
		if k == "event" {
			continue
		}
		if fields == nil {
			fields = map[string]string{}
		}
		fields[k] = fmt.Sprint(v)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rep.add(Entry{Time: e.Time.UTC(), Level: e.Level.String(), Event: ev, Message: e.Message, Fields: fields})
	return nil
}

// Finish stamps the report with the run result.
func (c *Collector) Finish(result map[string]int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rep.Finished = time.Now().UTC()
	c.rep.Result = maps.Clone(result)
}

// Report returns a copy of what was collected so far.
func (c *Collector) Report() *Report {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := *c.rep
	out.Result = maps.Clone(c.rep.Result)
	out.Counts = make(map[string]map[string]int, len(c.rep.Counts))
	for ev, m := range c.rep.Counts {
		out.Counts[ev] = maps.Clone(m)
	}
	out.Entries = slices.Clone(c.rep.Entries)
	return &out
}
