package metrics

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// RowCounter reports the number of rows per catalog table.
type RowCounter interface {
	CountRows(ctx context.Context) (map[string]int64, error)
}

// Collector periodically copies catalog row counts into the CatalogRows gauge.
type Collector struct {
	counter  RowCounter
	interval time.Duration
	log      zerolog.Logger
	stopChan chan struct{}
	done     chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(counter RowCounter, interval time.Duration, log zerolog.Logger) *Collector {
	return &Collector{
		counter:  counter,
		interval: interval,
		log:      log,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection and waits for the loop to exit.
func (c *Collector) Stop() {
	close(c.stopChan)
	<-c.done
}

func (c *Collector) collectLoop() {
	defer close(c.done)

	// Collect immediately on start
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.counter == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.interval)
	defer cancel()

	counts, err := c.counter.CountRows(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("failed to collect catalog row counts")
		return
	}

	for table, n := range counts {
		CatalogRows.WithLabelValues(table).Set(float64(n))
	}

	c.log.Debug().Interface("rows", counts).Msg("catalog metrics collected")
}
