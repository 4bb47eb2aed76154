// Command sse_load opens many price stream subscribers against a running simulator and reports
// how many snapshot and price events they receive, plus the observed delivery lag.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"
)

type counters struct {
	connected   atomic.Int64
	connectErrs atomic.Int64
	streamErrs  atomic.Int64
	snapshots   atomic.Int64
	prices      atomic.Int64
	lagMillis   atomic.Int64
}

type priceEvent struct {
	Asset string `json:"asset"`
	TS    int64  `json:"ts"`
}

func main() {
	var (
		targetURL    string
		connections  int
		testDuration time.Duration
		rampUp       time.Duration
	)

	flag.StringVar(&targetURL, "url", "http://localhost:8080/api/prices/stream", "price stream endpoint URL")
	flag.IntVar(&connections, "conns", 1000, "number of concurrent subscribers to open")
	flag.DurationVar(&testDuration, "dur", 60*time.Second, "test duration (0 for until interrupted)")
	flag.DurationVar(&rampUp, "ramp", 0, "spread subscriber starts across this window")
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	if connections <= 0 {
		logger.Fatal("invalid conns", zap.Int("conns", connections))
	}
	if rampUp == 0 && connections > 100 {
		// 1 second per 500 subscribers
		rampUp = max(time.Duration(connections/500)*time.Second, time.Second)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if testDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, testDuration)
		defer cancel()
	}

	logger.Info("starting price stream load",
		zap.String("url", targetURL),
		zap.Int("conns", connections),
		zap.Duration("duration", testDuration),
		zap.Duration("ramp", rampUp))

	client := &http.Client{
		Transport: &http.Transport{
			MaxConnsPerHost:     connections + 100,
			MaxIdleConns:        connections + 100,
			MaxIdleConnsPerHost: connections + 100,
			DisableCompression:  true,
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
		},
	}

	var (
		c     counters
		wg    sync.WaitGroup
		start = time.Now()
	)

	var interval time.Duration
	if rampUp > 0 {
		interval = rampUp / time.Duration(connections)
	}

	go report(ctx, logger, &c, start)

	for i := 0; i < connections && ctx.Err() == nil; i++ {
		if i > 0 && interval > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(interval):
			}
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			subscribe(ctx, client, targetURL, &c)
		}()
	}

	wg.Wait()

	elapsed := max(time.Since(start), time.Millisecond)
	prices := c.prices.Load()
	var avgLag time.Duration
	if prices > 0 {
		avgLag = time.Duration(c.lagMillis.Load()/prices) * time.Millisecond
	}
	fmt.Printf("done: connected=%d connect_errs=%d stream_errs=%d snapshots=%d prices=%d prices/s=%.2f avg_lag=%s\n",
		c.connected.Load(),
		c.connectErrs.Load(),
		c.streamErrs.Load(),
		c.snapshots.Load(),
		prices,
		float64(prices)/elapsed.Seconds(),
		avgLag,
	)
	if c.connectErrs.Load() > 0 {
		os.Exit(1)
	}
}

func subscribe(ctx context.Context, client *http.Client, url string, c *counters) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		c.connectErrs.Add(1)
		return
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() == nil {
			c.connectErrs.Add(1)
		}
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.connectErrs.Add(1)
		return
	}
	c.connected.Add(1)

	reader := bufio.NewReader(resp.Body)
	var event string
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if ctx.Err() == nil {
				c.streamErrs.Add(1)
			}
			return
		}
		line = strings.TrimRight(line, "\r\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			observe(event, strings.TrimPrefix(line, "data: "), c)
		}
	}
}

func observe(event, data string, c *counters) {
	switch event {
	case "snapshot":
		c.snapshots.Add(1)
	case "price":
		var p priceEvent
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			c.streamErrs.Add(1)
			return
		}
		c.prices.Add(1)
		if p.TS > 0 {
			c.lagMillis.Add(max(time.Now().UnixMilli()-p.TS, 0))
		}
	}
}

func report(ctx context.Context, logger *zap.Logger, c *counters, start time.Time) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logger.Info("status",
				zap.Int64("connected", c.connected.Load()),
				zap.Int64("connect_errs", c.connectErrs.Load()),
				zap.Int64("stream_errs", c.streamErrs.Load()),
				zap.Int64("snapshots", c.snapshots.Load()),
				zap.Int64("prices", c.prices.Load()),
				zap.Duration("elapsed", time.Since(start).Truncate(time.Second)))
		}
	}
}
