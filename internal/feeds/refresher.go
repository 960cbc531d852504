package feeds

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/i474232898/ims-weather/internal/logging"
	"github.com/i474232898/ims-weather/internal/metrics"
	"github.com/i474232898/ims-weather/internal/store"
	"github.com/i474232898/ims-weather/internal/weather"
)

// Fetcher downloads the raw feed document of a region.
type Fetcher interface {
	FetchRegion(ctx context.Context, regionID int) ([]byte, error)
}

// ItemWriter replaces the stored items of a region.
type ItemWriter interface {
	ReplaceFeedItems(ctx context.Context, regionID int, items []store.FeedItem) error
}

// Refresher downloads every region's feed and stores its items.
type Refresher struct {
	fetcher Fetcher
	writer  ItemWriter
	regions []weather.Region
	limit   int
	now     func() time.Time
	logger  *slog.Logger
}

// NewRefresher returns a Refresher over regions.
func NewRefresher(fetcher Fetcher, writer ItemWriter, regions []weather.Region, logger *slog.Logger) *Refresher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{
		fetcher: fetcher,
		writer:  writer,
		regions: regions,
		limit:   4,
		now:     time.Now,
		logger:  logging.Component(logger, "feed_refresher"),
	}
}

// Result summarises one refresh run.
type Result struct {
	Regions int
	Failed  int
	Items   int
}

var errAllRegionsFailed = errors.New("every region feed failed")

// Refresh updates all regions concurrently. A failing region is logged and
// keeps its previously stored items; only a total failure is an error.
func (r *Refresher) Refresh(ctx context.Context) (Result, error) {
	var (
		g   errgroup.Group
		mu  sync.Mutex
		res = Result{Regions: len(r.regions)}
	)
	g.SetLimit(r.limit)

	for _, region := range r.regions {
		g.Go(func() error {
			n, err := r.refreshRegion(ctx, region)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				r.logger.Warn("feed refresh failed", "region", region.ID, "name", region.Name, "err", err)
				res.Failed++
				return nil
			}
			res.Items += n
			return nil
		})
	}
	_ = g.Wait()

	r.logger.Info("feed refresh complete", "regions", res.Regions, "failed", res.Failed, "items", res.Items)
	if res.Regions > 0 && res.Failed == res.Regions {
		return res, errAllRegionsFailed
	}
	return res, nil
}

func (r *Refresher) refreshRegion(ctx context.Context, region weather.Region) (int, error) {
	raw, err := r.fetcher.FetchRegion(ctx, region.ID)
	if err != nil {
		return 0, err
	}
	doc, err := ParseRSS(raw)
	if err != nil {
		return 0, err
	}

	fetched := r.now().UTC()
	items := make([]store.FeedItem, 0, len(doc.Items))
	seen := make(map[string]bool, len(doc.Items))
	for _, it := range doc.Items {
		guid := it.GUID
		if guid == "" {
			guid = itemGUID(region.ID, it)
		}
		if seen[guid] {
			continue
		}
		seen[guid] = true

		published := it.Published
		if published.IsZero() {
			published = fetched
		}
		items = append(items, store.FeedItem{
			RegionID:    region.ID,
			GUID:        guid,
			Title:       it.Title,
			Description: it.Description,
			PublishedAt: published,
			FetchedAt:   fetched,
		})
	}

	if err := r.writer.ReplaceFeedItems(ctx, region.ID, items); err != nil {
		return 0, fmt.Errorf("store items: %w", err)
	}
	metrics.FeedItemsStored.WithLabelValues(strconv.Itoa(region.ID)).Add(float64(len(items)))
	return len(items), nil
}

// itemGUID derives a stable id for items published without one.
func itemGUID(regionID int, it Item) string {
	name := fmt.Sprintf("%d|%s|%s|%s", regionID, it.Title, it.Link, it.Published.UTC().Format(time.RFC3339))
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}
