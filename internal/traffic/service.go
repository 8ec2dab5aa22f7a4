package traffic

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"flightdeck-go/internal/metrics"
)

// ProxyFetcher relays a fetch through the proxy when the feed is not
// reachable directly.
type ProxyFetcher interface {
	FetchJSON(ctx context.Context, url string, headers map[string]string) ([]byte, error)
}

// Service fetches the live feed and keeps the most recent snapshot. Fetches
// are best-effort: a failed cycle keeps the previous snapshot in place.
type Service struct {
	feedURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	proxy   ProxyFetcher
	logger  *zap.Logger

	mu         sync.Mutex
	snapshot   *Snapshot
	lastUpdate time.Time
	refreshing bool
}

// NewService builds a Service for the given feed URL. proxy may be nil.
func NewService(feedURL string, proxy ProxyFetcher, logger *zap.Logger) *Service {
	return &Service{
		feedURL: feedURL,
		client:  &http.Client{Timeout: 15 * time.Second},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "traffic-feed",
			Timeout: 45 * time.Second,
		}),
		proxy:  proxy,
		logger: logger,
	}
}

// SetClient overrides the HTTP client used for direct fetches.
func (s *Service) SetClient(client *http.Client) {
	s.client = client
}

// Fetch pulls the feed and replaces the cached snapshot. A loud fetch marks
// the service as refreshing for the duration so the UI can show a spinner;
// silent fetches do not. userID is carried only for log correlation.
func (s *Service) Fetch(ctx context.Context, userID string, silent bool) error {
	if !silent {
		s.mu.Lock()
		s.refreshing = true
		s.mu.Unlock()
		defer func() {
			s.mu.Lock()
			s.refreshing = false
			s.mu.Unlock()
		}()
	}

	timer := prometheus.NewTimer(metrics.FeedFetchDuration)
	defer timer.ObserveDuration()

	body, err := s.download(ctx)
	if err != nil {
		s.logger.Warn("traffic feed fetch failed",
			zap.String("user_id", userID),
			zap.Bool("silent", silent),
			zap.Error(err))
		return err
	}

	snap, err := parseFeed(body)
	if err != nil {
		s.logger.Warn("traffic feed unparseable", zap.Error(err))
		return err
	}

	s.mu.Lock()
	s.snapshot = snap
	s.lastUpdate = snap.FetchedAt
	s.mu.Unlock()

	s.logger.Debug("traffic snapshot updated",
		zap.Int("pilots", snap.Stats.Pilots),
		zap.Int("atcs", snap.Stats.ATCs))
	return nil
}

func (s *Service) download(ctx context.Context) ([]byte, error) {
	out, err := s.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.feedURL, nil)
		if err != nil {
			return nil, err
		}
		resp, err := s.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("feed returned %s", resp.Status)
		}
		return io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	})
	if err == nil {
		return out.([]byte), nil
	}

	if s.proxy == nil {
		return nil, err
	}
	s.logger.Debug("feed direct path failed, relaying", zap.Error(err))
	return s.proxy.FetchJSON(ctx, s.feedURL, nil)
}

// Snapshot returns the latest snapshot (nil before the first successful
// fetch), its fetch time, and whether a loud refresh is in flight.
func (s *Service) Snapshot() (*Snapshot, time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot, s.lastUpdate, s.refreshing
}

// parseFeed reads the feed document. The feed has shipped both with pilots
// under clients.pilots and at the top level, and track fields both inline
// and under lastTrack, so every lookup tries both spellings.
func parseFeed(body []byte) (*Snapshot, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("feed is not JSON")
	}
	doc := gjson.ParseBytes(body)

	pilots := doc.Get("clients.pilots")
	if !pilots.Exists() {
		pilots = doc.Get("pilots")
	}
	atcs := doc.Get("clients.atcs")
	if !atcs.Exists() {
		atcs = doc.Get("atcs")
	}

	snap := &Snapshot{FetchedAt: time.Now().UTC()}

	pilots.ForEach(func(_, p gjson.Result) bool {
		track := func(field string) gjson.Result {
			if v := p.Get("lastTrack." + field); v.Exists() {
				return v
			}
			return p.Get(field)
		}
		snap.Pilots = append(snap.Pilots, Pilot{
			UserID:      p.Get("userId").Int(),
			Callsign:    p.Get("callsign").String(),
			Latitude:    track("latitude").Float(),
			Longitude:   track("longitude").Float(),
			Altitude:    int(track("altitude").Int()),
			GroundSpeed: int(track("groundSpeed").Int()),
			Heading:     int(track("heading").Int()),
			OnGround:    track("onGround").Bool(),
			Transponder: track("transponder").String(),
			Departure:   p.Get("flightPlan.departureId").String(),
			Arrival:     p.Get("flightPlan.arrivalId").String(),
			Aircraft:    p.Get("flightPlan.aircraftId").String(),
		})
		return true
	})

	atcs.ForEach(func(_, a gjson.Result) bool {
		snap.ATCs = append(snap.ATCs, ATC{
			UserID:   a.Get("userId").Int(),
			Callsign: a.Get("callsign").String(),
			Position: a.Get("atcSession.position").String(),
			Atis:     a.Get("atis.lines").String(),
		})
		return true
	})

	snap.Stats = NetworkStats{Pilots: len(snap.Pilots), ATCs: len(snap.ATCs)}
	return snap, nil
}
