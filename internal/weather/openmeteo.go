package weather

import (
	"context"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/sweeney/cloudcover-switch/internal/logger"
)

// DefaultBaseURL is the public Open-Meteo API.
const DefaultBaseURL = "https://api.open-meteo.com"

func init() {
	// go-cache persists items through gob as interface values.
	gob.Register(Forecast{})
}

// OpenMeteoConfig configures the Open-Meteo client.
type OpenMeteoConfig struct {
	BaseURL string
	Timeout time.Duration
	// MinInterval is the minimum spacing between outbound requests.
	MinInterval time.Duration
	// CacheTTL is how long a successful forecast is reused.
	CacheTTL time.Duration
	// CachePath, if set, persists the cache across process restarts.
	CachePath string
}

// OpenMeteo fetches forecasts from the Open-Meteo HTTP API.
type OpenMeteo struct {
	cfg     OpenMeteoConfig
	client  *http.Client
	limiter *rate.Limiter
	cache   *cache.Cache
	log     *logger.Logger
	now     func() time.Time
}

// NewOpenMeteo creates a client. A cache file that cannot be read is logged
// and ignored.
func NewOpenMeteo(cfg OpenMeteoConfig, log *logger.Logger) *OpenMeteo {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Hour
	}

	limit := rate.Inf
	if cfg.MinInterval > 0 {
		limit = rate.Every(cfg.MinInterval)
	}

	c := cache.New(cfg.CacheTTL, 2*cfg.CacheTTL)
	if cfg.CachePath != "" {
		if err := c.LoadFile(cfg.CachePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.Warnw("weather cache not loaded", "path", cfg.CachePath, "error", err)
		}
	}

	return &OpenMeteo{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, 1),
		cache:   c,
		log:     log,
		now:     time.Now,
	}
}

// cacheKey includes the UTC day so an entry never outlives the day it was
// fetched on, whatever the TTL.
func cacheKey(lat, lon float64, now time.Time) string {
	return fmt.Sprintf("%.2f,%.2f@%s", lat, lon, now.UTC().Format(time.DateOnly))
}

// Fetch returns tomorrow's daytime cloud cover for the location.
func (o *OpenMeteo) Fetch(ctx context.Context, lat, lon float64) (Forecast, error) {
	key := cacheKey(lat, lon, o.now())
	if v, found := o.cache.Get(key); found {
		if f, ok := v.(Forecast); ok {
			o.log.Debugw("weather cache hit", "location", key)
			return f, nil
		}
	}

	if err := o.limiter.Wait(ctx); err != nil {
		return Forecast{}, fmt.Errorf("%w: rate limit: %w", ErrFetch, err)
	}

	f, err := o.fetch(ctx, lat, lon)
	if err != nil {
		return Forecast{}, err
	}

	o.cache.Set(key, f, cache.DefaultExpiration)
	if o.cfg.CachePath != "" {
		if err := o.cache.SaveFile(o.cfg.CachePath); err != nil {
			o.log.Warnw("weather cache not saved", "path", o.cfg.CachePath, "error", err)
		}
	}
	return f, nil
}

func (o *OpenMeteo) requestURL(lat, lon float64) (string, error) {
	u, err := url.Parse(o.cfg.BaseURL)
	if err != nil {
		return "", err
	}
	u = u.JoinPath("v1", "forecast")
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(lat, 'f', 2, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', 2, 64))
	q.Set("daily", "sunrise,sunset")
	q.Set("hourly", "cloudcover")
	q.Set("forecast_days", "2")
	q.Set("timezone", "auto")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (o *OpenMeteo) fetch(ctx context.Context, lat, lon float64) (Forecast, error) {
	reqURL, err := o.requestURL(lat, lon)
	if err != nil {
		return Forecast{}, fmt.Errorf("%w: base url: %w", ErrFetch, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return Forecast{}, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	req.Header.Set("Accept", "application/json")

	o.log.Debugw("fetching forecast", "url", reqURL)
	resp, err := o.client.Do(req)
	if err != nil {
		return Forecast{}, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Forecast{}, fmt.Errorf("%w: unexpected status code: %d", ErrFetch, resp.StatusCode)
	}

	var body response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Forecast{}, fmt.Errorf("%w: decode response: %w", ErrFetch, err)
	}
	return body.forecast()
}
