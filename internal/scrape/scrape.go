package scrape

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
	_ "golang.org/x/image/webp"
)

// Uploader stores fetched images. storage.ObjectStore satisfies it.
type Uploader interface {
	Put(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) error
}

// Report counts what happened to each image URL.
type Report struct {
	Saved     []string `json:"saved"`
	Undersize int      `json:"undersize"`
	Failed    int      `json:"failed"`
}

// Scraper visits <base_url>/<animal> for each animal and keeps the first
// images_per_category images that meet the minimum size.
type Scraper struct {
	cfg    Config
	store  Uploader
	logger *zap.Logger

	// Transport overrides the HTTP transport, for tests.
	Transport http.RoundTripper
}

func New(cfg Config, store Uploader, logger *zap.Logger) *Scraper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scraper{cfg: cfg, store: store, logger: logger}
}

// Run crawls every category page, then fetches and uploads its images.
// Failures on single pages or images are logged and counted.
func (s *Scraper) Run(ctx context.Context) (*Report, error) {
	if err := s.cfg.Validate(); err != nil {
		return nil, err
	}

	pages := colly.NewCollector()
	if s.Transport != nil {
		pages.WithTransport(s.Transport)
	}
	images := pages.Clone()

	var (
		mu     sync.Mutex
		report = &Report{Saved: []string{}}
	)
	fail := func() {
		mu.Lock()
		report.Failed++
		mu.Unlock()
	}

	pages.OnHTML("html", func(e *colly.HTMLElement) {
		animal := e.Request.Ctx.Get("animal")
		var urls []string
		e.ForEach("img[src]", func(_ int, el *colly.HTMLElement) {
			if len(urls) >= s.cfg.ImagesPerCategory {
				return
			}
			if u := el.Request.AbsoluteURL(el.Attr("src")); u != "" {
				urls = append(urls, u)
			}
		})
		s.logger.Info("category page parsed", zap.String("animal", animal), zap.Int("images", len(urls)))
		for _, u := range urls {
			if ctx.Err() != nil {
				return
			}
			rc := colly.NewContext()
			rc.Put("animal", animal)
			if err := images.Request(http.MethodGet, u, nil, rc, nil); err != nil {
				s.logger.Warn("image request failed", zap.String("url", u), zap.Error(err))
				fail()
			}
		}
	})
	pages.OnError(func(r *colly.Response, err error) {
		s.logger.Error("category page failed", zap.String("url", r.Request.URL.String()), zap.Error(err))
	})

	images.OnResponse(func(r *colly.Response) {
		animal := r.Ctx.Get("animal")
		key, err := s.save(ctx, animal, r.Request.URL, r.Body)
		mu.Lock()
		defer mu.Unlock()
		switch {
		case errors.Is(err, errUndersize):
			report.Undersize++
			s.logger.Warn("ignored image due to insufficient size", zap.String("url", r.Request.URL.String()))
		case err != nil:
			report.Failed++
			s.logger.Error("failed to process image", zap.String("url", r.Request.URL.String()), zap.Error(err))
		default:
			report.Saved = append(report.Saved, key)
			s.logger.Info("saved image", zap.String("url", r.Request.URL.String()), zap.String("key", key))
		}
	})
	images.OnError(func(r *colly.Response, err error) {
		s.logger.Error("image download failed", zap.String("url", r.Request.URL.String()), zap.Error(err))
		fail()
	})

	for _, animal := range s.cfg.Animals {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		rc := colly.NewContext()
		rc.Put("animal", animal)
		target := strings.TrimRight(s.cfg.BaseURL, "/") + "/" + url.PathEscape(animal)
		if err := pages.Request(http.MethodGet, target, nil, rc, nil); err != nil {
			s.logger.Error("category request failed", zap.String("url", target), zap.Error(err))
		}
	}
	pages.Wait()
	images.Wait()
	return report, ctx.Err()
}

var errUndersize = errors.New("image below minimum size")

// save checks the decoded size of body and uploads it to
// <animal>/<basename>.
func (s *Scraper) save(ctx context.Context, animal string, u *url.URL, body []byte) (string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}
	if cfg.Width < s.cfg.MinimumSize.Width || cfg.Height < s.cfg.MinimumSize.Height {
		return "", errUndersize
	}
	key := animal + "/" + path.Base(u.Path)
	if err := s.store.Put(ctx, s.cfg.Bucket, key, bytes.NewReader(body), int64(len(body)), "image/"+format); err != nil {
		return "", err
	}
	return key, nil
}
