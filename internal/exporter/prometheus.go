package exporter

import (
	"context"
	"log"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/primal-host/skystream/internal/lang"
	"github.com/primal-host/skystream/internal/types"
)

const (
	metricNamespace = "skystream"

	// rollingWindow bounds how long an inactive tag, label or domain
	// stays visible on /metrics.
	rollingWindow = 30 * time.Minute

	// DefaultMaxSampleSize is the post-count threshold after which the
	// posts counter rolls back to zero, keeping dashboards on recent
	// traffic instead of an ever-growing total.
	DefaultMaxSampleSize = 10000
)

// PromOptions tunes the metrics sink.
type PromOptions struct {
	// MaxSampleSize overrides DefaultMaxSampleSize when positive.
	MaxSampleSize int

	// NormalizeLangs reduces post language tags to primary subtags
	// before counting.
	NormalizeLangs bool
}

// Prom counts every record into a Prometheus registry. It implements
// Exporter; Export never fails.
type Prom struct {
	normalizeLangs bool
	maxSampleSize  int

	// sampleCount shadows the posts vec so the rollover check does not
	// have to read the metric back out of the registry.
	sampleCount int

	events       prometheus.Counter
	eventsByType *prometheus.CounterVec

	// posts is a zero-label vec rather than a plain counter so it can
	// be reset when the sample-size threshold trips.
	posts *prometheus.CounterVec

	langGrouped    *prometheus.CounterVec
	langIndividual *prometheus.CounterVec
	quotes         *prometheus.CounterVec
	replies        *prometheus.CounterVec
	altText        *prometheus.CounterVec
	media          *prometheus.CounterVec

	tags    *windowCounter
	labels  *windowCounter
	domains *windowCounter
}

// NewProm registers the metric set on reg.
func NewProm(reg prometheus.Registerer, opts PromOptions) *Prom {
	return newProm(reg, opts, time.Now)
}

func newProm(reg prometheus.Registerer, opts PromOptions, now func() time.Time) *Prom {
	factory := promauto.With(reg)

	maxSample := DefaultMaxSampleSize
	if opts.MaxSampleSize > 0 {
		maxSample = opts.MaxSampleSize
	}

	p := &Prom{
		normalizeLangs: opts.NormalizeLangs,
		maxSampleSize:  maxSample,

		events: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "atproto_events",
			Help:      "Total records decoded from the firehose.",
		}),
		eventsByType: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "atproto_events_by_type",
			Help:      "Records decoded from the firehose, by record type.",
		}, []string{"type"}),
		posts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "posts",
			Help:      "Posts seen in the current sample window.",
		}, []string{}),
		langGrouped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "posts_by_language_grouped",
			Help:      "Posts by their full (sorted, deduplicated) language list.",
		}, []string{"language"}),
		langIndividual: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "posts_by_language",
			Help:      "Posts by individual language tag.",
		}, []string{"language"}),
		quotes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "posts_by_quote",
			Help:      "Posts by whether they quote another post.",
		}, []string{"quote"}),
		replies: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "posts_by_reply",
			Help:      "Posts by whether they reply to another post.",
		}, []string{"reply"}),
		altText: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "posts_by_alt_text",
			Help:      "Posts with media, by whether the media carries alt text.",
		}, []string{"alt_text"}),
		media: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "posts_by_media",
			Help:      "Posts by the type of media they carry.",
		}, []string{"media"}),
	}

	p.tags = newWindowCounter(factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricNamespace,
		Name:      "posts_by_tag",
		Help:      "Posts by tag, over a rolling window.",
	}, []string{"post_tag"}), rollingWindow, now)
	p.labels = newWindowCounter(factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricNamespace,
		Name:      "posts_by_label",
		Help:      "Posts by self-label, over a rolling window.",
	}, []string{"post_label"}), rollingWindow, now)
	p.domains = newWindowCounter(factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricNamespace,
		Name:      "posts_external_links",
		Help:      "Posts linking out, by external domain, over a rolling window.",
	}, []string{"domain"}), rollingWindow, now)

	return p
}

// Export counts the record. Always returns nil.
func (p *Prom) Export(_ context.Context, rec *types.Record) error {
	p.events.Inc()
	p.eventsByType.WithLabelValues(string(rec.Kind)).Inc()

	if rec.Kind == types.KindPost {
		p.countPost(rec.Post)
	}
	return nil
}

// Close is a no-op; the registry outlives the sink.
func (p *Prom) Close() error { return nil }

func (p *Prom) countPost(post *types.Post) {
	p.posts.WithLabelValues().Inc()
	p.sampleCount++
	p.countLanguages(post.Language)

	for _, tag := range post.Tags {
		p.tags.Update(tag)
	}
	for _, label := range post.Labels {
		p.labels.Update(label)
	}

	p.replies.WithLabelValues(boolLabel(post.Reply != nil)).Inc()

	quoted := post.Embed != nil && post.Embed.Record != ""
	p.quotes.WithLabelValues(boolLabel(quoted)).Inc()

	mediaList := post.MediaList()
	mediaLabel := "false"
	if len(mediaList) > 0 {
		mediaLabel = string(mediaList[0].Kind)
	}
	p.media.WithLabelValues(mediaLabel).Inc()
	if len(mediaList) > 0 {
		hasAlt := false
		for _, m := range mediaList {
			if m.Alt != "" {
				hasAlt = true
				break
			}
		}
		p.altText.WithLabelValues(boolLabel(hasAlt)).Inc()
	}

	if post.Embed != nil && post.Embed.External != nil {
		if domain := externalDomain(post.Embed.External.URI); domain != "" {
			p.domains.Update(domain)
		}
	}

	// Roll the sample window over once the posts counter passes the
	// configured size.
	if p.sampleCount > p.maxSampleSize {
		p.posts.Reset()
		p.sampleCount = 0
	}
}

// countLanguages increments the per-tag counter once per distinct
// normalized tag and the grouped counter once for the whole list.
func (p *Prom) countLanguages(langs []string) {
	processed := make([]string, 0, len(langs))
	for _, tag := range langs {
		switch {
		case tag == "":
			processed = append(processed, "null")
		case p.normalizeLangs:
			normalized, ok := lang.Normalize(tag)
			if !ok {
				log.Printf("Warning: unparseable language tag %q", tag)
				normalized = strings.ToLower(tag)
			}
			processed = append(processed, normalized)
		default:
			processed = append(processed, tag)
		}
	}

	sort.Strings(processed)
	distinct := make([]string, 0, len(processed))
	for _, tag := range processed {
		if len(distinct) == 0 || tag != distinct[len(distinct)-1] {
			distinct = append(distinct, tag)
		}
	}

	for _, tag := range distinct {
		p.langIndividual.WithLabelValues(tag).Inc()
	}

	grouped := "null"
	if len(distinct) > 0 {
		grouped = strings.Join(distinct, ",")
	}
	p.langGrouped.WithLabelValues(grouped).Inc()
}

// externalDomain lowercases the link host and strips a leading www.
func externalDomain(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
