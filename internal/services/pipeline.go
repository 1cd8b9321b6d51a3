package services

import (
	"context"
	"strings"

	"animerec/internal/metrics"
	"animerec/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"
)

// DetailFetcher resolves one title to a media record.
type DetailFetcher interface {
	FetchDetails(ctx context.Context, title string) (*models.MediaRecord, error)
}

// HomeFetcher returns the homepage rankings.
type HomeFetcher interface {
	FetchHome(ctx context.Context) (models.HomeLists, error)
}

// RecommendationPipeline turns free text into resolved media records.
type RecommendationPipeline struct {
	recommender Recommender
	details     DetailFetcher
	concurrency int
	logger      *logrus.Logger
}

type PipelineConfig struct {
	Recommender Recommender
	Details     DetailFetcher
	// Concurrency bounds parallel detail lookups; 1 is strictly sequential.
	Concurrency int
	Logger      *logrus.Logger
}

func NewRecommendationPipeline(config *PipelineConfig) *RecommendationPipeline {
	if config.Logger == nil {
		config.Logger = logrus.New()
	}
	if config.Concurrency < 1 {
		config.Concurrency = 1
	}
	return &RecommendationPipeline{
		recommender: config.Recommender,
		details:     config.Details,
		concurrency: config.Concurrency,
		logger:      config.Logger,
	}
}

// Run returns the resolved records in the order the model listed the titles.
// Titles that fail to resolve are dropped; duplicates are kept. Failures are
// logged and never returned.
func (p *RecommendationPipeline) Run(ctx context.Context, userInput string) []models.MediaRecord {
	if strings.TrimSpace(userInput) == "" {
		return []models.MediaRecord{}
	}

	titles, err := p.recommender.Recommend(ctx, userInput)
	if err != nil {
		p.logger.WithError(err).WithField("outcome", Outcome(err)).Warn("Recommender returned no titles")
		return []models.MediaRecord{}
	}
	if len(titles) == 0 {
		return []models.MediaRecord{}
	}

	resolved := p.resolve(ctx, titles)

	records := make([]models.MediaRecord, 0, len(titles))
	for i, record := range resolved {
		if record == nil {
			metrics.TitlesResolved.WithLabelValues("dropped").Inc()
			p.logger.WithField("title", titles[i]).Debug("Dropping unresolved title")
			continue
		}
		metrics.TitlesResolved.WithLabelValues("resolved").Inc()
		records = append(records, *record)
	}

	p.logger.WithFields(logrus.Fields{
		"candidates": len(titles),
		"resolved":   len(records),
	}).Info("Recommendation pipeline finished")

	return records
}

// resolve fills one slot per title so ordering survives parallel lookups.
func (p *RecommendationPipeline) resolve(ctx context.Context, titles []string) []*models.MediaRecord {
	results := make([]*models.MediaRecord, len(titles))

	if p.concurrency == 1 {
		for i, title := range titles {
			results[i] = p.lookup(ctx, title)
		}
		return results
	}

	workers := pool.New().WithMaxGoroutines(min(p.concurrency, len(titles)))
	for i, title := range titles {
		i, title := i, title
		workers.Go(func() {
			results[i] = p.lookup(ctx, title)
		})
	}
	workers.Wait()

	return results
}

func (p *RecommendationPipeline) lookup(ctx context.Context, title string) *models.MediaRecord {
	record, err := p.details.FetchDetails(ctx, title)
	if err != nil {
		entry := p.logger.WithError(err).WithFields(logrus.Fields{
			"title":   title,
			"outcome": Outcome(err),
		})
		if Outcome(err) == "not_found" {
			entry.Info("AniList has no match for title")
		} else {
			entry.Warn("Failed to resolve title")
		}
		return nil
	}
	return record
}
