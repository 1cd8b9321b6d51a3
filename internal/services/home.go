package services

import (
	"context"

	"animerec/internal/models"

	"github.com/sirupsen/logrus"
)

// HomepageLoader serves the lists shown when no search was submitted.
type HomepageLoader struct {
	fetcher HomeFetcher
	logger  *logrus.Logger
}

func NewHomepageLoader(fetcher HomeFetcher, logger *logrus.Logger) *HomepageLoader {
	if logger == nil {
		logger = logrus.New()
	}
	return &HomepageLoader{fetcher: fetcher, logger: logger}
}

// Load never fails: any AniList error is logged and yields two empty lists.
func (h *HomepageLoader) Load(ctx context.Context) (trending, popular []models.MediaRecord) {
	lists, err := h.fetcher.FetchHome(ctx)
	if err != nil {
		h.logger.WithError(err).WithField("outcome", Outcome(err)).Error("Failed to load homepage lists")
		return []models.MediaRecord{}, []models.MediaRecord{}
	}
	return lists.Trending, lists.Popular
}
