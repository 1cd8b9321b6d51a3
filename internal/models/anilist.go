package models

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

type MediaStatus string

const (
	StatusFinished       MediaStatus = "FINISHED"
	StatusReleasing      MediaStatus = "RELEASING"
	StatusNotYetReleased MediaStatus = "NOT_YET_RELEASED"
	StatusCancelled      MediaStatus = "CANCELLED"
	StatusHiatus         MediaStatus = "HIATUS"
)

// Label is the human-readable form shown on cards.
func (s MediaStatus) Label() string {
	switch s {
	case StatusFinished:
		return "Finished"
	case StatusReleasing:
		return "Airing"
	case StatusNotYetReleased:
		return "Not yet released"
	case StatusCancelled:
		return "Cancelled"
	case StatusHiatus:
		return "On hiatus"
	case "":
		return ""
	default:
		return strings.ToLower(string(s))
	}
}

// MediaRecord is one AniList Media object as returned by the shared
// mediaFields fragment. Only ID and one title variant are guaranteed.
type MediaRecord struct {
	ID           int         `json:"id"`
	Title        MediaTitle  `json:"title"`
	CoverImage   *CoverImage `json:"coverImage,omitempty"`
	BannerImage  *string     `json:"bannerImage,omitempty"`
	Genres       []string    `json:"genres,omitempty"`
	Episodes     *int        `json:"episodes,omitempty"`
	Status       MediaStatus `json:"status,omitempty"`
	Trailer      *Trailer    `json:"trailer,omitempty"`
	AverageScore *int        `json:"averageScore,omitempty"`
	SiteURL      string      `json:"siteUrl,omitempty"`
	Description  *string     `json:"description,omitempty"`
}

type MediaTitle struct {
	English *string `json:"english,omitempty"`
	Romaji  *string `json:"romaji,omitempty"`
	Native  *string `json:"native,omitempty"`
}

type CoverImage struct {
	Large string `json:"large"`
}

type Trailer struct {
	ID   string `json:"id"`
	Site string `json:"site"`
}

// HomeLists holds the two homepage rankings.
type HomeLists struct {
	Trending []MediaRecord `json:"trending"`
	Popular  []MediaRecord `json:"popular"`
}

// SearchRequest is the free text a user typed into the search box.
type SearchRequest struct {
	Query string `json:"query" validate:"required"`
}

// Valid reports whether the record carries an identifier and a title.
func (m MediaRecord) Valid() bool {
	return m.ID != 0 && m.DisplayTitle() != ""
}

// DisplayTitle prefers English, then Romaji, then Native.
func (m MediaRecord) DisplayTitle() string {
	for _, t := range []*string{m.Title.English, m.Title.Romaji, m.Title.Native} {
		if t != nil && strings.TrimSpace(*t) != "" {
			return *t
		}
	}
	return ""
}

func (m MediaRecord) CoverURL() string {
	if m.CoverImage == nil {
		return ""
	}
	return m.CoverImage.Large
}

func (m MediaRecord) BannerURL() string {
	if m.BannerImage == nil {
		return ""
	}
	return *m.BannerImage
}

func (m MediaRecord) HasScore() bool {
	return m.AverageScore != nil
}

func (m MediaRecord) Score() int {
	if m.AverageScore == nil {
		return 0
	}
	return *m.AverageScore
}

func (m MediaRecord) EpisodeCount() int {
	if m.Episodes == nil {
		return 0
	}
	return *m.Episodes
}

// TrailerURL returns a watch link for the hosts AniList reports, or "".
func (m MediaRecord) TrailerURL() string {
	if m.Trailer == nil || m.Trailer.ID == "" {
		return ""
	}
	switch strings.ToLower(m.Trailer.Site) {
	case "youtube":
		return fmt.Sprintf("https://www.youtube.com/watch?v=%s", m.Trailer.ID)
	case "dailymotion":
		return fmt.Sprintf("https://www.dailymotion.com/video/%s", m.Trailer.ID)
	default:
		return ""
	}
}

// Synopsis strips the description's markup and truncates it to maxRunes.
// maxRunes <= 0 means no limit.
func (m MediaRecord) Synopsis(maxRunes int) string {
	if m.Description == nil || *m.Description == "" {
		return ""
	}

	text := *m.Description
	// AniList uses <br> for paragraph breaks; keep them as spaces
	text = strings.NewReplacer("<br>", " ", "<br/>", " ", "<br />", " ").Replace(text)
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(text)); err == nil {
		text = doc.Text()
	}
	text = strings.Join(strings.Fields(text), " ")

	if maxRunes <= 0 || utf8.RuneCountInString(text) <= maxRunes {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:maxRunes])) + "..."
}
