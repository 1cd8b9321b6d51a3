package bot

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"

	"animerec/internal/metrics"
	"animerec/internal/models"
	"animerec/internal/quota"

	"github.com/sirupsen/logrus"
)

const (
	synopsisRunes = 200
	maxMessageLen = 4096
)

// Searcher runs the free text → records pipeline.
type Searcher interface {
	Run(ctx context.Context, userInput string) []models.MediaRecord
}

// HomeLister provides the trending and airing rankings.
type HomeLister interface {
	Load(ctx context.Context) (trending, popular []models.MediaRecord)
}

// Sender delivers a formatted message to a chat.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

type Handler struct {
	searcher Searcher
	home     HomeLister
	sender   Sender
	limiter  quota.Limiter
	logger   *logrus.Logger
}

func NewHandler(searcher Searcher, home HomeLister, sender Sender, limiter quota.Limiter, logger *logrus.Logger) *Handler {
	if limiter == nil {
		limiter = quota.Unlimited{}
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Handler{
		searcher: searcher,
		home:     home,
		sender:   sender,
		limiter:  limiter,
		logger:   logger,
	}
}

func (h *Handler) ProcessMessage(ctx context.Context, update *models.Update) {
	if update == nil || update.Message == nil || update.Message.Text == "" {
		return
	}

	var userID int64
	if update.Message.From != nil {
		userID = update.Message.From.Id
	}
	chatID := update.Message.Chat.Id
	text := strings.TrimSpace(update.Message.Text)

	command := h.parseCommand(text, userID, chatID)
	h.logger.WithFields(logrus.Fields{
		"user_id": userID,
		"command": command.Command,
		"args":    len(command.Args),
	}).Info("Processing command")

	switch command.Command {
	case "/start", "/help":
		h.handleStart(ctx, command)
	case "/recommend":
		h.handleRecommend(ctx, command)
	case "/trending":
		h.handleHome(ctx, command, true)
	case "/airing":
		h.handleHome(ctx, command, false)
	default:
		h.sendMessage(ctx, command.ChatID, "Unknown command. Use /help to see available commands")
	}
}

func (h *Handler) parseCommand(text string, userID, chatID int64) models.BotCommand {
	parts := strings.Fields(text)
	if len(parts) == 0 {
		return models.BotCommand{UserID: userID, ChatID: chatID}
	}

	// group chats address commands as /cmd@botname
	command, _, _ := strings.Cut(parts[0], "@")

	return models.BotCommand{
		Command: strings.ToLower(command),
		Args:    parts[1:],
		UserID:  userID,
		ChatID:  chatID,
	}
}

func (h *Handler) handleStart(ctx context.Context, cmd models.BotCommand) {
	welcomeMessage := `Tell me what you feel like watching and I'll suggest some anime.

/recommend <what you're in the mood for>
/trending - what everyone is watching right now
/airing - most popular shows currently airing`

	h.sendMessage(ctx, cmd.ChatID, welcomeMessage)
}

func (h *Handler) handleRecommend(ctx context.Context, cmd models.BotCommand) {
	if len(cmd.Args) == 0 {
		h.sendMessage(ctx, cmd.ChatID, "Please describe what you want to watch. Example: /recommend slow burn psychological thriller")
		return
	}

	key := quotaKey(cmd)
	allowed, err := h.limiter.Allow(ctx, key)
	if err != nil {
		h.logger.WithError(err).WithField("client", key).Warn("Search quota check failed")
	}
	if !allowed {
		metrics.SearchesRejected.Inc()
		h.sendMessage(ctx, cmd.ChatID, "Too many searches, please wait a minute.")
		return
	}

	query := strings.Join(cmd.Args, " ")

	h.sendMessage(ctx, cmd.ChatID, "Looking for recommendations...")

	records := h.searcher.Run(ctx, query)
	if len(records) == 0 {
		h.sendMessage(ctx, cmd.ChatID, "No recommendations found. Try describing it differently.")
		return
	}

	h.sendMessage(ctx, cmd.ChatID, FormatRecords("", records))
}

// quotaKey identifies the sender, or the chat for messages without one
// (channel posts, anonymous group admins).
func quotaKey(cmd models.BotCommand) string {
	if cmd.UserID != 0 {
		return "tg:" + strconv.FormatInt(cmd.UserID, 10)
	}
	return "tg:chat:" + strconv.FormatInt(cmd.ChatID, 10)
}

func (h *Handler) handleHome(ctx context.Context, cmd models.BotCommand, trending bool) {
	trendingList, popularList := h.home.Load(ctx)

	records, label := popularList, "Popular this season"
	if trending {
		records, label = trendingList, "Trending now"
	}

	if len(records) == 0 {
		h.sendMessage(ctx, cmd.ChatID, "That list is unavailable right now. Please try again later.")
		return
	}

	h.sendMessage(ctx, cmd.ChatID, FormatRecords("<b>"+label+"</b>\n\n", records))
}

func (h *Handler) sendMessage(ctx context.Context, chatID int64, text string) {
	if err := h.sender.SendMessage(ctx, chatID, text); err != nil {
		h.logger.WithError(err).WithField("chat_id", chatID).Error("Failed to send message")
	}
}

// FormatRecords renders header followed by records as Telegram HTML, stopping
// before the message size limit. The first record is always present, cut down
// to its title if nothing more fits.
func FormatRecords(header string, records []models.MediaRecord) string {
	var builder strings.Builder
	builder.WriteString(header)

	for i, record := range records {
		entry := formatRecord(i+1, record)
		if builder.Len()+len(entry) > maxMessageLen {
			if i == 0 {
				builder.WriteString(titleOnly(1, record, maxMessageLen-builder.Len()))
			}
			break
		}
		builder.WriteString(entry)
	}

	return strings.TrimRight(builder.String(), "\n")
}

// titleOnly renders just the numbered title, shortened on rune boundaries
// until it fits in budget bytes.
func titleOnly(position int, record models.MediaRecord, budget int) string {
	title := []rune(record.DisplayTitle())
	suffix := ""
	for {
		entry := fmt.Sprintf("<b>%d. %s%s</b>\n", position, html.EscapeString(string(title)), suffix)
		if len(entry) <= budget || len(title) == 0 {
			return entry
		}
		title = title[:min(len(title)-1, len(title)*9/10)]
		suffix = "..."
	}
}

func formatRecord(position int, record models.MediaRecord) string {
	var builder strings.Builder

	builder.WriteString(fmt.Sprintf("<b>%d. %s</b>\n", position, html.EscapeString(record.DisplayTitle())))

	if record.HasScore() {
		builder.WriteString(fmt.Sprintf("Score: %d%%\n", record.Score()))
	}
	if episodes := record.EpisodeCount(); episodes > 0 {
		builder.WriteString(fmt.Sprintf("Episodes: %d\n", episodes))
	}
	if label := record.Status.Label(); label != "" {
		builder.WriteString(fmt.Sprintf("Status: %s\n", label))
	}
	if len(record.Genres) > 0 {
		builder.WriteString(fmt.Sprintf("Genres: %s\n", html.EscapeString(strings.Join(record.Genres, ", "))))
	}
	if synopsis := record.Synopsis(synopsisRunes); synopsis != "" {
		builder.WriteString(html.EscapeString(synopsis) + "\n")
	}
	if record.SiteURL != "" {
		builder.WriteString(fmt.Sprintf("<a href=\"%s\">View on AniList</a>\n", html.EscapeString(record.SiteURL)))
	}
	if trailer := record.TrailerURL(); trailer != "" {
		builder.WriteString(fmt.Sprintf("<a href=\"%s\">Trailer</a>\n", html.EscapeString(trailer)))
	}

	builder.WriteString("\n")
	return builder.String()
}
