// Distill-bot relays Discord channel history into a running distilld
// backend and posts the distilled decisions and action items back.
//
// Configuration comes from the environment (a .env file is honored):
//
//	DISCORD_BOT_TOKEN  bot token (required)
//	BACKEND_URL        distilld base URL (default http://localhost:8000)
package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/joho/godotenv"

	"github.com/fyrsmithlabs/distilld/internal/distill"
)

const (
	defaultBackendURL = "http://localhost:8000"
	defaultLimit      = 50
	maxLimit          = 100

	embedColor = 0x5865F2
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	token := os.Getenv("DISCORD_BOT_TOKEN")
	if token == "" {
		log.Fatal("Set DISCORD_BOT_TOKEN in the environment or .env")
	}
	backendURL := os.Getenv("BACKEND_URL")
	if backendURL == "" {
		backendURL = defaultBackendURL
	}

	bot, err := newBot(token, newBackendClient(backendURL))
	if err != nil {
		log.Fatalf("Failed to create bot: %v", err)
	}

	if err := bot.start(); err != nil {
		log.Fatalf("Failed to start bot: %v", err)
	}
	defer bot.stop()

	log.Println("Bot running. Press Ctrl+C to exit.")
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
}

// bot wraps the Discord session and the distilld backend client.
type bot struct {
	session *discordgo.Session
	backend *backendClient
}

func newBot(token string, backend *backendClient) (*bot, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	b := &bot{session: session, backend: backend}
	session.AddHandler(b.handleReady)
	session.AddHandler(b.handleInteraction)
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent

	return b, nil
}

func (b *bot) start() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}

	_, err := b.session.ApplicationCommandCreate(b.session.State.User.ID, "", &discordgo.ApplicationCommand{
		Name:        "distill",
		Description: "Distill recent channel messages into decisions and action items",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "limit",
				Description: "Number of messages to fetch (default 50)",
				Required:    false,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to register /distill command: %w", err)
	}

	log.Printf("Connected as %s", b.session.State.User.Username)
	return nil
}

func (b *bot) stop() {
	if err := b.session.Close(); err != nil {
		log.Printf("Error closing Discord session: %v", err)
	}
}

func (b *bot) handleReady(s *discordgo.Session, r *discordgo.Ready) {
	log.Printf("Ready as %s (Context Distiller Bot)", r.User.Username)
}

func (b *bot) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := i.ApplicationCommandData()
	if data.Name != "distill" {
		return
	}

	// Fetching history and two backend calls take a while; defer first.
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})
	if err != nil {
		log.Printf("Failed to defer interaction: %v", err)
		return
	}

	limit := defaultLimit
	for _, opt := range data.Options {
		if opt.Name == "limit" {
			limit = int(opt.IntValue())
		}
	}
	if limit < 1 || limit > maxLimit {
		limit = maxLimit
	}

	go b.runDistill(s, i, limit)
}

func (b *bot) runDistill(s *discordgo.Session, i *discordgo.InteractionCreate, limit int) {
	lines, err := b.fetchChannelLines(s, i.ChannelID, limit)
	if err != nil {
		b.followUp(s, i, "Failed to read channel history.")
		return
	}
	if len(lines) == 0 {
		b.followUp(s, i, "No messages to distill in this channel.")
		return
	}

	result, err := b.backend.Distill(strings.Join(lines, "\n"))
	if err != nil {
		log.Printf("Backend call failed: %v", err)
		b.followUp(s, i, "Failed to process. Ensure the backend is running at "+b.backend.baseURL)
		return
	}

	embed := &discordgo.MessageEmbed{
		Title:       "Context Distilled",
		Description: buildSummary(result),
		Color:       embedColor,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("%d messages processed", result.MessageCount),
		},
	}
	_, err = s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Embeds: []*discordgo.MessageEmbed{embed},
	})
	if err != nil {
		log.Printf("Failed to send followup: %v", err)
	}
}

func (b *bot) followUp(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	_, err := s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{Content: content})
	if err != nil {
		log.Printf("Failed to send followup: %v", err)
	}
}

// fetchChannelLines reads recent channel history oldest-first, skipping
// bot messages, formatted for the backend's bracketed-datetime grammar.
func (b *bot) fetchChannelLines(s *discordgo.Session, channelID string, limit int) ([]string, error) {
	msgs, err := s.ChannelMessages(channelID, limit, "", "", "")
	if err != nil {
		return nil, fmt.Errorf("fetching channel messages: %w", err)
	}

	// ChannelMessages returns newest first.
	var lines []string
	for idx := len(msgs) - 1; idx >= 0; idx-- {
		m := msgs[idx]
		if m.Author == nil || m.Author.Bot {
			continue
		}
		if line := formatMessage(m); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, nil
}

func formatMessage(m *discordgo.Message) string {
	content := strings.TrimSpace(m.Content)
	if content == "" {
		return ""
	}
	ts := m.Timestamp.UTC().Format("2006-01-02 15:04")
	return fmt.Sprintf("[%s] %s: %s", ts, m.Author.Username, content)
}

// buildSummary condenses a processed result into a short Discord embed
// body: up to five decisions and five action items.
func buildSummary(result *distill.ProcessedResult) string {
	var decisions, actions []string
	for _, e := range result.Extractions {
		for _, d := range e.Extraction.Decisions {
			decisions = append(decisions, d.Description)
		}
		for _, a := range e.Extraction.ActionItems {
			if a.Assignee != "" {
				actions = append(actions, fmt.Sprintf("- %s (→ %s)", a.Task, a.Assignee))
			} else {
				actions = append(actions, "- "+a.Task)
			}
		}
	}

	var parts []string
	if len(decisions) > 0 {
		if len(decisions) > 5 {
			decisions = decisions[:5]
		}
		bullets := make([]string, len(decisions))
		for i, d := range decisions {
			bullets[i] = "• " + d
		}
		parts = append(parts, "**Decisions**\n"+strings.Join(bullets, "\n"))
	}
	if len(actions) > 0 {
		if len(actions) > 5 {
			actions = actions[:5]
		}
		parts = append(parts, "**Action Items**\n"+strings.Join(actions, "\n"))
	}
	if len(parts) == 0 {
		return "No decisions or action items extracted from this conversation."
	}
	return strings.Join(parts, "\n\n")
}
