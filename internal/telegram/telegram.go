package telegram

import (
	"errors"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"homeworth/server/config"
	"homeworth/server/internal/models"
)

type Service struct {
	logger  *logrus.Logger
	client  *resty.Client
	config  config.TelegramConfig
	filters *Filters
}

func NewService(cfg config.TelegramConfig, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.New()
	}
	return &Service{
		logger: logger,
		client: resty.New().
			SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
			SetTimeout(10 * time.Second),
		config: cfg,
		filters: &Filters{
			MinChangePercent: cfg.MinChangePercent,
			States:           cfg.States,
		},
	}
}

// SendMessage sends a message to the configured Telegram chat
func (s *Service) SendMessage(message string) error {
	if !s.config.Enabled {
		return nil
	}

	if s.config.BotToken == "" {
		return errors.New("telegram bot token is not configured")
	}

	if s.config.ChatID == "" {
		return errors.New("telegram chat ID is not configured")
	}

	resp, err := s.client.R().
		SetBody(map[string]interface{}{
			"chat_id":    s.config.ChatID,
			"text":       message,
			"parse_mode": "HTML",
		}).
		Post(fmt.Sprintf("/bot%s/sendMessage", s.config.BotToken))
	if err != nil {
		return fmt.Errorf("failed to send message to Telegram API: %w", err)
	}

	switch resp.StatusCode() {
	case http.StatusOK:
		return nil
	case http.StatusUnauthorized:
		return errors.New("invalid bot token - please check your token from @BotFather")
	case http.StatusBadRequest:
		return fmt.Errorf("invalid chat ID or message format: %s", resp.String())
	case http.StatusForbidden:
		return errors.New("bot was blocked by the user or chat")
	case http.StatusNotFound:
		return errors.New("bot not found - please check your token from @BotFather")
	default:
		return fmt.Errorf("telegram API error (status %d): %s", resp.StatusCode(), resp.String())
	}
}

// NotifyPriceChange sends an alert about a listing whose price moved
func (s *Service) NotifyPriceChange(property *models.Property, previous, current float64) error {
	if !s.config.Enabled {
		return nil
	}

	if !s.filters.IsChangeAllowed(property, previous, current) {
		s.logger.WithField("property_id", property.ID).Debug("Price change filtered out")
		return nil
	}

	return s.SendMessage(formatPriceChange(property, previous, current))
}

func formatPriceChange(property *models.Property, previous, current float64) string {
	title := "<b>📉 Price Drop!</b>"
	if current > previous {
		title = "<b>📈 Price Increase!</b>"
	}

	change := "N/A"
	if previous != 0 {
		change = fmt.Sprintf("%+.1f%%", (current-previous)/previous*100)
	}

	details := make([]string, 0, 3)
	if property.Bedrooms != nil {
		details = append(details, fmt.Sprintf("%d bd", *property.Bedrooms))
	}
	if property.Bathrooms != nil {
		details = append(details, fmt.Sprintf("%g ba", *property.Bathrooms))
	}
	if property.SquareFootage != nil {
		details = append(details, fmt.Sprintf("%d sqft", *property.SquareFootage))
	}
	layout := "N/A"
	if len(details) > 0 {
		layout = strings.Join(details, " · ")
	}

	return fmt.Sprintf(
		"%s\n\n"+
			"🏠 %s\n"+
			"📍 %s, %s %s\n"+
			"💰 $%.0f → $%.0f (%s)\n"+
			"📐 %s\n\n"+
			"🔗 <a href=\"%s\">View listing</a>",
		title,
		html.EscapeString(property.Street),
		html.EscapeString(property.City),
		html.EscapeString(property.State),
		html.EscapeString(property.Zip),
		previous,
		current,
		change,
		layout,
		html.EscapeString(property.SourceURL),
	)
}
