// Package discord publishes posts to a Discord channel through a webhook.
package discord

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// ParseWebhookURL splits https://discord.com/api/webhooks/{id}/{token}.
func ParseWebhookURL(raw string) (id, token string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("invalid webhook URL: %w", err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] == "webhooks" && parts[i+1] != "" && parts[i+2] != "" {
			return parts[i+1], parts[i+2], nil
		}
	}
	return "", "", fmt.Errorf("invalid webhook URL: expected /api/webhooks/{id}/{token}")
}

type Publisher struct {
	session  *discordgo.Session
	id       string
	token    string
	username string
}

func NewPublisher(webhookURL, username string) (*Publisher, error) {
	id, token, err := ParseWebhookURL(webhookURL)
	if err != nil {
		return nil, err
	}
	// webhooks carry their own token, the session needs none
	s, err := discordgo.New("")
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	return &Publisher{session: s, id: id, token: token, username: username}, nil
}

// Publish sends text and returns the created message id.
func (p *Publisher) Publish(ctx context.Context, text string) (string, error) {
	msg, err := p.session.WebhookExecute(p.id, p.token, true, &discordgo.WebhookParams{
		Content:  text,
		Username: p.username,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("failed to execute webhook: %w", err)
	}
	if msg == nil || msg.ID == "" {
		return "", fmt.Errorf("webhook returned no message")
	}
	return msg.ID, nil
}
