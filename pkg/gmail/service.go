package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	scandomain "labeler-backend/internal/scan/domain"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	goauth2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

var scopes = []string{
	gmail.GmailModifyScope,
	"https://www.googleapis.com/auth/userinfo.email",
	"openid",
}

// bodyLimit bounds how much email body is handed to the classifier.
const bodyLimit = 3000

type TokenUpdateFunc = scandomain.TokenUpdateFunc

type Service struct {
	clientID     string
	clientSecret string
	redirectURI  string
}

func NewService(clientID, clientSecret, redirectURI string) *Service {
	return &Service{
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURI:  redirectURI,
	}
}

// notifyTokenSource fires the callback when the underlying source hands out
// a different access token, so the refreshed blob reaches storage before any
// mail is processed.
type notifyTokenSource struct {
	src      oauth2.TokenSource
	current  *oauth2.Token
	callback TokenUpdateFunc
}

func (s *notifyTokenSource) Token() (*oauth2.Token, error) {
	t, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	if s.callback != nil && s.current.AccessToken != t.AccessToken {
		s.current = t
		if err := s.callback(t); err != nil {
			return nil, fmt.Errorf("failed to persist refreshed token: %w", err)
		}
	}
	return t, nil
}

func (s *Service) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     s.clientID,
		ClientSecret: s.clientSecret,
		RedirectURL:  s.redirectURI,
		Scopes:       scopes,
		Endpoint:     google.Endpoint,
	}
}

// AuthURL returns the consent URL for the manual copy-paste OAuth flow.
func (s *Service) AuthURL(state string) string {
	return s.oauthConfig().AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

// Exchange trades an authorization code for a token and resolves the account
// address. Returns the address and the token blob to store.
func (s *Service) Exchange(ctx context.Context, code string) (string, string, error) {
	token, err := s.oauthConfig().Exchange(ctx, code)
	if err != nil {
		return "", "", fmt.Errorf("code exchange failed: %w", err)
	}

	client := s.oauthConfig().Client(ctx, token)
	userinfoSvc, err := goauth2.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return "", "", fmt.Errorf("unable to create userinfo service: %w", err)
	}
	info, err := userinfoSvc.Userinfo.Get().Do()
	if err != nil {
		return "", "", fmt.Errorf("unable to fetch account email: %w", err)
	}

	blob, err := json.Marshal(token)
	if err != nil {
		return "", "", err
	}
	return info.Email, string(blob), nil
}

// Mailbox is a per-account handle over the Gmail API.
type Mailbox struct {
	svc *gmail.Service
}

// Open builds a Gmail client from a stored token blob. The token source is
// wrapped so onTokenRefresh runs whenever Google rotates the access token.
func (s *Service) Open(ctx context.Context, credentialsJSON string, onTokenRefresh TokenUpdateFunc) (*Mailbox, error) {
	var token oauth2.Token
	if err := json.Unmarshal([]byte(credentialsJSON), &token); err != nil {
		return nil, fmt.Errorf("invalid credentials blob: %w", err)
	}

	tokenSource := s.oauthConfig().TokenSource(ctx, &token)
	wrappedSource := &notifyTokenSource{
		src:      tokenSource,
		current:  &token,
		callback: onTokenRefresh,
	}

	client := oauth2.NewClient(ctx, wrappedSource)
	svc, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %w", err)
	}
	return &Mailbox{svc: svc}, nil
}

// FetchRecent lists inbox messages newer than the lookback window, capped at
// max results, and fetches each in full.
func (m *Mailbox) FetchRecent(ctx context.Context, lookback time.Duration, max int64) ([]scandomain.Email, error) {
	after := time.Now().Add(-lookback).Unix()
	q := fmt.Sprintf("in:inbox after:%d", after)

	resp, err := m.svc.Users.Messages.List("me").Q(q).MaxResults(max).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to list messages: %w", err)
	}

	emails := make([]scandomain.Email, 0, len(resp.Messages))
	for _, msg := range resp.Messages {
		full, err := m.svc.Users.Messages.Get("me", msg.Id).Format("full").Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("unable to fetch message %s: %w", msg.Id, err)
		}
		emails = append(emails, messageToEmail(full))
	}
	return emails, nil
}

func messageToEmail(msg *gmail.Message) scandomain.Email {
	email := scandomain.Email{
		ID:      msg.Id,
		Sender:  "unknown",
		Subject: "(no subject)",
		Snippet: msg.Snippet,
	}
	if msg.Payload == nil {
		return email
	}
	for _, h := range msg.Payload.Headers {
		switch h.Name {
		case "From":
			email.Sender = h.Value
		case "Subject":
			email.Subject = h.Value
		}
	}
	body := extractBody(msg.Payload)
	if len(body) > bodyLimit {
		// Back up to a rune boundary so the cut never leaves a broken sequence.
		cut := bodyLimit
		for cut > 0 && !utf8.RuneStart(body[cut]) {
			cut--
		}
		body = body[:cut]
	}
	email.Body = body
	return email
}

// extractBody walks the MIME tree preferring the first text/plain part.
func extractBody(payload *gmail.MessagePart) string {
	if payload == nil {
		return ""
	}
	if len(payload.Parts) > 0 {
		for _, part := range payload.Parts {
			if part.MimeType == "text/plain" && part.Body != nil && part.Body.Data != "" {
				if decoded, err := base64.URLEncoding.DecodeString(part.Body.Data); err == nil {
					return string(decoded)
				}
			}
		}
		for _, part := range payload.Parts {
			if body := extractBody(part); body != "" {
				return body
			}
		}
		return ""
	}
	if payload.Body != nil && payload.Body.Data != "" {
		if decoded, err := base64.URLEncoding.DecodeString(payload.Body.Data); err == nil {
			return string(decoded)
		}
	}
	return ""
}

// BuildLabelCache fetches the label list once, creates any missing labels,
// and returns label name to label id. Lookup is case-insensitive like Gmail itself.
func (m *Mailbox) BuildLabelCache(ctx context.Context, names []string) (map[string]string, error) {
	resp, err := m.svc.Users.Labels.List("me").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to list labels: %w", err)
	}

	existing := make(map[string]string, len(resp.Labels))
	for _, label := range resp.Labels {
		existing[strings.ToLower(label.Name)] = label.Id
	}

	cache := make(map[string]string, len(names))
	for _, name := range names {
		if id, ok := existing[strings.ToLower(name)]; ok {
			cache[name] = id
			continue
		}
		created, err := m.svc.Users.Labels.Create("me", &gmail.Label{
			Name:                  name,
			LabelListVisibility:   "labelShow",
			MessageListVisibility: "show",
		}).Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("unable to create label %q: %w", name, err)
		}
		cache[name] = created.Id
	}
	return cache, nil
}

func (m *Mailbox) ApplyLabel(ctx context.Context, messageID, labelID string) error {
	_, err := m.svc.Users.Messages.Modify("me", messageID, &gmail.ModifyMessageRequest{
		AddLabelIds: []string{labelID},
	}).Context(ctx).Do()
	return err
}

// Archive removes the message from the inbox.
func (m *Mailbox) Archive(ctx context.Context, messageID string) error {
	_, err := m.svc.Users.Messages.Modify("me", messageID, &gmail.ModifyMessageRequest{
		RemoveLabelIds: []string{"INBOX"},
	}).Context(ctx).Do()
	return err
}

func (m *Mailbox) MarkSpam(ctx context.Context, messageID string) error {
	_, err := m.svc.Users.Messages.Modify("me", messageID, &gmail.ModifyMessageRequest{
		AddLabelIds:    []string{"SPAM"},
		RemoveLabelIds: []string{"INBOX"},
	}).Context(ctx).Do()
	return err
}

func (m *Mailbox) Trash(ctx context.Context, messageID string) error {
	_, err := m.svc.Users.Messages.Trash("me", messageID).Context(ctx).Do()
	return err
}
