package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	accountrepo "labeler-backend/internal/account/repository"
	"labeler-backend/internal/scan/usecase"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

// GmailNotification is the payload Gmail publishes to the watch topic.
type GmailNotification struct {
	EmailAddress string `json:"emailAddress"`
	HistoryID    uint64 `json:"historyId"`
}

// Service listens on a Pub/Sub subscription for Gmail push notifications and
// triggers an immediate scan when one arrives for a connected account. The
// orchestrator's scan gate debounces bursts, so duplicate notifications just
// log a skip.
type Service struct {
	pubsubClient *pubsub.Client
	accountRepo  accountrepo.AccountRepository
	orchestrator *usecase.Orchestrator
	topicName    string
	subName      string
}

func NewService(projectID, topicName, credentialsFile string, accountRepo accountrepo.AccountRepository, orchestrator *usecase.Orchestrator) (*Service, error) {
	ctx := context.Background()

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}

	return &Service{
		pubsubClient: client,
		accountRepo:  accountRepo,
		orchestrator: orchestrator,
		topicName:    topicName,
		subName:      topicName + "-sub",
	}, nil
}

func (s *Service) Start(ctx context.Context) {
	log.Printf("[PubSub] Starting push listener with topic: %s, subscription: %s", s.topicName, s.subName)

	sub := s.pubsubClient.Subscription(s.subName)
	exists, err := sub.Exists(ctx)
	if err != nil {
		log.Printf("[PubSub] Error checking subscription existence: %v", err)
		return
	}

	if !exists {
		topic := s.pubsubClient.Topic(s.topicName)
		topicExists, err := topic.Exists(ctx)
		if err != nil {
			log.Printf("[PubSub] Error checking topic existence: %v", err)
			return
		}
		if !topicExists {
			log.Printf("[PubSub] Topic %s does not exist, push trigger disabled", s.topicName)
			return
		}

		sub, err = s.pubsubClient.CreateSubscription(ctx, s.subName, pubsub.SubscriptionConfig{
			Topic:       topic,
			AckDeadline: 10 * time.Second,
		})
		if err != nil {
			log.Printf("[PubSub] Failed to create subscription: %v", err)
			return
		}
		log.Printf("[PubSub] Created subscription: %s", s.subName)
	}

	err = sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		s.handleMessage(msg)
		msg.Ack()
	})
	if err != nil {
		log.Printf("[PubSub] Error receiving messages: %v", err)
	}
}

func (s *Service) handleMessage(msg *pubsub.Message) {
	var notification GmailNotification
	if err := json.Unmarshal(msg.Data, &notification); err != nil {
		log.Printf("[PubSub] Failed to unmarshal notification: %v", err)
		return
	}

	account, err := s.accountRepo.FindByEmail(notification.EmailAddress)
	if err != nil || account == nil || !account.Active {
		log.Printf("[PubSub] Notification for unknown or inactive account %s, ignoring", notification.EmailAddress)
		return
	}

	log.Printf("[PubSub] Push for %s (historyId: %d), triggering scan", notification.EmailAddress, notification.HistoryID)
	s.orchestrator.RunNow()
}
