package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nidhogg/catcity/internal/chat"
	"github.com/nidhogg/catcity/internal/events"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// FeedItem is one entry of the Redis feed stream.
type FeedItem struct {
	Kind    string        `json:"kind"` // "message" | "event" | "broadcast"
	Message *chat.Message `json:"message,omitempty"`
	Event   *events.Event `json:"event,omitempty"`
	Text    string        `json:"text,omitempty"`
}

const (
	defaultFeedStream = "catcity:feed"
	inputStreamSuffix = ":input"
	feedMaxLen        = 10000
)

// RedisFeed publishes the simulation feed to a Redis stream so other
// processes can follow it, and reads player input from a sibling stream.
// It is both a feed sink and a gateway adapter.
type RedisFeed struct {
	rdb     *redis.Client
	stream  string
	handler MessageHandler

	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *zap.Logger
}

// NewRedisFeed connects to Redis and verifies the server responds.
func NewRedisFeed(redisURL, stream string, logger *zap.Logger) (*RedisFeed, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if stream == "" {
		stream = defaultFeedStream
	}
	return &RedisFeed{rdb: rdb, stream: stream, logger: logger}, nil
}

func (f *RedisFeed) Name() string     { return "redis" }
func (f *RedisFeed) Platform() string { return "redis" }

func (f *RedisFeed) OnMessage(h MessageHandler) { f.handler = h }

// Stream returns the feed stream key. Input is read from Stream()+":input".
func (f *RedisFeed) Stream() string { return f.stream }

func (f *RedisFeed) RecordMessage(ctx context.Context, m chat.Message) error {
	return f.publish(ctx, f.stream, &FeedItem{Kind: "message", Message: &m})
}

func (f *RedisFeed) RecordEvent(ctx context.Context, e events.Event) error {
	return f.publish(ctx, f.stream, &FeedItem{Kind: "event", Event: &e})
}

// Send appends a reply to the input stream's reply key for ChannelID.
func (f *RedisFeed) Send(ctx context.Context, msg *OutboundMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	key := f.stream + ":reply:" + msg.ChannelID
	if err := f.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: key,
		MaxLen: 100,
		Approx: true,
		Values: map[string]any{"data": string(data)},
	}).Err(); err != nil {
		return fmt.Errorf("reply to %s: %w", key, err)
	}
	return nil
}

func (f *RedisFeed) Broadcast(ctx context.Context, msg *BroadcastMessage) error {
	return f.publish(ctx, f.stream, &FeedItem{Kind: "broadcast", Text: msg.Content})
}

func (f *RedisFeed) publish(ctx context.Context, stream string, item *FeedItem) error {
	data, err := json.Marshal(item)
	if err != nil {
		return err
	}
	_, err = f.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: feedMaxLen,
		Approx: true,
		Values: map[string]any{
			"data": string(data),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("publish to %s: %w", stream, err)
	}
	return nil
}

// Subscribe follows the feed stream from now on. Cancel ctx to stop.
func (f *RedisFeed) Subscribe(ctx context.Context) <-chan *FeedItem {
	ch := make(chan *FeedItem, 16)
	go func() {
		defer close(ch)
		f.readLoop(ctx, f.stream, func(data string) {
			var item FeedItem
			if json.Unmarshal([]byte(data), &item) == nil {
				select {
				case ch <- &item:
				case <-ctx.Done():
				}
			}
		})
	}()
	return ch
}

// PublishInput appends one line of player input, as an external client
// would. It returns the channel id replies are addressed to.
func (f *RedisFeed) PublishInput(ctx context.Context, in InputPayload) (string, error) {
	channelID := uuid.New().String()
	data, err := json.Marshal(struct {
		InputPayload
		ChannelID string `json:"channel_id"`
	}{in, channelID})
	if err != nil {
		return "", err
	}
	stream := f.stream + inputStreamSuffix
	if err := f.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]any{"data": string(data)},
	}).Err(); err != nil {
		return "", fmt.Errorf("publish input: %w", err)
	}
	return channelID, nil
}

// Connect starts consuming the input stream.
func (f *RedisFeed) Connect(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		f.readLoop(ctx, f.stream+inputStreamSuffix, f.handleInput)
	}()
	f.logger.Info("redis feed consuming input", zap.String("stream", f.stream+inputStreamSuffix))
	return nil
}

func (f *RedisFeed) handleInput(data string) {
	var in struct {
		InputPayload
		ChannelID string `json:"channel_id"`
	}
	if err := json.Unmarshal([]byte(data), &in); err != nil || in.Content == "" {
		return
	}
	if f.handler == nil {
		return
	}
	f.handler(&InboundMessage{
		Platform:  "redis",
		ChannelID: in.ChannelID,
		UserID:    in.UserID,
		UserName:  in.UserName,
		Content:   in.Content,
		Timestamp: time.Now(),
	})
}

func (f *RedisFeed) readLoop(ctx context.Context, stream string, fn func(data string)) {
	lastID := "$"
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		results, err := f.rdb.XRead(ctx, &redis.XReadArgs{
			Streams: []string{stream, lastID},
			Count:   10,
			Block:   time.Second * 2,
		}).Result()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			if !errors.Is(err, redis.Nil) {
				f.logger.Debug("redis read failed", zap.String("stream", stream), zap.Error(err))
				select {
				case <-ctx.Done():
					return
				case <-time.After(time.Second):
				}
			}
			continue
		}

		for _, r := range results {
			for _, msg := range r.Messages {
				lastID = msg.ID
				data, ok := msg.Values["data"].(string)
				if !ok {
					continue
				}
				fn(data)
			}
		}
	}
}

// Close stops the input consumer and closes the connection.
func (f *RedisFeed) Close() error {
	if f.cancel != nil {
		f.cancel()
	}
	f.wg.Wait()
	return f.rdb.Close()
}
