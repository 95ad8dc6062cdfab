// Package workflow implements the content generation and approval state
// machine: a batch of candidate posts or replies is generated, reviewed
// item by item by a human, and then committed — posts into a scheduled
// posting job, replies published immediately.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tradeup/x-engager/internal/core/domain"
	"github.com/tradeup/x-engager/internal/core/ports"
)

type BatchState string

const (
	StateGenerating BatchState = "generating"
	StateReviewing  BatchState = "reviewing"
	StateCommitting BatchState = "committing"
	StateDone       BatchState = "done"
)

// Batch is one generation run, reviewed and committed together. Closing the
// workflow before commit discards the whole batch with no side effects.
type Batch struct {
	ID        string               `json:"id"`
	Type      domain.ContentType   `json:"type"`
	State     BatchState           `json:"state"`
	Settings  domain.JobSettings   `json:"settings"`
	Items     []domain.ContentItem `json:"items"`
	Results   []domain.PostedReply `json:"results,omitempty"`
	Error     string               `json:"error,omitempty"`
	CreatedAt time.Time            `json:"createdAt"`

	// pool holds the fetched candidate tweets for reply batches, so
	// regenerate-different can pick an alternative without re-fetching.
	pool []domain.SourceTweet
}

// JobCreator turns a committed posting batch into a scheduled posting job.
type JobCreator interface {
	CreatePostingJob(ctx context.Context, name string, settings domain.JobSettings, items []domain.ContentItem) (domain.BotJob, error)
}

// Service owns all live batches. Item mutations are serialized under the
// service lock, but generation and posting calls run outside it so parallel
// per-item regenerations do not block each other.
type Service struct {
	logger *slog.Logger
	gen    ports.Generator
	poster ports.Poster
	tweets ports.TweetSource
	jobs   JobCreator

	// onCommitted, when set, is invoked after a successful commit so the
	// registry can refresh. Called on a goroutine after refreshDelay.
	onCommitted  func()
	refreshDelay time.Duration

	randInt func(n int) int

	mu         sync.Mutex
	batches    map[string]*Batch
	busy       map[string]bool
	generating bool
}

type Option func(*Service)

// WithCommitHook registers a callback fired after each successful commit,
// delayed to let the backend settle before the registry re-polls.
func WithCommitHook(delay time.Duration, fn func()) Option {
	return func(s *Service) {
		s.refreshDelay = delay
		s.onCommitted = fn
	}
}

func NewService(logger *slog.Logger, gen ports.Generator, poster ports.Poster, tweets ports.TweetSource, jobs JobCreator, opts ...Option) *Service {
	s := &Service{
		logger:  logger,
		gen:     gen,
		poster:  poster,
		tweets:  tweets,
		jobs:    jobs,
		randInt: rand.IntN,
		batches: make(map[string]*Batch),
		busy:    make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GeneratePostBatch generates settings.PostsPerDay candidate posts. Topics
// are drawn uniformly at random with repetition from the configured set.
// Individual generation failures drop that slot; only a batch with zero
// successes is an error. Generation is sequential so items keep a
// deterministic order.
func (s *Service) GeneratePostBatch(ctx context.Context, settings domain.JobSettings) (Batch, error) {
	if len(settings.Topics) == 0 {
		return Batch{}, domain.ErrNoTopics
	}
	count := settings.PostsPerDay
	if count <= 0 {
		count = 1
	}
	slots, err := ScheduleSlots(settings, count)
	if err != nil {
		return Batch{}, err
	}
	if err := s.beginGeneration(); err != nil {
		return Batch{}, err
	}
	defer s.endGeneration()

	b := &Batch{
		ID:        uuid.New().String(),
		Type:      domain.ContentTypePost,
		State:     StateGenerating,
		Settings:  settings,
		CreatedAt: time.Now(),
	}

	for i := 0; i < count; i++ {
		topic := settings.Topics[s.randInt(len(settings.Topics))]
		post, err := s.gen.GeneratePost(ctx, topic)
		if err != nil {
			s.logger.Warn("content generation failed, dropping slot", "topic", topic, "error", err)
			continue
		}
		b.Items = append(b.Items, domain.ContentItem{
			ID:       uuid.New().String(),
			Type:     domain.ContentTypePost,
			Content:  post.Content,
			State:    domain.ReviewPending,
			Topic:    post.Topic,
			Hashtags: post.Hashtags,
		})
	}

	if len(b.Items) == 0 {
		return Batch{}, fmt.Errorf("content generation produced no posts")
	}

	// Slot i belongs to item i in generation order; slots left over from
	// dropped generations are simply unused.
	for i := range b.Items {
		t := slots[i]
		b.Items[i].ScheduledTime = &t
	}

	b.State = StateReviewing
	s.store(b)
	return s.snapshot(b), nil
}

// GenerateReplyBatch fetches the candidate pool and generates one reply per
// tweet for the first settings.ReplyCount candidates. An empty pool aborts
// before any generation call; zero successful replies aborts the batch;
// partial success proceeds with the successful subset.
func (s *Service) GenerateReplyBatch(ctx context.Context, settings domain.JobSettings) (Batch, error) {
	if err := s.beginGeneration(); err != nil {
		return Batch{}, err
	}
	defer s.endGeneration()

	pool, err := s.tweets.FetchTweets(ctx)
	if err != nil {
		return Batch{}, fmt.Errorf("fetch candidate tweets: %w", err)
	}
	if len(pool) == 0 {
		return Batch{}, domain.ErrNoTweets
	}

	count := settings.ReplyCount
	if count <= 0 {
		count = 5
	}
	if count > len(pool) {
		count = len(pool)
	}

	b := &Batch{
		ID:        uuid.New().String(),
		Type:      domain.ContentTypeReply,
		State:     StateGenerating,
		Settings:  settings,
		CreatedAt: time.Now(),
		pool:      pool,
	}

	for _, tweet := range pool[:count] {
		reply, err := s.gen.GenerateReply(ctx, tweet)
		if err != nil {
			s.logger.Warn("reply generation failed, skipping tweet", "tweet_id", tweet.ID, "error", err)
			continue
		}
		b.Items = append(b.Items, domain.ContentItem{
			ID:               uuid.New().String(),
			Type:             domain.ContentTypeReply,
			Content:          reply,
			State:            domain.ReviewPending,
			TweetID:          tweet.ID,
			TweetAuthor:      tweet.Author,
			OriginalTweet:    tweet.Text,
			OriginalTweetURL: tweet.URL,
		})
	}

	if len(b.Items) == 0 {
		return Batch{}, fmt.Errorf("reply generation produced no replies")
	}

	b.State = StateReviewing
	s.store(b)
	return s.snapshot(b), nil
}

// Approve marks an item approved. Idempotent.
func (s *Service) Approve(batchID, itemID string) (Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, item, err := s.findLocked(batchID, itemID)
	if err != nil {
		return Batch{}, err
	}
	item.State = domain.ReviewApproved
	return s.snapshotLocked(b), nil
}

// Regenerate replaces an item's content using the same topic (posts) or the
// same source tweet (replies). Success resets the item to pending so it
// must be re-reviewed; failure leaves the item untouched.
func (s *Service) Regenerate(ctx context.Context, batchID, itemID string) (Batch, error) {
	return s.regenerate(ctx, batchID, itemID, "regenerate", false)
}

// RegenerateDifferent regenerates with a different context: a different
// topic for posts (falling back to the same topic when only one is
// configured), a different pool tweet for replies (an error when the pool
// has no alternative).
func (s *Service) RegenerateDifferent(ctx context.Context, batchID, itemID string) (Batch, error) {
	return s.regenerate(ctx, batchID, itemID, "regenerate-different", true)
}

func (s *Service) regenerate(ctx context.Context, batchID, itemID, action string, different bool) (Batch, error) {
	key := itemID + "-" + action

	s.mu.Lock()
	b, item, err := s.findLocked(batchID, itemID)
	if err != nil {
		s.mu.Unlock()
		return Batch{}, err
	}
	if s.busy[key] {
		s.mu.Unlock()
		return s.Get(batchID)
	}

	prev := *item

	var (
		topic string
		tweet domain.SourceTweet
	)
	if item.Type == domain.ContentTypePost {
		topic = item.Topic
		if different {
			topic = s.pickDifferentTopicLocked(b, item.Topic)
		}
	} else {
		tweet = domain.SourceTweet{
			ID:     item.TweetID,
			Author: item.TweetAuthor,
			Text:   item.OriginalTweet,
			URL:    item.OriginalTweetURL,
		}
		if different {
			alt, ok := s.pickDifferentTweetLocked(b, item.TweetID)
			if !ok {
				s.mu.Unlock()
				return Batch{}, fmt.Errorf("no alternative tweet in pool for item %s", itemID)
			}
			tweet = alt
		}
	}

	s.busy[key] = true
	item.State = domain.ReviewRegenerating
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.busy, key)
		s.mu.Unlock()
	}()

	var (
		newItem domain.ContentItem
		genErr  error
	)
	if prev.Type == domain.ContentTypePost {
		post, err := s.gen.GeneratePost(ctx, topic)
		if err != nil {
			genErr = err
		} else {
			newItem = prev
			newItem.Content = post.Content
			newItem.Topic = post.Topic
			newItem.Hashtags = post.Hashtags
			newItem.State = domain.ReviewPending
		}
	} else {
		reply, err := s.gen.GenerateReply(ctx, tweet)
		if err != nil {
			genErr = err
		} else {
			newItem = prev
			newItem.Content = reply
			newItem.TweetID = tweet.ID
			newItem.TweetAuthor = tweet.Author
			newItem.OriginalTweet = tweet.Text
			newItem.OriginalTweetURL = tweet.URL
			newItem.State = domain.ReviewPending
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, item, err = s.findLocked(batchID, itemID)
	if err != nil {
		// Batch was closed while the call was in flight; discard quietly.
		return Batch{}, err
	}
	if genErr != nil {
		*item = prev
		b.Error = fmt.Sprintf("failed to %s item: %v", action, genErr)
		return s.snapshotLocked(b), genErr
	}
	*item = newItem
	b.Error = ""
	return s.snapshotLocked(b), nil
}

func (s *Service) pickDifferentTopicLocked(b *Batch, current string) string {
	var others []string
	for _, t := range b.Settings.Topics {
		if t != current {
			others = append(others, t)
		}
	}
	if len(others) == 0 {
		// Single-topic configuration: fall back to same-topic regeneration.
		return current
	}
	return others[s.randInt(len(others))]
}

func (s *Service) pickDifferentTweetLocked(b *Batch, currentID string) (domain.SourceTweet, bool) {
	var others []domain.SourceTweet
	for _, t := range b.pool {
		if t.ID != currentID {
			others = append(others, t)
		}
	}
	if len(others) == 0 {
		return domain.SourceTweet{}, false
	}
	return others[s.randInt(len(others))], true
}

// CommitResult reports what a commit actually did.
type CommitResult struct {
	Batch    Batch                `json:"batch"`
	Job      *domain.BotJob       `json:"job,omitempty"`
	Posted   []domain.PostedReply `json:"posted,omitempty"`
	Failed   int                  `json:"failed,omitempty"`
	Attempts int                  `json:"attempts,omitempty"`
}

// Commit turns the approved items into their terminal form. Posting batches
// become one scheduled posting job; reply batches are published immediately,
// one sequential call per item, continuing past individual failures. With
// zero approved items the commit is refused before any network call.
func (s *Service) Commit(ctx context.Context, batchID, jobName string) (CommitResult, error) {
	s.mu.Lock()
	b, ok := s.batches[batchID]
	if !ok {
		s.mu.Unlock()
		return CommitResult{}, domain.ErrBatchNotFound
	}
	// A batch commits exactly once. The state flips to committing under
	// this lock, so a concurrent or repeated commit can never re-post the
	// approved items.
	if b.State == StateCommitting || b.State == StateDone {
		s.mu.Unlock()
		return CommitResult{}, domain.ErrBatchCommitted
	}

	var approved []domain.ContentItem
	for _, it := range b.Items {
		if it.State == domain.ReviewApproved {
			approved = append(approved, it)
		}
	}
	if len(approved) == 0 {
		b.Error = "approve at least one item before committing"
		s.mu.Unlock()
		return CommitResult{}, domain.ErrNothingApproved
	}

	b.State = StateCommitting
	b.Error = ""
	batchType := b.Type
	settings := b.Settings
	s.mu.Unlock()

	if batchType == domain.ContentTypePost {
		return s.commitPosts(ctx, b, jobName, settings, approved)
	}
	return s.commitReplies(ctx, b, approved)
}

func (s *Service) commitPosts(ctx context.Context, b *Batch, jobName string, settings domain.JobSettings, approved []domain.ContentItem) (CommitResult, error) {
	job, err := s.jobs.CreatePostingJob(ctx, jobName, settings, approved)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		// Stay in review with approvals intact so the user can retry.
		b.State = StateReviewing
		b.Error = fmt.Sprintf("failed to create posting job: %v", err)
		return CommitResult{Batch: s.snapshotLocked(b)}, err
	}

	b.State = StateDone
	s.scheduleCommitHook()
	return CommitResult{Batch: s.snapshotLocked(b), Job: &job}, nil
}

func (s *Service) commitReplies(ctx context.Context, b *Batch, approved []domain.ContentItem) (CommitResult, error) {
	var (
		posted []domain.PostedReply
		failed int
	)

	// Replies post immediately and sequentially; a failure mid-list never
	// reverts earlier successes and never stops the remaining items.
	for _, item := range approved {
		res, err := s.poster.PostReply(ctx, item.Content, item.TweetID)
		if err != nil {
			failed++
			s.logger.Warn("reply post failed, continuing", "tweet_id", item.TweetID, "error", err)
			continue
		}
		posted = append(posted, domain.PostedReply{
			ID:               res.TweetID,
			Content:          item.Content,
			OriginalTweet:    item.OriginalTweet,
			TweetAuthor:      item.TweetAuthor,
			ReplyURL:         res.URL,
			OriginalTweetURL: item.OriginalTweetURL,
			PostedAt:         time.Now(),
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(posted) == 0 {
		b.State = StateReviewing
		b.Error = fmt.Sprintf("all %d replies failed to post", failed)
		return CommitResult{Batch: s.snapshotLocked(b), Failed: failed, Attempts: len(approved)},
			fmt.Errorf("all %d replies failed to post", failed)
	}

	b.State = StateDone
	b.Results = posted
	if failed > 0 {
		b.Error = fmt.Sprintf("%d posted, %d failed", len(posted), failed)
	}
	s.scheduleCommitHook()
	return CommitResult{
		Batch:    s.snapshotLocked(b),
		Posted:   posted,
		Failed:   failed,
		Attempts: len(approved),
	}, nil
}

func (s *Service) scheduleCommitHook() {
	if s.onCommitted == nil {
		return
	}
	hook := s.onCommitted
	if s.refreshDelay <= 0 {
		go hook()
		return
	}
	time.AfterFunc(s.refreshDelay, hook)
}

// Close discards a batch. No side effects regardless of its state.
func (s *Service) Close(batchID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.batches, batchID)
}

// Get returns a copy of the batch.
func (s *Service) Get(batchID string) (Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.batches[batchID]
	if !ok {
		return Batch{}, domain.ErrBatchNotFound
	}
	return s.snapshotLocked(b), nil
}

// Busy reports whether an item has the given action in flight.
func (s *Service) Busy(itemID, action string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy[itemID+"-"+action]
}

func (s *Service) beginGeneration() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generating {
		return fmt.Errorf("a batch generation is already in progress")
	}
	s.generating = true
	return nil
}

func (s *Service) endGeneration() {
	s.mu.Lock()
	s.generating = false
	s.mu.Unlock()
}

func (s *Service) store(b *Batch) {
	s.mu.Lock()
	s.batches[b.ID] = b
	s.mu.Unlock()
}

func (s *Service) snapshot(b *Batch) Batch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(b)
}

func (s *Service) snapshotLocked(b *Batch) Batch {
	cp := *b
	cp.Items = make([]domain.ContentItem, len(b.Items))
	copy(cp.Items, b.Items)
	cp.Results = make([]domain.PostedReply, len(b.Results))
	copy(cp.Results, b.Results)
	cp.pool = nil
	return cp
}

func (s *Service) findLocked(batchID, itemID string) (*Batch, *domain.ContentItem, error) {
	b, ok := s.batches[batchID]
	if !ok {
		return nil, nil, domain.ErrBatchNotFound
	}
	for i := range b.Items {
		if b.Items[i].ID == itemID {
			return b, &b.Items[i], nil
		}
	}
	return nil, nil, domain.ErrItemNotFound
}
