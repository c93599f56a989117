package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"wehabit/internal/config"
	"wehabit/internal/logger"
	"wehabit/internal/metrics"
	"wehabit/internal/model"
	"wehabit/internal/repository"
)

const testAppURL = "https://t.me/wehabit_bot/app"

// Monday 2025-03-10, 12:00 at UTC+3.
var testStart = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

type sentMessage struct {
	ChatID int64
	Text   string
	Button *LinkButton
}

// fakeDeliverer records messages. Errors in fail are returned in order, one per call.
type fakeDeliverer struct {
	mu   sync.Mutex
	sent []sentMessage
	fail []error
	// always, when set, is returned by every call.
	always error
}

func (d *fakeDeliverer) Deliver(_ context.Context, chatID int64, text string, button *LinkButton) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.always != nil {
		return d.always
	}
	if len(d.fail) > 0 {
		err := d.fail[0]
		d.fail = d.fail[1:]
		if err != nil {
			return err
		}
	}
	d.sent = append(d.sent, sentMessage{ChatID: chatID, Text: text, Button: button})
	return nil
}

func (d *fakeDeliverer) messages() []sentMessage {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]sentMessage(nil), d.sent...)
}

type testEnv struct {
	t   *testing.T
	ctx context.Context
	now time.Time
	loc *time.Location

	db           *gorm.DB
	store        *repository.Store
	table        config.AchievementTable
	feed         *FeedService
	achievements *AchievementService
	participants *ParticipationService
	completions  *CompletionService
	habits       *HabitService
	friends      *FriendService
	stats        *StatsService
	users        *UserService
	deliverer    *fakeDeliverer
	metrics      *metrics.Metrics
	reminders    *ReminderService
	notifier     *NotificationService

	nextTelegramID int64
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	l := logger.Discard()
	db, err := repository.NewDB(filepath.Join(t.TempDir(), "wehabit.db"), l)
	require.NoError(t, err)
	store := repository.NewStore(db)
	t.Cleanup(func() { _ = store.Close() })

	table, err := config.LoadAchievements("")
	require.NoError(t, err)

	e := &testEnv{
		t:              t,
		ctx:            context.Background(),
		now:            testStart,
		loc:            time.FixedZone("UTC+03:00", 3*3600),
		db:             db,
		store:          store,
		table:          table,
		deliverer:      &fakeDeliverer{},
		metrics:        metrics.New(),
		nextTelegramID: 1000,
	}
	clock := Clock(func() time.Time { return e.now })

	e.feed = NewFeedService(store, clock, l)
	e.achievements = NewAchievementService(store, table, e.feed, l)
	e.participants = NewParticipationService(store, e.feed, e.achievements, clock, l)
	e.completions = NewCompletionService(store, e.feed, e.achievements, clock, e.loc, l)
	e.habits = NewHabitService(store, e.participants, clock, l)
	e.friends = NewFriendService(store, e.achievements, l)
	e.stats = NewStatsService(store, e.participants, clock, e.loc)
	e.users = NewUserService(store)

	delivery := DeliveryConfig{AppURL: testAppURL, MaxAttempts: 5, RetryBase: time.Minute, RetryMax: time.Hour}
	e.reminders = NewReminderService(store, e.deliverer, delivery.Button(), e.loc, clock, e.metrics, l)
	e.notifier = NewNotificationService(store, e.deliverer, e.reminders, table, delivery, e.loc, clock, e.metrics, l)
	return e
}

func (e *testEnv) user(name string) *model.User {
	e.t.Helper()
	e.nextTelegramID++
	u, err := e.users.Register(e.ctx, e.nextTelegramID, name, "", "")
	require.NoError(e.t, err)
	return u
}

func (e *testEnv) habit(owner *model.User, name string, invitees ...*model.User) *model.Habit {
	e.t.Helper()
	ids := make([]uuid.UUID, 0, len(invitees))
	for _, u := range invitees {
		ids = append(ids, u.ID)
	}
	h, err := e.habits.Create(e.ctx, owner.ID, HabitInput{Name: name, Invitees: ids})
	require.NoError(e.t, err)
	return h
}

// join invites users into habit and accepts for each of them.
func (e *testEnv) join(h *model.Habit, users ...*model.User) {
	e.t.Helper()
	for _, u := range users {
		_, err := e.participants.Invite(e.ctx, h.ID, h.OwnerID, []uuid.UUID{u.ID})
		require.NoError(e.t, err)
		_, err = e.participants.Accept(e.ctx, h.ID, u.ID, "")
		require.NoError(e.t, err)
	}
}

func (e *testEnv) befriend(a, b *model.User) {
	e.t.Helper()
	_, err := e.friends.Request(e.ctx, a.ID, b.ID)
	require.NoError(e.t, err)
	_, err = e.friends.Accept(e.ctx, b.ID, a.ID)
	require.NoError(e.t, err)
}

func (e *testEnv) complete(h *model.Habit, u *model.User, dates ...string) {
	e.t.Helper()
	for _, d := range dates {
		_, err := e.completions.Record(e.ctx, h.ID, u.ID, d, "")
		require.NoError(e.t, err, d)
	}
}

func (e *testEnv) participant(h *model.Habit, u *model.User) *model.Participant {
	e.t.Helper()
	p, err := e.store.Participants.Find(e.ctx, h.ID, u.ID)
	require.NoError(e.t, err)
	return p
}

// events returns the feed of u restricted to kind.
func (e *testEnv) events(u *model.User, kind model.EventKind) []model.FeedEvent {
	e.t.Helper()
	all, err := e.feed.Feed(e.ctx, u.ID, 0)
	require.NoError(e.t, err)
	var out []model.FeedEvent
	for _, ev := range all {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

func (e *testEnv) event(id string) *model.FeedEvent {
	e.t.Helper()
	ev, err := e.store.Feed.FindByID(e.ctx, id)
	require.NoError(e.t, err)
	return ev
}

var errTransient = errors.New("telegram unavailable")
