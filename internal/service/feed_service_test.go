package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wehabit/internal/model"
)

func TestEveryKindHasRuleAndTemplate(t *testing.T) {
	for _, kind := range model.EventKinds {
		_, ok := recipientRules[kind]
		assert.True(t, ok, "recipient rule for %s", kind)
		_, ok = eventTemplates[kind]
		assert.True(t, ok, "template for %s", kind)
	}
	assert.Len(t, recipientRules, len(model.EventKinds))
	assert.Len(t, eventTemplates, len(model.EventKinds))
}

func TestRecipients(t *testing.T) {
	owner, ben, cid, dina := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	shared := &model.Habit{ID: uuid.New(), OwnerID: owner, IsShared: true}
	private := &model.Habit{ID: uuid.New(), OwnerID: owner}
	members := []model.Participant{
		{UserID: owner, Status: model.StatusAccepted},
		{UserID: ben, Status: model.StatusAccepted},
		{UserID: cid, Status: model.StatusAccepted},
		{UserID: dina, Status: model.StatusPending},
	}

	tests := []struct {
		name   string
		action Action
		want   []uuid.UUID
	}{
		{"completed by participant", Action{Kind: model.EventCompleted, ActorID: ben, Habit: shared, Participants: members}, []uuid.UUID{owner, cid}},
		{"completed by owner", Action{Kind: model.EventCompleted, ActorID: owner, Habit: shared, Participants: members}, []uuid.UUID{ben, cid}},
		{"completed private habit", Action{Kind: model.EventCompleted, ActorID: owner, Habit: private, Participants: members[:1]}, nil},
		{"joined", Action{Kind: model.EventJoined, ActorID: ben, Habit: shared}, []uuid.UUID{owner}},
		{"declined", Action{Kind: model.EventDeclined, ActorID: dina, Habit: shared}, []uuid.UUID{owner}},
		{"left", Action{Kind: model.EventLeft, ActorID: cid, Habit: shared}, []uuid.UUID{owner}},
		{"removed by owner", Action{Kind: model.EventRemoved, ActorID: owner, Habit: shared, Subject: cid}, []uuid.UUID{cid}},
		{"invited", Action{Kind: model.EventInvited, ActorID: owner, Habit: shared, Subject: dina}, []uuid.UUID{dina}},
		{"achievement", Action{Kind: model.EventAchievement, ActorID: ben, Friends: []uuid.UUID{cid, dina, cid}}, []uuid.UUID{ben, cid, dina}},
		{"achievement without friends", Action{Kind: model.EventAchievement, ActorID: ben}, []uuid.UUID{ben}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Recipients(tt.action)
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, got)
		})
	}

	_, err := Recipients(Action{Kind: "poked", ActorID: ben})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestDispatchAndFeedOrder(t *testing.T) {
	e := newTestEnv(t)
	ann, ben := e.user("Аня"), e.user("Бен")
	h := e.habit(ann, "Бег")

	e.join(h, ben)
	e.now = e.now.Add(time.Minute)
	e.complete(h, ben, "2025-03-10")

	feed, err := e.feed.Feed(e.ctx, ann.ID, 0)
	require.NoError(t, err)
	// Бен joining also unlocked Аня's habit_invites achievement.
	require.Len(t, feed, 3)
	assert.Equal(t, model.EventCompleted, feed[0].Kind, "newest first")
	assert.ElementsMatch(t, []model.EventKind{model.EventJoined, model.EventAchievement}, []model.EventKind{feed[1].Kind, feed[2].Kind})
	for _, ev := range feed {
		assert.Len(t, ev.ID, 26)
		assert.Equal(t, ann.ID, ev.RecipientID)
		assert.Equal(t, model.DeliveryPending, ev.State)
	}

	limited, err := e.feed.Feed(e.ctx, ann.ID, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
