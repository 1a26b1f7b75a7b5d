package store

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/pathakanu/flowcall/internal/model"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared&_fk=1", name, time.Now().UnixNano())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err, "open sqlite memory")

	err = db.AutoMigrate(&model.User{}, &model.Session{}, &model.Reminder{}, &model.Trigger{})
	require.NoError(t, err, "auto migrate")
	return db
}

func TestTriggerStorePutGetDelete(t *testing.T) {
	t.Parallel()
	triggers := NewTriggerStore(newTestDB(t))

	fireTime := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	require.NoError(t, triggers.Put(&model.Trigger{JobID: "reminder_1", FireTime: fireTime, ReminderID: 1}))

	got, err := triggers.Get("reminder_1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, uint(1), got.ReminderID)
	require.True(t, got.FireTime.Equal(fireTime), "fire time round trip")

	missing, err := triggers.Get("reminder_99")
	require.NoError(t, err)
	require.Nil(t, missing)

	require.NoError(t, triggers.Delete("reminder_1"))
	got, err = triggers.Get("reminder_1")
	require.NoError(t, err)
	require.Nil(t, got)

	// deleting again is a no-op
	require.NoError(t, triggers.Delete("reminder_1"))
}

func TestTriggerStorePutReplacesExisting(t *testing.T) {
	t.Parallel()
	triggers := NewTriggerStore(newTestDB(t))

	first := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	second := first.Add(2 * time.Hour)
	require.NoError(t, triggers.Put(&model.Trigger{JobID: "reminder_7", FireTime: first, ReminderID: 7}))
	require.NoError(t, triggers.Put(&model.Trigger{JobID: "reminder_7", FireTime: second, ReminderID: 7}))

	all, err := triggers.ListPending()
	require.NoError(t, err)
	require.Len(t, all, 1, "replace must not create a second row")
	require.True(t, all[0].FireTime.Equal(second))
}

func TestTriggerStoreOrdering(t *testing.T) {
	t.Parallel()
	triggers := NewTriggerStore(newTestDB(t))

	base := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, triggers.Put(&model.Trigger{JobID: "reminder_3", FireTime: base.Add(time.Minute), ReminderID: 3}))
	require.NoError(t, triggers.Put(&model.Trigger{JobID: "reminder_2", FireTime: base.Add(time.Minute), ReminderID: 2}))
	require.NoError(t, triggers.Put(&model.Trigger{JobID: "reminder_1", FireTime: base.Add(time.Hour), ReminderID: 1}))

	all, err := triggers.ListPending()
	require.NoError(t, err)
	require.Len(t, all, 3)
	// ascending fire time, job id breaks the tie
	require.Equal(t, "reminder_2", all[0].JobID)
	require.Equal(t, "reminder_3", all[1].JobID)
	require.Equal(t, "reminder_1", all[2].JobID)

	due, err := triggers.Due(base.Add(2 * time.Minute))
	require.NoError(t, err)
	require.Len(t, due, 2)
	require.Equal(t, "reminder_2", due[0].JobID)
	require.Equal(t, "reminder_3", due[1].JobID)
}

func TestReminderStoreOwnership(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	reminders := NewReminderStore(db)

	owner := model.User{PhoneNumber: "+15550000001"}
	other := model.User{PhoneNumber: "+15550000002"}
	require.NoError(t, db.Create(&owner).Error)
	require.NoError(t, db.Create(&other).Error)

	rem := model.Reminder{UserID: owner.ID, Title: "dentist", PhoneToCall: owner.PhoneNumber, Status: model.StatusPending}
	require.NoError(t, reminders.Create(&rem))

	got, err := reminders.GetOwned(owner.ID, rem.ID)
	require.NoError(t, err)
	require.NotNil(t, got)

	got, err = reminders.GetOwned(other.ID, rem.ID)
	require.NoError(t, err)
	require.Nil(t, got, "other users must not see the reminder")

	found, err := reminders.Delete(other.ID, rem.ID)
	require.NoError(t, err)
	require.False(t, found)

	found, err = reminders.Delete(owner.ID, rem.ID)
	require.NoError(t, err)
	require.True(t, found)
}

func TestReminderStoreListFilters(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	reminders := NewReminderStore(db)

	user := model.User{PhoneNumber: "+15550000003"}
	require.NoError(t, db.Create(&user).Error)

	seed := []model.Reminder{
		{UserID: user.ID, Title: "Pay rent", PhoneToCall: user.PhoneNumber, Status: model.StatusPending},
		{UserID: user.ID, Title: "Call dentist", Description: "ask about rent discount", PhoneToCall: user.PhoneNumber, Status: model.StatusCompleted},
		{UserID: user.ID, Title: "Buy milk", PhoneToCall: user.PhoneNumber, Status: model.StatusFailed},
	}
	for i := range seed {
		require.NoError(t, reminders.Create(&seed[i]))
	}

	byStatus, err := reminders.List(user.ID, ListFilter{Status: model.StatusPending})
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	require.Equal(t, "Pay rent", byStatus[0].Title)

	// search matches title and description, case-insensitively
	bySearch, err := reminders.List(user.ID, ListFilter{Search: "RENT"})
	require.NoError(t, err)
	require.Len(t, bySearch, 2)

	paged, err := reminders.List(user.ID, ListFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, paged, 2)

	paged, err = reminders.List(user.ID, ListFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, paged, 1)
}

func TestReminderStoreListScheduledPending(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	reminders := NewReminderStore(db)

	user := model.User{PhoneNumber: "+15550000004"}
	require.NoError(t, db.Create(&user).Error)

	future := time.Now().UTC().Add(time.Hour)
	seed := []model.Reminder{
		{UserID: user.ID, Title: "scheduled", PhoneToCall: user.PhoneNumber, ScheduledTime: &future, Status: model.StatusPending},
		{UserID: user.ID, Title: "unscheduled", PhoneToCall: user.PhoneNumber, Status: model.StatusPending},
		{UserID: user.ID, Title: "done", PhoneToCall: user.PhoneNumber, ScheduledTime: &future, Status: model.StatusCompleted},
	}
	for i := range seed {
		require.NoError(t, reminders.Create(&seed[i]))
	}

	pending, err := reminders.ListScheduledPending()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "scheduled", pending[0].Title)
}

func TestUserStoreFindOrCreateByPhone(t *testing.T) {
	t.Parallel()
	users := NewUserStore(newTestDB(t))

	first, err := users.FindOrCreateByPhone("+15550000005")
	require.NoError(t, err)
	require.NotZero(t, first.ID)

	again, err := users.FindOrCreateByPhone("+15550000005")
	require.NoError(t, err)
	require.Equal(t, first.ID, again.ID, "second sign-in must reuse the user")
}
