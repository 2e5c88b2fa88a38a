package session

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/sciencepoint/internal/domain"
	"github.com/felixgeelhaar/sciencepoint/internal/log"
	"github.com/felixgeelhaar/sciencepoint/internal/storage"
)

const testToken = "eyJhbGciOiJIUzI1NiJ9.eyJzdWIiOiJhc2hhIn0.c2ln"

func testProfile() domain.Profile {
	return domain.Profile{ID: 3, Username: "asha", FullName: "Asha Rao", Role: domain.RoleTeacher, IsActive: true}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	mem := storage.NewMemory()
	s := NewStore(mem, nil)

	s.Save(testToken, testProfile(), true)

	rec := s.Load()
	require.NotNil(t, rec)
	assert.Equal(t, &Record{Token: testToken, Profile: testProfile(), RememberMe: true}, rec)
}

func TestLoadRequiresEveryWrittenKey(t *testing.T) {
	for _, key := range []string{KeyToken, KeyUser, KeyRememberMe} {
		t.Run(key, func(t *testing.T) {
			mem := storage.NewMemory()
			s := NewStore(mem, nil)
			s.Save(testToken, testProfile(), true)

			require.NoError(t, mem.Remove(key))
			assert.Nil(t, s.Load())
		})
	}
}

func TestLoadUnreadableRememberMeIsNoSession(t *testing.T) {
	mem := storage.NewMemory()
	s := NewStore(mem, nil)
	s.Save(testToken, testProfile(), false)

	require.NoError(t, mem.Set(KeyRememberMe, "maybe"))
	assert.Nil(t, s.Load())
}

func TestLoadWithoutWarningFlag(t *testing.T) {
	mem := storage.NewMemory()
	s := NewStore(mem, nil)
	s.Save(testToken, testProfile(), false)

	rec := s.Load()
	require.NotNil(t, rec)
	assert.False(t, rec.WarningShown)
	assert.False(t, rec.RememberMe)
}

func TestLoadCorruptProfileIsNoSession(t *testing.T) {
	mem := storage.NewMemory()
	s := NewStore(mem, nil)
	s.Save(testToken, testProfile(), false)

	require.NoError(t, mem.Set(KeyUser, "{broken"))
	assert.Nil(t, s.Load())
}

func TestWarningFlag(t *testing.T) {
	mem := storage.NewMemory()
	s := NewStore(mem, nil)
	s.Save(testToken, testProfile(), false)

	assert.False(t, s.HasShownWarning())

	s.MarkWarningShown(testToken)
	s.MarkWarningShown(testToken)
	assert.True(t, s.HasShownWarning())
	assert.True(t, s.Load().WarningShown)

	s.Save(testToken, testProfile(), false)
	assert.False(t, s.HasShownWarning(), "a new save resets the flag")
}

func TestWarningFlagNeedsMatchingToken(t *testing.T) {
	mem := storage.NewMemory()
	s := NewStore(mem, nil)

	s.MarkWarningShown(testToken)
	assert.Zero(t, mem.Len(), "nothing is written without a session")

	s.Save(testToken, testProfile(), false)
	s.Clear()
	s.MarkWarningShown(testToken)
	assert.Zero(t, mem.Len(), "a cleared session stays cleared")

	s.Save(testToken, testProfile(), false)
	s.MarkWarningShown("some.other.token")
	assert.False(t, s.HasShownWarning())
}

func TestClearRemovesEverything(t *testing.T) {
	mem := storage.NewMemory()
	s := NewStore(mem, nil)
	s.Save(testToken, testProfile(), true)
	s.MarkWarningShown(testToken)

	s.Clear()

	assert.Nil(t, s.Load())
	assert.False(t, s.HasShownWarning())
	assert.Zero(t, mem.Len())
}

func TestUpdateProfile(t *testing.T) {
	mem := storage.NewMemory()
	s := NewStore(mem, nil)
	s.Save(testToken, testProfile(), true)
	s.MarkWarningShown(testToken)

	p := testProfile()
	p.FullName = "Asha R."
	s.UpdateProfile(p)

	rec := s.Load()
	require.NotNil(t, rec)
	assert.Equal(t, "Asha R.", rec.Profile.FullName)
	assert.Equal(t, testToken, rec.Token)
	assert.True(t, rec.WarningShown, "profile updates leave the flag alone")
}

func TestStorageFailuresAreSwallowed(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Level: log.LevelDebug, Output: &buf})

	mem := storage.NewMemory()
	s := NewStore(mem, logger)

	mem.FailWrites(true)
	assert.NotPanics(t, func() {
		s.Save(testToken, testProfile(), true)
		s.MarkWarningShown(testToken)
		s.Clear()
	})
	mem.FailWrites(false)
	assert.Nil(t, s.Load(), "failed writes have no effect")

	s.Save(testToken, testProfile(), true)
	mem.FailReads(true)
	assert.Nil(t, s.Load(), "failed reads are absent")
	assert.False(t, s.HasShownWarning())

	assert.True(t, strings.Contains(buf.String(), "session write failed"))
	assert.True(t, strings.Contains(buf.String(), "session read failed"))
	assert.False(t, strings.Contains(buf.String(), testToken), "tokens are never logged")
}
