package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("WHATSAPP_TOKEN", "token")
	t.Setenv("WHATSAPP_PHONE_NUMBER_ID", "123")

	require.NoError(t, Load(""))
	c := Get()

	assert.Equal(t, "v22.0", c.WhatsappApiVersion)
	assert.Equal(t, time.Minute, c.SchedulerTickInterval)
	assert.Equal(t, 5*time.Second, c.SchedulerSendDelay)
	assert.Equal(t, 0, c.SchedulerMaxPerDrain)
	assert.Equal(t, "dispatch:events", c.EventsStream)
	assert.NoError(t, c.ValidateDispatcher())
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("SCHEDULER_SEND_DELAY=250ms\nSCHEDULER_MAX_PER_DRAIN=20\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("SCHEDULER_SEND_DELAY")
		os.Unsetenv("SCHEDULER_MAX_PER_DRAIN")
	})

	require.NoError(t, Load(path))
	assert.Equal(t, 250*time.Millisecond, Get().SchedulerSendDelay)
	assert.Equal(t, 20, Get().SchedulerMaxPerDrain)
}

func TestLoad_MissingFile(t *testing.T) {
	err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestValidateDispatcher(t *testing.T) {
	valid := Config{
		WhatsappApiUrl:        "https://graph.facebook.com",
		WhatsappToken:         "token",
		WhatsappPhoneNumberID: "123",
		SchedulerTickInterval: time.Minute,
		SchedulerSendDelay:    5 * time.Second,
	}
	assert.NoError(t, valid.ValidateDispatcher())

	t.Run("missing token", func(t *testing.T) {
		c := valid
		c.WhatsappToken = ""
		assert.ErrorIs(t, c.ValidateDispatcher(), ErrMissingCredentials)
	})

	t.Run("missing phone number id", func(t *testing.T) {
		c := valid
		c.WhatsappPhoneNumberID = ""
		assert.ErrorIs(t, c.ValidateDispatcher(), ErrMissingCredentials)
	})

	t.Run("zero tick interval", func(t *testing.T) {
		c := valid
		c.SchedulerTickInterval = 0
		assert.ErrorIs(t, c.ValidateDispatcher(), ErrInvalidScheduler)
	})

	t.Run("negative drain bound", func(t *testing.T) {
		c := valid
		c.SchedulerMaxPerDrain = -1
		assert.ErrorIs(t, c.ValidateDispatcher(), ErrInvalidScheduler)
	})
}
