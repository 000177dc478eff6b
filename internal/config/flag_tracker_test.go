package config

import (
	"sync"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlagTracker_FromFlagSet(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Int("workers", 10, "")
	fs.Float64("cosine-threshold", 0.8, "")
	fs.String("format", "text", "")

	require.NoError(t, fs.Parse([]string{"--workers", "3", "--format=json"}))

	ft := NewFlagTrackerFromFlagSet(fs)
	assert.True(t, ft.WasSet("workers"))
	assert.True(t, ft.WasSet("format"))
	assert.False(t, ft.WasSet("cosine-threshold"))
	assert.Equal(t, 2, ft.Count())
}

func TestFlagTracker_Override(t *testing.T) {
	ft := NewFlagTracker()
	ft.Set("min-lines")

	assert.Equal(t, 5, Override(ft, 2, 5, "min-lines"))
	assert.Equal(t, 0.8, Override(ft, 0.8, 0.9, "cosine-threshold"))
	assert.Equal(t, "json", Override[string](nil, "json", "csv", "format"), "nil tracker keeps base")
}

func TestFlagTracker_ConcurrentReadWrite(t *testing.T) {
	ft := NewFlagTracker()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			ft.Set("workers")
		}()
		go func() {
			defer wg.Done()
			_ = ft.WasSet("workers")
		}()
	}
	wg.Wait()

	assert.True(t, ft.WasSet("workers"))
}

func TestNewFlagTrackerFromFlagSet_Nil(t *testing.T) {
	assert.Equal(t, 0, NewFlagTrackerFromFlagSet(nil).Count())
}
