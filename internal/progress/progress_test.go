package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "search_lock_abc", lockKey("abc"))
	assert.Equal(t, "search_progress_job-1", progressKey("job-1"))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, clamp(-0.5))
	assert.Equal(t, 0.25, clamp(0.25))
	assert.Equal(t, 1.0, clamp(1.7))
}
