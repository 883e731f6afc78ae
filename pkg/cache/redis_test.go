package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "hris:notifications:unread:u-1", Key("notifications", "unread", "u-1"))
	assert.Equal(t, "hris:benefit_types", Key("benefit_types"))
}
