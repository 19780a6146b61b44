package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentityKey(t *testing.T) {
	web := Registration{
		Transport: TransportWeb,
		Endpoint:  "https://push.example/e1",
		DeviceID:  "ignored",
	}
	assert.Equal(t, "https://push.example/e1", web.IdentityKey())

	native := Registration{
		Transport: TransportNative,
		DeviceID:  "device-abc",
	}
	assert.Equal(t, "device-abc", native.IdentityKey())
}

func TestVisible(t *testing.T) {
	assert.True(t, Registration{Status: StatusActive}.Visible())
	assert.False(t, Registration{Status: StatusMarkedForDeletion}.Visible())
}
