package usage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"costguardian/pkg/errors"
)

func TestSubject_Key(t *testing.T) {
	assert.Equal(t, "user-1", Subject{UserID: "user-1"}.Key())
	assert.Equal(t, "org-9", Subject{UserID: "user-1", OrganizationID: "org-9"}.Key())
	assert.True(t, Subject{UserID: "u", OrganizationID: "o"}.IsOrganization())
	assert.ErrorIs(t, Subject{OrganizationID: "org-9"}.Validate(), errors.ErrInvalidInput)
}

func TestUsageRecord_Validate(t *testing.T) {
	valid := UsageRecord{UserID: "u", Timestamp: time.Now(), Cost: 0.2, Model: "gpt-4o"}
	assert.NoError(t, valid.Validate())

	negative := valid
	negative.Cost = -1
	assert.ErrorIs(t, negative.Validate(), errors.ErrInvalidInput)

	noModel := valid
	noModel.Model = ""
	assert.ErrorIs(t, noModel.Validate(), errors.ErrInvalidInput)

	noTime := valid
	noTime.Timestamp = time.Time{}
	assert.ErrorIs(t, noTime.Validate(), errors.ErrInvalidInput)
}
