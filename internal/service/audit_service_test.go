package service

import (
	"testing"

	"auditgelap-service/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestAuditTypeGuardsTier(t *testing.T) {
	// Deep audits are a paid feature no matter what the model reports.
	assert.Equal(t, models.AuditTypeDeep, auditType(true, models.AuditTypeDeep))
	assert.Equal(t, models.AuditTypeStandard, auditType(true, models.AuditTypeStandard))
	assert.Equal(t, models.AuditTypeStandard, auditType(true, "garbage"))
	assert.Equal(t, models.AuditTypeStandard, auditType(false, models.AuditTypeDeep))
	assert.Equal(t, models.AuditTypeStandard, auditType(false, models.AuditTypeStandard))
}

func TestTruncateCommandsCapsPerTier(t *testing.T) {
	five := []string{"a", "b", "c", "d", "e"}

	assert.Equal(t, []string{"a", "b"}, truncateCommands(five, false))
	assert.Equal(t, []string{"a", "b", "c", "d"}, truncateCommands(five, true))

	one := []string{"a"}
	assert.Equal(t, one, truncateCommands(one, false))
	assert.Equal(t, one, truncateCommands(one, true))
	assert.Empty(t, truncateCommands(nil, true))
}
