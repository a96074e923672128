package evaluation

import (
	"testing"

	"github.com/pinokio-social/pinokio/models"

	"github.com/stretchr/testify/assert"
)

func TestStatus(t *testing.T) {
	assert := assert.New(t)
	th := DefaultThresholds

	assert.Equal(models.VerdictUnknown, th.Status(0, 0))
	assert.Equal(models.VerdictUnknown, th.Status(4, 2))
	assert.Equal(models.VerdictValid, th.Status(5, 0))
	assert.Equal(models.VerdictValid, th.Status(5, 2))
	assert.Equal(models.VerdictWarning, th.Status(0, 3))
	assert.Equal(models.VerdictWarning, th.Status(100, 3))
}

func TestNegativePrecedence(t *testing.T) {
	assert := assert.New(t)
	th := DefaultThresholds

	var pos, neg int64
	var status models.Verdict
	for _, v := range []models.Verdict{models.VerdictWarning, models.VerdictUnknown, models.VerdictWarning} {
		pos, neg, status = th.Apply(pos, neg, v)
	}
	assert.Equal(models.VerdictWarning, status)
	for i := 0; i < 5; i++ {
		pos, neg, status = th.Apply(pos, neg, models.VerdictValid)
	}
	assert.Equal(int64(5), pos)
	assert.Equal(int64(3), neg)
	assert.Equal(models.VerdictWarning, status)
}

func TestPolicy(t *testing.T) {
	assert := assert.New(t)
	th := DefaultThresholds

	p, err := ParsePolicy("")
	assert.NoError(err)
	assert.Equal(PolicyLastWriteWins, p)
	_, err = ParsePolicy("first-write-wins")
	assert.Error(err)

	fresh := &models.Post{}
	evaluated := &models.Post{PositiveEvaluationsCount: 1}

	assert.Equal(models.VerdictValid, th.ResolveScored(PolicyLastWriteWins, evaluated, models.VerdictValid))
	assert.Equal(models.VerdictValid, th.ResolveScored(PolicyCounterWinsOnceEvaluated, fresh, models.VerdictValid))
	assert.Equal(models.VerdictUnknown, th.ResolveScored(PolicyCounterWinsOnceEvaluated, evaluated, models.VerdictValid))
}
