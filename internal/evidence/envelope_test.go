package evidence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validEnvelope() Envelope {
	return Envelope{
		ID:        "env-1",
		CameraID:  "cam-1",
		FrameID:   "frame-1",
		Timestamp: 1000,
		Person: []Person{
			{
				ID:   "person-1",
				BBox: BBox{0, 0, 10, 10},
				Part: []Part{
					{Label: PartHead, BBox: BBox{0, 0, 1, 1}},
				},
				Equipment: []Equipment{
					{Label: EquipmentHardhat, BBox: BBox{0, 0, 1, 1}},
				},
				Violation: []Violation{ViolationMissingGloves},
			},
		},
	}
}

func TestValidate_OK(t *testing.T) {
	require.NoError(t, validEnvelope().Validate())
}

func TestValidate_MissingCameraID(t *testing.T) {
	env := validEnvelope()
	env.CameraID = ""
	assert.ErrorIs(t, env.Validate(), ErrMissingCameraID)
}

func TestValidate_NonPositiveTimestamp(t *testing.T) {
	env := validEnvelope()
	env.Timestamp = 0
	assert.ErrorIs(t, env.Validate(), ErrInvalidTimestamp)
}

func TestValidate_NonFiniteBBox(t *testing.T) {
	env := validEnvelope()
	var zero float32
	env.Person[0].BBox = BBox{0, 0, 1 / zero, 10}
	assert.ErrorIs(t, env.Validate(), ErrInvalidBBox)
}

func TestValidate_UnknownPartLabel(t *testing.T) {
	env := validEnvelope()
	env.Person[0].Part[0].Label = PartLabel("knee")
	assert.ErrorIs(t, env.Validate(), ErrInvalidLabel)
}

func TestValidate_UnknownEquipmentLabel(t *testing.T) {
	env := validEnvelope()
	env.Person[0].Equipment[0].Label = EquipmentLabel("jacket")
	assert.ErrorIs(t, env.Validate(), ErrInvalidLabel)
}

func TestValidate_UnknownViolation(t *testing.T) {
	env := validEnvelope()
	env.Person[0].Violation[0] = Violation("missing_jacket")
	assert.ErrorIs(t, env.Validate(), ErrInvalidLabel)
}

func TestPerson_HasViolation(t *testing.T) {
	p := Person{}
	assert.False(t, p.HasViolation())
	p.Violation = []Violation{ViolationMissingHardhat}
	assert.True(t, p.HasViolation())
}
