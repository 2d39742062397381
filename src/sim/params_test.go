package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParametersValidate(t *testing.T) {
	valid := Parameters{NumCars: 3, NumChargers: 3, NumPeople: 3, TimeStep: 1.0, SimLength: 1000}

	t.Run("accepts the defaults", func(t *testing.T) {
		assert.NoError(t, valid.Validate())
	})

	t.Run("allows zero chargers", func(t *testing.T) {
		p := valid
		p.NumChargers = 0
		assert.NoError(t, p.Validate())
	})

	t.Run("rejects bad fields", func(t *testing.T) {
		cases := []struct {
			name   string
			mutate func(*Parameters)
			errMsg string
		}{
			{"zero cars", func(p *Parameters) { p.NumCars = 0 }, "num_cars"},
			{"negative chargers", func(p *Parameters) { p.NumChargers = -1 }, "num_chargers"},
			{"zero people", func(p *Parameters) { p.NumPeople = 0 }, "num_people"},
			{"zero time step", func(p *Parameters) { p.TimeStep = 0 }, "time_step"},
			{"negative time step", func(p *Parameters) { p.TimeStep = -0.5 }, "time_step"},
			{"zero sim length", func(p *Parameters) { p.SimLength = 0 }, "sim_length"},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				p := valid
				tc.mutate(&p)
				err := p.Validate()
				assert.ErrorContains(t, err, tc.errMsg)
			})
		}
	})
}
