package memory

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/domain"
)

type seedFile struct {
	Facilities []struct {
		ID       int64                       `yaml:"id"`
		Name     string                      `yaml:"name"`
		Timezone string                      `yaml:"timezone"`
		Schedule map[string]domain.HourRange `yaml:"schedule"`
		Courts   []struct {
			ID           int64  `yaml:"id"`
			Name         string `yaml:"name"`
			State        string `yaml:"state"`
			PricePerHour int64  `yaml:"price_per_hour"`
			Currency     string `yaml:"currency"`
		} `yaml:"courts"`
	} `yaml:"facilities"`
}

// LoadSeedFile reads facilities and courts from a YAML file into s.
func (s *Store) LoadSeedFile(path string) error {
	const op = "memory.Store.LoadSeedFile"

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}
	defer f.Close()

	if err := s.LoadSeed(f); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

func (s *Store) LoadSeed(r io.Reader) error {
	var seed seedFile
	if err := yaml.NewDecoder(r).Decode(&seed); err != nil {
		return err
	}

	for _, sf := range seed.Facilities {
		schedule := make(domain.WeeklySchedule, len(sf.Schedule))
		for name, h := range sf.Schedule {
			d, err := domain.ParseWeekday(name)
			if err != nil {
				return err
			}
			if _, err := domain.NewHourRange(h.From, h.To); err != nil {
				return fmt.Errorf("facility %d %s: %w", sf.ID, name, err)
			}
			schedule[d] = h
		}

		s.PutFacility(domain.Facility{
			ID:       sf.ID,
			Name:     sf.Name,
			Timezone: sf.Timezone,
			Schedule: schedule,
		})

		for _, sc := range sf.Courts {
			state := domain.CourtState(sc.State)
			if state == "" {
				state = domain.CourtActive
			}
			s.PutCourt(domain.Court{
				ID:           sc.ID,
				FacilityID:   sf.ID,
				Name:         sc.Name,
				State:        state,
				PricePerHour: sc.PricePerHour,
				Currency:     sc.Currency,
			})
		}
	}

	return nil
}
